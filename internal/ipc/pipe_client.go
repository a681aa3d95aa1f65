package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const (
	defaultPipeDialTimeout = 3 * time.Second
	defaultPipeRWTimeout   = 15 * time.Second
)

// Send sends one request and waits for one response.
func Send(pipeName string, req ControlRequest) (ControlResponse, error) {
	return SendContext(context.Background(), pipeName, req)
}

// SendContext is Send bounded by ctx as well as the default exchange
// timeout. Cancelling ctx aborts a pending exchange.
func SendContext(ctx context.Context, pipeName string, req ControlRequest) (ControlResponse, error) {
	if pipeName == "" {
		pipeName = DefaultPipeName()
	}
	if err := ctx.Err(); err != nil {
		return ControlResponse{}, err
	}

	conn, err := dial(pipeName, defaultPipeDialTimeout)
	if err != nil {
		return ControlResponse{}, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(defaultPipeRWTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return ControlResponse{}, fmt.Errorf("set deadline: %w", err)
	}

	if err := writeFrame(conn, req); err != nil {
		return ControlResponse{}, exchangeError(ctx, "send request", err)
	}
	raw, err := readFrame(conn, maxPipeResponseBytes)
	if err != nil {
		return ControlResponse{}, exchangeError(ctx, "read response", err)
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return ControlResponse{}, fmt.Errorf("invalid response: %w", err)
	}
	return resp, nil
}

// exchangeError prefers the context error when ctx ended the exchange.
func exchangeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsConnectionError reports whether err means no app is listening on the
// pipe, as opposed to a failure inside a live exchange.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "open"
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Op == "open"
	}
	return errors.Is(err, os.ErrNotExist)
}
