package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"gamevault/internal/workerutil"
)

const (
	defaultPipeConnTimeout = 30 * time.Second
	// Control traffic is a human at a CLI or a second launch; a handful of
	// concurrent exchanges is plenty.
	defaultMaxConcurrentConns = 8
	maxAcceptFailures         = 10
	acceptFailureBackoff      = 500 * time.Millisecond
)

// commandTimeout bounds a single executor call.
var commandTimeout = 20 * time.Second

// PipeServer serves control requests from gamevault-ctl and from a second
// GameVault launch. Each connection carries one request and one response.
type PipeServer struct {
	pipeName string
	executor CommandExecutor

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
	slots    chan struct{}
}

// NewPipeServer returns a server for pipeName, or the per-user default
// when pipeName is empty.
func NewPipeServer(pipeName string, executor CommandExecutor) *PipeServer {
	if pipeName == "" {
		pipeName = DefaultPipeName()
	}
	return &PipeServer{
		pipeName: pipeName,
		executor: executor,
		slots:    make(chan struct{}, defaultMaxConcurrentConns),
	}
}

// PipeName returns the listen pipe name.
func (s *PipeServer) PipeName() string {
	return s.pipeName
}

// Start listens on the pipe and serves connections until Stop.
func (s *PipeServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("pipe server already started")
	}
	if s.stopped {
		return errors.New("pipe server stopped")
	}
	if s.executor == nil {
		return errors.New("pipe server requires executor")
	}

	listener, err := listen(s.pipeName)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.pipeName, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	workerutil.Supervise(ctx, "ipc-accept", &s.wg, func(ctx context.Context) {
		s.acceptLoop(ctx, listener)
	}, workerutil.Policy{})
	return nil
}

// Stop closes the listener and waits for in-flight requests. It is
// idempotent, and a stopped server cannot be restarted.
func (s *PipeServer) Stop() error {
	s.mu.Lock()
	listener, cancel := s.listener, s.cancel
	s.listener, s.cancel = nil, nil
	s.stopped = s.stopped || listener != nil
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	cancel()
	var closeErr error
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		closeErr = fmt.Errorf("close pipe listener: %w", err)
	}
	s.wg.Wait()
	return closeErr
}

func (s *PipeServer) acceptLoop(ctx context.Context, listener net.Listener) {
	failures := 0
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures <= maxAcceptFailures {
				slog.Debug("[ipc] accept error", "error", err)
				continue
			}
			slog.Warn("[ipc] repeated accept failures", "error", err, "count", failures)
			timer := time.NewTimer(acceptFailureBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}
		failures = 0

		select {
		case s.slots <- struct{}{}:
		default:
			slog.Warn("[ipc] all control slots busy, rejecting client")
			s.reply(conn, Fail("server busy, try again later"))
			s.closeConn(conn)
			continue
		}
		workerutil.Go(&s.wg, "ipc-conn", func() {
			defer func() { <-s.slots }()
			s.handleConnection(ctx, conn)
		}, nil)
	}
}

// handleConnection serves one request. The whole exchange is bounded by
// defaultPipeConnTimeout and the executor call by commandTimeout.
func (s *PipeServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.closeConn(conn)
	if err := conn.SetDeadline(time.Now().Add(defaultPipeConnTimeout)); err != nil {
		slog.Warn("[ipc] failed to set connection deadline", "error", err)
		return
	}

	raw, err := readFrame(conn, maxPipeRequestBytes)
	if errors.Is(err, io.EOF) {
		slog.Debug("[ipc] client disconnected without sending data")
		return
	}
	if err != nil {
		s.reply(conn, Fail(fmt.Sprintf("invalid request: %v", err)))
		return
	}
	req, err := decodeRequest(raw)
	if err != nil {
		s.reply(conn, Fail(fmt.Sprintf("invalid request: %v", err)))
		return
	}

	slog.Debug("[DEBUG-IPC] control request", "command", req.Command, "args", req.Args)
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	s.reply(conn, s.executor.Execute(cmdCtx, req))
}

func (s *PipeServer) reply(conn net.Conn, resp ControlResponse) {
	if err := writeFrame(conn, resp); err != nil {
		slog.Debug("[ipc] failed to write response", "error", err, "exitCode", resp.ExitCode)
	}
}

func (s *PipeServer) closeConn(conn net.Conn) {
	if err := conn.Close(); err != nil {
		slog.Debug("[ipc] connection close", "error", err)
	}
}
