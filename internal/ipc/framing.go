package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	maxPipeRequestBytes  = 64 * 1024
	maxPipeResponseBytes = 64 * 1024
)

// readFrame reads one newline-terminated frame of at most limit bytes. A
// final frame without the newline is accepted; an empty stream is io.EOF.
func readFrame(r io.Reader, limit int) ([]byte, error) {
	reader := bufio.NewReaderSize(r, limit+1)
	raw, err := reader.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return nil, fmt.Errorf("frame exceeds %d bytes", limit)
	case errors.Is(err, io.EOF):
		if len(raw) == 0 {
			return nil, io.EOF
		}
		return raw, nil
	case err != nil:
		return nil, err
	}
	return raw, nil
}

// writeFrame writes v as one JSON line in a single Write so a reader never
// sees the payload without its delimiter.
func writeFrame(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(raw, '\n'))
	return err
}
