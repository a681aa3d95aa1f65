package macro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gamevault/internal/combo"
)

// recorder captures simulator calls and waits as one ordered log.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	failOn string
	// block, when set, makes Tap wait until the channel is closed or ctx
	// is done.
	block chan struct{}
}

func (r *recorder) log(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, entry)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) check(entry string) error {
	r.log(entry)
	if r.failOn != "" && entry == r.failOn {
		return fmt.Errorf("simulated failure on %s", entry)
	}
	return nil
}

func (r *recorder) KeyDown(_ context.Context, vk combo.VK) error {
	return r.check(fmt.Sprintf("down(%s)", keyLabel(vk)))
}

func (r *recorder) KeyUp(_ context.Context, vk combo.VK) error {
	return r.check(fmt.Sprintf("up(%s)", keyLabel(vk)))
}

func (r *recorder) Tap(ctx context.Context, vk combo.VK, hold time.Duration) error {
	if err := r.check(fmt.Sprintf("tap(%s,%d)", keyLabel(vk), hold.Milliseconds())); err != nil {
		return err
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return nil
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.log(fmt.Sprintf("wait(%d)", d.Milliseconds()))
	return ctx.Err()
}

func keyLabel(vk combo.VK) string {
	switch vk {
	case 0x10:
		return "Shift"
	case 0x11:
		return "Ctrl"
	case 0x12:
		return "Alt"
	}
	if (vk >= 'A' && vk <= 'Z') || (vk >= '0' && vk <= '9') {
		return string(rune(vk))
	}
	return fmt.Sprintf("0x%02X", uint16(vk))
}

func newRecordingExecutor(rec *recorder, opts ExecutorOptions) *Executor {
	opts.Sleep = rec.sleep
	return NewExecutor(rec, opts)
}
