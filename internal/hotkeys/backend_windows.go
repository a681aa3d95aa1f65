//go:build windows

package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"gamevault/internal/shortcuts"
)

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procRegisterHotKey     = user32DLL.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32DLL.NewProc("UnregisterHotKey")
	procGetMessageW        = user32DLL.NewProc("GetMessageW")
	procTranslateMessage   = user32DLL.NewProc("TranslateMessage")
	procDispatchMessageW   = user32DLL.NewProc("DispatchMessageW")
	procPostThreadMessageW = user32DLL.NewProc("PostThreadMessageW")
	procPeekMessageW       = user32DLL.NewProc("PeekMessageW")
	procGetAsyncKeyState   = user32DLL.NewProc("GetAsyncKeyState")
)

const (
	wmHotkey   = 0x0312
	wmQuit     = 0x0012
	wmApp      = 0x8000
	pmNoRemove = 0x0000

	releasePollInterval = 15 * time.Millisecond
	loopStopTimeout     = 2 * time.Second
)

// point mirrors the Win32 POINT struct.
type point struct {
	x int32
	y int32
}

// winMsg mirrors the Win32 MSG struct (tagMSG from winuser.h).
// Field order and types must not be changed -- the layout must match
// the Win32 binary layout on both 32-bit and 64-bit Windows.
type winMsg struct {
	hWnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32 // reserved by Windows; required for correct struct size
}

// loopRequest is executed on the message loop thread. RegisterHotKey with a
// nil window binds the hotkey to the calling thread, so every register and
// unregister must run there.
type loopRequest struct {
	run   func() error
	reply chan error
}

type winHotkey struct {
	binding Binding
	fire    func(shortcuts.KeyState)
	// polling is set while a release watcher runs for this hotkey.
	polling atomic.Bool
}

// winBackend owns one locked OS thread running a message loop for every
// registered hotkey.
type winBackend struct {
	startOnce sync.Once
	startErr  error
	// threadID is set by the loop once its message queue exists. Zero
	// means the loop never started.
	threadID  atomic.Uint32
	doneCh    chan struct{}
	requests  chan loopRequest

	mu      sync.Mutex
	hotkeys map[int32]*winHotkey
}

func newBackend() backend {
	return &winBackend{
		requests: make(chan loopRequest, 16),
		hotkeys:  make(map[int32]*winHotkey),
	}
}

func (b *winBackend) start() error {
	b.startOnce.Do(func() {
		// Pre-check DLL availability so that failures produce clean errors
		// instead of panics from LazyProc.Call.
		if err := user32DLL.Load(); err != nil {
			b.startErr = fmt.Errorf("user32.dll is unavailable: %w", err)
			return
		}
		readyCh := make(chan error, 1)
		b.doneCh = make(chan struct{})
		go b.loop(readyCh)
		b.startErr = <-readyCh
	})
	return b.startErr
}

func (b *winBackend) register(id int32, binding Binding, fire func(shortcuts.KeyState)) error {
	if err := b.start(); err != nil {
		return err
	}
	hk := &winHotkey{binding: binding, fire: fire}
	b.mu.Lock()
	b.hotkeys[id] = hk
	b.mu.Unlock()

	err := b.call(func() error {
		return registerHotKey(id, uint32(binding.Modifiers()|modNoRepeat), uint32(binding.Key()))
	})
	if err != nil {
		b.mu.Lock()
		delete(b.hotkeys, id)
		b.mu.Unlock()
	}
	return err
}

func (b *winBackend) unregister(id int32) error {
	b.mu.Lock()
	delete(b.hotkeys, id)
	b.mu.Unlock()
	if b.threadID.Load() == 0 {
		return nil
	}
	return b.call(func() error { return unregisterHotKey(id) })
}

func (b *winBackend) close() error {
	threadID := b.threadID.Load()
	if threadID == 0 {
		return nil
	}
	stopErr := postThreadMessage(threadID, wmQuit)
	timer := time.NewTimer(loopStopTimeout)
	defer timer.Stop()
	select {
	case <-b.doneCh:
	case <-timer.C:
		slog.Warn("[hotkey] DEBUG message loop stop timed out, goroutine/thread may leak",
			"threadID", threadID)
		stopErr = errors.Join(stopErr, errors.New("hotkey message loop stop timed out"))
	}
	return stopErr
}

// call runs fn on the loop thread and waits for its result.
func (b *winBackend) call(fn func() error) error {
	req := loopRequest{run: fn, reply: make(chan error, 1)}
	select {
	case b.requests <- req:
	case <-b.doneCh:
		return errors.New("hotkey message loop has exited")
	}
	if err := postThreadMessage(b.threadID.Load(), wmApp); err != nil {
		return fmt.Errorf("wake hotkey message loop: %w", err)
	}
	select {
	case err := <-req.reply:
		return err
	case <-b.doneCh:
		return errors.New("hotkey message loop exited before completing request")
	}
}

func (b *winBackend) loop(readyCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.doneCh)

	b.threadID.Store(windows.GetCurrentThreadId())

	// PeekMessageW forces Windows to create the thread message queue so that
	// PostThreadMessageW can deliver wake-ups and WM_QUIT. Queue creation is a
	// side effect; a zero return only means no message was waiting.
	var qmsg winMsg
	ret, _, peekErr := procPeekMessageW.Call(uintptr(unsafe.Pointer(&qmsg)), 0, 0, 0, pmNoRemove)
	if ret == 0 && peekErr != syscall.Errno(0) {
		slog.Warn("[hotkey] DEBUG PeekMessageW for queue init returned error", "error", peekErr)
	}
	readyCh <- nil

	defer b.unregisterAllOnThread()

	for {
		var msg winMsg
		ret, _, lastErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			slog.Warn("[hotkey] DEBUG GetMessageW returned error, exiting loop", "error", lastErr)
			return
		case 0:
			slog.Info("[hotkey] DEBUG message loop received WM_QUIT, exiting normally")
			return
		}

		switch msg.message {
		case wmApp:
			b.drainRequests()
			continue
		case wmHotkey:
			b.onHotkey(int32(msg.wParam))
			continue
		}

		// TranslateMessage and DispatchMessageW return values are informational
		// and are not error indicators for a thread-level message loop.
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

func (b *winBackend) drainRequests() {
	for {
		select {
		case req := <-b.requests:
			req.reply <- req.run()
		default:
			return
		}
	}
}

func (b *winBackend) onHotkey(id int32) {
	b.mu.Lock()
	hk, ok := b.hotkeys[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	hk.fire(shortcuts.Pressed)
	if hk.polling.CompareAndSwap(false, true) {
		go b.watchRelease(id, hk)
	}
}

// watchRelease reports Released once the hotkey's key goes up. Win32 hotkeys
// only deliver the press.
func (b *winBackend) watchRelease(id int32, hk *winHotkey) {
	defer hk.polling.Store(false)
	ticker := time.NewTicker(releasePollInterval)
	defer ticker.Stop()
	for range ticker.C {
		b.mu.Lock()
		current, live := b.hotkeys[id]
		b.mu.Unlock()
		if !live || current != hk {
			return
		}
		state, _, _ := procGetAsyncKeyState.Call(uintptr(hk.binding.Key()))
		if uint16(state)&0x8000 == 0 {
			hk.fire(shortcuts.Released)
			return
		}
	}
}

func (b *winBackend) unregisterAllOnThread() {
	b.mu.Lock()
	ids := make([]int32, 0, len(b.hotkeys))
	for id := range b.hotkeys {
		ids = append(ids, id)
	}
	clear(b.hotkeys)
	b.mu.Unlock()

	for _, id := range ids {
		if err := unregisterHotKey(id); err != nil {
			slog.Debug("[hotkey] DEBUG unregisterHotKey on loop exit failed", "error", err, "hotkeyID", id)
		}
	}
}

func registerHotKey(hotkeyID int32, modifiers uint32, key uint32) error {
	res, _, err := procRegisterHotKey.Call(0, uintptr(hotkeyID), uintptr(modifiers), uintptr(key))
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("RegisterHotKey failed")
	}
	return err
}

func unregisterHotKey(hotkeyID int32) error {
	res, _, err := procUnregisterHotKey.Call(0, uintptr(hotkeyID))
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("UnregisterHotKey failed")
	}
	return err
}

func postThreadMessage(threadID uint32, message uint32) error {
	if threadID == 0 {
		return errors.New("cannot post thread message: threadID is 0")
	}
	res, _, err := procPostThreadMessageW.Call(uintptr(threadID), uintptr(message), 0, 0)
	if res != 0 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("PostThreadMessageW failed")
	}
	return err
}
