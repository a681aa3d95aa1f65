//go:build linux && cgo

package hotkeys

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"gamevault/internal/combo"
	"gamevault/internal/shortcuts"
)

// x11Keys translates virtual-key codes to X11 keysyms.
var x11Keys = map[combo.VK]hotkey.Key{
	0x20: hotkey.KeySpace,
	0x0D: hotkey.KeyReturn,
	0x1B: hotkey.KeyEscape,
	0x2E: hotkey.KeyDelete,
	0x09: hotkey.KeyTab,
	0x25: hotkey.KeyLeft,
	0x26: hotkey.KeyUp,
	0x27: hotkey.KeyRight,
	0x28: hotkey.KeyDown,

	'0': hotkey.Key0, '1': hotkey.Key1, '2': hotkey.Key2, '3': hotkey.Key3, '4': hotkey.Key4,
	'5': hotkey.Key5, '6': hotkey.Key6, '7': hotkey.Key7, '8': hotkey.Key8, '9': hotkey.Key9,

	'A': hotkey.KeyA, 'B': hotkey.KeyB, 'C': hotkey.KeyC, 'D': hotkey.KeyD, 'E': hotkey.KeyE,
	'F': hotkey.KeyF, 'G': hotkey.KeyG, 'H': hotkey.KeyH, 'I': hotkey.KeyI, 'J': hotkey.KeyJ,
	'K': hotkey.KeyK, 'L': hotkey.KeyL, 'M': hotkey.KeyM, 'N': hotkey.KeyN, 'O': hotkey.KeyO,
	'P': hotkey.KeyP, 'Q': hotkey.KeyQ, 'R': hotkey.KeyR, 'S': hotkey.KeyS, 'T': hotkey.KeyT,
	'U': hotkey.KeyU, 'V': hotkey.KeyV, 'W': hotkey.KeyW, 'X': hotkey.KeyX, 'Y': hotkey.KeyY,
	'Z': hotkey.KeyZ,

	0x70: hotkey.KeyF1, 0x71: hotkey.KeyF2, 0x72: hotkey.KeyF3, 0x73: hotkey.KeyF4,
	0x74: hotkey.KeyF5, 0x75: hotkey.KeyF6, 0x76: hotkey.KeyF7, 0x77: hotkey.KeyF8,
	0x78: hotkey.KeyF9, 0x79: hotkey.KeyF10, 0x7A: hotkey.KeyF11, 0x7B: hotkey.KeyF12,
	0x7C: hotkey.KeyF13, 0x7D: hotkey.KeyF14, 0x7E: hotkey.KeyF15, 0x7F: hotkey.KeyF16,
	0x80: hotkey.KeyF17, 0x81: hotkey.KeyF18, 0x82: hotkey.KeyF19, 0x83: hotkey.KeyF20,
}

// x11Modifiers follows the usual X11 layout: Alt is Mod1 and Super is Mod4.
func x11Modifiers(b Binding) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if b.Has(ModControl) {
		mods = append(mods, hotkey.ModCtrl)
	}
	if b.Has(ModShift) {
		mods = append(mods, hotkey.ModShift)
	}
	if b.Has(ModAlt) {
		mods = append(mods, hotkey.Mod1)
	}
	if b.Has(ModWin) {
		mods = append(mods, hotkey.Mod4)
	}
	return mods
}

type x11Hotkey struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
	done chan struct{}
}

type x11Backend struct {
	mu      sync.Mutex
	hotkeys map[int32]*x11Hotkey
}

func newBackend() backend {
	return &x11Backend{hotkeys: make(map[int32]*x11Hotkey)}
}

func (b *x11Backend) register(id int32, binding Binding, fire func(shortcuts.KeyState)) error {
	key, ok := x11Keys[binding.Key()]
	if !ok {
		return fmt.Errorf("key 0x%02X has no X11 mapping", uint16(binding.Key()))
	}
	hk := hotkey.New(x11Modifiers(binding), key)
	if err := hk.Register(); err != nil {
		return err
	}

	entry := &x11Hotkey{hk: hk, stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(entry.done)
		for {
			select {
			case <-entry.stop:
				return
			case <-hk.Keydown():
				fire(shortcuts.Pressed)
			case <-hk.Keyup():
				fire(shortcuts.Released)
			}
		}
	}()

	b.mu.Lock()
	b.hotkeys[id] = entry
	b.mu.Unlock()
	return nil
}

func (b *x11Backend) unregister(id int32) error {
	b.mu.Lock()
	entry, ok := b.hotkeys[id]
	delete(b.hotkeys, id)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	close(entry.stop)
	<-entry.done
	return entry.hk.Unregister()
}

func (b *x11Backend) close() error {
	b.mu.Lock()
	ids := make([]int32, 0, len(b.hotkeys))
	for id := range b.hotkeys {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := b.unregister(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
