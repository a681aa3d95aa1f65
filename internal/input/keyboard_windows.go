//go:build windows

package input

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"gamevault/internal/combo"
)

const supported = true

var (
	user32DLL = windows.NewLazySystemDLL("user32.dll")

	procSendInput      = user32DLL.NewProc("SendInput")
	procMapVirtualKeyW = user32DLL.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard        = 1
	keyeventfExtendedKey = 0x0001
	keyeventfKeyUp       = 0x0002
	mapvkVKToVSC         = 0
)

// keybdInput mirrors the Win32 KEYBDINPUT struct.
type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

// keyboardEvent mirrors the Win32 INPUT struct for INPUT_KEYBOARD. The
// trailing padding brings it to the size of the union's largest member
// (MOUSEINPUT) on both 32-bit and 64-bit Windows.
type keyboardEvent struct {
	inputType uint32
	ki        keybdInput
	padding   uint64
}

// extendedKeys need KEYEVENTF_EXTENDEDKEY to be distinguished from their
// numpad twins.
var extendedKeys = map[combo.VK]struct{}{
	0x21: {}, 0x22: {}, 0x23: {}, 0x24: {}, // PageUp PageDown End Home
	0x25: {}, 0x26: {}, 0x27: {}, 0x28: {}, // arrows
	0x2C: {}, 0x2D: {}, 0x2E: {}, // PrintScreen Insert Delete
	0x5B: {}, 0x5C: {}, 0x5D: {}, // LWin RWin Apps
	0x6F: {}, 0x90: {}, // numpad divide, NumLock
	0xA3: {}, 0xA5: {}, // RControl RMenu
}

func sendKey(vk combo.VK, up bool) error {
	scan, _, _ := procMapVirtualKeyW.Call(uintptr(vk), mapvkVKToVSC)
	ev := keyboardEvent{
		inputType: inputKeyboard,
		ki: keybdInput{
			wVk:   uint16(vk),
			wScan: uint16(scan),
		},
	}
	if up {
		ev.ki.dwFlags |= keyeventfKeyUp
	}
	if _, ok := extendedKeys[vk]; ok {
		ev.ki.dwFlags |= keyeventfExtendedKey
	}

	sent, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&ev)), unsafe.Sizeof(ev))
	if sent == 1 {
		return nil
	}
	if err == syscall.Errno(0) {
		return errors.New("SendInput was blocked by another thread or UIPI")
	}
	return err
}
