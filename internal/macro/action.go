package macro

import (
	"encoding/json"
	"fmt"
	"time"

	"gamevault/internal/combo"
)

// DefaultDelay is the wait used by a Delay action without a duration.
const DefaultDelay = 100 * time.Millisecond

// Action is one step of a macro. The set of variants is closed: KeyPress,
// KeyRelease, KeyTap and Delay.
type Action interface {
	// Kind returns the persisted type tag of the action.
	Kind() string
	isAction()
}

// KeyPress holds a key down. A zero KeyCode is a no-op.
type KeyPress struct {
	KeyCode combo.VK
}

// KeyRelease lifts a key. A zero KeyCode is a no-op.
type KeyRelease struct {
	KeyCode combo.VK
}

// KeyTap presses and releases a key. KeyName, when set, is a combo such as
// "Ctrl+C" and takes precedence over KeyCode. Hold overrides the executor's
// default hold time when positive.
type KeyTap struct {
	KeyCode combo.VK
	KeyName string
	Hold    time.Duration
}

// Delay pauses the macro. A non-positive Duration waits DefaultDelay.
type Delay struct {
	Duration time.Duration
}

func (KeyPress) Kind() string   { return "key_press" }
func (KeyRelease) Kind() string { return "key_release" }
func (KeyTap) Kind() string     { return "key_tap" }
func (Delay) Kind() string      { return "delay" }

func (KeyPress) isAction()   {}
func (KeyRelease) isAction() {}
func (KeyTap) isAction()     {}
func (Delay) isAction()      {}

func (d Delay) wait() time.Duration {
	if d.Duration <= 0 {
		return DefaultDelay
	}
	return d.Duration
}

// ActionList is the persisted JSON form of a macro's action sequence:
//
//	[{"type":"key_tap","key_name":"Ctrl+C"},{"type":"delay","delay_ms":50}]
type ActionList []Action

type wireAction struct {
	Type    string  `json:"type"`
	KeyCode *uint16 `json:"key_code,omitempty"`
	KeyName string  `json:"key_name,omitempty"`
	DelayMs *int64  `json:"delay_ms,omitempty"`
}

// MarshalJSON encodes the list in its tagged wire form.
func (l ActionList) MarshalJSON() ([]byte, error) {
	wire := make([]wireAction, 0, len(l))
	for i, action := range l {
		w := wireAction{Type: action.Kind()}
		switch a := action.(type) {
		case KeyPress:
			w.KeyCode = keyCodePtr(a.KeyCode)
		case KeyRelease:
			w.KeyCode = keyCodePtr(a.KeyCode)
		case KeyTap:
			w.KeyCode = keyCodePtr(a.KeyCode)
			w.KeyName = a.KeyName
			w.DelayMs = millisPtr(a.Hold)
		case Delay:
			w.DelayMs = millisPtr(a.Duration)
		default:
			return nil, fmt.Errorf("action %d: unsupported action type %T", i, action)
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the tagged wire form. Unknown type tags are errors.
func (l *ActionList) UnmarshalJSON(data []byte) error {
	var wire []wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode macro actions: %w", err)
	}
	out := make(ActionList, 0, len(wire))
	for i, w := range wire {
		if w.DelayMs != nil && *w.DelayMs < 0 {
			return fmt.Errorf("action %d: delay_ms must be >= 0, got %d", i, *w.DelayMs)
		}
		switch w.Type {
		case "key_press":
			out = append(out, KeyPress{KeyCode: keyCodeOf(w.KeyCode)})
		case "key_release":
			out = append(out, KeyRelease{KeyCode: keyCodeOf(w.KeyCode)})
		case "key_tap":
			out = append(out, KeyTap{
				KeyCode: keyCodeOf(w.KeyCode),
				KeyName: w.KeyName,
				Hold:    durationOf(w.DelayMs),
			})
		case "delay":
			out = append(out, Delay{Duration: durationOf(w.DelayMs)})
		default:
			return fmt.Errorf("action %d: unknown action type %q", i, w.Type)
		}
	}
	*l = out
	return nil
}

func keyCodePtr(vk combo.VK) *uint16 {
	if vk == 0 {
		return nil
	}
	v := uint16(vk)
	return &v
}

func keyCodeOf(v *uint16) combo.VK {
	if v == nil {
		return 0
	}
	return combo.VK(*v)
}

func millisPtr(d time.Duration) *int64 {
	if d <= 0 {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func durationOf(ms *int64) time.Duration {
	if ms == nil {
		return 0
	}
	return time.Duration(*ms) * time.Millisecond
}
