package hotkeys

import (
	"gamevault/internal/combo"
)

// Modifier is a hotkey modifier bitmask. Values match the Win32 MOD_*
// constants; other platforms translate from them.
type Modifier uint32

const (
	ModAlt      Modifier = 0x0001
	ModControl  Modifier = 0x0002
	ModShift    Modifier = 0x0004
	ModWin      Modifier = 0x0008
	modNoRepeat Modifier = 0x4000
)

var modifierByToken = map[string]Modifier{
	combo.TokenCommandOrControl: ModControl,
	combo.TokenAlt:              ModAlt,
	combo.TokenShift:            ModShift,
	combo.TokenSuper:            ModWin,
}

// Binding describes a parsed global hotkey.
// Construct only via ParseBinding to guarantee invariant consistency.
type Binding struct {
	modifiers  Modifier
	key        combo.VK
	normalized string
}

// Modifiers returns the modifier bitmask.
func (b Binding) Modifiers() Modifier { return b.modifiers }

// Key returns the virtual-key code.
func (b Binding) Key() combo.VK { return b.key }

// Normalized returns the canonical accelerator string.
func (b Binding) Normalized() string { return b.normalized }

// Has reports whether every bit of mod is set.
func (b Binding) Has(mod Modifier) bool { return b.modifiers&mod == mod }

// ParseBinding parses an accelerator such as "CommandOrControl+Shift+G" or
// "Ctrl+Shift+G". Exactly one non-modifier key is required; modifiers are
// optional so that bare function keys can be bound.
func ParseBinding(accel string) (Binding, error) {
	chord, err := combo.ParseChord(accel)
	if err != nil {
		return Binding{}, err
	}
	var mods Modifier
	for _, mod := range chord.Modifiers {
		mods |= modifierByToken[mod.Token]
	}
	return Binding{
		modifiers:  mods,
		key:        chord.Key.VK,
		normalized: chord.String(),
	}, nil
}
