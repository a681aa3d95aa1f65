package combo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotAChord is returned when a combo does not name exactly one
// non-modifier key.
var ErrNotAChord = errors.New("combo must contain exactly one non-modifier key")

// Chord is a combo reduced to what an OS hotkey service accepts: a set of
// modifiers plus one key.
type Chord struct {
	Modifiers []Key
	Key       Key
}

// HasModifier reports whether the chord includes the given host modifier
// token (TokenCommandOrControl, TokenAlt, TokenShift or TokenSuper).
func (c Chord) HasModifier(token string) bool {
	for _, mod := range c.Modifiers {
		if mod.Token == token {
			return true
		}
	}
	return false
}

// String returns the canonical accelerator of the chord.
func (c Chord) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, mod := range modifierOrder {
		if c.HasModifier(mod) {
			parts = append(parts, mod)
		}
	}
	parts = append(parts, c.Key.Token)
	return strings.Join(parts, "+")
}

// ParseChord expands raw and checks that it names exactly one non-modifier
// key.
func ParseChord(raw string) (Chord, error) {
	keys, err := Expand(raw)
	if err != nil {
		return Chord{}, err
	}
	mods, rest := SplitModifiers(keys)
	if len(rest) != 1 {
		return Chord{}, fmt.Errorf("combo %q: %w", raw, ErrNotAChord)
	}
	return Chord{Modifiers: mods, Key: rest[0]}, nil
}
