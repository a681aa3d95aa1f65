// Package combo converts human-recorded key combinations ("Ctrl+Shift+G")
// to and from the host accelerator vocabulary ("CommandOrControl+Shift+G")
// and expands them into virtual-key sequences for input simulation.
//
// Identity rule: two combos are the same shortcut when their Canonical forms
// are equal. Canonical translates every token, drops duplicate tokens, orders
// modifiers as CommandOrControl, Alt, Shift, Super and keeps non-modifier
// keys in the order they were recorded. Letter case only matters for tokens
// the translation table does not know.
package combo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyCombo is returned when a combo has no tokens.
	ErrEmptyCombo = errors.New("combo is empty")
	// ErrMalformedCombo is returned for a combo with an empty segment, such
	// as a plus key anywhere but last.
	ErrMalformedCombo = errors.New("malformed combo")
	// ErrUnknownKey is returned when a token has no virtual-key mapping.
	ErrUnknownKey = errors.New("unknown key")
)

var functionKeyPattern = regexp.MustCompile(`^[fF]([1-9]|1[0-9]|2[0-4])$`)

// Key is one element of an expanded combo.
type Key struct {
	Token    string `json:"token"`
	VK       VK     `json:"vk"`
	Modifier bool   `json:"modifier"`
}

// Tokens splits a combo on '+' and trims each token. A literal plus key is
// only accepted last, written "Ctrl++", or as the whole combo "+". A token
// made only of spaces is the space bar. Whitespace-only and malformed combos
// have no tokens.
func Tokens(raw string) []string {
	tokens, err := ParseTokens(raw)
	if err != nil {
		return nil
	}
	return tokens
}

// ParseTokens is Tokens with the reason a combo was rejected. An empty
// segment such as the middle of "Ctrl++G" is ErrMalformedCombo rather than
// being dropped, so a recorded plus key never turns into a different
// shortcut.
func ParseTokens(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyCombo
	}
	if raw == "+" {
		return []string{"+"}, nil
	}
	body, literalPlus := strings.CutSuffix(raw, "++")

	parts := strings.Split(body, "+")
	tokens := make([]string, 0, len(parts)+1)
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q has an empty key between '+' separators", ErrMalformedCombo, raw)
		}
		if strings.TrimSpace(part) == "" {
			tokens = append(tokens, " ")
			continue
		}
		tokens = append(tokens, strings.TrimSpace(part))
	}
	if literalPlus {
		tokens = append(tokens, "+")
	}
	return tokens, nil
}

// HostToken translates a single human token into the accelerator vocabulary.
// Unknown tokens are returned unchanged.
func HostToken(token string) string {
	if token == " " {
		return "Space"
	}
	if host, ok := hostTokenByName[strings.ToLower(token)]; ok {
		return host
	}
	if functionKeyPattern.MatchString(token) {
		return strings.ToUpper(token)
	}
	if len(token) == 1 && isASCIIAlnum(token[0]) {
		return strings.ToUpper(token)
	}
	return token
}

// IsModifierToken reports whether token names a modifier in either
// vocabulary.
func IsModifierToken(token string) bool {
	_, ok := modifierVK[HostToken(token)]
	return ok
}

// ToAccelerator converts a display combo to its host accelerator string.
// Token order is preserved.
func ToAccelerator(raw string) string {
	tokens := Tokens(raw)
	for i, token := range tokens {
		tokens[i] = HostToken(token)
	}
	return strings.Join(tokens, "+")
}

// ToDisplay converts a host accelerator string to the human vocabulary.
func ToDisplay(accel string) string {
	tokens := Tokens(accel)
	for i, token := range tokens {
		host := HostToken(token)
		if display, ok := displayByHostToken[host]; ok {
			tokens[i] = display
			continue
		}
		tokens[i] = host
	}
	return strings.Join(tokens, "+")
}

// Canonical returns the identity form of a combo in the accelerator
// vocabulary. It returns "" for empty combos.
func Canonical(raw string) string {
	tokens := Tokens(raw)
	if len(tokens) == 0 {
		return ""
	}
	mods := make(map[string]bool, len(modifierOrder))
	keys := make([]string, 0, len(tokens))
	seenKeys := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		host := HostToken(token)
		if _, isMod := modifierVK[host]; isMod {
			mods[host] = true
			continue
		}
		if _, dup := seenKeys[host]; dup {
			continue
		}
		seenKeys[host] = struct{}{}
		keys = append(keys, host)
	}

	out := make([]string, 0, len(mods)+len(keys))
	for _, mod := range modifierOrder {
		if mods[mod] {
			out = append(out, mod)
		}
	}
	out = append(out, keys...)
	return strings.Join(out, "+")
}

// Equal reports whether two combos name the same shortcut.
func Equal(a, b string) bool {
	ca := Canonical(a)
	return ca != "" && ca == Canonical(b)
}

// Expand resolves a combo into its virtual-key sequence, preserving the
// recorded order. Repeated tokens are kept once.
func Expand(raw string) ([]Key, error) {
	tokens, err := ParseTokens(raw)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		host := HostToken(token)
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}

		if vk, ok := modifierVK[host]; ok {
			keys = append(keys, Key{Token: host, VK: vk, Modifier: true})
			continue
		}
		vk, err := KeyVK(host)
		if err != nil {
			return nil, fmt.Errorf("combo %q: %w", raw, err)
		}
		keys = append(keys, Key{Token: host, VK: vk})
	}
	return keys, nil
}

// SplitModifiers partitions expanded keys into modifiers and the rest,
// keeping the relative order of each group.
func SplitModifiers(keys []Key) (mods []Key, rest []Key) {
	for _, key := range keys {
		if key.Modifier {
			mods = append(mods, key)
		} else {
			rest = append(rest, key)
		}
	}
	return mods, rest
}

// KeyVK resolves a non-modifier token (either vocabulary) to its virtual-key
// code. Hex codes such as "0x41" are accepted.
func KeyVK(token string) (VK, error) {
	host := HostToken(strings.TrimSpace(token))
	if host == "" {
		return 0, fmt.Errorf("%w: empty token", ErrUnknownKey)
	}
	if vk, ok := vkByHostToken[host]; ok {
		return vk, nil
	}
	if functionKeyPattern.MatchString(host) {
		n, err := strconv.Atoi(host[1:])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownKey, token)
		}
		return vkF1 + VK(n-1), nil
	}
	if len(host) == 1 && isASCIIAlnum(host[0]) {
		return VK(host[0]), nil
	}
	upper := strings.ToUpper(host)
	if strings.HasPrefix(upper, "0X") {
		value, err := strconv.ParseUint(upper[2:], 16, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid hex key %q", ErrUnknownKey, token)
		}
		if value == 0 {
			return 0, fmt.Errorf("%w: key code 0x0000 is not a valid virtual key", ErrUnknownKey)
		}
		return VK(value), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKey, token)
}

// ModifierVK returns the virtual-key code for a modifier token.
func ModifierVK(token string) (VK, bool) {
	vk, ok := modifierVK[HostToken(token)]
	return vk, ok
}

func isASCIIAlnum(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
