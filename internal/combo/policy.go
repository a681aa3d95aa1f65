package combo

import "strings"

// IsRegisterable reports whether a combo may be claimed as a system-wide
// hotkey. A lone F1..F24 key is allowed; anything else needs at least one
// modifier. Platforms reject bare non-function keys, so this is checked
// before the shortcut service is ever called.
func IsRegisterable(raw string) bool {
	tokens := Tokens(raw)
	if len(tokens) == 0 {
		return false
	}
	if len(tokens) == 1 && functionKeyPattern.MatchString(tokens[0]) {
		return true
	}
	for _, token := range tokens {
		if _, ok := registerableModifierNames[strings.ToLower(token)]; ok {
			return true
		}
	}
	return false
}
