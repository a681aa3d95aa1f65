//go:build !windows

package input

import "gamevault/internal/combo"

const supported = false

func sendKey(combo.VK, bool) error {
	return ErrUnsupported
}
