//go:build darwin

package hotkey

import "golang.design/x/hotkey"

func platformMod(m Mod) hotkey.Modifier {
	switch m {
	case ModShift:
		return hotkey.ModShift
	case ModAlt:
		return hotkey.ModOption
	case ModSuper:
		return hotkey.ModCmd
	}
	return hotkey.ModCtrl
}

// macOS keyboards have no print screen key.
func platformKey(string) (hotkey.Key, bool) {
	return 0, false
}
