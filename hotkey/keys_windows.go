//go:build windows

package hotkey

import "golang.design/x/hotkey"

const vkSnapshot = 0x2C

func platformMod(m Mod) hotkey.Modifier {
	switch m {
	case ModShift:
		return hotkey.ModShift
	case ModAlt:
		return hotkey.ModAlt
	case ModSuper:
		return hotkey.ModWin
	}
	return hotkey.ModCtrl
}

func platformKey(k string) (hotkey.Key, bool) {
	if k == "printscreen" {
		return hotkey.Key(vkSnapshot), true
	}
	return 0, false
}
