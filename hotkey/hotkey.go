package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Mod string

const (
	ModCtrl  Mod = "ctrl"
	ModShift Mod = "shift"
	ModAlt   Mod = "alt"
	ModSuper Mod = "super"
)

// Combo is a key plus the modifiers that must be held with it.
type Combo struct {
	Mods []Mod
	Key  string
}

func (c Combo) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, c.Key), "+")
}

func (c Combo) has(m Mod) bool {
	for _, x := range c.Mods {
		if x == m {
			return true
		}
	}
	return false
}

var modAliases = map[string]Mod{
	"ctrl": ModCtrl, "control": ModCtrl,
	"shift": ModShift,
	"alt":   ModAlt, "option": ModAlt,
	"super": ModSuper, "cmd": ModSuper, "win": ModSuper, "meta": ModSuper,
}

var keyAliases = map[string]string{
	"prtsc": "printscreen", "print": "printscreen", "sysrq": "printscreen",
	"esc": "escape", "return": "enter",
}

// ParseCombo reads combos such as "ctrl+shift+space", "F9" or "PrintScreen".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(s, " ", "")), "+")
	for i, p := range parts {
		if p == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty part", s)
		}
		if i < len(parts)-1 {
			m, ok := modAliases[p]
			if !ok {
				return Combo{}, fmt.Errorf("hotkey %q: unknown modifier %q", s, p)
			}
			if !c.has(m) {
				c.Mods = append(c.Mods, m)
			}
			continue
		}
		if alias, ok := keyAliases[p]; ok {
			p = alias
		}
		if !knownKey(p) {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, p)
		}
		c.Key = p
	}
	return c, nil
}

func MustParse(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

func knownKey(k string) bool {
	switch k {
	case "space", "enter", "escape", "tab", "printscreen":
		return true
	}
	if len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9') {
		return true
	}
	if len(k) >= 2 && k[0] == 'f' && k[1] != '0' {
		n, err := strconv.Atoi(k[1:])
		return err == nil && n >= 1 && n <= 12
	}
	return false
}
