package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier masks, matching the Win32 MOD_* values
const (
	ModAlt   uint32 = 0x0001
	ModCtrl  uint32 = 0x0002
	ModShift uint32 = 0x0004
	ModWin   uint32 = 0x0008
)

// Shortcut is a parsed key combination such as ctrl+alt+v
type Shortcut struct {
	Modifiers uint32
	Key       string
	// VK is the Windows virtual key code of Key.
	VK uint32
}

var namedKeys = map[string]uint32{
	"esc":       0x1B,
	"space":     0x20,
	"enter":     0x0D,
	"tab":       0x09,
	"backspace": 0x08,
	"insert":    0x2D,
	"delete":    0x2E,
	"home":      0x24,
	"end":       0x23,
	"pageup":    0x21,
	"pagedown":  0x22,
	"left":      0x25,
	"up":        0x26,
	"right":     0x27,
	"down":      0x28,
}

var keyAliases = map[string]string{
	"escape": "esc",
	"return": "enter",
	"del":    "delete",
}

// ParseShortcut accepts strings like "ctrl+alt+v", "shift+F1" or "esc"
func ParseShortcut(s string) (Shortcut, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Shortcut{}, fmt.Errorf("empty shortcut")
	}

	parts := strings.Split(strings.ToLower(s), "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var sc Shortcut
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "alt", "menu", "option":
			sc.Modifiers |= ModAlt
		case "ctrl", "control":
			sc.Modifiers |= ModCtrl
		case "shift":
			sc.Modifiers |= ModShift
		case "win", "meta", "super", "cmd":
			sc.Modifiers |= ModWin
		default:
			return Shortcut{}, fmt.Errorf("unknown modifier %q in %q", p, s)
		}
	}

	key := parts[len(parts)-1]
	if alias, ok := keyAliases[key]; ok {
		key = alias
	}
	vk, err := virtualKey(key)
	if err != nil {
		return Shortcut{}, fmt.Errorf("invalid shortcut %q: %w", s, err)
	}
	sc.Key = key
	sc.VK = vk
	return sc, nil
}

func virtualKey(key string) (uint32, error) {
	if len(key) == 1 {
		ch := key[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return uint32(ch - 'a' + 'A'), nil
		case ch >= '0' && ch <= '9':
			return uint32(ch), nil
		}
	}
	if vk, ok := namedKeys[key]; ok {
		return vk, nil
	}
	if strings.HasPrefix(key, "f") {
		if n, err := strconv.Atoi(key[1:]); err == nil && n >= 1 && n <= 24 {
			return 0x70 + uint32(n-1), nil
		}
	}
	return 0, fmt.Errorf("unsupported key %q", key)
}

// String returns the canonical form, e.g. "ctrl+alt+v"
func (s Shortcut) String() string {
	var parts []string
	if s.Modifiers&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if s.Modifiers&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if s.Modifiers&ModShift != 0 {
		parts = append(parts, "shift")
	}
	if s.Modifiers&ModWin != 0 {
		parts = append(parts, "win")
	}
	return strings.Join(append(parts, s.Key), "+")
}
