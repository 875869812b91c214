package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Accelerator is a parsed shortcut such as "Ctrl+Shift+B".
type Accelerator struct {
	Mods Modifier
	Key  string // canonical key name: "Space", "A", "F5", ...
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

var namedKeys = map[string]string{
	"space":     "Space",
	"enter":     "Return",
	"return":    "Return",
	"tab":       "Tab",
	"esc":       "Escape",
	"escape":    "Escape",
	"backspace": "BackSpace",
}

// ParseAccelerator parses "Mod+Mod+Key". Modifier names are case
// insensitive and exactly one non-modifier key is required.
func ParseAccelerator(s string) (Accelerator, error) {
	var acc Accelerator

	parts := strings.Split(s, "+")
	for i, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: empty component", s)
		}
		lower := strings.ToLower(part)

		if mod, ok := modifierNames[lower]; ok && i < len(parts)-1 {
			acc.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: unknown modifier %q", s, part)
		}

		key, err := canonicalKey(lower)
		if err != nil {
			return Accelerator{}, fmt.Errorf("invalid accelerator %q: %w", s, err)
		}
		acc.Key = key
	}

	return acc, nil
}

func canonicalKey(lower string) (string, error) {
	if name, ok := namedKeys[lower]; ok {
		return name, nil
	}
	if len(lower) == 1 && (lower[0] >= 'a' && lower[0] <= 'z' || lower[0] >= '0' && lower[0] <= '9') {
		return strings.ToUpper(lower), nil
	}
	if len(lower) >= 2 && lower[0] == 'f' && lower[1] != '0' {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 12 {
			return "F" + lower[1:], nil
		}
	}
	return "", fmt.Errorf("unsupported key %q", lower)
}

func (a Accelerator) String() string {
	var parts []string
	if a.Mods&ModCtrl != 0 {
		parts = append(parts, "Ctrl")
	}
	if a.Mods&ModAlt != 0 {
		parts = append(parts, "Alt")
	}
	if a.Mods&ModShift != 0 {
		parts = append(parts, "Shift")
	}
	if a.Mods&ModSuper != 0 {
		parts = append(parts, "Super")
	}
	return strings.Join(append(parts, a.Key), "+")
}

// X11 modifier masks from X.h.
const (
	x11ShiftMask   = 1 << 0
	x11ControlMask = 1 << 2
	x11Mod1Mask    = 1 << 3
	x11Mod4Mask    = 1 << 6
)

// X11KeySym returns the name accepted by XStringToKeysym.
func (a Accelerator) X11KeySym() string {
	switch {
	case a.Key == "Space":
		return "space"
	case len(a.Key) == 1 && a.Key[0] >= 'A' && a.Key[0] <= 'Z':
		return strings.ToLower(a.Key)
	default:
		return a.Key
	}
}

func (a Accelerator) X11Modifiers() int {
	var m int
	if a.Mods&ModShift != 0 {
		m |= x11ShiftMask
	}
	if a.Mods&ModCtrl != 0 {
		m |= x11ControlMask
	}
	if a.Mods&ModAlt != 0 {
		m |= x11Mod1Mask
	}
	if a.Mods&ModSuper != 0 {
		m |= x11Mod4Mask
	}
	return m
}

// Carbon modifier flags from Events.h.
const (
	macCmdKey     = 0x0100
	macShiftKey   = 0x0200
	macOptionKey  = 0x0800
	macControlKey = 0x1000
)

// ANSI virtual key codes.
var macKeyCodes = map[string]uint32{
	"A": 0x00, "S": 0x01, "D": 0x02, "F": 0x03, "H": 0x04, "G": 0x05, "Z": 0x06, "X": 0x07,
	"C": 0x08, "V": 0x09, "B": 0x0B, "Q": 0x0C, "W": 0x0D, "E": 0x0E, "R": 0x0F, "Y": 0x10,
	"T": 0x11, "1": 0x12, "2": 0x13, "3": 0x14, "4": 0x15, "6": 0x16, "5": 0x17, "9": 0x19,
	"7": 0x1A, "8": 0x1C, "0": 0x1D, "O": 0x1F, "U": 0x20, "I": 0x22, "P": 0x23, "L": 0x25,
	"J": 0x26, "K": 0x28, "N": 0x2D, "M": 0x2E,
	"Return": 0x24, "Tab": 0x30, "Space": 0x31, "BackSpace": 0x33, "Escape": 0x35,
	"F1": 0x7A, "F2": 0x78, "F3": 0x63, "F4": 0x76, "F5": 0x60, "F6": 0x61,
	"F7": 0x62, "F8": 0x64, "F9": 0x65, "F10": 0x6D, "F11": 0x67, "F12": 0x6F,
}

func (a Accelerator) MacKeyCode() (uint32, bool) {
	code, ok := macKeyCodes[a.Key]
	return code, ok
}

func (a Accelerator) MacModifiers() uint32 {
	var m uint32
	if a.Mods&ModSuper != 0 {
		m |= macCmdKey
	}
	if a.Mods&ModShift != 0 {
		m |= macShiftKey
	}
	if a.Mods&ModAlt != 0 {
		m |= macOptionKey
	}
	if a.Mods&ModCtrl != 0 {
		m |= macControlKey
	}
	return m
}
