package domain

import (
	"fmt"
	"strings"
)

// HidKeyCode is a USB HID usage from the keyboard page (0x07).
type HidKeyCode uint8

// HID usages used by the daemon. See the USB HID Usage Tables, section 10.
const (
	KeyNone HidKeyCode = 0x00

	KeyA HidKeyCode = 0x04
	KeyZ HidKeyCode = 0x1d

	Key1 HidKeyCode = 0x1e
	Key0 HidKeyCode = 0x27

	KeyEnter        HidKeyCode = 0x28
	KeyEscape       HidKeyCode = 0x29
	KeyBackspace    HidKeyCode = 0x2a
	KeyTab          HidKeyCode = 0x2b
	KeySpace        HidKeyCode = 0x2c
	KeyMinus        HidKeyCode = 0x2d
	KeyEqual        HidKeyCode = 0x2e
	KeyLeftBracket  HidKeyCode = 0x2f
	KeyRightBracket HidKeyCode = 0x30
	KeyBackslash    HidKeyCode = 0x31
	KeySemicolon    HidKeyCode = 0x33
	KeyQuote        HidKeyCode = 0x34
	KeyGrave        HidKeyCode = 0x35
	KeyComma        HidKeyCode = 0x36
	KeyDot          HidKeyCode = 0x37
	KeySlash        HidKeyCode = 0x38
	KeyCapsLock     HidKeyCode = 0x39

	KeyF1  HidKeyCode = 0x3a
	KeyF12 HidKeyCode = 0x45

	KeyInsert   HidKeyCode = 0x49
	KeyHome     HidKeyCode = 0x4a
	KeyPageUp   HidKeyCode = 0x4b
	KeyDelete   HidKeyCode = 0x4c
	KeyEnd      HidKeyCode = 0x4d
	KeyPageDown HidKeyCode = 0x4e
	KeyRight    HidKeyCode = 0x4f
	KeyLeft     HidKeyCode = 0x50
	KeyDown     HidKeyCode = 0x51
	KeyUp       HidKeyCode = 0x52

	KeyLeftCtrl   HidKeyCode = 0xe0
	KeyLeftShift  HidKeyCode = 0xe1
	KeyLeftAlt    HidKeyCode = 0xe2
	KeyLeftMeta   HidKeyCode = 0xe3
	KeyRightCtrl  HidKeyCode = 0xe4
	KeyRightShift HidKeyCode = 0xe5
	KeyRightAlt   HidKeyCode = 0xe6
	KeyRightMeta  HidKeyCode = 0xe7
)

var keyNames = map[HidKeyCode]string{
	KeyEnter:        "enter",
	KeyEscape:       "escape",
	KeyBackspace:    "backspace",
	KeyTab:          "tab",
	KeySpace:        "space",
	KeyMinus:        "minus",
	KeyEqual:        "equal",
	KeyLeftBracket:  "leftbracket",
	KeyRightBracket: "rightbracket",
	KeyBackslash:    "backslash",
	KeySemicolon:    "semicolon",
	KeyQuote:        "quote",
	KeyGrave:        "grave",
	KeyComma:        "comma",
	KeyDot:          "dot",
	KeySlash:        "slash",
	KeyCapsLock:     "capslock",
	KeyInsert:       "insert",
	KeyHome:         "home",
	KeyPageUp:       "pageup",
	KeyDelete:       "delete",
	KeyEnd:          "end",
	KeyPageDown:     "pagedown",
	KeyRight:        "right",
	KeyLeft:         "left",
	KeyDown:         "down",
	KeyUp:           "up",
	KeyLeftCtrl:     "leftctrl",
	KeyLeftShift:    "leftshift",
	KeyLeftAlt:      "leftalt",
	KeyLeftMeta:     "leftmeta",
	KeyRightCtrl:    "rightctrl",
	KeyRightShift:   "rightshift",
	KeyRightAlt:     "rightalt",
	KeyRightMeta:    "rightmeta",
}

var keysByName = func() map[string]HidKeyCode {
	m := make(map[string]HidKeyCode, len(keyNames)+48)
	for k, n := range keyNames {
		m[n] = k
	}
	for k := KeyA; k <= KeyZ; k++ {
		m[string(rune('a'+k-KeyA))] = k
	}
	for k := Key1; k < Key0; k++ {
		m[string(rune('1'+k-Key1))] = k
	}
	m["0"] = Key0
	for k := KeyF1; k <= KeyF12; k++ {
		m[fmt.Sprintf("f%d", k-KeyF1+1)] = k
	}
	m["esc"] = KeyEscape
	m["return"] = KeyEnter
	return m
}()

// Name returns a lower-case name for the key.
func (k HidKeyCode) Name() string {
	switch {
	case k >= KeyA && k <= KeyZ:
		return string(rune('a' + k - KeyA))
	case k >= Key1 && k < Key0:
		return string(rune('1' + k - Key1))
	case k == Key0:
		return "0"
	case k >= KeyF1 && k <= KeyF12:
		return fmt.Sprintf("f%d", k-KeyF1+1)
	}
	if n, ok := keyNames[k]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", uint8(k))
}

func (k HidKeyCode) String() string {
	return k.Name()
}

// KeyByName looks up a key by the name returned from Name.
func KeyByName(name string) (HidKeyCode, bool) {
	k, ok := keysByName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// IsModifier reports whether the key is one of the eight modifier keys.
func (k HidKeyCode) IsModifier() bool {
	return k >= KeyLeftCtrl && k <= KeyRightMeta
}

// Modifier returns the modifier bit for a modifier key, or zero.
func (k HidKeyCode) Modifier() Modifiers {
	if !k.IsModifier() {
		return 0
	}
	return Modifiers(1 << (k - KeyLeftCtrl))
}

// Modifiers is the HID modifier byte.
type Modifiers uint8

const (
	ModLeftCtrl Modifiers = 1 << iota
	ModLeftShift
	ModLeftAlt
	ModLeftMeta
	ModRightCtrl
	ModRightShift
	ModRightAlt
	ModRightMeta
)

// Normalize folds right-hand modifiers onto their left-hand bits so that
// "ctrl" matches either control key.
func (m Modifiers) Normalize() Modifiers {
	return (m | m>>4) & 0x0f
}

// Has reports whether all bits of other are set.
func (m Modifiers) Has(other Modifiers) bool {
	return m&other == other
}

func (m Modifiers) String() string {
	n := m.Normalize()
	var parts []string
	if n.Has(ModLeftCtrl) {
		parts = append(parts, "ctrl")
	}
	if n.Has(ModLeftShift) {
		parts = append(parts, "shift")
	}
	if n.Has(ModLeftAlt) {
		parts = append(parts, "alt")
	}
	if n.Has(ModLeftMeta) {
		parts = append(parts, "meta")
	}
	return strings.Join(parts, "+")
}

// KeyShortcut is a key plus a set of (normalized) modifiers.
type KeyShortcut struct {
	Key       HidKeyCode
	Modifiers Modifiers
}

// ParseKeyShortcut parses strings like "ctrl+alt+space".
func ParseKeyShortcut(s string) (KeyShortcut, error) {
	var sc KeyShortcut
	parts := strings.Split(strings.ToLower(s), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "ctrl", "control":
			sc.Modifiers |= ModLeftCtrl
			continue
		case "shift":
			sc.Modifiers |= ModLeftShift
			continue
		case "alt":
			sc.Modifiers |= ModLeftAlt
			continue
		case "meta", "super", "win", "cmd":
			sc.Modifiers |= ModLeftMeta
			continue
		}
		if i != len(parts)-1 {
			return KeyShortcut{}, fmt.Errorf("shortcut %q: key %q must come last", s, p)
		}
		k, ok := KeyByName(p)
		if !ok {
			return KeyShortcut{}, fmt.Errorf("shortcut %q: unknown key %q", s, p)
		}
		sc.Key = k
	}
	if sc.Key == KeyNone {
		return KeyShortcut{}, fmt.Errorf("shortcut %q: missing key", s)
	}
	return sc, nil
}

// Matches reports whether key pressed with mods triggers the shortcut.
func (sc KeyShortcut) Matches(key HidKeyCode, mods Modifiers) bool {
	return key == sc.Key && mods.Normalize() == sc.Modifiers.Normalize()
}

func (sc KeyShortcut) String() string {
	if sc.Modifiers == 0 {
		return sc.Key.Name()
	}
	return sc.Modifiers.String() + "+" + sc.Key.Name()
}
