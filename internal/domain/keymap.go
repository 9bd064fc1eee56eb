package domain

// usShifted maps characters typed with shift on a US layout to their base key.
var usShifted = map[rune]HidKeyCode{
	'!': Key1, '@': Key1 + 1, '#': Key1 + 2, '$': Key1 + 3, '%': Key1 + 4,
	'^': Key1 + 5, '&': Key1 + 6, '*': Key1 + 7, '(': Key1 + 8, ')': Key0,
	'_': KeyMinus, '+': KeyEqual, '{': KeyLeftBracket, '}': KeyRightBracket,
	'|': KeyBackslash, ':': KeySemicolon, '"': KeyQuote, '~': KeyGrave,
	'<': KeyComma, '>': KeyDot, '?': KeySlash,
}

var usPlain = map[rune]HidKeyCode{
	' ': KeySpace, '\n': KeyEnter, '\t': KeyTab, '-': KeyMinus, '=': KeyEqual,
	'[': KeyLeftBracket, ']': KeyRightBracket, '\\': KeyBackslash,
	';': KeySemicolon, '\'': KeyQuote, '`': KeyGrave, ',': KeyComma,
	'.': KeyDot, '/': KeySlash, '0': Key0,
}

// KeyForRune returns the key and modifiers that type r on a US layout.
// The boolean is false for characters the layout cannot produce.
func KeyForRune(r rune) (HidKeyCode, Modifiers, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return KeyA + HidKeyCode(r-'a'), 0, true
	case r >= 'A' && r <= 'Z':
		return KeyA + HidKeyCode(r-'A'), ModLeftShift, true
	case r >= '1' && r <= '9':
		return Key1 + HidKeyCode(r-'1'), 0, true
	}
	if k, ok := usPlain[r]; ok {
		return k, 0, true
	}
	if k, ok := usShifted[r]; ok {
		return k, ModLeftShift, true
	}
	return KeyNone, 0, false
}
