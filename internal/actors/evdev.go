package actors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/charon-kb/charon/internal/domain"
)

// inputEventSize is sizeof(struct input_event) on 64-bit Linux:
// a 16-byte timeval followed by type, code and value.
const inputEventSize = 24

const (
	evKey = 0x01

	keyUp     = 0
	keyDown   = 1
	keyRepeat = 2
)

// evIOCGRAB is _IOW('E', 0x90, int).
const evIOCGRAB = 0x40044590

type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

func readInputEvent(r io.Reader, buf []byte) (inputEvent, error) {
	if _, err := io.ReadFull(r, buf[:inputEventSize]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return inputEvent{}, fmt.Errorf("short input_event: %w", err)
		}
		return inputEvent{}, err
	}
	return inputEvent{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}

// evdevToHID maps Linux input key codes to HID usages.
var evdevToHID = func() map[uint16]domain.HidKeyCode {
	m := map[uint16]domain.HidKeyCode{
		1:   domain.KeyEscape,
		11:  domain.Key0,
		12:  domain.KeyMinus,
		13:  domain.KeyEqual,
		14:  domain.KeyBackspace,
		15:  domain.KeyTab,
		26:  domain.KeyLeftBracket,
		27:  domain.KeyRightBracket,
		28:  domain.KeyEnter,
		29:  domain.KeyLeftCtrl,
		39:  domain.KeySemicolon,
		40:  domain.KeyQuote,
		41:  domain.KeyGrave,
		42:  domain.KeyLeftShift,
		43:  domain.KeyBackslash,
		51:  domain.KeyComma,
		52:  domain.KeyDot,
		53:  domain.KeySlash,
		54:  domain.KeyRightShift,
		56:  domain.KeyLeftAlt,
		57:  domain.KeySpace,
		58:  domain.KeyCapsLock,
		87:  domain.KeyF1 + 10,
		88:  domain.KeyF12,
		97:  domain.KeyRightCtrl,
		100: domain.KeyRightAlt,
		102: domain.KeyHome,
		103: domain.KeyUp,
		104: domain.KeyPageUp,
		105: domain.KeyLeft,
		106: domain.KeyRight,
		107: domain.KeyEnd,
		108: domain.KeyDown,
		109: domain.KeyPageDown,
		110: domain.KeyInsert,
		111: domain.KeyDelete,
		125: domain.KeyLeftMeta,
		126: domain.KeyRightMeta,
	}
	for i := uint16(0); i < 9; i++ {
		m[2+i] = domain.Key1 + domain.HidKeyCode(i)
	}
	for i := uint16(0); i < 10; i++ {
		m[59+i] = domain.KeyF1 + domain.HidKeyCode(i)
	}
	rows := []struct {
		first   uint16
		letters string
	}{
		{16, "qwertyuiop"},
		{30, "asdfghjkl"},
		{44, "zxcvbnm"},
	}
	for _, row := range rows {
		for i, c := range row.letters {
			m[row.first+uint16(i)] = domain.KeyA + domain.HidKeyCode(c-'a')
		}
	}
	return m
}()

// keyboardState turns raw key transitions into domain key events, tracking
// the modifier byte across events.
type keyboardState struct {
	mods domain.Modifiers
}

// translate returns the domain event for ie, or nil for anything that is
// not a key press or release of a mapped key. Autorepeat is dropped: the
// host repeats held keys itself.
func (k *keyboardState) translate(ie inputEvent) domain.DomainEvent {
	if ie.Type != evKey || ie.Value == keyRepeat {
		return nil
	}
	key, ok := evdevToHID[ie.Code]
	if !ok {
		return nil
	}

	switch ie.Value {
	case keyDown:
		k.mods |= key.Modifier()
		return domain.KeyPress{Key: key, Modifiers: k.mods}
	case keyUp:
		k.mods &^= key.Modifier()
		return domain.KeyRelease{Key: key, Modifiers: k.mods}
	}
	return nil
}
