// Package ipc carries domain events between the daemon and its clients over
// a unix socket as newline-delimited JSON records.
//
// A record looks like:
//
//	{"source":"kbd","payload":{"type":"key_press","key":30,"modifiers":0}}
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/charon-kb/charon/internal/domain"
)

// ErrUnknownEvent is returned for a record whose payload type is not known.
var ErrUnknownEvent = errors.New("unknown event type")

// ParseError reports a record that could not be decoded.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse record %q: %v", truncate(e.Line, 80), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type record struct {
	Source  string          `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// Encode renders ev as one record without the trailing newline.
func Encode(ev domain.Event) ([]byte, error) {
	if ev.Payload == nil {
		return nil, fmt.Errorf("encode event from %s: nil payload", ev.Source)
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Payload.Kind(), err)
	}
	payload, err = sjson.SetBytes(payload, "type", ev.Payload.Kind())
	if err != nil {
		return nil, fmt.Errorf("tag %s payload: %w", ev.Payload.Kind(), err)
	}
	return json.Marshal(record{Source: ev.Source, Payload: payload})
}

// Decode parses one record. Every failure is a *ParseError.
func Decode(line []byte) (domain.Event, error) {
	if !gjson.ValidBytes(line) {
		return domain.Event{}, &ParseError{Line: string(line), Err: errors.New("invalid json")}
	}

	kind := gjson.GetBytes(line, "payload.type")
	if !kind.Exists() {
		return domain.Event{}, &ParseError{Line: string(line), Err: errors.New("missing payload type")}
	}
	decode, ok := decoders[kind.String()]
	if !ok {
		return domain.Event{}, &ParseError{Line: string(line), Err: fmt.Errorf("%w: %q", ErrUnknownEvent, kind.String())}
	}

	payload, err := decode([]byte(gjson.GetBytes(line, "payload").Raw))
	if err != nil {
		return domain.Event{}, &ParseError{Line: string(line), Err: err}
	}
	return domain.NewEvent(gjson.GetBytes(line, "source").String(), payload), nil
}

var decoders = map[string]func([]byte) (domain.DomainEvent, error){
	domain.KindKeyPress:     decodeAs[domain.KeyPress],
	domain.KindKeyRelease:   decodeAs[domain.KeyRelease],
	domain.KindHidReport:    decodeAs[domain.HidReport],
	domain.KindSendText:     decodeAs[domain.SendText],
	domain.KindSendFile:     decodeAs[domain.SendFile],
	domain.KindTextSent:     decodeAs[domain.TextSent],
	domain.KindCurrentStats: decodeAs[domain.CurrentStats],
	domain.KindModeChange:   decodeAs[domain.ModeChange],
	domain.KindExit:         decodeAs[domain.Exit],
	domain.KindSleep:        decodeAs[domain.Sleep],
	domain.KindWakeUp:       decodeAs[domain.WakeUp],
	domain.KindReportSent:   decodeAs[domain.ReportSent],
}

func decodeAs[T domain.DomainEvent](raw []byte) (domain.DomainEvent, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
