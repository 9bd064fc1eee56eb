// Package domain contains the event model shared by the daemon and the client.
// This is the innermost layer - no external dependencies.
package domain

import "fmt"

// Event is a single message flowing through the broker or over the wire.
// Events are values: they are copied, never mutated, when fanned out.
type Event struct {
	Source  string
	Payload DomainEvent
}

// NewEvent creates an event originating from source.
func NewEvent(source string, payload DomainEvent) Event {
	return Event{Source: source, Payload: payload}
}

// Topic returns the routing topic of the event payload.
func (e Event) Topic() Topic {
	return TopicOf(e.Payload)
}

// IsExit reports whether the event is the shutdown signal.
func (e Event) IsExit() bool {
	_, ok := e.Payload.(Exit)
	return ok
}

func (e Event) String() string {
	return fmt.Sprintf("%s<-%s", e.Payload.Kind(), e.Source)
}

// DomainEvent is the closed set of payloads. The unexported marker keeps the
// set sealed to this package, and Topic makes the classifier total: a new
// variant without a topic does not compile.
type DomainEvent interface {
	// Kind is the wire discriminant.
	Kind() string
	// Topic is the routing category.
	Topic() Topic

	domainEvent()
}

// Wire discriminants.
const (
	KindKeyPress     = "key_press"
	KindKeyRelease   = "key_release"
	KindHidReport    = "hid_report"
	KindSendText     = "send_text"
	KindSendFile     = "send_file"
	KindTextSent     = "text_sent"
	KindCurrentStats = "current_stats"
	KindModeChange   = "mode_change"
	KindExit         = "exit"
	KindSleep        = "sleep"
	KindWakeUp       = "wake_up"
	KindReportSent   = "report_sent"
)

// KeyPress is emitted by scanners when a key goes down.
type KeyPress struct {
	Key       HidKeyCode `json:"key"`
	Modifiers Modifiers  `json:"modifiers"`
}

// KeyRelease is emitted by scanners when a key goes up.
type KeyRelease struct {
	Key       HidKeyCode `json:"key"`
	Modifiers Modifiers  `json:"modifiers"`
}

// HidReport is an 8-byte boot keyboard report ready for the HID gadget.
type HidReport struct {
	Report [8]byte `json:"report"`
}

// SendText asks the typist to type Text.
type SendText struct {
	Text string `json:"text"`
}

// SendFile asks the typist to type the contents of the file at Path.
// When Remove is set the file is deleted once it has been typed.
type SendFile struct {
	Path   string `json:"path"`
	Remove bool   `json:"remove,omitempty"`
}

// TextSent reports that a SendText or SendFile request finished.
type TextSent struct{}

// CurrentStats carries a typing statistics snapshot.
type CurrentStats struct {
	Stats Stats `json:"stats"`
}

// ModeChange switches the shared runtime mode.
type ModeChange struct {
	Mode Mode `json:"mode"`
}

// Exit tells every actor to stop.
type Exit struct{}

// Sleep signals that the keyboard has been idle.
type Sleep struct{}

// WakeUp signals activity after Sleep.
type WakeUp struct{}

// ReportSent is telemetry emitted after a HID report was written.
type ReportSent struct{}

func (KeyPress) Kind() string     { return KindKeyPress }
func (KeyRelease) Kind() string   { return KindKeyRelease }
func (HidReport) Kind() string    { return KindHidReport }
func (SendText) Kind() string     { return KindSendText }
func (SendFile) Kind() string     { return KindSendFile }
func (TextSent) Kind() string     { return KindTextSent }
func (CurrentStats) Kind() string { return KindCurrentStats }
func (ModeChange) Kind() string   { return KindModeChange }
func (Exit) Kind() string         { return KindExit }
func (Sleep) Kind() string        { return KindSleep }
func (WakeUp) Kind() string       { return KindWakeUp }
func (ReportSent) Kind() string   { return KindReportSent }

func (KeyPress) Topic() Topic     { return TopicKeyInput }
func (KeyRelease) Topic() Topic   { return TopicKeyInput }
func (HidReport) Topic() Topic    { return TopicKeyOutput }
func (SendText) Topic() Topic     { return TopicTextInput }
func (SendFile) Topic() Topic     { return TopicTextInput }
func (TextSent) Topic() Topic     { return TopicMonitoring }
func (CurrentStats) Topic() Topic { return TopicStats }
func (ModeChange) Topic() Topic   { return TopicSystem }
func (Exit) Topic() Topic         { return TopicSystem }
func (Sleep) Topic() Topic        { return TopicSystem }
func (WakeUp) Topic() Topic       { return TopicSystem }
func (ReportSent) Topic() Topic   { return TopicTelemetry }

func (KeyPress) domainEvent()     {}
func (KeyRelease) domainEvent()   {}
func (HidReport) domainEvent()    {}
func (SendText) domainEvent()     {}
func (SendFile) domainEvent()     {}
func (TextSent) domainEvent()     {}
func (CurrentStats) domainEvent() {}
func (ModeChange) domainEvent()   {}
func (Exit) domainEvent()         {}
func (Sleep) domainEvent()        {}
func (WakeUp) domainEvent()       {}
func (ReportSent) domainEvent()   {}

// NewHidReport builds a boot keyboard report from a modifier byte and up to
// six pressed keys. Extra keys are ignored.
func NewHidReport(mods Modifiers, keys ...HidKeyCode) HidReport {
	var r HidReport
	r.Report[0] = byte(mods)
	for i, k := range keys {
		if i >= 6 {
			break
		}
		r.Report[2+i] = byte(k)
	}
	return r
}

// IsEmpty reports whether the report releases every key.
func (r HidReport) IsEmpty() bool {
	return r.Report == [8]byte{}
}
