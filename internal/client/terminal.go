package client

import (
	"bytes"
	"io"
	"sync"
)

// Terminal is where the client draws.
type Terminal interface {
	Draw(render func(w io.Writer)) error
	Suspend() error
	Resume() error
}

const clearScreen = "\033[H\033[2J"

// PlainTerminal draws full frames of plain text to an io.Writer.
type PlainTerminal struct {
	mu        sync.Mutex
	out       io.Writer
	suspended bool
}

// NewPlainTerminal returns a terminal writing to out.
func NewPlainTerminal(out io.Writer) *PlainTerminal {
	return &PlainTerminal{out: out}
}

// Draw renders one frame. It is a no-op while suspended.
func (t *PlainTerminal) Draw(render func(w io.Writer)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspended {
		return nil
	}
	var frame bytes.Buffer
	frame.WriteString(clearScreen)
	render(&frame)
	_, err := t.out.Write(frame.Bytes())
	return err
}

// Suspend clears the screen and stops drawing.
func (t *PlainTerminal) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	_, err := io.WriteString(t.out, clearScreen)
	return err
}

// Resume allows drawing again.
func (t *PlainTerminal) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = false
	return nil
}
