// Package client is the terminal client: it renders daemon state and turns
// user actions into events sent back over the daemon socket.
package client

import (
	"time"

	"github.com/charon-kb/charon/internal/domain"
)

// Msg is an input to the app manager.
type Msg interface {
	msg()
}

// Backend carries an event payload received from the daemon.
type Backend struct {
	Payload domain.DomainEvent
}

// Tick is sent on every timer tick with the tick interval.
type Tick struct {
	Elapsed time.Duration
}

// Activate is sent to an app when it becomes the active one.
type Activate struct{}

// Deactivate is sent to the active app before another one takes over.
type Deactivate struct{}

func (Backend) msg()    {}
func (Tick) msg()       {}
func (Activate) msg()   {}
func (Deactivate) msg() {}

// Command is something an app asks the client to do.
type Command interface {
	command()
}

// Render redraws the active app.
type Render struct{}

// SendEvent sends Payload to the daemon with the client as source.
type SendEvent struct {
	Payload domain.DomainEvent
}

// SuspendTUI blanks the terminal and stops drawing.
type SuspendTUI struct{}

// ResumeTUI resumes drawing and redraws.
type ResumeTUI struct{}

// RunApp switches the active app.
type RunApp struct {
	ID string
}

// Exit stops the client.
type Exit struct{}

func (Render) command()     {}
func (SendEvent) command()  {}
func (SuspendTUI) command() {}
func (ResumeTUI) command()  {}
func (RunApp) command()     {}
func (Exit) command()       {}
