package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/charon-kb/charon/internal/actor"
	"github.com/charon-kb/charon/internal/domain"
)

// GadgetOpener opens the HID gadget for writing.
type GadgetOpener func(path string) (io.WriteCloser, error)

// HidWriter writes HidReport events to the HID gadget device and emits
// ReportSent after each successful write.
type HidWriter struct {
	Open GadgetOpener
}

// NewHidWriter returns a writer for real gadget devices.
func NewHidWriter() HidWriter {
	return HidWriter{Open: func(path string) (io.WriteCloser, error) {
		return os.OpenFile(path, os.O_WRONLY, 0)
	}}
}

// Name implements actor.Kind.
func (HidWriter) Name() string { return "HidWriter" }

// Spawn implements actor.Kind.
func (w HidWriter) Spawn(ctx context.Context, state *actor.State, _ struct{}) (*actor.Task, error) {
	path := state.Config.HidDevice
	dev, err := w.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hid device %s: %w", path, err)
	}

	state.Logger.Info("writing hid reports", zap.String("device", path))
	return actor.Go(state.Name, func() error {
		defer dev.Close()
		// Release everything the host may still think is held.
		defer writeReport(dev, domain.HidReport{})

		for {
			var (
				ev domain.Event
				ok bool
			)
			select {
			case <-ctx.Done():
				return nil
			case ev, ok = <-state.In:
			}
			if ev, ok = actor.Accept(ev, ok); !ok {
				return nil
			}

			report, isReport := ev.Payload.(domain.HidReport)
			if !isReport {
				continue
			}
			if err := writeReport(dev, report); err != nil {
				state.Logger.Error("failed to write hid report", zap.Error(err))
				continue
			}
			if err := state.Emit(domain.ReportSent{}); errors.Is(err, actor.ErrBrokerStopped) {
				return nil
			}
		}
	}), nil
}

func writeReport(w io.Writer, r domain.HidReport) error {
	_, err := w.Write(r.Report[:])
	return err
}

var _ actor.Kind[struct{}] = HidWriter{}
