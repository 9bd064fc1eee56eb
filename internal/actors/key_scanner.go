// Package actors holds the concrete daemon actors: keyboard scanners, the
// HID writer, the typist, typing statistics, power management and the
// client bridge.
package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/charon-kb/charon/internal/actor"
)

// DeviceOpener opens an input device for reading.
type DeviceOpener func(path string) (io.ReadCloser, error)

// KeyScanner reads one evdev keyboard and emits KeyPress and KeyRelease
// events. It is started with the device path.
type KeyScanner struct {
	Open DeviceOpener
}

// NewKeyScanner returns a scanner reading real devices.
func NewKeyScanner() KeyScanner {
	return KeyScanner{Open: func(path string) (io.ReadCloser, error) {
		return os.Open(path)
	}}
}

// Name implements actor.Kind.
func (KeyScanner) Name() string { return "KeyScanner" }

// Spawn implements actor.Kind.
func (k KeyScanner) Spawn(ctx context.Context, state *actor.State, device string) (*actor.Task, error) {
	if device == "" {
		return nil, errors.New("no device configured")
	}
	dev, err := k.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	if state.Config.GrabKeyboards {
		if err := grab(dev, true); err != nil {
			dev.Close()
			return nil, fmt.Errorf("grab %s: %w", device, err)
		}
	}

	state.Logger.Info("scanning keyboard", zap.String("device", device))
	return actor.Go(state.Name, func() error {
		return scan(ctx, state, dev)
	}), nil
}

func scan(ctx context.Context, state *actor.State, dev io.ReadCloser) error {
	raw := make(chan inputEvent, 64)
	readErr := make(chan error, 1)

	go func() {
		defer close(raw)
		buf := make([]byte, inputEventSize)
		for {
			ie, err := readInputEvent(dev, buf)
			if err != nil {
				readErr <- err
				return
			}
			raw <- ie
		}
	}()

	defer func() {
		if state.Config.GrabKeyboards {
			if err := grab(dev, false); err != nil {
				state.Logger.Debug("release grab", zap.Error(err))
			}
		}
		dev.Close()
		// unblock the reader if it is waiting on raw
		for range raw {
		}
	}()

	var kb keyboardState
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-state.In:
			if _, ok = actor.Accept(ev, ok); !ok {
				return nil
			}

		case ie, ok := <-raw:
			if !ok {
				err := <-readErr
				if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
					state.Logger.Info("keyboard disconnected")
					return nil
				}
				return fmt.Errorf("read keyboard: %w", err)
			}
			payload := kb.translate(ie)
			if payload == nil {
				continue
			}
			if err := state.Emit(payload); err != nil {
				if errors.Is(err, actor.ErrBrokerStopped) {
					return nil
				}
				return err
			}
		}
	}
}

// grab toggles exclusive access. Devices that are not files are ignored.
func grab(dev io.ReadCloser, on bool) error {
	f, ok := dev.(*os.File)
	if !ok {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	return unix.IoctlSetInt(int(f.Fd()), evIOCGRAB, v)
}

var _ actor.Kind[string] = KeyScanner{}
