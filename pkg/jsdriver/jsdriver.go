// Package jsdriver runs the joystick event loop: read one event with a short
// timeout, name it, look up its handler and wait for the handler to finish
// before reading the next one.
package jsdriver

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/joystick"
	"github.com/tigerbot-team/telescope/pkg/mapping"
)

// DefaultReadTimeout bounds each device read, and so also how long the loop
// takes to notice cancellation.
const DefaultReadTimeout = 50 * time.Millisecond

// Device is the part of a joystick the driver needs.
type Device interface {
	ReadEvent(timeout time.Duration) (*joystick.Event, error)
}

type Driver struct {
	dev         Device
	buttons     *mapping.Remap
	events      *mapping.EventMapping
	readTimeout time.Duration
	log         *slog.Logger
}

// New returns a driver for dev.  A nil button remap passes button names
// through unchanged; a zero readTimeout selects DefaultReadTimeout.
func New(dev Device, buttons *mapping.Remap, events *mapping.EventMapping, readTimeout time.Duration, log *slog.Logger) *Driver {
	if buttons == nil {
		buttons = mapping.NewRemap(nil)
	}
	if events == nil {
		events = mapping.NewEventMapping(nil)
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		dev:         dev,
		buttons:     buttons,
		events:      events,
		readTimeout: readTimeout,
		log:         log.With("component", "joystick"),
	}
}

// Run is the continuous event-reader task.  It returns ctx.Err() once the
// context is done, or the device error if the device fails.  Timeouts and
// handler errors do not end the loop.
func (d *Driver) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		event, err := d.dev.ReadEvent(d.readTimeout)
		if err == joystick.ErrTimeout {
			continue
		}
		if err != nil {
			d.log.Error("Failed to read from joystick", "err", err)
			return errors.Wrap(err, "joystick read")
		}
		if err := d.Dispatch(ctx, event); err != nil {
			if ctx.Err() != nil {
				break
			}
			d.log.Warn("Handler failed", "event", event.String(), "err", err)
		}
	}
	return ctx.Err()
}

// Dispatch runs the handler bound to event and waits for it.  Events that are
// neither axis nor button (sync markers and the like) are dropped, as are
// key auto-repeats.
func (d *Driver) Dispatch(ctx context.Context, event *joystick.Event) error {
	var (
		id    string
		value mapping.Value
	)
	switch event.Type {
	case joystick.EventTypeAxis:
		id = event.Name()
		value = mapping.AxisValue(event.Value)
	case joystick.EventTypeButton:
		if event.Value == joystick.ButtonRepeat {
			return nil
		}
		id = d.buttons.Resolve(event.Name())
		value = mapping.ButtonValue(event.Value == joystick.ButtonPressed)
	default:
		return nil
	}
	d.log.Debug("Event from joystick", "id", id, "value", value.String())
	return d.events.Resolve(id)(ctx, value)
}
