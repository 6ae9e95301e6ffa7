// Package controls turns joystick bindings into handlers that publish motor
// commands.
package controls

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/command"
	"github.com/tigerbot-team/telescope/pkg/config"
	"github.com/tigerbot-team/telescope/pkg/interp"
	"github.com/tigerbot-team/telescope/pkg/mapping"
	"github.com/tigerbot-team/telescope/pkg/messenger"
)

type Controls struct {
	pub         messenger.Publisher
	axisToSpeed *interp.Mapper
	log         *slog.Logger
}

func New(pub messenger.Publisher, axisToSpeed *interp.Mapper, log *slog.Logger) *Controls {
	if log == nil {
		log = slog.Default()
	}
	return &Controls{
		pub:         pub,
		axisToSpeed: axisToSpeed,
		log:         log.With("component", "controls"),
	}
}

// Mapping builds the event mapping for bindings.  Unbound inputs are ignored,
// or logged if unbound is config.UnboundLog.
func (c *Controls) Mapping(bindings map[string]config.Binding, unbound string) (*mapping.EventMapping, error) {
	var fallback func(id string) mapping.Handler
	if unbound == config.UnboundLog {
		fallback = mapping.Diagnostic(c.log)
	}
	m := mapping.NewEventMapping(fallback)
	for id, b := range bindings {
		h, err := c.Handler(b)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %s", id)
		}
		m.Set(id, h)
	}
	return m, nil
}

// Handler returns the handler for one binding.
func (c *Controls) Handler(b config.Binding) (mapping.Handler, error) {
	scale := b.Factor()
	switch b.Action {
	case config.ActionToggle:
		return c.onPress(command.Toggle()), nil
	case config.ActionStop:
		return c.onPress(command.StopMotor()), nil
	case config.ActionSetSpeed:
		return c.onAxis(func(v float64) command.Record {
			speed := c.axisToSpeed.Map(v * scale)
			c.log.Debug("Requesting speed", "speed", speed)
			return command.SetSpeedTo(speed)
		}), nil
	case config.ActionFineTune:
		return c.onAxis(func(v float64) command.Record {
			c.log.Debug("Fine tuning motor speed", "delta", v*scale)
			return command.FineTune(v * scale)
		}), nil
	case config.ActionLog:
		return mapping.Sync(func(v mapping.Value) {
			c.log.Info("Input", "value", v.String())
		}), nil
	}
	return nil, errors.Errorf("unknown action %q", b.Action)
}

func (c *Controls) publish(ctx context.Context, rec command.Record) error {
	return c.pub.Publish(ctx, command.Topic, rec)
}

// onPress publishes rec when a button goes down.  Releases are ignored.
func (c *Controls) onPress(rec command.Record) mapping.Handler {
	return func(ctx context.Context, v mapping.Value) error {
		if v.Kind != mapping.KindButton || !v.Pressed {
			return nil
		}
		return c.publish(ctx, rec)
	}
}

// onAxis publishes the record built from each axis reading.
func (c *Controls) onAxis(build func(v float64) command.Record) mapping.Handler {
	return func(ctx context.Context, v mapping.Value) error {
		if v.Kind != mapping.KindAxis {
			c.log.Debug("Ignoring button on axis binding", "value", v.String())
			return nil
		}
		return c.publish(ctx, build(float64(v.Axis)))
	}
}
