package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

type Kind uint8

const (
	KindAxis Kind = iota + 1
	KindButton
)

// Value is what a handler receives: either an axis reading in the device's
// native signed range or a button transition.
type Value struct {
	Kind    Kind
	Axis    int32
	Pressed bool
}

func AxisValue(v int32) Value {
	return Value{Kind: KindAxis, Axis: v}
}

func ButtonValue(pressed bool) Value {
	return Value{Kind: KindButton, Pressed: pressed}
}

// Released is true for a button release.  Always false for axes.
func (v Value) Released() bool {
	return v.Kind == KindButton && !v.Pressed
}

func (v Value) String() string {
	switch v.Kind {
	case KindAxis:
		return strconv.Itoa(int(v.Axis))
	case KindButton:
		if v.Pressed {
			return "pressed"
		}
		return "released"
	default:
		return fmt.Sprintf("invalid(%d)", v.Kind)
	}
}

// Handler acts on one input value.  It may block (publish onto a full queue,
// say), and the reader waits for it to return before reading the next event.
// Handlers must return promptly once ctx is done.
type Handler func(ctx context.Context, v Value) error

// SyncHandler is a handler that never blocks.
type SyncHandler func(v Value)

// Sync adapts a SyncHandler so it can be bound in an event mapping.
func Sync(f SyncHandler) Handler {
	return func(ctx context.Context, v Value) error {
		f(v)
		return nil
	}
}

// NoOp is the default for unbound identifiers: it does nothing but yield, so
// that a flood of unbound axis noise cannot monopolize the reader.
func NoOp(ctx context.Context, v Value) error {
	runtime.Gosched()
	return ctx.Err()
}

// Diagnostic returns a default-handler factory that logs each unbound event.
func Diagnostic(log *slog.Logger) func(id string) Handler {
	return func(id string) Handler {
		return func(ctx context.Context, v Value) error {
			log.Debug("Unbound input", "id", id, "value", v.String())
			return NoOp(ctx, v)
		}
	}
}

// DiagnosticSync is the synchronous flavor of Diagnostic, for tables of
// SyncHandlers.
func DiagnosticSync(log *slog.Logger) func(id string) SyncHandler {
	return func(id string) SyncHandler {
		return func(v Value) {
			log.Info("Unbound input", "id", id, "value", v.String())
		}
	}
}

// EventMapping maps input identifiers to handlers.
type EventMapping = Table[Handler]

// NewEventMapping returns an empty mapping.  A nil fallback selects NoOp.
func NewEventMapping(fallback func(id string) Handler) *EventMapping {
	if fallback == nil {
		fallback = func(string) Handler { return NoOp }
	}
	return NewTable(fallback)
}

// SyncMapping maps input identifiers to synchronous handlers.
type SyncMapping = Table[SyncHandler]

// NewSyncMapping returns an empty mapping.  A nil fallback discards events.
func NewSyncMapping(fallback func(id string) SyncHandler) *SyncMapping {
	if fallback == nil {
		fallback = func(string) SyncHandler { return func(Value) {} }
	}
	return NewTable(fallback)
}

// Suspending converts a synchronous mapping into an event mapping so it can be
// driven by the reader.  Defaults are converted too.
func Suspending(s *SyncMapping) *EventMapping {
	m := NewEventMapping(func(id string) Handler {
		return Sync(s.Resolve(id))
	})
	for _, id := range s.Keys() {
		h, _ := s.Lookup(id)
		m.Set(id, Sync(h))
	}
	return m
}
