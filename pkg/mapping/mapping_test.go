package mapping

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRemapIdentityDefault(t *testing.T) {
	r := NewRemap(map[string]string{
		"BTN_NORTH": "BTN_X",
		"BTN_WEST":  "BTN_Y",
	})

	expectRemap(t, r, "BTN_NORTH", "BTN_X")
	expectRemap(t, r, "BTN_WEST", "BTN_Y")
	expectRemap(t, r, "BTN_A", "BTN_A")
	expectRemap(t, r, "", "")
	expectRemap(t, r, "SOMETHING_ODD", "SOMETHING_ODD")

	if _, ok := r.Lookup("BTN_A"); ok {
		t.Error("Lookup of unmapped name should report no binding")
	}
	if to, ok := r.Lookup("BTN_NORTH"); !ok || to != "BTN_X" {
		t.Errorf("Lookup(BTN_NORTH) = %q, %v", to, ok)
	}
}

func TestEventMappingNoOpDefault(t *testing.T) {
	m := NewEventMapping(nil)
	var got []Value
	m.Set("ABS_X", func(ctx context.Context, v Value) error {
		got = append(got, v)
		return nil
	})

	ctx := context.Background()
	if err := m.Resolve("ABS_X")(ctx, AxisValue(12)); err != nil {
		t.Fatalf("Bound handler failed: %v", err)
	}
	if len(got) != 1 || got[0].Axis != 12 {
		t.Fatalf("Bound handler not called correctly: %v", got)
	}

	for _, id := range []string{"ABS_Y", "BTN_Z", "ABS_MISC"} {
		h := m.Resolve(id)
		if h == nil {
			t.Fatalf("Resolve(%s) returned nil", id)
		}
		if err := h(ctx, AxisValue(1)); err != nil {
			t.Errorf("Default handler for %s failed: %v", id, err)
		}
	}
	if len(got) != 1 {
		t.Errorf("Default handler touched bound handler state: %v", got)
	}
	if _, ok := m.Lookup("ABS_Y"); ok {
		t.Error("Lookup should not report a binding for ABS_Y")
	}
}

func TestNoOpHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NoOp(ctx, AxisValue(0)); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDiagnosticDefaultLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := NewEventMapping(Diagnostic(log))

	if err := m.Resolve("BTN_MODE")(context.Background(), ButtonValue(true)); err != nil {
		t.Fatalf("Diagnostic handler failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "BTN_MODE") || !strings.Contains(out, "pressed") {
		t.Errorf("Expected unbound event to be logged, got %q", out)
	}
}

func TestSuspendingWrapsSyncMapping(t *testing.T) {
	var bound, unbound []string
	s := NewSyncMapping(func(id string) SyncHandler {
		return func(v Value) { unbound = append(unbound, id+"="+v.String()) }
	})
	s.Set("ABS_X", func(v Value) { bound = append(bound, v.String()) })

	m := Suspending(s)
	ctx := context.Background()
	_ = m.Resolve("ABS_X")(ctx, AxisValue(-5))
	_ = m.Resolve("BTN_A")(ctx, ButtonValue(false))

	if len(bound) != 1 || bound[0] != "-5" {
		t.Errorf("Unexpected bound calls %v", bound)
	}
	if len(unbound) != 1 || unbound[0] != "BTN_A=released" {
		t.Errorf("Unexpected unbound calls %v", unbound)
	}
	if keys := m.Keys(); len(keys) != 1 || keys[0] != "ABS_X" {
		t.Errorf("Unexpected keys %v", keys)
	}
}

func expectRemap(t *testing.T, r *Remap, from, to string) {
	t.Helper()
	if got := r.Resolve(from); got != to {
		t.Errorf("Resolve(%q) = %q, expected %q", from, got, to)
	}
}
