package jsdriver

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/joystick"
	"github.com/tigerbot-team/telescope/pkg/mapping"
)

// fakeDevice replays queued events, then behaves like a quiet device.
type fakeDevice struct {
	mu     sync.Mutex
	events []*joystick.Event
	err    error
	reads  int
}

func (f *fakeDevice) ReadEvent(timeout time.Duration) (*joystick.Event, error) {
	f.mu.Lock()
	f.reads++
	if len(f.events) > 0 {
		e := f.events[0]
		f.events = f.events[1:]
		f.mu.Unlock()
		return e, nil
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	time.Sleep(timeout)
	return nil, joystick.ErrTimeout
}

func (f *fakeDevice) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func axis(code uint16, v int32) *joystick.Event {
	return &joystick.Event{Type: joystick.EventTypeAxis, Code: code, Value: v}
}

func button(code uint16, v int32) *joystick.Event {
	return &joystick.Event{Type: joystick.EventTypeButton, Code: code, Value: v}
}

type call struct {
	id    string
	value string
}

func recordingMapping(calls *[]call, ids ...string) *mapping.EventMapping {
	m := mapping.NewEventMapping(nil)
	for _, id := range ids {
		id := id
		m.Set(id, func(ctx context.Context, v mapping.Value) error {
			*calls = append(*calls, call{id, v.String()})
			return nil
		})
	}
	return m
}

func TestDispatchClassifiesEvents(t *testing.T) {
	var calls []call
	events := recordingMapping(&calls, "ABS_X", "BTN_A", "BTN_X")
	remap := mapping.NewRemap(map[string]string{"BTN_NORTH": "BTN_X"})
	d := New(&fakeDevice{}, remap, events, time.Millisecond, nil)

	ctx := context.Background()
	for _, e := range []*joystick.Event{
		axis(0x00, 1234),
		button(0x130, joystick.ButtonPressed),
		button(0x130, joystick.ButtonRepeat),
		button(0x130, joystick.ButtonReleased),
		button(0x133, joystick.ButtonPressed),
		axis(0x01, 99), // unbound
		{Type: joystick.EventTypeOther},
	} {
		if err := d.Dispatch(ctx, e); err != nil {
			t.Fatalf("Dispatch(%v) failed: %v", e, err)
		}
	}

	expected := []call{
		{"ABS_X", "1234"},
		{"BTN_A", "pressed"},
		{"BTN_A", "released"},
		{"BTN_X", "pressed"},
	}
	if len(calls) != len(expected) {
		t.Fatalf("Expected calls %v, got %v", expected, calls)
	}
	for i := range expected {
		if calls[i] != expected[i] {
			t.Errorf("Call %d: expected %v, got %v", i, expected[i], calls[i])
		}
	}
}

func TestRunAwaitsEachHandler(t *testing.T) {
	dev := &fakeDevice{events: []*joystick.Event{axis(0x00, 1), axis(0x00, 2), axis(0x00, 3)}}
	m := mapping.NewEventMapping(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []int32
	m.Set("ABS_X", func(ctx context.Context, v mapping.Value) error {
		// Each read happens after the previous handler returned.
		if reads := dev.readCount(); reads != len(seen)+1 {
			t.Errorf("Handler %d ran with %d reads issued", len(seen), reads)
		}
		seen = append(seen, v.Axis)
		if len(seen) == 3 {
			cancel()
		}
		return nil
	})

	err := New(dev, nil, m, 10*time.Millisecond, nil).Run(ctx)
	if err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("Unexpected handler values %v", seen)
	}
	if reads := dev.readCount(); reads != 3 {
		t.Errorf("Expected no reads after cancellation, got %d reads", reads)
	}
}

func TestRunStopsWithinOneTimeout(t *testing.T) {
	const timeout = 20 * time.Millisecond
	dev := &fakeDevice{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- New(dev, nil, nil, timeout, nil).Run(ctx)
	}()

	time.Sleep(3 * timeout)
	cancel()
	cancelledAt := time.Now()
	readsAtCancel := dev.readCount()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * timeout):
		t.Fatal("Run did not return after cancellation")
	}
	if elapsed := time.Since(cancelledAt); elapsed > 5*timeout {
		t.Errorf("Run took %v to notice cancellation", elapsed)
	}
	if reads := dev.readCount(); reads > readsAtCancel+1 {
		t.Errorf("Run issued %d reads after cancellation", reads-readsAtCancel)
	}
	time.Sleep(2 * timeout)
	if reads := dev.readCount(); reads > readsAtCancel+1 {
		t.Errorf("Reads continued after Run returned")
	}
}

func TestRunFailsOnDeviceFault(t *testing.T) {
	dev := &fakeDevice{
		events: []*joystick.Event{axis(0x00, 5)},
		err:    io.ErrUnexpectedEOF,
	}
	var calls []call
	err := New(dev, nil, recordingMapping(&calls, "ABS_X"), time.Millisecond, nil).Run(context.Background())
	if errors.Cause(err) != io.ErrUnexpectedEOF {
		t.Fatalf("Expected device error, got %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("Expected the queued event to be handled first, got %v", calls)
	}
}

func TestRunSurvivesHandlerErrors(t *testing.T) {
	dev := &fakeDevice{events: []*joystick.Event{axis(0x00, 1), axis(0x00, 2)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int
	m := mapping.NewEventMapping(nil)
	m.Set("ABS_X", func(ctx context.Context, v mapping.Value) error {
		n++
		if n == 2 {
			cancel()
		}
		return errors.New("boom")
	})

	if err := New(dev, nil, m, time.Millisecond, nil).Run(ctx); err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if n != 2 {
		t.Errorf("Expected both events handled despite errors, got %d", n)
	}
}
