package motor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/command"
)

// recorder logs every hardware write, in order, across all outputs.
type recorder struct {
	ops  []string
	fail map[string]error
}

func (r *recorder) do(op string) error {
	r.ops = append(r.ops, op)
	for prefix, err := range r.fail {
		if strings.HasPrefix(op, prefix) {
			return err
		}
	}
	return nil
}

func (r *recorder) reset() { r.ops = nil }

type fakePWM struct{ r *recorder }

func (p fakePWM) Start() error { return p.r.do("pwm start") }
func (p fakePWM) Stop() error { return p.r.do("pwm stop") }
func (p fakePWM) SetFrequency(hz int) error { return p.r.do(fmt.Sprintf("pwm freq %d", hz)) }
func (p fakePWM) SetDutyCycle(pc float64) error { return p.r.do(fmt.Sprintf("pwm duty %v", pc)) }

type fakeLine struct {
	name   string
	r      *recorder
	closed *int
}

func (l fakeLine) Set(high bool) error {
	v := "low"
	if high {
		v = "high"
	}
	return l.r.do(l.name + " " + v)
}

func (l fakeLine) Close() error {
	*l.closed++
	return nil
}

func newTestMotor(t *testing.T) (*Motor, *recorder, *int) {
	t.Helper()
	r := &recorder{fail: map[string]error{}}
	closed := new(int)
	m, err := New(Outputs{
		PWM:       fakePWM{r},
		Enable:    fakeLine{"enable", r, closed},
		Direction: fakeLine{"dir", r, closed},
		Mode:      []Line{fakeLine{"mode0", r, closed}, fakeLine{"mode1", r, closed}},
	}, Config{MaxFrequency: 45000}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m, r, closed
}

func expectOps(t *testing.T, r *recorder, expected ...string) {
	t.Helper()
	if strings.Join(r.ops, ", ") != strings.Join(expected, ", ") {
		t.Errorf("Expected hardware writes\n  %v\ngot\n  %v", expected, r.ops)
	}
	r.reset()
}

func expectState(t *testing.T, m *Motor, expected State) {
	t.Helper()
	if s := m.State(); s != expected {
		t.Errorf("Expected state %v, got %v", expected, s)
	}
}

func TestNewStartsSafe(t *testing.T) {
	m, r, _ := newTestMotor(t)
	expectOps(t, r, "mode0 low", "mode1 low", "enable low", "dir low", "pwm freq 1")
	expectState(t, m, State{Active: false, Frequency: 1, Direction: Forward})
}

func TestDoubleToggle(t *testing.T) {
	m, r, _ := newTestMotor(t)
	r.reset()

	for i := 0; i < 2; i++ {
		if err := m.Command(command.Toggle()); err != nil {
			t.Fatal(err)
		}
		expectOps(t, r, "pwm start", "pwm duty 50", "enable high")
		expectState(t, m, State{Active: true, Frequency: 1})

		if err := m.Command(command.Toggle()); err != nil {
			t.Fatal(err)
		}
		expectOps(t, r, "enable low", "pwm stop")
		expectState(t, m, State{Active: false, Frequency: 1})
	}
}

func TestStopWhileInactive(t *testing.T) {
	m, r, _ := newTestMotor(t)
	r.reset()
	if err := m.Command(command.StopMotor()); err != nil {
		t.Fatal(err)
	}
	expectOps(t, r)
	expectState(t, m, State{Frequency: 1})

	_ = m.Enable()
	r.reset()
	if err := m.Command(command.StopMotor()); err != nil {
		t.Fatal(err)
	}
	expectOps(t, r, "enable low", "pwm stop")
	expectState(t, m, State{Frequency: 1})
}

func TestSetSpeed(t *testing.T) {
	m, r, _ := newTestMotor(t)
	r.reset()

	if err := m.Command(command.SetSpeedTo(50)); err != nil {
		t.Fatal(err)
	}
	expectOps(t, r, "pwm freq 22500", "dir low")
	expectState(t, m, State{Frequency: 22500, Direction: Forward})

	if err := m.Command(command.SetSpeedTo(-100)); err != nil {
		t.Fatal(err)
	}
	expectOps(t, r, "pwm freq 45000", "dir high")
	expectState(t, m, State{Frequency: 45000, Direction: Backward})

	if err := m.Command(command.SetSpeedTo(0)); err != nil {
		t.Fatal(err)
	}
	expectState(t, m, State{Frequency: 1, Direction: Forward})
}

func TestFineTuneNeverBelowOneHertz(t *testing.T) {
	m, _, _ := newTestMotor(t)
	for _, tc := range []struct {
		delta    float64
		expected int
	}{
		{+10, 11},
		{-5, 6},
		{-6, 1},
		{-1000000, 1},
		{-1, 1},
		{+0.4, 1},
		{+1.6, 3},
		{+1e9, 45000},
		{-44999, 1},
	} {
		if err := m.Command(command.FineTune(tc.delta)); err != nil {
			t.Fatal(err)
		}
		if f := m.State().Frequency; f != tc.expected {
			t.Errorf("After delta %v expected %d Hz, got %d", tc.delta, tc.expected, f)
		}
	}
}

func TestFineTuneHugeDeltaClamps(t *testing.T) {
	m, _, _ := newTestMotor(t)
	for _, tc := range []struct {
		delta    float64
		expected int
	}{
		{1e300, 45000},
		{1e19, 45000},
		{-1e300, 1},
		{1e19, 45000},
		{-1e19, 1},
	} {
		if err := m.Command(command.FineTune(tc.delta)); err != nil {
			t.Fatal(err)
		}
		if f := m.State().Frequency; f != tc.expected {
			t.Errorf("After delta %v expected %d Hz, got %d", tc.delta, tc.expected, f)
		}
	}
}

func TestCommandSkipsBadRecords(t *testing.T) {
	m, r, _ := newTestMotor(t)
	r.reset()
	for _, rec := range []command.Record{
		{Command: "warp_speed"},
		{Command: command.SetSpeed},
		{Command: command.FineTuneSpeed},
	} {
		if err := m.Command(rec); err != nil {
			t.Errorf("Command(%v) returned %v", rec, err)
		}
	}
	expectOps(t, r)
}

func TestHardwareFailureIsReported(t *testing.T) {
	m, r, _ := newTestMotor(t)
	_ = m.Enable()
	r.reset()
	r.fail["enable"] = errors.New("gpio gone")

	err := m.Command(command.StopMotor())
	if errors.Cause(err) != ErrHardware {
		t.Fatalf("Expected ErrHardware, got %v", err)
	}
	// The PWM is still stopped even though the enable line failed.
	expectOps(t, r, "enable low", "pwm stop")
	if !m.State().Active {
		t.Error("Motor should not claim to be disabled after a failed disable")
	}
}

func TestObserversSeeChanges(t *testing.T) {
	m, _, _ := newTestMotor(t)
	var seen []State
	m.AddObserver(ObserverFunc(func(s State) { seen = append(seen, s) }))
	_ = m.Toggle()
	_ = m.SetSpeed(100)
	_ = m.Disable()
	_ = m.Disable() // no change, no notification

	expected := []State{
		{Frequency: 1},
		{Active: true, Frequency: 1},
		{Active: true, Frequency: 45000},
		{Frequency: 45000},
	}
	if fmt.Sprint(seen) != fmt.Sprint(expected) {
		t.Errorf("Expected notifications %v, got %v", expected, seen)
	}
}

func TestRunDisablesOnError(t *testing.T) {
	m, r, closed := newTestMotor(t)
	boom := errors.New("boom")
	err := Run(context.Background(), m, func(ctx context.Context, m *Motor) error {
		_ = m.Enable()
		r.reset()
		return boom
	})
	if err != boom {
		t.Errorf("Expected the task error, got %v", err)
	}
	expectOps(t, r, "enable low", "pwm stop")
	expectState(t, m, State{Frequency: 1})
	if *closed != 4 {
		t.Errorf("Expected all 4 lines closed, got %d", *closed)
	}
}

func TestRunDisablesOnPanic(t *testing.T) {
	m, r, _ := newTestMotor(t)
	defer func() {
		if p := recover(); p != "kaboom" {
			t.Errorf("Expected the panic to propagate, got %v", p)
		}
		expectOps(t, r, "enable low", "pwm stop")
		expectState(t, m, State{Frequency: 1})
	}()
	_ = Run(context.Background(), m, func(ctx context.Context, m *Motor) error {
		_ = m.Enable()
		r.reset()
		panic("kaboom")
	})
	t.Error("Run should not return normally")
}

func TestRunDisablesEvenWhenIdle(t *testing.T) {
	m, r, _ := newTestMotor(t)
	r.reset()
	err := Run(context.Background(), m, func(ctx context.Context, m *Motor) error { return nil })
	if err != nil {
		t.Errorf("Unexpected error %v", err)
	}
	expectOps(t, r, "enable low", "pwm stop")
}

func TestEmergencyStopOnce(t *testing.T) {
	m, r, _ := newTestMotor(t)
	if err := m.Enable(); err != nil {
		t.Fatal(err)
	}
	r.reset()

	m.EmergencyStop()
	expectOps(t, r, "enable low", "pwm stop")
	expectState(t, m, State{Active: false, Frequency: 1})

	m.EmergencyStop()
	expectOps(t, r)
}

func TestEmergencyStopWhileLockHeld(t *testing.T) {
	m, r, _ := newTestMotor(t)
	if err := m.Enable(); err != nil {
		t.Fatal(err)
	}
	r.reset()

	// Stands in for a motor task stuck part way through a write.
	m.lock.Lock()
	m.EmergencyStop()
	m.lock.Unlock()
	expectOps(t, r, "enable low", "pwm stop")
}
