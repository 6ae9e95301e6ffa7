// Package motor owns the stepper driver: a PWM step output, an enable line and
// a direction line.  All writes to them go through Motor.
package motor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/command"
	"github.com/tigerbot-team/telescope/pkg/interp"
	"github.com/tigerbot-team/telescope/pkg/messenger"
)

const (
	DefaultMaxFrequency = 45000
	DefaultDutyCycle    = 50.0
)

// ErrHardware marks a failed PWM or GPIO write.  After one the state of the
// driver is unknown, so callers should stop using the motor.
var ErrHardware = errors.New("motor hardware write failed")

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	}
	return Forward, errors.Errorf("unknown direction %q", s)
}

type State struct {
	Active    bool
	Frequency int
	Direction Direction
}

func (s State) String() string {
	active := "inactive"
	if s.Active {
		active = "active"
	}
	return fmt.Sprintf("%s %dHz %v", active, s.Frequency, s.Direction)
}

// PWM is a step pulse generator.  SetFrequency and SetDutyCycle may be called
// while stopped; the values apply from the next Start.
type PWM interface {
	Start() error
	Stop() error
	SetFrequency(hz int) error
	SetDutyCycle(percent float64) error
}

// Line is a digital output.
type Line interface {
	Set(high bool) error
}

// Outputs are the hardware handles a Motor takes ownership of.  Any that
// implement io.Closer are closed by Motor.Close.
type Outputs struct {
	PWM       PWM
	Enable    Line
	Direction Line
	// Mode lines select the driver's microstepping; they are driven low
	// (full step).
	Mode []Line
}

// Observer is told about every state change, after it has been applied.
type Observer interface {
	MotorChanged(s State)
}

type ObserverFunc func(s State)

func (f ObserverFunc) MotorChanged(s State) { f(s) }

type Config struct {
	MaxFrequency int
	DutyCycle    float64
}

func (c Config) withDefaults() Config {
	if c.MaxFrequency <= 0 {
		c.MaxFrequency = DefaultMaxFrequency
	}
	if c.DutyCycle <= 0 {
		c.DutyCycle = DefaultDutyCycle
	}
	return c
}

type Motor struct {
	lock     sync.Mutex
	stopOnce sync.Once

	out          Outputs
	dutyCycle    float64
	maxFrequency int
	speedToFreq  *interp.Mapper

	state     State
	observers []Observer

	log *slog.Logger
}

// New takes ownership of out.  The motor starts disabled at the minimum
// frequency, direction forward.
func New(out Outputs, cfg Config, log *slog.Logger) (*Motor, error) {
	if out.PWM == nil || out.Enable == nil || out.Direction == nil {
		return nil, errors.New("motor needs a PWM output, an enable line and a direction line")
	}
	cfg = cfg.withDefaults()
	if cfg.DutyCycle > 100 {
		return nil, errors.Errorf("duty cycle %v%% out of range", cfg.DutyCycle)
	}
	speedToFreq, err := interp.SpeedToFrequency(cfg.MaxFrequency)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	m := &Motor{
		out:          out,
		dutyCycle:    cfg.DutyCycle,
		maxFrequency: cfg.MaxFrequency,
		speedToFreq:  speedToFreq,
		state:        State{Frequency: interp.MinFrequency, Direction: Forward},
		log:          log.With("component", "motor"),
	}

	m.log.Info("Initializing motor", "maxFrequency", cfg.MaxFrequency, "dutyCycle", cfg.DutyCycle)
	for i, l := range out.Mode {
		if err := l.Set(false); err != nil {
			return nil, hardwareError(fmt.Sprintf("mode line %d", i), err)
		}
	}
	if err := out.Enable.Set(false); err != nil {
		return nil, hardwareError("enable line", err)
	}
	if err := out.Direction.Set(false); err != nil {
		return nil, hardwareError("direction line", err)
	}
	if err := out.PWM.SetFrequency(m.state.Frequency); err != nil {
		return nil, hardwareError("pwm frequency", err)
	}
	return m, nil
}

func hardwareError(step string, err error) error {
	return errors.Wrapf(ErrHardware, "%s: %v", step, err)
}

// AddObserver registers o and immediately tells it the current state.
func (m *Motor) AddObserver(o Observer) {
	m.lock.Lock()
	m.observers = append(m.observers, o)
	s := m.state
	m.lock.Unlock()
	o.MotorChanged(s)
}

func (m *Motor) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

func (m *Motor) MaxFrequency() int {
	return m.maxFrequency
}

// update runs f under the lock and then notifies observers, even if f failed
// part way.
func (m *Motor) update(f func() error) error {
	m.lock.Lock()
	before := m.state
	err := f()
	after := m.state
	observers := m.observers
	m.lock.Unlock()

	if after != before {
		for _, o := range observers {
			o.MotorChanged(after)
		}
	}
	return err
}

// Command applies one record.  Malformed or unknown records are logged and
// skipped; only hardware failures are returned.
func (m *Motor) Command(rec command.Record) error {
	m.log.Debug("Command", "record", rec.String())
	if err := rec.Validate(); err != nil {
		m.log.Warn("Ignoring command", "err", err)
		return nil
	}
	switch rec.Command {
	case command.ToggleActiveState:
		return m.Toggle()
	case command.SetSpeed:
		return m.SetSpeed(*rec.Speed)
	case command.FineTuneSpeed:
		return m.FineTuneSpeed(*rec.DeltaSpeed)
	case command.Stop:
		return m.Disable()
	}
	return nil
}

// Enable starts the pulse train before raising the enable line.
func (m *Motor) Enable() error {
	return m.update(m.enableLocked)
}

func (m *Motor) enableLocked() error {
	m.log.Info("Enabling motor")
	if err := m.out.PWM.Start(); err != nil {
		return hardwareError("pwm start", err)
	}
	if err := m.out.PWM.SetDutyCycle(m.dutyCycle); err != nil {
		return hardwareError("pwm duty cycle", err)
	}
	if err := m.out.Enable.Set(true); err != nil {
		return hardwareError("enable line", err)
	}
	m.state.Active = true
	return nil
}

// Disable drops the enable line before stopping the pulse train.  Both steps
// are attempted even if the first fails.  Disabling an inactive motor writes
// nothing.
func (m *Motor) Disable() error {
	return m.update(func() error {
		if !m.state.Active {
			return nil
		}
		return m.disableLocked()
	})
}

func (m *Motor) disableLocked() error {
	m.log.Info("Disabling motor")
	var firstErr error
	if err := m.out.Enable.Set(false); err != nil {
		firstErr = hardwareError("enable line", err)
	}
	if err := m.out.PWM.Stop(); err != nil && firstErr == nil {
		firstErr = hardwareError("pwm stop", err)
	}
	if firstErr != nil {
		return firstErr
	}
	m.state.Active = false
	return nil
}

func (m *Motor) Toggle() error {
	return m.update(func() error {
		if m.state.Active {
			return m.disableLocked()
		}
		return m.enableLocked()
	})
}

// SetSpeed maps a speed percentage to a frequency by magnitude and to a
// direction by sign.
func (m *Motor) SetSpeed(speed float64) error {
	return m.update(func() error {
		if err := m.setFrequencyLocked(int(m.speedToFreq.Map(speed))); err != nil {
			return err
		}
		dir := Forward
		if speed < 0 {
			dir = Backward
		}
		return m.setDirectionLocked(dir)
	})
}

// FineTuneSpeed nudges the frequency by delta Hz, staying within
// [1, max frequency].
func (m *Motor) FineTuneSpeed(delta float64) error {
	return m.update(func() error {
		f := float64(m.state.Frequency) + delta
		// Clamp before converting: huge deltas overflow int.
		f = math.Min(float64(m.maxFrequency), math.Max(interp.MinFrequency, f))
		return m.setFrequencyLocked(int(math.Round(f)))
	})
}

// SetFrequency bounds hz to [1, max frequency].
func (m *Motor) SetFrequency(hz int) error {
	return m.update(func() error {
		return m.setFrequencyLocked(hz)
	})
}

func (m *Motor) setFrequencyLocked(hz int) error {
	if hz < interp.MinFrequency {
		hz = interp.MinFrequency
	}
	if hz > m.maxFrequency {
		hz = m.maxFrequency
	}
	m.log.Info("Setting PWM frequency", "frequency", hz)
	if err := m.out.PWM.SetFrequency(hz); err != nil {
		return hardwareError("pwm frequency", err)
	}
	m.state.Frequency = hz
	return nil
}

func (m *Motor) SetDirection(d Direction) error {
	return m.update(func() error {
		return m.setDirectionLocked(d)
	})
}

func (m *Motor) setDirectionLocked(d Direction) error {
	m.log.Debug("Setting direction", "direction", d.String())
	if err := m.out.Direction.Set(d == Backward); err != nil {
		return hardwareError("direction line", err)
	}
	m.state.Direction = d
	return nil
}

// EmergencyStop drops the enable line and stops the pulse train without
// waiting for the lock if another goroutine is stuck holding it.  It is meant
// for a process that is about to exit without running Run's deferred
// disable.  Only the first call writes to the hardware.
func (m *Motor) EmergencyStop() {
	m.stopOnce.Do(func() {
		if m.lock.TryLock() {
			defer m.lock.Unlock()
		} else {
			m.log.Warn("Motor busy, forcing disable")
		}
		if err := m.disableLocked(); err != nil {
			m.log.Error("Emergency stop failed", "err", err)
		}
	})
}

// Listen applies every record published on the command topic until ctx is
// done or a hardware write fails.
func (m *Motor) Listen(ctx context.Context, bus *messenger.Bus) error {
	return bus.Subscribe(ctx, command.Topic, m.Command)
}

// Close releases the outputs.  It does not disable the motor; see Run.
func (m *Motor) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.out.Close()
}

// Close closes every output that implements io.Closer and returns the first
// error.
func (o Outputs) Close() error {
	var firstErr error
	closeIt := func(v interface{}) {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	closeIt(o.PWM)
	closeIt(o.Enable)
	closeIt(o.Direction)
	for _, l := range o.Mode {
		closeIt(l)
	}
	return firstErr
}

// Run calls f with the motor and guarantees that, however f ends (returning,
// failing or panicking), the disable sequence runs before the outputs are
// released.  A panic in f is re-raised afterwards.
func Run(ctx context.Context, m *Motor, f func(ctx context.Context, m *Motor) error) (err error) {
	defer func() {
		r := recover()
		// Always run the full sequence: after a hardware error the recorded
		// state cannot be trusted.
		derr := m.update(m.disableLocked)
		if derr != nil {
			m.log.Error("Failed to disable motor", "err", derr)
			if err == nil {
				err = derr
			}
		}
		if cerr := m.Close(); cerr != nil {
			m.log.Warn("Failed to release motor outputs", "err", cerr)
		}
		if r != nil {
			panic(r)
		}
	}()
	return f(ctx, m)
}
