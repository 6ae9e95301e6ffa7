package hardware

import (
	"log/slog"
	"sync"
)

// DummyLine logs writes instead of touching hardware.
type DummyLine struct {
	lock sync.Mutex
	high bool
	log  *slog.Logger
}

func NewDummyLine(role string, pin int, log *slog.Logger) *DummyLine {
	if log == nil {
		log = slog.Default()
	}
	return &DummyLine{log: log.With("line", role, "pin", pin)}
}

func (d *DummyLine) Set(high bool) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Debug("DHW: Set", "high", high)
	d.high = high
	return nil
}

func (d *DummyLine) High() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.high
}

// DummyPWM logs writes instead of touching hardware.
type DummyPWM struct {
	lock      sync.Mutex
	running   bool
	frequency int
	duty      float64
	log       *slog.Logger
}

func NewDummyPWM(log *slog.Logger) *DummyPWM {
	if log == nil {
		log = slog.Default()
	}
	return &DummyPWM{log: log.With("pwm", "dummy")}
}

func (d *DummyPWM) Start() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Debug("DHW: Start")
	d.running = true
	return nil
}

func (d *DummyPWM) Stop() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Debug("DHW: Stop")
	d.running = false
	return nil
}

func (d *DummyPWM) SetFrequency(hz int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Debug("DHW: SetFrequency", "hz", hz)
	d.frequency = hz
	return nil
}

func (d *DummyPWM) SetDutyCycle(percent float64) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.log.Debug("DHW: SetDutyCycle", "percent", percent)
	d.duty = percent
	return nil
}

func (d *DummyPWM) Running() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.running
}

func (d *DummyPWM) Frequency() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.frequency
}

func (d *DummyPWM) DutyCycle() float64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.duty
}
