package hardware

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

var (
	periphOnce sync.Once
	periphErr  error
)

func initPeriph() error {
	periphOnce.Do(func() {
		// Make sure periph is initialized.
		if _, err := host.Init(); err != nil {
			periphErr = errors.Wrap(err, "periph host init")
		}
	})
	return periphErr
}

func periphPin(n int) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", n)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no pin %s", name)
	}
	return p, nil
}

type PeriphLine struct {
	pin gpio.PinIO
}

func NewPeriphLine(n int) (*PeriphLine, error) {
	pin, err := periphPin(n)
	if err != nil {
		return nil, err
	}
	return &PeriphLine{pin: pin}, nil
}

func (l *PeriphLine) Set(high bool) error {
	return l.pin.Out(gpio.Level(high))
}

func (l *PeriphLine) Close() error {
	if err := l.pin.Out(gpio.Low); err != nil {
		return err
	}
	return l.pin.Halt()
}

// PeriphPWM drives a hardware PWM pin.  Frequency and duty are kept while
// stopped and written on Start.
type PeriphPWM struct {
	lock sync.Mutex

	pin       gpio.PinIO
	frequency int
	duty      float64
	running   bool

	log *slog.Logger
}

func NewPeriphPWM(n int, log *slog.Logger) (*PeriphPWM, error) {
	if err := initPeriph(); err != nil {
		return nil, err
	}
	pin, err := periphPin(n)
	if err != nil {
		return nil, err
	}
	return &PeriphPWM{
		pin:       pin,
		frequency: 1,
		duty:      50,
		log:       log.With("pin", pin.Name()),
	}, nil
}

func (p *PeriphPWM) apply() error {
	duty := gpio.Duty(float64(gpio.DutyMax) * p.duty / 100)
	return p.pin.PWM(duty, physic.Frequency(p.frequency)*physic.Hertz)
}

func (p *PeriphPWM) Start() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.running = true
	return p.apply()
}

func (p *PeriphPWM) Stop() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.running = false
	return p.pin.Halt()
}

func (p *PeriphPWM) SetFrequency(hz int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.frequency = hz
	if !p.running {
		return nil
	}
	return p.apply()
}

func (p *PeriphPWM) SetDutyCycle(percent float64) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.duty = percent
	if !p.running {
		return nil
	}
	return p.apply()
}

func (p *PeriphPWM) Close() error {
	return p.Stop()
}
