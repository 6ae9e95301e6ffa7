package hardware

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/pca9685"
)

// PCA9685PWM uses one channel of an I2C PCA9685 as the step output.  The chip
// only reaches pca9685.MaxFrequency; higher requests are clamped.
type PCA9685PWM struct {
	lock sync.Mutex

	chip      *pca9685.PCA9685
	channel   int
	frequency int
	duty      float64
	running   bool

	log *slog.Logger
}

func NewPCA9685PWM(bus string, channel int, log *slog.Logger) (*PCA9685PWM, error) {
	if err := initPeriph(); err != nil {
		return nil, err
	}
	chip, err := pca9685.Open(bus, pca9685.DefaultAddr)
	if err != nil {
		return nil, err
	}
	p, err := newPCA9685PWM(chip, channel, log)
	if err != nil {
		chip.Close()
		return nil, err
	}
	return p, nil
}

func newPCA9685PWM(chip *pca9685.PCA9685, channel int, log *slog.Logger) (*PCA9685PWM, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &PCA9685PWM{
		chip:      chip,
		channel:   channel,
		frequency: pca9685.MinFrequency,
		duty:      50,
		log:       log.With("pwm", "pca9685", "channel", channel),
	}
	if err := chip.Configure(p.frequency); err != nil {
		return nil, errors.Wrap(err, "configure PCA9685")
	}
	return p, nil
}

func (p *PCA9685PWM) Start() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.running = true
	return p.chip.SetDuty(p.channel, p.duty/100)
}

func (p *PCA9685PWM) Stop() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.running = false
	return p.chip.Off(p.channel)
}

func (p *PCA9685PWM) SetFrequency(hz int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if hz > pca9685.MaxFrequency || hz < pca9685.MinFrequency {
		p.log.Debug("Frequency outside chip range", "requested", hz)
	}
	if hz > pca9685.MaxFrequency {
		hz = pca9685.MaxFrequency
	}
	if hz < pca9685.MinFrequency {
		hz = pca9685.MinFrequency
	}
	if hz == p.frequency {
		return nil
	}
	p.frequency = hz
	if err := p.chip.SetFrequency(hz); err != nil {
		return err
	}
	if p.running {
		return p.chip.SetDuty(p.channel, p.duty/100)
	}
	return nil
}

func (p *PCA9685PWM) SetDutyCycle(percent float64) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.duty = percent
	if !p.running {
		return nil
	}
	return p.chip.SetDuty(p.channel, percent/100)
}

func (p *PCA9685PWM) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	_ = p.chip.Off(p.channel)
	return p.chip.Close()
}
