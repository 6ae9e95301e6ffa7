package pca9685

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	Mode1Sleep   = 0x10
	Mode1AutoInc = 0x20
	Mode1Restart = 0x80

	// Bit 4 of the high byte of an off register forces the output off.
	FullOff = 0x10

	PWMMax = 4095

	OscillatorHz = 25000000

	// The pre-scaler range limits the output to these frequencies.
	MinFrequency = 24
	MaxFrequency = 1526

	NumChannels = 16
)

type PCA9685 struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// Open opens the chip at addr on the named bus ("" for the first bus).
func Open(busName string, addr uint16) (*PCA9685, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "open I2C bus %q", busName)
	}
	p := New(bus, addr)
	p.bus = bus
	return p, nil
}

func New(bus i2c.Bus, addr uint16) *PCA9685 {
	return &PCA9685{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

func (p *PCA9685) writeReg(reg byte, data ...byte) error {
	return p.dev.Tx(append([]byte{reg}, data...), nil)
}

// Prescale returns the pre-scaler value for hz, clamped to the chip's range.
func Prescale(hz int) byte {
	v := math.Round(OscillatorHz/(4096*float64(hz))) - 1
	return byte(math.Max(3, math.Min(255, v)))
}

// Configure sets the output frequency and starts the oscillator.  All
// channels are left off.
func (p *PCA9685) Configure(hz int) error {
	if err := p.SetFrequency(hz); err != nil {
		return err
	}
	for ch := 0; ch < NumChannels; ch++ {
		if err := p.Off(ch); err != nil {
			return err
		}
	}
	return nil
}

// SetFrequency changes the pre-scaler, which can only be written while the
// oscillator sleeps.
func (p *PCA9685) SetFrequency(hz int) (err error) {
	// Put device to sleep.
	err = p.writeReg(RegMode1, Mode1Sleep|Mode1AutoInc)
	if err != nil {
		return
	}
	err = p.writeReg(RegPreScale, Prescale(hz))
	if err != nil {
		return
	}
	// Wake up.
	err = p.writeReg(RegMode1, Mode1AutoInc)
	if err != nil {
		return
	}
	// Required delay before restart.
	time.Sleep(500 * time.Microsecond)
	err = p.writeReg(RegMode1, Mode1Restart|Mode1AutoInc)
	return
}

func checkChannel(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return errors.Errorf("PWM channel %d out of range", ch)
	}
	return nil
}

// SetDuty sets channel ch to the given fraction of the period, in [0, 1].
func (p *PCA9685) SetDuty(ch int, value float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	pwmValue := uint16(PWMMax * value)
	addr := RegLEDBase + ch*4
	return p.writeReg(byte(addr), 0, 0, byte(pwmValue&0xff), byte(pwmValue>>8))
}

// Off holds channel ch low.
func (p *PCA9685) Off(ch int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	addr := RegLEDBase + ch*4
	return p.writeReg(byte(addr), 0, 0, 0, FullOff)
}

func (p *PCA9685) Close() error {
	if p.bus == nil {
		return nil
	}
	return p.bus.Close()
}
