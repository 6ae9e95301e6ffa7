// Package hardware opens the motor outputs on one of several backends.
package hardware

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/motor"
)

// Pins are BCM GPIO numbers for one motor driver.
type Pins struct {
	Enable     int
	Direction  int
	Mode       []int
	PWMChannel int
}

// Step output of each PWM channel, as routed by the pwm device tree overlay
// (dtoverlay=pwm-2chan,pin=18,func=2,pin2=19,func2=2).
var pwmChannelPins = map[int]int{0: 18, 1: 19}

// Presets are the wirings of the two driver sockets, by motor id.
var Presets = map[int]Pins{
	0: {Enable: 4, Direction: 24, Mode: []int{21, 22, 27}, PWMChannel: 0},
	1: {Enable: 12, Direction: 13, Mode: []int{16, 17, 20}, PWMChannel: 1},
}

const (
	BackendPeriph   = "periph"
	BackendGPIOCdev = "gpiocdev"
	BackendPCA9685  = "pca9685"
	BackendDummy    = "dummy"
)

type Config struct {
	Pins Pins
	// GPIO backend: periph, gpiocdev or dummy.
	GPIO string
	// PWM backend: periph, pca9685 or dummy.
	PWM string

	// GPIOChip is used by the gpiocdev backend.
	GPIOChip string
	// I2CBus and PCA9685Channel are used by the pca9685 backend.
	I2CBus         string
	PCA9685Channel int
}

// Open acquires the outputs described by cfg.  On failure everything already
// acquired is released.
func Open(cfg Config, log *slog.Logger) (out motor.Outputs, err error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "hardware")

	var opened []interface{ Close() error }
	defer func() {
		if err != nil {
			for _, c := range opened {
				_ = c.Close()
			}
		}
	}()

	line, err := lineOpener(cfg, log)
	if err != nil {
		return motor.Outputs{}, err
	}
	open := func(role string, pin int) (motor.Line, error) {
		l, err := line(role, pin)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s line (GPIO%d)", role, pin)
		}
		if c, ok := l.(interface{ Close() error }); ok {
			opened = append(opened, c)
		}
		return l, nil
	}

	if out.Enable, err = open("enable", cfg.Pins.Enable); err != nil {
		return motor.Outputs{}, err
	}
	if out.Direction, err = open("direction", cfg.Pins.Direction); err != nil {
		return motor.Outputs{}, err
	}
	for _, pin := range cfg.Pins.Mode {
		l, err := open("mode", pin)
		if err != nil {
			return motor.Outputs{}, err
		}
		out.Mode = append(out.Mode, l)
	}

	switch cfg.PWM {
	case BackendPeriph, "":
		pin, ok := pwmChannelPins[cfg.Pins.PWMChannel]
		if !ok {
			return motor.Outputs{}, errors.Errorf("no PWM channel %d", cfg.Pins.PWMChannel)
		}
		out.PWM, err = NewPeriphPWM(pin, log)
	case BackendPCA9685:
		out.PWM, err = NewPCA9685PWM(cfg.I2CBus, cfg.PCA9685Channel, log)
	case BackendDummy:
		out.PWM = NewDummyPWM(log)
	default:
		err = errors.Errorf("unknown PWM backend %q", cfg.PWM)
	}
	if err != nil {
		return motor.Outputs{}, err
	}
	log.Info("Opened motor outputs", "gpio", cfg.GPIO, "pwm", cfg.PWM,
		"enable", cfg.Pins.Enable, "direction", cfg.Pins.Direction)
	return out, nil
}

func lineOpener(cfg Config, log *slog.Logger) (func(role string, pin int) (motor.Line, error), error) {
	switch cfg.GPIO {
	case BackendPeriph, "":
		if err := initPeriph(); err != nil {
			return nil, err
		}
		return func(role string, pin int) (motor.Line, error) {
			return NewPeriphLine(pin)
		}, nil
	case BackendGPIOCdev:
		chip := cfg.GPIOChip
		if chip == "" {
			chip = DefaultGPIOChip
		}
		return func(role string, pin int) (motor.Line, error) {
			return NewCdevLine(chip, pin)
		}, nil
	case BackendDummy:
		return func(role string, pin int) (motor.Line, error) {
			return NewDummyLine(role, pin, log), nil
		}, nil
	}
	return nil, errors.Errorf("unknown GPIO backend %q", cfg.GPIO)
}
