// Package app holds the start-up plumbing shared by the telescope binaries:
// flags, config, logger, signal handling and opening the devices.
package app

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/config"
	"github.com/tigerbot-team/telescope/pkg/hardware"
	"github.com/tigerbot-team/telescope/pkg/joystick"
	"github.com/tigerbot-team/telescope/pkg/logging"
	"github.com/tigerbot-team/telescope/pkg/motor"
	"github.com/tigerbot-team/telescope/pkg/screen"
	"github.com/tigerbot-team/telescope/pkg/sound"
)

type Flags struct {
	Number     int
	ConfigPath string
	LogLevel   string
	SocketPath string
	Dummy      bool

	fs *flag.FlagSet
}

// RegisterFlags adds the common flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.IntVar(&f.Number, "n", 0, "Joystick number to use")
	fs.IntVar(&f.Number, "number", 0, "Joystick number to use")
	fs.StringVar(&f.ConfigPath, "config", "", "Path to YAML config file")
	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level: error, warn, info or debug")
	fs.StringVar(&f.SocketPath, "socket", "", "Motor command socket path (overrides config)")
	fs.BoolVar(&f.Dummy, "dummy", false, "Use dummy motor hardware")
	return f
}

// Load reads the config file, applies the flags that were given on the
// command line, validates the result and builds the logger.
func (f *Flags) Load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	var o config.Overrides
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "n", "number":
			o.JoystickIndex = &f.Number
		case "log-level":
			o.LogLevel = &f.LogLevel
		case "socket":
			o.SocketPath = &f.SocketPath
		case "dummy":
			o.Dummy = &f.Dummy
		}
	})
	o.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, errors.Wrap(err, "invalid config")
	}
	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// exit is swapped out by tests.
var exit = os.Exit

// RegisterSignalHandlers cancels on SIGINT or SIGTERM.  A second signal, or
// shutdown taking longer than grace, runs each of beforeExit and exits the
// process.  Binaries that own a motor pass its EmergencyStop so that the
// motor is never left enabled.
func RegisterSignalHandlers(cancel context.CancelFunc, grace time.Duration, log *slog.Logger, beforeExit ...func()) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go handleSignals(signals, cancel, grace, log, beforeExit)
}

func handleSignals(signals <-chan os.Signal, cancel context.CancelFunc, grace time.Duration, log *slog.Logger, beforeExit []func()) {
	s := <-signals
	log.Info("Signal", "signal", s.String())
	cancel()
	select {
	case s = <-signals:
		log.Warn("Second signal, exiting", "signal", s.String())
	case <-time.After(grace):
		log.Warn("Shutdown timed out, exiting")
	}
	for _, f := range beforeExit {
		f()
	}
	exit(1)
}

// OpenJoystick waits for the configured joystick to appear.
func OpenJoystick(ctx context.Context, cfg config.Config, log *slog.Logger) (*joystick.Joystick, error) {
	firstLog := true
	for {
		j, err := joystick.OpenIndex(cfg.Joystick.DeviceGlob, cfg.Joystick.Index)
		if err == nil {
			log.Info("Joystick in use", "joystick", j.String())
			return j, nil
		}
		if errors.Cause(err) != joystick.ErrNoDevice {
			return nil, err
		}
		if firstLog {
			log.Info("Waiting for joystick", "err", err)
			firstLog = false
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// OpenMotor acquires the motor outputs and wraps them in a Motor.
func OpenMotor(cfg config.Config, log *slog.Logger) (*motor.Motor, error) {
	out, err := hardware.Open(cfg.Hardware(), log)
	if err != nil {
		return nil, err
	}
	m, err := motor.New(out, cfg.MotorConfig(), log)
	if err != nil {
		out.Close()
		return nil, err
	}
	return m, nil
}

// StartObservers attaches the configured display and sound cues to m.
func StartObservers(ctx context.Context, cfg config.Config, m *motor.Motor, log *slog.Logger) {
	if cfg.Display.Enabled {
		s := screen.New(cfg.Display.Device, m.MaxFrequency(), log)
		m.AddObserver(s)
		go s.Loop(ctx)
	}
	if cfg.Sound.Enabled {
		c := sound.NewCues(cfg.Sound.EnableCue, cfg.Sound.DisableCue, log)
		m.AddObserver(c)
		go c.Loop(ctx)
	}
}
