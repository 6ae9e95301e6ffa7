// telescope runs the joystick reader and the motor in one process, joined by
// an in-memory bus.  The bus is also served on the command socket so that
// jsapp or motortest can drive the same motor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tigerbot-team/telescope/pkg/app"
	"github.com/tigerbot-team/telescope/pkg/config"
	"github.com/tigerbot-team/telescope/pkg/controls"
	"github.com/tigerbot-team/telescope/pkg/interp"
	"github.com/tigerbot-team/telescope/pkg/jsdriver"
	"github.com/tigerbot-team/telescope/pkg/mapping"
	"github.com/tigerbot-team/telescope/pkg/messenger"
	"github.com/tigerbot-team/telescope/pkg/motor"
)

func main() {
	flags := app.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, log, err := flags.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg, log); err != nil && err != context.Canceled {
		log.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("---- Telescope ----")

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := messenger.NewBus(cfg.Messenger.QueueSize, log)
	axisToSpeed, err := interp.AxisToSpeed(cfg.Speed.AxisBreakpoints)
	if err != nil {
		return err
	}
	events, err := controls.New(bus, axisToSpeed, log).Mapping(cfg.Joystick.Bindings, cfg.Joystick.Unbound)
	if err != nil {
		return err
	}

	m, err := app.OpenMotor(cfg, log)
	if err != nil {
		return err
	}
	app.RegisterSignalHandlers(cancel, 5*time.Second, log, m.EmergencyStop)
	app.StartObservers(ctx, cfg, m, log)

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	// Any task ending brings the others down.
	task := func(name string, f func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			err := f()
			if err != nil && ctx.Err() == nil {
				log.Error("Task failed", "task", name, "err", err)
				errOnce.Do(func() { runErr = err })
			}
		}()
	}

	task("motor", func() error {
		return motor.Run(ctx, m, func(ctx context.Context, m *motor.Motor) error {
			return m.Listen(ctx, bus)
		})
	})
	task("socket", func() error {
		return messenger.Serve(ctx, cfg.Messenger.SocketPath, bus, log)
	})
	task("joystick", func() error {
		j, err := app.OpenJoystick(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer j.Close()
		buttons := mapping.NewRemap(cfg.ButtonRemap())
		return jsdriver.New(j, buttons, events, cfg.ReadTimeout(), log).Run(ctx)
	})

	wg.Wait()
	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}
