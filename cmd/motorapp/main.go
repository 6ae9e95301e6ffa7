// motorapp owns the motor and applies the commands published on the command
// socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tigerbot-team/telescope/pkg/app"
	"github.com/tigerbot-team/telescope/pkg/config"
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := app.OpenMotor(cfg, log)
	if err != nil {
		return err
	}
	app.RegisterSignalHandlers(cancel, 5*time.Second, log, m.EmergencyStop)
	app.StartObservers(ctx, cfg, m, log)

	bus := messenger.NewBus(cfg.Messenger.QueueSize, log)
	serveErr := make(chan error, 1)
	go func() {
		defer cancel()
		serveErr <- messenger.Serve(ctx, cfg.Messenger.SocketPath, bus, log)
	}()

	err = motor.Run(ctx, m, func(ctx context.Context, m *motor.Motor) error {
		return m.Listen(ctx, bus)
	})
	cancel()
	if serr := <-serveErr; err == context.Canceled && serr != context.Canceled {
		return serr
	}
	return err
}
