// jsapp reads the joystick and publishes motor commands to motorapp over the
// command socket.
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
	"github.com/tigerbot-team/telescope/pkg/controls"
	"github.com/tigerbot-team/telescope/pkg/interp"
	"github.com/tigerbot-team/telescope/pkg/jsdriver"
	"github.com/tigerbot-team/telescope/pkg/mapping"
	"github.com/tigerbot-team/telescope/pkg/messenger"
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
	app.RegisterSignalHandlers(cancel, 2*time.Second, log)

	client, err := messenger.Dial(cfg.Messenger.SocketPath)
	if err != nil {
		return err
	}
	defer client.Close()

	axisToSpeed, err := interp.AxisToSpeed(cfg.Speed.AxisBreakpoints)
	if err != nil {
		return err
	}
	events, err := controls.New(client, axisToSpeed, log).Mapping(cfg.Joystick.Bindings, cfg.Joystick.Unbound)
	if err != nil {
		return err
	}

	j, err := app.OpenJoystick(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer j.Close()

	buttons := mapping.NewRemap(cfg.ButtonRemap())
	return jsdriver.New(j, buttons, events, cfg.ReadTimeout(), log).Run(ctx)
}
