// jstest lists the input devices, or prints every event from the selected
// joystick after button remapping.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tigerbot-team/telescope/pkg/app"
	"github.com/tigerbot-team/telescope/pkg/joystick"
	"github.com/tigerbot-team/telescope/pkg/jsdriver"
	"github.com/tigerbot-team/telescope/pkg/mapping"
)

func main() {
	flags := app.RegisterFlags(flag.CommandLine)
	list := flag.Bool("list", false, "List the input devices and exit")
	flag.Parse()

	cfg, log, err := flags.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *list {
		infos, err := joystick.List(cfg.Joystick.DeviceGlob)
		if err != nil {
			fmt.Println("Failed to list devices:", err)
			os.Exit(1)
		}
		if len(infos) == 0 {
			fmt.Println("No input devices found")
		}
		for i, info := range infos {
			fmt.Printf("%d: %v\n", i, info)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.RegisterSignalHandlers(cancel, 2*time.Second, log)

	j, err := app.OpenJoystick(ctx, cfg, log)
	if err != nil {
		fmt.Println("Failed to open joystick:", err)
		os.Exit(1)
	}
	defer j.Close()

	printer := func(id string) mapping.SyncHandler {
		return func(v mapping.Value) {
			fmt.Printf("%s=%v\n", id, v)
		}
	}
	events := mapping.Suspending(mapping.NewSyncMapping(printer))
	buttons := mapping.NewRemap(cfg.ButtonRemap())
	err = jsdriver.New(j, buttons, events, cfg.ReadTimeout(), log).Run(ctx)
	if err != nil && err != context.Canceled {
		fmt.Println("Joystick failed:", err)
		os.Exit(1)
	}
}
