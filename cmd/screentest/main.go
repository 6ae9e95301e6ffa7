// screentest previews the motor panel, either on the display or as a PNG.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/app"
	"github.com/tigerbot-team/telescope/pkg/motor"
	"github.com/tigerbot-team/telescope/pkg/screen"
)

func main() {
	flags := app.RegisterFlags(flag.CommandLine)
	png := flag.String("png", "", "Render the given state to this PNG file and exit")
	flag.Parse()

	cfg, log, err := flags.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	maxHz := cfg.MotorConfig().MaxFrequency

	if *png != "" {
		state, err := parseState(strings.Join(flag.Args(), " "))
		if err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
		if err := gg.SavePNG(*png, screen.Render(state, maxHz)); err != nil {
			fmt.Println("Failed to write PNG:", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.RegisterSignalHandlers(cancel, 2*time.Second, log)

	s := screen.New(cfg.Display.Device, maxHz, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Loop(ctx)
	}()

	fmt.Println("Enter: <frequency> [forward|backward] [on|off]")
	reader := bufio.NewReader(os.Stdin)
	for ctx.Err() == nil {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			break
		}
		state, err := parseState(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		s.MotorChanged(state)
	}
	cancel()
	<-done
}

// parseState reads "<frequency> [forward|backward] [on|off]".
func parseState(line string) (motor.State, error) {
	state := motor.State{Frequency: 1, Direction: motor.Forward}
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return state, errors.New("Expected a frequency")
	}
	hz, err := strconv.Atoi(parts[0])
	if err != nil || hz < 1 {
		return state, errors.Errorf("Expected a positive frequency, not %s", parts[0])
	}
	state.Frequency = hz
	for _, p := range parts[1:] {
		switch p {
		case "on":
			state.Active = true
		case "off":
			state.Active = false
		default:
			d, err := motor.ParseDirection(p)
			if err != nil {
				return state, err
			}
			state.Direction = d
		}
	}
	return state, nil
}
