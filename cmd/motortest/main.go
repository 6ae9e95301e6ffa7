// motortest drives the motor directly from the console, or cycles it back
// and forth with -cycle.
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

	"github.com/pkg/errors"

	"github.com/tigerbot-team/telescope/pkg/app"
	"github.com/tigerbot-team/telescope/pkg/command"
	"github.com/tigerbot-team/telescope/pkg/motor"
)

func main() {
	flags := app.RegisterFlags(flag.CommandLine)
	cycle := flag.Bool("cycle", false, "Alternate forward and backward runs until interrupted")
	cycleFrequency := flag.Int("cycle-frequency", 35000, "PWM frequency for -cycle")
	flag.Parse()

	cfg, log, err := flags.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := app.OpenMotor(cfg, log)
	if err != nil {
		fmt.Println("Failed to open motor", err)
		os.Exit(1)
	}
	app.RegisterSignalHandlers(cancel, 5*time.Second, log, m.EmergencyStop)

	task := console
	if *cycle {
		task = func(ctx context.Context, m *motor.Motor) error {
			return cycleMotor(ctx, m, *cycleFrequency)
		}
	}
	err = motor.Run(ctx, m, task)
	if err != nil && err != context.Canceled {
		fmt.Println("Motor failed:", err)
		os.Exit(1)
	}
}

func cycleMotor(ctx context.Context, m *motor.Motor, hz int) error {
	if err := m.SetFrequency(hz); err != nil {
		return err
	}
	pause := func(d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
	for {
		for _, dir := range []motor.Direction{motor.Forward, motor.Backward} {
			if err := m.Enable(); err != nil {
				return err
			}
			if err := m.SetDirection(dir); err != nil {
				return err
			}
			if err := pause(2 * time.Second); err != nil {
				return err
			}
			if err := m.Disable(); err != nil {
				return err
			}
			if err := pause(500 * time.Millisecond); err != nil {
				return err
			}
		}
	}
}

const usage = `Commands:
    t                       # Toggle enabled/disabled
    s <speed>               # Set speed, -100 to 100
    f <delta>               # Fine tune frequency by delta Hz
    d <forward|backward>    # Set direction
    x                       # Stop (disable)
    p                       # Print state
    q                       # Quit
`

func console(ctx context.Context, m *motor.Motor) error {
	fmt.Println(usage)

	lines := make(chan string)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(os.Stdin)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				fmt.Println("\nFailed to read stdin: ", err)
				return
			}
			lines <- line
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		act, err := parseLine(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if act.quit {
			return nil
		}
		switch {
		case act.print:
		case act.direction != nil:
			err = m.SetDirection(*act.direction)
		case act.record != nil:
			err = m.Command(*act.record)
		default:
			continue
		}
		if err != nil {
			return err
		}
		fmt.Println(m.State())
	}
}

type action struct {
	record    *command.Record
	direction *motor.Direction
	print     bool
	quit      bool
}

func parseLine(line string) (action, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return action{}, nil
	}
	arg := func() (float64, error) {
		if len(parts) < 2 {
			return 0, errors.New("Not enough parameters")
		}
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, errors.Errorf("Expected number, not %s", parts[1])
		}
		return v, nil
	}

	var rec command.Record
	switch parts[0] {
	case "t":
		rec = command.Toggle()
	case "x":
		rec = command.StopMotor()
	case "s":
		v, err := arg()
		if err != nil {
			return action{}, err
		}
		if v < -command.MaxSpeed || v > command.MaxSpeed {
			return action{}, errors.Errorf("Expected -100 <= speed <= 100")
		}
		rec = command.SetSpeedTo(v)
	case "f":
		v, err := arg()
		if err != nil {
			return action{}, err
		}
		rec = command.FineTune(v)
	case "d":
		if len(parts) < 2 {
			return action{}, errors.New("Not enough parameters")
		}
		d, err := motor.ParseDirection(parts[1])
		if err != nil {
			return action{}, err
		}
		return action{direction: &d}, nil
	case "p":
		return action{print: true}, nil
	case "q":
		return action{quit: true}, nil
	default:
		return action{}, errors.Errorf("Unknown command %q", parts[0])
	}
	return action{record: &rec}, nil
}
