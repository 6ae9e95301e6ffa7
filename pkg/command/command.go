// Package command defines the records that travel from the joystick side to
// the motor side over the motor command topic.
package command

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Topic is the messenger topic carrying Records to the motor.
const Topic = "motor:command"

type Name string

const (
	ToggleActiveState Name = "toggle_active_state"
	SetSpeed          Name = "set_speed"
	FineTuneSpeed     Name = "fine_tune_speed"
	Stop              Name = "stop"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingField    = errors.New("missing field")
	ErrSpeedOutOfRange = errors.New("speed out of range")
	ErrNotFinite       = errors.New("value is not finite")
)

// MaxSpeed bounds Record.Speed.  Speeds are always percentages in
// [-MaxSpeed, MaxSpeed]; never raw axis units or frequencies.
const MaxSpeed = 100.0

// Record is a single motor command.  Which of the numeric fields is meaningful
// depends on Command: Speed for SetSpeed, DeltaSpeed for FineTuneSpeed.
type Record struct {
	Command    Name     `json:"command"`
	Speed      *float64 `json:"speed,omitempty"`
	DeltaSpeed *float64 `json:"delta_speed,omitempty"`
}

func Toggle() Record {
	return Record{Command: ToggleActiveState}
}

// SetSpeedTo returns a SetSpeed record, clamping speed into range.
func SetSpeedTo(speed float64) Record {
	speed = math.Max(-MaxSpeed, math.Min(MaxSpeed, speed))
	return Record{Command: SetSpeed, Speed: &speed}
}

func FineTune(delta float64) Record {
	return Record{Command: FineTuneSpeed, DeltaSpeed: &delta}
}

func StopMotor() Record {
	return Record{Command: Stop}
}

// Validate checks that the record carries the fields its command needs.
func (r Record) Validate() error {
	switch r.Command {
	case ToggleActiveState, Stop:
		return nil
	case SetSpeed:
		if r.Speed == nil {
			return errors.Wrapf(ErrMissingField, "%s: speed", r.Command)
		}
		if math.IsNaN(*r.Speed) || math.Abs(*r.Speed) > MaxSpeed {
			return errors.Wrapf(ErrSpeedOutOfRange, "%s: %v", r.Command, *r.Speed)
		}
		return nil
	case FineTuneSpeed:
		if r.DeltaSpeed == nil {
			return errors.Wrapf(ErrMissingField, "%s: delta_speed", r.Command)
		}
		if math.IsNaN(*r.DeltaSpeed) || math.IsInf(*r.DeltaSpeed, 0) {
			return errors.Wrapf(ErrNotFinite, "%s: delta_speed %v", r.Command, *r.DeltaSpeed)
		}
		return nil
	default:
		return errors.Wrapf(ErrUnknownCommand, "%q", string(r.Command))
	}
}

func (r Record) String() string {
	switch {
	case r.Speed != nil:
		return fmt.Sprintf("%s(speed=%.2f)", r.Command, *r.Speed)
	case r.DeltaSpeed != nil:
		return fmt.Sprintf("%s(delta_speed=%.2f)", r.Command, *r.DeltaSpeed)
	default:
		return string(r.Command)
	}
}

// Marshal encodes the record as a single JSON object.
func Marshal(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal decodes a JSON payload.  It does not validate the command; unknown
// commands are left for the dispatcher to ignore.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, errors.Wrap(err, "decode command record")
	}
	if r.Command == "" {
		return Record{}, errors.Wrap(ErrMissingField, "command")
	}
	return r, nil
}
