package command

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestValidate(t *testing.T) {
	nan := math.NaN()
	tooFast := 101.0
	inf := math.Inf(1)
	huge := 1e300
	for _, tc := range []struct {
		name   string
		record Record
		cause  error
	}{
		{"toggle", Toggle(), nil},
		{"stop", StopMotor(), nil},
		{"set speed", SetSpeedTo(50), nil},
		{"fine tune", FineTune(-3), nil},
		{"set speed missing", Record{Command: SetSpeed}, ErrMissingField},
		{"set speed nan", Record{Command: SetSpeed, Speed: &nan}, ErrSpeedOutOfRange},
		{"set speed too fast", Record{Command: SetSpeed, Speed: &tooFast}, ErrSpeedOutOfRange},
		{"fine tune missing", Record{Command: FineTuneSpeed}, ErrMissingField},
		{"fine tune nan", Record{Command: FineTuneSpeed, DeltaSpeed: &nan}, ErrNotFinite},
		{"fine tune inf", Record{Command: FineTuneSpeed, DeltaSpeed: &inf}, ErrNotFinite},
		{"fine tune huge", Record{Command: FineTuneSpeed, DeltaSpeed: &huge}, nil},
		{"unknown", Record{Command: "warp"}, ErrUnknownCommand},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.record.Validate()
			if errors.Cause(err) != tc.cause {
				t.Errorf("Validate(%v) = %v, expected cause %v", tc.record, err, tc.cause)
			}
		})
	}
}

func TestSetSpeedToClamps(t *testing.T) {
	if s := *SetSpeedTo(250).Speed; s != 100 {
		t.Errorf("Expected clamp to 100, got %v", s)
	}
	if s := *SetSpeedTo(-250).Speed; s != -100 {
		t.Errorf("Expected clamp to -100, got %v", s)
	}
}

func TestUnmarshal(t *testing.T) {
	r, err := Unmarshal([]byte(`{"command": "set_speed", "speed": 50}`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Command != SetSpeed || r.Speed == nil || *r.Speed != 50 {
		t.Fatalf("Unexpected record %v", r)
	}

	data, err := Marshal(FineTune(1))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"command":"fine_tune_speed","delta_speed":1}` {
		t.Errorf("Unexpected encoding %s", data)
	}

	if _, err := Unmarshal([]byte(`{"speed": 1}`)); errors.Cause(err) != ErrMissingField {
		t.Errorf("Expected missing command error, got %v", err)
	}
	if _, err := Unmarshal([]byte(`not json`)); err == nil {
		t.Error("Expected error for garbage payload")
	}
}
