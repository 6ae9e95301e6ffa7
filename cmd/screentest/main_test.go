package main

import (
	"testing"

	"github.com/tigerbot-team/telescope/pkg/motor"
)

func TestParseState(t *testing.T) {
	s, err := parseState("22500 backward on\n")
	if err != nil {
		t.Fatal(err)
	}
	expected := motor.State{Active: true, Frequency: 22500, Direction: motor.Backward}
	if s != expected {
		t.Errorf("Expected %v, got %v", expected, s)
	}

	s, err = parseState("36")
	if err != nil {
		t.Fatal(err)
	}
	if s.Active || s.Direction != motor.Forward || s.Frequency != 36 {
		t.Errorf("Unexpected defaults %v", s)
	}

	for _, bad := range []string{"", "0", "fast", "100 sideways"} {
		if _, err := parseState(bad); err == nil {
			t.Errorf("parseState(%q) should fail", bad)
		}
	}
}
