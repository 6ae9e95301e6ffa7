package sound

import (
	"testing"

	"github.com/tigerbot-team/telescope/pkg/motor"
)

func TestCuesOnlyOnActiveChanges(t *testing.T) {
	c := NewCues("on.wav", "off.wav", nil)
	for _, s := range []motor.State{
		{Frequency: 1},                   // initial, no cue
		{Frequency: 500},                 // speed only
		{Active: true, Frequency: 500},   // armed
		{Active: true, Frequency: 45000}, // speed only
		{Frequency: 45000},               // disarmed
	} {
		c.MotorChanged(s)
	}

	var played []string
	for len(c.toPlay) > 0 {
		played = append(played, <-c.toPlay)
	}
	if len(played) != 2 || played[0] != "on.wav" || played[1] != "off.wav" {
		t.Errorf("Unexpected cues %v", played)
	}
}

func TestCuesDropWhenQueueFull(t *testing.T) {
	c := NewCues("on.wav", "off.wav", nil)
	c.MotorChanged(motor.State{})
	for i := 0; i < 20; i++ {
		c.MotorChanged(motor.State{Active: i%2 == 0})
	}
	if n := len(c.toPlay); n != cap(c.toPlay) {
		t.Errorf("Expected a full queue, got %d", n)
	}
}
