package screen

import (
	"image"
	"image/color"
	"testing"

	"github.com/tigerbot-team/telescope/pkg/motor"
)

func TestEncodeRotatesAndPacks(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, S, S))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	img.Set(1, S-1, color.RGBA{B: 0xff, A: 0xff})

	buf := Encode(img)
	if len(buf) != S*S*2 {
		t.Fatalf("Unexpected buffer size %d", len(buf))
	}
	// Pixel (0, 0) lands at the end of the first column.
	if lo, hi := buf[(S-1)*2], buf[(S-1)*2+1]; lo != 0x00 || hi != 0xf8 {
		t.Errorf("Red pixel encoded as %#02x %#02x", lo, hi)
	}
	// Pixel (1, S-1) lands at the start of the second column.
	if lo, hi := buf[S*2], buf[S*2+1]; lo != 0x1f || hi != 0x00 {
		t.Errorf("Blue pixel encoded as %#02x %#02x", lo, hi)
	}
}

func TestRenderDiffersByState(t *testing.T) {
	safe := Encode(Render(motor.State{Frequency: 1}, 45000))
	armed := Encode(Render(motor.State{Active: true, Frequency: 45000, Direction: motor.Backward}, 45000))
	same := true
	for i := range safe {
		if safe[i] != armed[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Armed and safe panels render identically")
	}
}

func TestObserverTracksState(t *testing.T) {
	s := New("/nonexistent", 45000, nil)
	s.MotorChanged(motor.State{Active: true, Frequency: 10})
	if s.state.Frequency != 10 || !s.state.Active {
		t.Errorf("State not recorded: %v", s.state)
	}
}
