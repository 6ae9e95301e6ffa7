// Package screen shows the motor state on the 128x128 TFT behind /dev/fb1.
package screen

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/tigerbot-team/telescope/pkg/motor"
)

const (
	S = 128

	refreshInterval = 500 * time.Millisecond
)

// Screen is a motor.Observer that redraws the panel on every refresh.
type Screen struct {
	lock         sync.Mutex
	state        motor.State
	maxFrequency int

	device string
	log    *slog.Logger
}

var _ motor.Observer = (*Screen)(nil)

func New(device string, maxFrequency int, log *slog.Logger) *Screen {
	if log == nil {
		log = slog.Default()
	}
	return &Screen{
		device:       device,
		maxFrequency: maxFrequency,
		state:        motor.State{Frequency: 1},
		log:          log.With("component", "screen"),
	}
}

func (s *Screen) MotorChanged(state motor.State) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
}

// Loop redraws until ctx is done, then blanks the panel.  A missing panel is
// logged and otherwise ignored.
func (s *Screen) Loop(ctx context.Context) {
	f, err := os.OpenFile(s.device, os.O_RDWR, 0666)
	if err != nil {
		s.log.Warn("Failed to open screen, ignoring", "err", err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var buf [S * S * 2]byte
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(buf[:])
			return
		case <-ticker.C:
		}

		s.lock.Lock()
		state := s.state
		s.lock.Unlock()

		buf := Encode(Render(state, s.maxFrequency))
		if _, err := f.Seek(0, 0); err != nil {
			s.log.Error("Screen failure", "err", err)
			return
		}
		for i := 0; i < S; i++ {
			if _, err := f.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
				s.log.Error("Screen failure", "err", err)
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
	}
}

// Render draws the motor panel: armed status, direction arrow and a bar for
// the frequency.
func Render(state motor.State, maxFrequency int) image.Image {
	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	if state.Active {
		DrawWarning(dc, 16, 16)
		dc.SetRGB(1, 0.2, 0)
		dc.DrawString("ARMED", 34, 20)
	} else {
		dc.SetRGBA(1, 0.9, 0, 1)
		dc.DrawString("SAFE", 34, 20)
	}

	dc.SetRGBA(1, 0.9, 0, 1)
	dc.Push()
	dc.Translate(S/2, 52)
	if state.Direction == motor.Backward {
		dc.Rotate(gg.Radians(180))
	}
	dc.DrawRegularPolygon(3, 0, 0, 14, gg.Radians(90))
	dc.Fill()
	dc.Pop()
	dc.DrawStringAnchored(state.Direction.String(), S/2, 80, 0.5, 0.5)

	drawFrequencyBar(dc, state.Frequency, maxFrequency)
	return dc.Image()
}

func drawFrequencyBar(dc *gg.Context, hz, maxFrequency int) {
	fraction := 0.0
	if maxFrequency > 0 {
		fraction = float64(hz) / float64(maxFrequency)
	}
	if fraction > 1 {
		fraction = 1
	}
	dc.DrawRectangle(4, 96, S-8, 10)
	dc.Stroke()
	dc.DrawRectangle(6, 98, (S-12)*fraction, 6)
	dc.Fill()
	dc.DrawStringAnchored(fmt.Sprintf("%d Hz", hz), S/2, 118, 0.5, 0.5)
}

func DrawWarning(dc *gg.Context, x, y float64) {
	dc.Push()
	dc.Translate(x, y)
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 14, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -3, 3)
	dc.Pop()
}

// Encode converts img to the panel's rotated RGB565 layout.
func Encode(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}
