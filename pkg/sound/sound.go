// Package sound plays an audible cue when the motor is armed or disarmed.
package sound

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/tigerbot-team/telescope/pkg/motor"
)

// Cues is a motor.Observer that queues a sound on every change of the active
// state.
type Cues struct {
	lock     sync.Mutex
	known    bool
	active   bool
	enabled  string
	disabled string
	toPlay   chan string
	log      *slog.Logger
}

var _ motor.Observer = (*Cues)(nil)

func NewCues(enabledCue, disabledCue string, log *slog.Logger) *Cues {
	if log == nil {
		log = slog.Default()
	}
	return &Cues{
		enabled:  enabledCue,
		disabled: disabledCue,
		toPlay:   make(chan string, 4),
		log:      log.With("component", "sound"),
	}
}

func (c *Cues) MotorChanged(s motor.State) {
	c.lock.Lock()
	changed := c.known && s.Active != c.active
	c.known = true
	c.active = s.Active
	c.lock.Unlock()
	if !changed {
		return
	}
	cue := c.disabled
	if s.Active {
		cue = c.enabled
	}
	select {
	case c.toPlay <- cue:
	default:
		c.log.Warn("Sound queue full, dropping cue", "path", cue)
	}
}

// Loop plays queued cues until ctx is done.  Without a working speaker cues
// are logged and dropped.
func (c *Cues) Loop(ctx context.Context) {
	sampleRate := beep.SampleRate(44100)
	speakerOK := true
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		c.log.Warn("Failed to open speaker", "err", err)
		speakerOK = false
	}

	var (
		ctrl *beep.Ctrl
		s    beep.StreamSeekCloser
	)
	defer func() {
		if s != nil {
			s.Close()
		}
	}()
	for {
		var path string
		select {
		case <-ctx.Done():
			return
		case path = <-c.toPlay:
		}
		if !speakerOK {
			c.log.Info("Unable to play", "path", path)
			continue
		}
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}
		f, err := os.Open(path)
		if err != nil {
			c.log.Warn("Failed to open sound", "err", err)
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			c.log.Warn("Failed to decode sound", "err", err)
			f.Close()
			s = nil
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
}
