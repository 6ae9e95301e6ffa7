package joystick

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultGlob matches the evdev nodes a joystick can show up as.
const DefaultGlob = "/dev/input/event*"

var (
	// ErrTimeout is returned by ReadEvent when no event arrived within the
	// timeout.  It is not a failure.
	ErrTimeout = errors.New("joystick: read timed out")

	ErrNoDevice = errors.New("joystick: no such device")
)

type EventType uint8

const (
	EventTypeOther EventType = iota
	EventTypeButton
	EventTypeAxis
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	case EventTypeOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// Button values reported by the kernel.
const (
	ButtonReleased = 0
	ButtonPressed  = 1
	ButtonRepeat   = 2
)

type Event struct {
	Time  time.Time
	Type  EventType
	Code  uint16
	Value int32
}

// Name is the canonical identifier of the control that produced the event,
// e.g. ABS_X or BTN_A.
func (e *Event) Name() string {
	switch e.Type {
	case EventTypeAxis:
		return AxisName(e.Code)
	case EventTypeButton:
		return ButtonName(e.Code)
	default:
		return fmt.Sprintf("EV_%#x", e.Code)
	}
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Name(), e.Value)
}

// Info describes an input device found by List.
type Info struct {
	Path string
	Name string
	Phys string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %q %s", i.Path, i.Name, i.Phys)
}

// List returns the input devices matching glob that can be opened, in device
// number order.
func List(glob string) ([]Info, error) {
	if glob == "" {
		glob = DefaultGlob
	}
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, errors.Wrapf(err, "bad device glob %q", glob)
	}
	sort.Slice(paths, func(i, j int) bool {
		return devLess(paths[i], paths[j])
	})

	var infos []Info
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			continue
		}
		infos = append(infos, Info{Path: p, Name: dev.Name, Phys: dev.Phys})
		_ = dev.File.Close()
	}
	return infos, nil
}

// devLess orders event2 before event10.
func devLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimLeft(filepath.Base(a), "abcdefghijklmnopqrstuvwxyz"))
	nb, errB := strconv.Atoi(strings.TrimLeft(filepath.Base(b), "abcdefghijklmnopqrstuvwxyz"))
	if errA != nil || errB != nil || filepath.Dir(a) != filepath.Dir(b) {
		return a < b
	}
	return na < nb
}

type Joystick struct {
	dev *evdev.InputDevice
	fd  int
}

// NewJoystick opens the evdev node at path.
func NewJoystick(path string) (*Joystick, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &Joystick{
		dev: dev,
		fd:  int(dev.File.Fd()),
	}, nil
}

// OpenIndex opens the number'th device returned by List(glob).
func OpenIndex(glob string, number int) (*Joystick, error) {
	infos, err := List(glob)
	if err != nil {
		return nil, err
	}
	if number < 0 || number >= len(infos) {
		return nil, errors.Wrapf(ErrNoDevice, "index %d, %d devices found", number, len(infos))
	}
	return NewJoystick(infos[number].Path)
}

func (j *Joystick) Info() Info {
	return Info{Path: j.dev.Fn, Name: j.dev.Name, Phys: j.dev.Phys}
}

func (j *Joystick) String() string {
	return j.Info().String()
}

// ReadEvent waits at most timeout for one event.  It returns ErrTimeout if the
// device stayed quiet; any other error means the device is unusable.
func (j *Joystick) ReadEvent(timeout time.Duration) (*Event, error) {
	fds := []unix.PollFd{{Fd: int32(j.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err == unix.EINTR {
		return nil, ErrTimeout
	}
	if err != nil {
		return nil, errors.Wrapf(err, "poll %s", j.dev.Fn)
	}
	if n == 0 {
		return nil, ErrTimeout
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return nil, errors.Errorf("%s: device error or hangup (revents=%#x)", j.dev.Fn, fds[0].Revents)
	}

	raw, err := j.dev.ReadOne()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", j.dev.Fn)
	}
	return &Event{
		Time:  time.Unix(int64(raw.Time.Sec), int64(raw.Time.Usec)*int64(time.Microsecond)),
		Type:  classify(raw.Type),
		Code:  raw.Code,
		Value: raw.Value,
	}, nil
}

func classify(t uint16) EventType {
	switch t {
	case evdev.EV_KEY:
		return EventTypeButton
	case evdev.EV_ABS:
		return EventTypeAxis
	default:
		return EventTypeOther
	}
}

func (j *Joystick) Close() error {
	return j.dev.File.Close()
}
