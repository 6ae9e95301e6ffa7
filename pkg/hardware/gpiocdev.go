package hardware

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const DefaultGPIOChip = "gpiochip0"

// CdevLine is an output requested through the GPIO character device.
type CdevLine struct {
	line *gpiocdev.Line
}

// NewCdevLine requests offset on chip as an output, initially low.
func NewCdevLine(chip string, offset int) (*CdevLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("telescope"))
	if err != nil {
		return nil, errors.Wrapf(err, "request %s line %d", chip, offset)
	}
	return &CdevLine{line: l}, nil
}

func (l *CdevLine) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	return l.line.SetValue(v)
}

func (l *CdevLine) Close() error {
	_ = l.line.SetValue(0)
	return l.line.Close()
}
