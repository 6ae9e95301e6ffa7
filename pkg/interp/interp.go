// Package interp implements the piecewise-linear speed maps used on both sides
// of the command channel: raw axis value to percentage speed on the joystick
// side, and percentage speed to PWM frequency on the motor side.
package interp

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Number is any value that can be fed through a Mapper.
type Number interface {
	constraints.Integer | constraints.Float
}

// Mapper maps x onto y by linear interpolation between breakpoints.  Inputs
// outside the breakpoint range are clamped to the end values; there is no
// extrapolation.
type Mapper struct {
	xp []float64
	fp []float64
}

// New returns a Mapper for the given breakpoints.  xp must be strictly
// increasing and the same length as fp.
func New(xp, fp []float64) (*Mapper, error) {
	if len(xp) == 0 {
		return nil, errors.New("interp: no breakpoints")
	}
	if len(xp) != len(fp) {
		return nil, errors.Errorf("interp: %d x breakpoints but %d y values", len(xp), len(fp))
	}
	for i := range xp {
		if math.IsNaN(xp[i]) || math.IsInf(xp[i], 0) || math.IsNaN(fp[i]) || math.IsInf(fp[i], 0) {
			return nil, errors.Errorf("interp: breakpoint %d is not finite", i)
		}
		if i > 0 && xp[i] <= xp[i-1] {
			return nil, errors.Errorf("interp: x breakpoints must be strictly increasing (%v <= %v)", xp[i], xp[i-1])
		}
	}
	return &Mapper{
		xp: append([]float64(nil), xp...),
		fp: append([]float64(nil), fp...),
	}, nil
}

// MustNew is New for breakpoint tables that are known good at compile time.
func MustNew(xp, fp []float64) *Mapper {
	m, err := New(xp, fp)
	if err != nil {
		panic(err)
	}
	return m
}

// Map returns the interpolated value at x.  NaN maps to NaN.
func (m *Mapper) Map(x float64) float64 {
	return Interp(x, m.xp, m.fp)
}

// Range returns the smallest and largest output values the Mapper can produce.
func (m *Mapper) Range() (lo, hi float64) {
	lo, hi = m.fp[0], m.fp[0]
	for _, y := range m.fp[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	return
}

func (m *Mapper) String() string {
	return fmt.Sprintf("interp%v->%v", m.xp, m.fp)
}

// Interp interpolates x over the breakpoint table (xp, fp).  It assumes the
// table has already been validated by New.
func Interp[T Number](x T, xp, fp []float64) float64 {
	v := float64(x)
	if math.IsNaN(v) {
		return v
	}
	n := len(xp)
	if v <= xp[0] {
		return fp[0]
	}
	if v >= xp[n-1] {
		return fp[n-1]
	}
	for i := 1; i < n; i++ {
		if v <= xp[i] {
			x0, x1 := xp[i-1], xp[i]
			y0, y1 := fp[i-1], fp[i]
			return y0 + (v-x0)*(y1-y0)/(x1-x0)
		}
	}
	return fp[n-1]
}
