package interp

const (
	// AxisMax is the full-scale reading of a joystick axis.
	AxisMax = 32767

	// ZeroSpeedOffset is what a centred stick maps to.  The default
	// speed table carries this small positive bias at zero.
	ZeroSpeedOffset = 0.08

	// MaxSpeed is the magnitude of full speed, in percent.
	MaxSpeed = 100.0

	// MinFrequency is the PWM frequency floor in Hz.
	MinFrequency = 1
)

// DefaultAxisBreakpoints is the x table for the input-side speed map.
var DefaultAxisBreakpoints = []float64{-AxisMax, 0, AxisMax}

// AxisToSpeed returns the input-side mapper: raw axis reading to percentage
// speed in [-100, 100].
func AxisToSpeed(xp []float64) (*Mapper, error) {
	if xp == nil {
		xp = DefaultAxisBreakpoints
	}
	return New(xp, []float64{-MaxSpeed, ZeroSpeedOffset, MaxSpeed})
}

// SpeedToFrequency returns the actuator-side mapper: percentage speed to PWM
// frequency.  Only the magnitude of the speed affects frequency; direction is
// handled separately by the caller.
func SpeedToFrequency(maxFrequency int) (*Mapper, error) {
	return New(
		[]float64{-MaxSpeed, 0, MaxSpeed},
		[]float64{float64(maxFrequency), MinFrequency, float64(maxFrequency)},
	)
}
