package math

import (
	stdmath "math"

	"golang.org/x/exp/constraints"
)

const TwoPi = 2 * stdmath.Pi

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// WrapAngle maps an angle in radians to [0, 2π).
func WrapAngle(angle float32) float32 {
	wrapped := float32(stdmath.Mod(float64(angle), TwoPi))
	if wrapped < 0 {
		wrapped += TwoPi
	}
	return wrapped
}
