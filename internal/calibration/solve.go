// Package calibration aligns two sets of floor-plane points.
package calibration

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrPointCount is returned for empty or mismatched point sets.
	ErrPointCount = errors.New("calibration: point sets must be non-empty and equal length")
	// ErrDegenerate is returned when the rotation cannot be determined.
	ErrDegenerate = errors.New("calibration: points are coincident or out of range")
)

const degenerateEpsilon = 1e-12

// Point is a position on the x/z floor plane.
type Point struct {
	X float64
	Z float64
}

// Offset maps input coordinates onto fixed coordinates: rotate by Theta
// radians around the origin, then translate by (X, Z).
type Offset struct {
	X     float64
	Z     float64
	Theta float64
}

// Apply transforms p by the offset.
func (o Offset) Apply(p Point) Point {
	sin, cos := math.Sincos(o.Theta)
	return Point{
		X: cos*p.X - sin*p.Z + o.X,
		Z: sin*p.X + cos*p.Z + o.Z,
	}
}

// Solve finds the rigid transform minimising the squared distance between
// each transformed input point and its fixed counterpart. A single pair
// yields a pure translation.
func Solve(fixed, input []Point) (Offset, error) {
	if len(fixed) == 0 || len(fixed) != len(input) {
		return Offset{}, fmt.Errorf("%w: fixed=%d input=%d", ErrPointCount, len(fixed), len(input))
	}

	fc := centroid(fixed)
	ic := centroid(input)
	if len(fixed) == 1 {
		return finite(Offset{X: fc.X - ic.X, Z: fc.Z - ic.Z})
	}

	var dot, cross, spread float64
	for i := range fixed {
		ax, az := input[i].X-ic.X, input[i].Z-ic.Z
		bx, bz := fixed[i].X-fc.X, fixed[i].Z-fc.Z
		dot += ax*bx + az*bz
		cross += ax*bz - az*bx
		spread += ax*ax + az*az
	}
	if spread < degenerateEpsilon || math.Hypot(dot, cross) < degenerateEpsilon {
		return Offset{}, ErrDegenerate
	}

	theta := math.Atan2(cross, dot)
	rotated := Offset{Theta: theta}.Apply(ic)
	return finite(Offset{X: fc.X - rotated.X, Z: fc.Z - rotated.Z, Theta: theta})
}

// finite rejects offsets that overflowed while solving.
func finite(o Offset) (Offset, error) {
	for _, v := range []float64{o.X, o.Z, o.Theta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Offset{}, fmt.Errorf("%w: offset overflowed", ErrDegenerate)
		}
	}
	return o, nil
}

func centroid(points []Point) Point {
	var c Point
	for _, p := range points {
		c.X += p.X
		c.Z += p.Z
	}
	n := float64(len(points))
	return Point{X: c.X / n, Z: c.Z / n}
}
