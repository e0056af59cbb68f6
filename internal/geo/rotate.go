// Package geo holds the rigid-body and planar geometry helpers used to place a
// vehicle on the track.
package geo

import (
	"math"

	"github.com/trackside/envstate/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rotate returns v rotated by the unit quaternion q, i.e. the vector part of
// q * v * conj(q) with v taken as a pure quaternion. The Hamilton products are
// expanded in closed form. A non-unit q scales the result by |q|^2.
func Rotate(v r3.Vec, q core.Quaternion) r3.Vec {
	// a is the real part, b c d the i j k parts
	b1, c1, d1, a1 := q.X, q.Y, q.Z, q.W
	b2, c2, d2 := v.X, v.Y, v.Z

	a1Sq := a1 * a1
	b1Sq := b1 * b1
	c1Sq := c1 * c1
	d1Sq := d1 * d1

	x := b2*(-c1Sq-d1Sq+b1Sq+a1Sq) +
		2*(-(a1*c2*d1)+(b1*c1*c2)+(b1*d1*d2)+(a1*c1*d2))
	y := c2*(c1Sq-d1Sq+a1Sq-b1Sq) +
		2*((a1*b2*d1)+(b1*b2*c1)+(c1*d1*d2)-(a1*b1*d2))
	z := d2*(-c1Sq+d1Sq+a1Sq-b1Sq) +
		2*((a1*b1*c2)+(b1*b2*d1)-(a1*b2*c1)+(c1*c2*d1))

	return r3.Vec{X: x, Y: y, Z: z}
}

// Offset returns origin + Rotate(offset, q), the world position of a
// body-frame offset.
func Offset(origin core.Position3D, offset r3.Vec, q core.Quaternion) r3.Vec {
	return r3.Add(ToVec(origin), Rotate(offset, q))
}

// QuaternionToEuler converts q to roll, pitch and yaw in radians using the
// aerospace (x-y-z) sequence.
func QuaternionToEuler(q core.Quaternion) (roll, pitch, yaw float64) {
	x, y, z, w := q.X, q.Y, q.Z, q.W

	sinrCosp := 2.0 * (w*x + y*z)
	cosrCosp := 1.0 - 2.0*(x*x+y*y)
	roll = math.Atan2(sinrCosp, cosrCosp)

	// |sinp| can overshoot 1 by rounding near the vertical; clamp instead of Asin.
	sinp := 2.0 * (w*y - z*x)
	if math.Abs(sinp) >= 1.0 {
		pitch = math.Copysign(math.Pi/2.0, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2.0 * (w*z + x*y)
	cosyCosp := 1.0 - 2.0*(y*y+z*z)
	yaw = math.Atan2(sinyCosp, cosyCosp)

	return roll, pitch, yaw
}

// ToVec converts a core position to a gonum vector.
func ToVec(p core.Position3D) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// FromVec converts a gonum vector to a core position.
func FromVec(v r3.Vec) core.Position3D {
	return core.Position3D{X: v.X, Y: v.Y, Z: v.Z}
}
