// Package vehicle holds the body-frame dimensions of the car.
package vehicle

import "gonum.org/v1/gonum/spatial/r3"

// Body footprint in meters.
const (
	Length = 0.32352
	Width  = 0.1961
)

// Collider footprint used for the per-wheel off-track test.
const (
	ColliderLength = 0.16462
	ColliderWidth  = 0.1961
)

// Wheel indices into WheelOffsets.
const (
	FrontLeft = iota
	FrontRight
	RearLeft
	RearRight
)

// WheelOffsets are the wheel contact points relative to the car origin, x
// forward and y left.
var WheelOffsets = [4]r3.Vec{
	FrontLeft:  {X: ColliderLength / 2, Y: ColliderWidth / 2},
	FrontRight: {X: ColliderLength / 2, Y: -ColliderWidth / 2},
	RearLeft:   {X: -ColliderLength / 2, Y: ColliderWidth / 2},
	RearRight:  {X: -ColliderLength / 2, Y: -ColliderWidth / 2},
}

// NoseOffset is the front-of-car point relative to the car origin.
var NoseOffset = r3.Vec{X: Length / 2}
