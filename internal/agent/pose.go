package agent

import (
	"github.com/trackside/envstate/internal/geo"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/internal/vehicle"
	"github.com/trackside/envstate/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is an agent's world pose. X, Y and Z report the nose of the car rather
// than its origin.
type Pose struct {
	name     string
	position core.Position3D
	roll     float64
	pitch    float64
	yaw      float64
	nose     r3.Vec
}

// NewPose starts at the origin with no rotation.
func NewPose(name string) *Pose {
	return &Pose{
		name: name,
		nose: geo.Offset(core.Position3D{}, vehicle.NoseOffset, core.IdentityQuaternion),
	}
}

func (p *Pose) X() float64     { return p.nose.X }
func (p *Pose) Y() float64     { return p.nose.Y }
func (p *Pose) Z() float64     { return p.nose.Z }
func (p *Pose) Roll() float64  { return p.roll }
func (p *Pose) Pitch() float64 { return p.pitch }
func (p *Pose) Yaw() float64   { return p.yaw }

// Nose is the world position that X, Y and Z report.
func (p *Pose) Nose() core.Position3D {
	return geo.FromVec(p.nose)
}

// Position is the car origin.
func (p *Pose) Position() core.Position3D {
	return p.position
}

func (p *Pose) Update(b *telemetry.Bundle) error {
	info, err := b.Info(p.name)
	if err != nil {
		return err
	}
	p.position = info.Position
	p.nose = geo.Offset(info.Position, vehicle.NoseOffset, info.Orientation)
	p.roll, p.pitch, p.yaw = geo.QuaternionToEuler(info.Orientation)
	return nil
}

func (p *Pose) ToDict() map[string]any {
	return map[string]any{
		"x":     p.nose.X,
		"y":     p.nose.Y,
		"z":     p.nose.Z,
		"roll":  p.roll,
		"pitch": p.pitch,
		"yaw":   p.yaw,
	}
}

func (p *Pose) clone() *Pose {
	c := *p
	return &c
}
