package agent

import (
	"github.com/trackside/envstate/internal/telemetry"
)

// Action is the last command sent to one agent.
type Action struct {
	name          string
	steeringAngle float64
	speed         float64
}

func NewAction(name string) *Action {
	return &Action{name: name}
}

// SteeringAngle is in degrees.
func (a *Action) SteeringAngle() float64 {
	return a.steeringAngle
}

// Speed is in meters per second.
func (a *Action) Speed() float64 {
	return a.speed
}

func (a *Action) Update(b *telemetry.Bundle) error {
	action, err := b.Action(a.name)
	if err != nil {
		return err
	}
	a.steeringAngle = action.SteeringAngle
	a.speed = action.Speed
	return nil
}

func (a *Action) ToDict() map[string]any {
	return map[string]any{
		"speed":          a.speed,
		"steering_angle": a.steeringAngle,
	}
}

func (a *Action) clone() *Action {
	c := *a
	return &c
}
