// Package agent tracks one vehicle: its last action, its pose and its status
// relative to the track.
package agent

import (
	"log/slog"

	"github.com/trackside/envstate/internal/state"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/pkg/core"
)

// Agent bundles the action, pose and status of one named vehicle.
type Agent struct {
	name   string
	action *Action
	pose   *Pose
	status *Status

	states *state.Composite
	logger *slog.Logger
}

// New creates an agent whose status queries geometry until the first update.
func New(name string, geometry telemetry.TrackGeometry, logger *slog.Logger) *Agent {
	return assemble(name, NewAction(name), NewPose(name), NewStatus(name, geometry), logger)
}

func assemble(name string, action *Action, pose *Pose, status *Status, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		name:   name,
		action: action,
		pose:   pose,
		status: status,
		states: state.NewComposite(logger),
		logger: logger,
	}
	a.states.Add(state.KeyAction, action)
	a.states.Add(state.KeyPose, pose)
	a.states.Add(state.KeyStatus, status)
	return a
}

func (a *Agent) Name() string    { return a.name }
func (a *Agent) Action() *Action { return a.action }
func (a *Agent) Pose() *Pose     { return a.pose }
func (a *Agent) Status() *Status { return a.status }

// Get looks up a sub-state by key.
func (a *Agent) Get(key state.Key) (state.State, error) {
	return a.states.Get(key)
}

func (a *Agent) Update(b *telemetry.Bundle) error {
	return a.states.Update(b)
}

func (a *Agent) ToDict() map[string]any {
	return a.states.ToDict()
}

// Clone returns an independent copy of the agent.
func (a *Agent) Clone() *Agent {
	return assemble(a.name, a.action.clone(), a.pose.clone(), a.status.clone(), a.logger)
}

// Snapshot flattens the agent into its exported form.
func (a *Agent) Snapshot() core.AgentSnapshot {
	nose := a.pose.Nose()
	return core.AgentSnapshot{
		Name:               a.name,
		SteeringAngle:      a.action.SteeringAngle(),
		Speed:              a.action.Speed(),
		X:                  nose.X,
		Y:                  nose.Y,
		Z:                  nose.Z,
		Roll:               a.pose.Roll(),
		Pitch:              a.pose.Pitch(),
		Yaw:                a.pose.Yaw(),
		AllWheelsOnTrack:   a.status.AllWheelsOnTrack(),
		ClosestWaypoints:   a.status.ClosestWaypoints(),
		DistanceFromCenter: a.status.DistanceFromCenter(),
		IsOfftrack:         a.status.IsOfftrack(),
		Progress:           a.status.Progress(),
		Steps:              a.status.Steps(),
		TrackWidth:         a.status.TrackWidth(),
		IsLeftOfCenter:     a.status.IsLeftOfCenter(),
		Done:               a.status.Done(),
	}
}
