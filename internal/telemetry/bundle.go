// Package telemetry defines the per-step input handed to every state update and
// the read-only track-geometry queries that states may run against it.
package telemetry

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/trackside/envstate/pkg/core"
)

// ErrAgentNotInBundle is returned when a state asks for an agent the step did
// not report.
var ErrAgentNotInBundle = errors.New("agent not in telemetry bundle")

// Line is one of the three track lines (centre, inner border, outer border).
type Line interface {
	// Project returns the arc-length position of the point on the line nearest
	// to p, as a fraction of the line length when normalized is set.
	Project(p geom.XY, normalized bool) float64
	// Interpolate returns the point at arc-length d, or at fraction d when
	// normalized is set.
	Interpolate(d float64, normalized bool) geom.XY
	Distance(p geom.XY) float64
	Contains(p geom.XY) bool
	Coords() []geom.XY
	Length() float64
}

// TrackGeometry answers track-relative spatial queries. Implementations must be
// safe for concurrent readers.
type TrackGeometry interface {
	Direction() core.TrackDirection
	Length() float64
	CenterLine() Line
	InnerBorder() Line
	OuterBorder() Line
	NDistFromPoint(p geom.XY) float64
	ClosestWaypointIndices(ndist float64) (prev, next int)
	Region(p geom.XY) core.TrackRegion
	IsOnTrack(p geom.XY) bool
}

// Bundle is one step of telemetry. It is built by the orchestrator and only
// read by states.
type Bundle struct {
	done     map[string]bool
	action   map[string]core.Action
	info     map[string]core.AgentInfo
	geometry TrackGeometry
}

// NewBundle wraps the step maps and the current geometry. The maps are not
// copied.
func NewBundle(done map[string]bool, action map[string]core.Action, info map[string]core.AgentInfo, geometry TrackGeometry) *Bundle {
	return &Bundle{
		done:     done,
		action:   action,
		info:     info,
		geometry: geometry,
	}
}

// Geometry returns the track geometry shared by every agent this step.
func (b *Bundle) Geometry() TrackGeometry {
	return b.geometry
}

// Done reports the termination flag for agent.
func (b *Bundle) Done(agent string) (bool, error) {
	done, ok := b.done[agent]
	if !ok {
		return false, fmt.Errorf("done for %q: %w", agent, ErrAgentNotInBundle)
	}
	return done, nil
}

// Action returns the last command for agent.
func (b *Bundle) Action(agent string) (core.Action, error) {
	action, ok := b.action[agent]
	if !ok {
		return core.Action{}, fmt.Errorf("action for %q: %w", agent, ErrAgentNotInBundle)
	}
	return action, nil
}

// Info returns the simulator-reported pose and progress for agent.
func (b *Bundle) Info(agent string) (core.AgentInfo, error) {
	info, ok := b.info[agent]
	if !ok {
		return core.AgentInfo{}, fmt.Errorf("info for %q: %w", agent, ErrAgentNotInBundle)
	}
	return info, nil
}
