package agent

import (
	"github.com/trackside/envstate/internal/geo"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/internal/vehicle"
	"github.com/trackside/envstate/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Status is an agent's position relative to the track. Derived values are
// computed on read from the last bundle's geometry.
type Status struct {
	name        string
	steps       uint
	done        bool
	position    core.Position3D
	orientation core.Quaternion
	nose        r3.Vec
	isOfftrack  bool
	progress    float64
	geometry    telemetry.TrackGeometry
}

// NewStatus starts at the origin with no rotation. geometry answers queries
// until the first update replaces it.
func NewStatus(name string, geometry telemetry.TrackGeometry) *Status {
	return &Status{
		name:        name,
		orientation: core.IdentityQuaternion,
		nose:        geo.Offset(core.Position3D{}, vehicle.NoseOffset, core.IdentityQuaternion),
		geometry:    geometry,
	}
}

func (s *Status) Update(b *telemetry.Bundle) error {
	info, err := b.Info(s.name)
	if err != nil {
		return err
	}
	done, err := b.Done(s.name)
	if err != nil {
		return err
	}

	// the step after a terminal one starts a new episode
	if s.done {
		s.steps = 0
	}
	s.steps++

	s.position = info.Position
	s.orientation = info.Orientation
	s.done = done
	s.geometry = b.Geometry()
	s.nose = geo.Offset(info.Position, vehicle.NoseOffset, info.Orientation)
	s.isOfftrack = info.IsOfftrack
	s.progress = info.Progress
	return nil
}

// Steps counts updates since the episode started.
func (s *Status) Steps() uint {
	return s.steps
}

func (s *Status) Done() bool {
	return s.done
}

// IsOfftrack is the simulator's own verdict. It is independent of
// AllWheelsOnTrack.
func (s *Status) IsOfftrack() bool {
	return s.isOfftrack
}

// Progress is in [0, 100].
func (s *Status) Progress() float64 {
	return s.progress
}

func (s *Status) AllWheelsOnTrack() bool {
	return s.wheelsOnTrack(allTrue)
}

func (s *Status) AnyWheelsOnTrack() bool {
	return s.wheelsOnTrack(anyTrue)
}

func allTrue(v []bool) bool {
	for _, b := range v {
		if !b {
			return false
		}
	}
	return true
}

func anyTrue(v []bool) bool {
	for _, b := range v {
		if b {
			return true
		}
	}
	return false
}

func (s *Status) wheelsOnTrack(condition func([]bool) bool) bool {
	onTrack := make([]bool, len(vehicle.WheelOffsets))
	for i, offset := range vehicle.WheelOffsets {
		wheel := geo.Offset(s.position, offset, s.orientation)
		onTrack[i] = s.geometry.IsOnTrack(geo.PlanarXY(wheel))
	}
	return condition(onTrack)
}

// ClosestWaypoints returns the centre waypoints behind and ahead of the nose.
func (s *Status) ClosestWaypoints() [2]int {
	prev, next := s.geometry.ClosestWaypointIndices(s.geometry.NDistFromPoint(geo.PlanarXY(s.nose)))
	return [2]int{prev, next}
}

// DistanceFromCenter is the unsigned planar distance from the nose to the
// centre line.
func (s *Status) DistanceFromCenter() float64 {
	return s.geometry.CenterLine().Distance(geo.PlanarXY(s.nose))
}

// TrackWidth is the border-to-border width at the nose. The borders are not
// parameterized like the centre line, so the centre point is projected onto
// each border by arc length.
func (s *Status) TrackWidth() float64 {
	ndist := s.geometry.NDistFromPoint(geo.PlanarXY(s.nose))
	center := s.geometry.CenterLine().Interpolate(ndist, true)

	inner := s.geometry.InnerBorder()
	outer := s.geometry.OuterBorder()
	innerPt := inner.Interpolate(inner.Project(center, false), false)
	outerPt := outer.Interpolate(outer.Project(center, false), false)
	return innerPt.Sub(outerPt).Length()
}

// IsLeftOfCenter is relative to the direction of travel: the inner side is
// on the left only when driving counter-clockwise.
func (s *Status) IsLeftOfCenter() bool {
	isInner := s.geometry.Region(geo.PlanarXY(s.nose)).IsInner()
	isClockwise := s.geometry.Direction() == core.Clockwise
	return isInner != isClockwise
}

func (s *Status) ToDict() map[string]any {
	return map[string]any{
		"all_wheels_on_track":  s.AllWheelsOnTrack(),
		"closest_waypoints":    s.ClosestWaypoints(),
		"distance_from_center": s.DistanceFromCenter(),
		"is_offtrack":          s.isOfftrack,
		"progress":             s.progress,
		"steps":                s.steps,
		"track_width":          s.TrackWidth(),
		"is_left_of_center":    s.IsLeftOfCenter(),
	}
}

// clone copies the status. The geometry is shared, it is immutable.
func (s *Status) clone() *Status {
	c := *s
	return &c
}
