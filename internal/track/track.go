// Package track exports the track-level summary: direction, length and centre
// waypoints.
package track

import (
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/pkg/core"
)

// Track holds the geometry of the most recent bundle.
type Track struct {
	name     string
	geometry telemetry.TrackGeometry
}

func New(name string, geometry telemetry.TrackGeometry) *Track {
	return &Track{name: name, geometry: geometry}
}

func (t *Track) Update(b *telemetry.Bundle) error {
	t.geometry = b.Geometry()
	return nil
}

// SetName records the layout name reported by the simulator.
func (t *Track) SetName(name string) {
	t.name = name
}

func (t *Track) Name() string {
	return t.name
}

func (t *Track) IsClockwise() bool {
	return t.geometry.Direction() == core.Clockwise
}

// Length is the centre line length in meters.
func (t *Track) Length() float64 {
	return t.geometry.Length()
}

// Waypoints returns a fresh copy of the centre line vertices exactly as the
// geometry holds them. The ring's closing vertex repeats the first one.
func (t *Track) Waypoints() [][2]float64 {
	coords := t.geometry.CenterLine().Coords()
	out := make([][2]float64, len(coords))
	for i, c := range coords {
		out[i] = [2]float64{c.X, c.Y}
	}
	return out
}

func (t *Track) ToDict() map[string]any {
	return map[string]any{
		"is_clockwise": t.IsClockwise(),
		"track_length": t.Length(),
		"waypoints":    t.Waypoints(),
	}
}

// Clone returns a copy sharing the immutable geometry.
func (t *Track) Clone() *Track {
	c := *t
	return &c
}

func (t *Track) Snapshot() core.TrackSnapshot {
	wps := t.Waypoints()
	waypoints := make([]core.Point2D, len(wps))
	for i, w := range wps {
		waypoints[i] = core.Point2D{X: w[0], Y: w[1]}
	}
	return core.TrackSnapshot{
		Name:        t.name,
		IsClockwise: t.IsClockwise(),
		TrackLength: t.Length(),
		Waypoints:   waypoints,
	}
}
