package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/internal/trackgeom"
	"github.com/trackside/envstate/pkg/core"
)

func build(t *testing.T, cfg core.TrackConfig) telemetry.TrackGeometry {
	t.Helper()
	g, err := trackgeom.Builder("")(cfg)
	require.NoError(t, err)
	return g
}

func TestTrack_Circle(t *testing.T) {
	tr := New("circle", build(t, core.TrackConfig{Name: "circle"}))

	assert.False(t, tr.IsClockwise())
	assert.InDelta(t, 31.41, tr.Length(), 0.01)

	wps := tr.Waypoints()
	require.Len(t, wps, 121)
	assert.Equal(t, [2]float64{5, 0}, wps[0])
	assert.Equal(t, wps[0], wps[len(wps)-1], "closing vertex is kept")

	// restartable: every call yields the same sequence
	assert.Equal(t, wps, tr.Waypoints())
	wps[0][0] = 99
	assert.Equal(t, 5.0, tr.Waypoints()[0][0])
}

func TestTrack_WaypointsMatchCenterLine(t *testing.T) {
	for _, cfg := range []core.TrackConfig{
		{Name: "circle"},
		{Name: "oval", Direction: core.Clockwise},
		{Name: "circle", FinishLine: 0.25},
	} {
		g := build(t, cfg)
		coords := g.CenterLine().Coords()

		wps := New(cfg.Name, g).Waypoints()
		require.Len(t, wps, len(coords), cfg.Name)
		for i, c := range coords {
			assert.Equal(t, [2]float64{c.X, c.Y}, wps[i], "%s vertex %d", cfg.Name, i)
		}
	}
}

func TestTrack_UpdateSwapsGeometry(t *testing.T) {
	tr := New("circle", build(t, core.TrackConfig{Name: "circle"}))
	oval := build(t, core.TrackConfig{Name: "oval", Direction: core.Clockwise})

	require.NoError(t, tr.Update(telemetry.NewBundle(nil, nil, nil, oval)))
	assert.True(t, tr.IsClockwise())
	assert.InDelta(t, 30.84, tr.Length(), 0.01)
}

func TestTrack_ToDict(t *testing.T) {
	tr := New("circle", build(t, core.TrackConfig{Name: "circle"}))

	d := tr.ToDict()
	assert.Len(t, d, 3)
	assert.Equal(t, false, d["is_clockwise"])
	assert.Equal(t, tr.Length(), d["track_length"])
	assert.Equal(t, tr.Waypoints(), d["waypoints"])
}

func TestTrack_CloneAndSnapshot(t *testing.T) {
	tr := New("circle", build(t, core.TrackConfig{Name: "circle"}))
	c := tr.Clone()
	assert.NotSame(t, tr, c)
	assert.Equal(t, tr.ToDict(), c.ToDict())

	c.SetName("renamed")
	assert.Equal(t, "circle", tr.Name())

	s := tr.Snapshot()
	assert.Equal(t, "circle", s.Name)
	assert.False(t, s.IsClockwise)
	assert.Len(t, s.Waypoints, 121)
	assert.Equal(t, core.Point2D{X: 5, Y: 0}, s.Waypoints[0])
}
