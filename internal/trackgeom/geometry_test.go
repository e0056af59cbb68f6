package trackgeom

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/pkg/core"
)

func polar(r, deg float64) geom.XY {
	a := deg * math.Pi / 180
	return geom.XY{X: r * math.Cos(a), Y: r * math.Sin(a)}
}

func buildCircle(t *testing.T, finishLine float64, dir core.TrackDirection) *Geometry {
	t.Helper()
	layout, err := Load("", "circle")
	require.NoError(t, err)
	g, err := New(layout, finishLine, dir)
	require.NoError(t, err)
	return g
}

func TestNew_Circle(t *testing.T) {
	g := buildCircle(t, 0, core.CounterClockwise)

	assert.Equal(t, "circle", g.Name())
	assert.Equal(t, core.CounterClockwise, g.Direction())
	assert.InDelta(t, 31.41, g.Length(), 0.01)
	// 120 unique waypoints plus the closing point
	assert.Len(t, g.CenterLine().Coords(), 121)
	assert.Equal(t, geom.XY{X: 5, Y: 0}, g.CenterLine().Coords()[0])
}

func TestNew_RejectsBadFinishLine(t *testing.T) {
	layout, err := Load("", "circle")
	require.NoError(t, err)

	_, err = New(layout, 1.5, core.CounterClockwise)
	require.Error(t, err)
}

func TestNew_RejectsTooFewWaypoints(t *testing.T) {
	layout := &Layout{Name: "tiny", Waypoints: [][]float64{{0, 0, 0, 0, 0, 0}, {1, 0, 1, 0, 1, 0}}}
	_, err := New(layout, 0, core.CounterClockwise)
	require.Error(t, err)
}

func TestClosestWaypointIndices(t *testing.T) {
	p := polar(5, 46.5)

	tests := []struct {
		name       string
		finishLine float64
		direction  core.TrackDirection
		wantPrev   int
		wantNext   int
	}{
		{name: "counter clockwise", finishLine: 0, direction: core.CounterClockwise, wantPrev: 15, wantNext: 16},
		{name: "finish line rotated", finishLine: 0.25, direction: core.CounterClockwise, wantPrev: 105, wantNext: 106},
		{name: "clockwise", finishLine: 0, direction: core.Clockwise, wantPrev: 104, wantNext: 105},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildCircle(t, tt.finishLine, tt.direction)
			prev, next := g.ClosestWaypointIndices(g.NDistFromPoint(p))
			assert.Equal(t, tt.wantPrev, prev)
			assert.Equal(t, tt.wantNext, next)
		})
	}
}

func TestClosestWaypointIndices_WrapsAtEnd(t *testing.T) {
	g := buildCircle(t, 0, core.CounterClockwise)

	prev, next := g.ClosestWaypointIndices(0.999)
	assert.Equal(t, 119, prev)
	assert.Equal(t, 0, next)

	prev, next = g.ClosestWaypointIndices(0)
	assert.Equal(t, 0, prev)
	assert.Equal(t, 1, next)
}

func TestRegion(t *testing.T) {
	g := buildCircle(t, 0, core.CounterClockwise)

	assert.Equal(t, core.InnerLane, g.Region(polar(4.7, 45)))
	assert.Equal(t, core.InnerOfftrack, g.Region(polar(3.0, 45)))
	assert.Equal(t, core.OuterLane, g.Region(polar(5.3, 45)))
	assert.Equal(t, core.OuterOfftrack, g.Region(polar(7.0, 45)))
}

func TestIsOnTrack(t *testing.T) {
	g := buildCircle(t, 0, core.CounterClockwise)

	assert.True(t, g.IsOnTrack(polar(5, 10)))
	assert.True(t, g.IsOnTrack(polar(4.5, 200)))
	// border vertices count as on track
	assert.True(t, g.IsOnTrack(geom.XY{X: 5.6, Y: 0}))
	assert.True(t, g.IsOnTrack(geom.XY{X: 4.4, Y: 0}))
	assert.False(t, g.IsOnTrack(polar(3, 10)))
	assert.False(t, g.IsOnTrack(polar(6, 10)))
	assert.False(t, g.IsOnTrack(geom.XY{}))
}

func TestLine_ProjectInterpolate(t *testing.T) {
	g := buildCircle(t, 0, core.CounterClockwise)
	center := g.CenterLine()

	assert.InDelta(t, 0.3, center.Distance(geom.XY{X: 5.3, Y: 0}), 1e-6)
	assert.True(t, center.Contains(geom.XY{X: 5, Y: 0}))
	assert.False(t, center.Contains(geom.XY{X: 5.3, Y: 0}))

	vertex := polar(5, 90)
	nd := center.Project(vertex, true)
	assert.InDelta(t, 0.25, nd, 1e-4)
	assert.InDelta(t, nd*center.Length(), center.Project(vertex, false), 1e-9)

	back := center.Interpolate(nd, true)
	assert.InDelta(t, vertex.X, back.X, 1e-4)
	assert.InDelta(t, vertex.Y, back.Y, 1e-4)

	half := center.Interpolate(center.Length()/2, false)
	assert.InDelta(t, -5.0, half.X, 1e-4)
	assert.InDelta(t, 0.0, half.Y, 1e-4)
}

func TestBorderWidth(t *testing.T) {
	g := buildCircle(t, 0, core.CounterClockwise)

	ref := g.CenterLine().Interpolate(g.NDistFromPoint(polar(5.1, 30)), true)
	inner := g.InnerBorder().Interpolate(g.InnerBorder().Project(ref, false), false)
	outer := g.OuterBorder().Interpolate(g.OuterBorder().Project(ref, false), false)
	assert.InDelta(t, 1.2, inner.Sub(outer).Length(), 0.01)
}

func TestOval(t *testing.T) {
	g, err := Builder("")(core.TrackConfig{Name: "oval"})
	require.NoError(t, err)

	assert.InDelta(t, 30.84, g.Length(), 0.01)
	assert.True(t, g.IsOnTrack(geom.XY{X: 0, Y: -3}))
	assert.False(t, g.IsOnTrack(geom.XY{X: 0, Y: 0}))
	assert.Equal(t, core.InnerLane, g.Region(geom.XY{X: 0, Y: -2.8}))
	assert.Equal(t, core.OuterLane, g.Region(geom.XY{X: 0, Y: -3.2}))
}

func TestBuilder_UnknownTrack(t *testing.T) {
	_, err := Builder("")(core.TrackConfig{Name: "nowhere"})
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestLoad_FromDirOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`waypoints:
  - [0, 0, 0, 1, 0, -1]
  - [10, 0, 10, 1, 10, -1]
  - [10, 10, 9, 10, 11, 10]
  - [0, 10, 1, 10, -1, 10]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square.yaml"), data, 0o644))

	layout, err := Load(dir, "square")
	require.NoError(t, err)
	assert.Equal(t, "square", layout.Name)
	assert.Len(t, layout.Waypoints, 4)

	// falls through to the embedded set
	layout, err = Load(dir, "circle")
	require.NoError(t, err)
	assert.Equal(t, "circle", layout.Name)
}

func TestParse_BadRow(t *testing.T) {
	_, err := Parse([]byte("name: bad\nwaypoints:\n  - [1, 2, 3]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waypoint 0")
}

func TestFingerprint(t *testing.T) {
	a, err := Load("", "circle")
	require.NoError(t, err)
	b, err := Load("", "circle")
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Waypoints[3][0] += 0.001
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestBuiltin(t *testing.T) {
	assert.ElementsMatch(t, []string{"circle", "oval"}, Builtin())
}
