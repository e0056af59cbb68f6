// Package trackgeom answers track-relative spatial queries over a waypoint
// layout: projection onto the centre line, waypoint lookup, lane regions and
// the on-track test.
package trackgeom

import (
	"fmt"
	"math"
	"sort"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/trackside/envstate/internal/geo"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/pkg/core"
)

// Geometry is an immutable track built from a Layout. It is safe for
// concurrent use.
type Geometry struct {
	name      string
	direction core.TrackDirection

	center *line
	inner  *line
	outer  *line

	// waypointNDist[i] is the normalized arc position of waypoint i on the
	// centre line.
	waypointNDist []float64

	road       geom.Polygon
	innerArea  geom.Polygon
	centerArea geom.Polygon
	outerArea  geom.Polygon
}

var _ telemetry.TrackGeometry = (*Geometry)(nil)

// New builds the geometry for layout, rotating the waypoints so the one
// nearest finishLine (a normalized distance) comes first, and reversing the
// order of travel for clockwise tracks.
func New(layout *Layout, finishLine float64, direction core.TrackDirection) (*Geometry, error) {
	rows := layout.uniqueRows()
	if len(rows) < 3 {
		return nil, fmt.Errorf("track %q: need at least 3 waypoints, got %d", layout.Name, len(rows))
	}

	start, err := nearestRow(rows, finishLine)
	if err != nil {
		return nil, fmt.Errorf("track %q: %w", layout.Name, err)
	}
	rows = append(rows[start:], rows[:start]...)

	if direction == core.Clockwise {
		// keep the start row first, reverse the rest
		for i, j := 1, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	centerPts := make([]geom.XY, len(rows))
	innerPts := make([]geom.XY, len(rows))
	outerPts := make([]geom.XY, len(rows))
	for i, r := range rows {
		centerPts[i] = geom.XY{X: r[0], Y: r[1]}
		innerPts[i] = geom.XY{X: r[2], Y: r[3]}
		outerPts[i] = geom.XY{X: r[4], Y: r[5]}
	}

	g := &Geometry{name: layout.Name, direction: direction}
	if g.center, err = newLine(centerPts); err != nil {
		return nil, fmt.Errorf("track %q center line: %w", layout.Name, err)
	}
	if g.inner, err = newLine(innerPts); err != nil {
		return nil, fmt.Errorf("track %q inner border: %w", layout.Name, err)
	}
	if g.outer, err = newLine(outerPts); err != nil {
		return nil, fmt.Errorf("track %q outer border: %w", layout.Name, err)
	}

	g.waypointNDist = make([]float64, len(rows))
	for i := range rows {
		g.waypointNDist[i] = g.center.cum[i] / g.center.length
	}

	g.innerArea = g.inner.polygon()
	g.centerArea = g.center.polygon()
	g.outerArea = g.outer.polygon()
	g.road = geom.NewPolygon([]geom.LineString{g.outer.ls, g.inner.ls})
	if err := g.road.Validate(); err != nil {
		return nil, fmt.Errorf("track %q road polygon: %w", layout.Name, err)
	}

	return g, nil
}

// nearestRow returns the index of the centre waypoint whose normalized arc
// position is closest to ndist.
func nearestRow(rows [][6]float64, ndist float64) (int, error) {
	if ndist < 0 || ndist > 1 || math.IsNaN(ndist) {
		return 0, fmt.Errorf("finish line %v outside [0, 1]", ndist)
	}

	cum := make([]float64, len(rows)+1)
	for i := 1; i <= len(rows); i++ {
		a, b := rows[i-1], rows[i%len(rows)]
		cum[i] = cum[i-1] + math.Hypot(b[0]-a[0], b[1]-a[1])
	}
	total := cum[len(rows)]
	if total == 0 {
		return 0, fmt.Errorf("degenerate center line")
	}

	best, bestDiff := 0, math.Inf(1)
	for i := 0; i < len(rows); i++ {
		if diff := math.Abs(cum[i]/total - ndist); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best, nil
}

func (g *Geometry) Name() string {
	return g.name
}

func (g *Geometry) Direction() core.TrackDirection {
	return g.direction
}

// Length is the centre line length in meters.
func (g *Geometry) Length() float64 {
	return g.center.length
}

func (g *Geometry) CenterLine() telemetry.Line {
	return g.center
}

func (g *Geometry) InnerBorder() telemetry.Line {
	return g.inner
}

func (g *Geometry) OuterBorder() telemetry.Line {
	return g.outer
}

func (g *Geometry) NDistFromPoint(p geom.XY) float64 {
	return g.center.Project(p, true)
}

// ClosestWaypointIndices returns the waypoints either side of ndist along the
// direction of travel.
func (g *Geometry) ClosestWaypointIndices(ndist float64) (prev, next int) {
	n := len(g.waypointNDist)
	// first waypoint strictly past ndist, minus one
	prev = sort.Search(n, func(i int) bool { return g.waypointNDist[i] > ndist }) - 1
	if prev < 0 {
		prev = 0
	}
	return prev, (prev + 1) % n
}

func (g *Geometry) Region(p geom.XY) core.TrackRegion {
	pt := geo.XYPoint(p).AsGeometry()
	switch {
	case geom.Intersects(g.innerArea.AsGeometry(), pt):
		return core.InnerOfftrack
	case geom.Intersects(g.centerArea.AsGeometry(), pt):
		return core.InnerLane
	case geom.Intersects(g.outerArea.AsGeometry(), pt):
		return core.OuterLane
	default:
		return core.OuterOfftrack
	}
}

// IsOnTrack reports whether p lies on the road between the borders, the
// borders themselves included.
func (g *Geometry) IsOnTrack(p geom.XY) bool {
	return geom.Intersects(g.road.AsGeometry(), geo.XYPoint(p).AsGeometry())
}
