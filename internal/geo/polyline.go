package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// PlanarXY drops the z component of v.
func PlanarXY(v r3.Vec) geom.XY {
	return geom.XY{X: v.X, Y: v.Y}
}

// XYPoint builds a 2D point geometry.
func XYPoint(xy geom.XY) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: xy, Type: geom.DimXY})
}

// LineStringFromXYs builds a 2D line string from at least two points.
func LineStringFromXYs(points []geom.XY) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.X, p.Y)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// ClosedRing builds a line string whose last point equals its first,
// appending the first point when the input is open.
func ClosedRing(points []geom.XY) (geom.LineString, error) {
	if len(points) < 3 {
		return geom.LineString{}, fmt.Errorf("ring must have at least 3 points, got %d", len(points))
	}

	ring := make([]geom.XY, len(points), len(points)+1)
	copy(ring, points)
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return LineStringFromXYs(ring)
}

// XYs returns the vertices of ls in order.
func XYs(ls geom.LineString) []geom.XY {
	seq := ls.Coordinates()
	n := seq.Length()
	out := make([]geom.XY, n)
	for i := 0; i < n; i++ {
		out[i] = seq.GetXY(i)
	}
	return out
}
