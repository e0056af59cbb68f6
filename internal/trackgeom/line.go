package trackgeom

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/trackside/envstate/internal/geo"
)

// onLineTolerance is how far a point may sit from a line and still count as
// lying on it.
const onLineTolerance = 1e-9

// line is a closed track line with cumulative arc lengths precomputed for
// projection.
type line struct {
	ls     geom.LineString
	coords []geom.XY
	cum    []float64 // cum[i] is the arc length from coords[0] to coords[i]
	length float64
}

func newLine(points []geom.XY) (*line, error) {
	ls, err := geo.ClosedRing(points)
	if err != nil {
		return nil, err
	}
	coords := geo.XYs(ls)

	cum := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		cum[i] = cum[i-1] + coords[i].Sub(coords[i-1]).Length()
	}

	return &line{
		ls:     ls,
		coords: coords,
		cum:    cum,
		length: ls.Length(),
	}, nil
}

func (l *line) Length() float64 {
	return l.length
}

// Coords returns the ring vertices, closing point included.
func (l *line) Coords() []geom.XY {
	out := make([]geom.XY, len(l.coords))
	copy(out, l.coords)
	return out
}

func (l *line) Project(p geom.XY, normalized bool) float64 {
	best := math.Inf(1)
	var at float64
	for i := 0; i+1 < len(l.coords); i++ {
		a, b := l.coords[i], l.coords[i+1]
		ab := b.Sub(a)
		segLenSq := ab.Dot(ab)

		t := 0.0
		if segLenSq > 0 {
			t = p.Sub(a).Dot(ab) / segLenSq
			t = math.Max(0, math.Min(1, t))
		}
		q := a.Add(ab.Scale(t))
		if d := p.Sub(q).Length(); d < best {
			best = d
			at = l.cum[i] + t*(l.cum[i+1]-l.cum[i])
		}
	}
	if normalized {
		if l.length == 0 {
			return 0
		}
		return at / l.length
	}
	return at
}

func (l *line) Interpolate(d float64, normalized bool) geom.XY {
	fraction := d
	if !normalized {
		if l.length == 0 {
			return l.coords[0]
		}
		fraction = d / l.length
	}
	xy, ok := l.ls.InterpolatePoint(fraction).XY()
	if !ok {
		return l.coords[0]
	}
	return xy
}

func (l *line) Distance(p geom.XY) float64 {
	d, ok := geom.Distance(l.ls.AsGeometry(), geo.XYPoint(p).AsGeometry())
	if !ok {
		return math.Inf(1)
	}
	return d
}

func (l *line) Contains(p geom.XY) bool {
	return l.Distance(p) <= onLineTolerance
}

// polygon returns the area enclosed by the ring.
func (l *line) polygon() geom.Polygon {
	return geom.NewPolygon([]geom.LineString{l.ls})
}
