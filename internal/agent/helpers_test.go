package agent

import (
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/internal/trackgeom"
	"github.com/trackside/envstate/internal/vehicle"
	"github.com/trackside/envstate/pkg/core"
)

const racer = "racer"

func circleTrack(t *testing.T, dir core.TrackDirection) telemetry.TrackGeometry {
	t.Helper()
	g, err := trackgeom.Builder("")(core.TrackConfig{Name: "circle", Direction: dir})
	require.NoError(t, err)
	return g
}

func bundle(info core.AgentInfo, done bool, action core.Action, g telemetry.TrackGeometry) *telemetry.Bundle {
	return telemetry.NewBundle(
		map[string]bool{racer: done},
		map[string]core.Action{racer: action},
		map[string]core.AgentInfo{racer: info},
		g,
	)
}

// noseAt returns the origin that puts the nose of an unrotated car at (x, y).
func noseAt(x, y float64) core.AgentInfo {
	return core.AgentInfo{
		Position:    core.Position3D{X: x - vehicle.NoseOffset.X, Y: y},
		Orientation: core.IdentityQuaternion,
	}
}

// fixedGeometry answers Region and Direction with fixed values.
type fixedGeometry struct {
	region    core.TrackRegion
	direction core.TrackDirection
}

func (f fixedGeometry) Direction() core.TrackDirection            { return f.direction }
func (f fixedGeometry) Length() float64                           { return 0 }
func (f fixedGeometry) CenterLine() telemetry.Line                { return nil }
func (f fixedGeometry) InnerBorder() telemetry.Line               { return nil }
func (f fixedGeometry) OuterBorder() telemetry.Line               { return nil }
func (f fixedGeometry) NDistFromPoint(geom.XY) float64            { return 0 }
func (f fixedGeometry) ClosestWaypointIndices(float64) (int, int) { return 0, 1 }
func (f fixedGeometry) Region(geom.XY) core.TrackRegion           { return f.region }
func (f fixedGeometry) IsOnTrack(geom.XY) bool                    { return true }
