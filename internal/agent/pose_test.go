package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/pkg/core"
)

func TestPose_Initial(t *testing.T) {
	p := NewPose(racer)

	assert.InDelta(t, 0.16176, p.X(), 1e-12)
	assert.Equal(t, 0.0, p.Y())
	assert.Equal(t, 0.0, p.Z())
	assert.Equal(t, core.Position3D{}, p.Position())
	assert.Equal(t, 0.0, p.Roll())
	assert.Equal(t, 0.0, p.Pitch())
	assert.Equal(t, 0.0, p.Yaw())
}

func TestPose_FortyFiveDegreeYaw(t *testing.T) {
	p := NewPose(racer)
	info := core.AgentInfo{
		Position:    core.Position3D{X: 1, Y: 2, Z: 3},
		Orientation: core.Quaternion{Z: 0.3827, W: 0.9239},
	}
	require.NoError(t, p.Update(bundle(info, false, core.Action{}, nil)))

	assert.InDelta(t, 1.1144, p.X(), 1e-4)
	assert.InDelta(t, 2.1144, p.Y(), 1e-4)
	assert.InDelta(t, 3.0, p.Z(), 1e-9)
	assert.InDelta(t, 0.0, p.Roll(), 1e-9)
	assert.InDelta(t, 0.0, p.Pitch(), 1e-9)
	assert.InDelta(t, 0.7854, p.Yaw(), 1e-4)
	assert.Equal(t, core.Position3D{X: 1, Y: 2, Z: 3}, p.Position())
	assert.Equal(t, core.Position3D{X: p.X(), Y: p.Y(), Z: p.Z()}, p.Nose())

	d := p.ToDict()
	assert.Len(t, d, 6)
	for _, k := range []string{"x", "y", "z", "roll", "pitch", "yaw"} {
		assert.Contains(t, d, k)
	}
	assert.Equal(t, p.X(), d["x"])
	assert.Equal(t, p.Yaw(), d["yaw"])
}

func TestPose_UpdateMissingAgent(t *testing.T) {
	p := NewPose("other")
	err := p.Update(bundle(noseAt(1, 1), false, core.Action{}, nil))
	assert.ErrorIs(t, err, telemetry.ErrAgentNotInBundle)
}
