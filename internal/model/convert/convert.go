// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/trackside/envstate/internal/model"
	"github.com/trackside/envstate/pkg/core"
)

// jsonToWaypoints converts a [[x, y], ...] column back to points.
func jsonToWaypoints(data []byte) []core.Point2D {
	var pairs [][2]float64
	if len(data) == 0 || json.Unmarshal(data, &pairs) != nil {
		return nil
	}
	points := make([]core.Point2D, len(pairs))
	for i, p := range pairs {
		points[i] = core.Point2D{X: p[0], Y: p[1]}
	}
	return points
}

// TrackLayoutToCore converts a GORM TrackLayout to a core.TrackSnapshot.
func TrackLayoutToCore(t model.TrackLayout) core.TrackSnapshot {
	return core.TrackSnapshot{
		Name:        t.Name,
		IsClockwise: t.IsClockwise,
		TrackLength: t.TrackLength,
		Waypoints:   jsonToWaypoints(t.Waypoints),
	}
}

// EpisodeToCore converts a GORM Episode, with its TrackLayout loaded, to a core.Episode.
func EpisodeToCore(e model.Episode) core.Episode {
	var agents []string
	if len(e.Agents) > 0 {
		_ = json.Unmarshal(e.Agents, &agents)
	}

	direction := core.CounterClockwise
	if e.TrackLayout.IsClockwise {
		direction = core.Clockwise
	}

	return core.Episode{
		ID:        e.UUID,
		StartTime: e.StartTime,
		Track:     TrackLayoutToCore(e.TrackLayout),
		Config: core.TrackConfig{
			Name:       e.TrackLayout.Name,
			FinishLine: e.TrackLayout.FinishLine,
			Direction:  direction,
		},
		Agents: agents,
	}
}

// AgentStepToCore converts a GORM AgentStep to a core.AgentSnapshot.
func AgentStepToCore(s model.AgentStep) core.AgentSnapshot {
	var closest [2]int
	if len(s.ClosestWaypoints) > 0 {
		_ = json.Unmarshal(s.ClosestWaypoints, &closest)
	}

	return core.AgentSnapshot{
		Name:               s.AgentName,
		SteeringAngle:      s.SteeringAngle,
		Speed:              s.Speed,
		X:                  s.X,
		Y:                  s.Y,
		Z:                  s.Z,
		Roll:               s.Roll,
		Pitch:              s.Pitch,
		Yaw:                s.Yaw,
		AllWheelsOnTrack:   s.AllWheelsOnTrack,
		ClosestWaypoints:   closest,
		DistanceFromCenter: s.DistanceFromCenter,
		IsOfftrack:         s.IsOfftrack,
		Progress:           s.Progress,
		Steps:              s.Steps,
		TrackWidth:         s.TrackWidth,
		IsLeftOfCenter:     s.IsLeftOfCenter,
		Done:               s.Done,
	}
}
