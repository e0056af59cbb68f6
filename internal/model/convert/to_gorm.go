package convert

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/trackside/envstate/internal/model"
	"github.com/trackside/envstate/pkg/core"
	"gorm.io/datatypes"
)

// waypointsToJSON converts waypoints to datatypes.JSON as [[x, y], ...].
func waypointsToJSON(points []core.Point2D) datatypes.JSON {
	if len(points) == 0 {
		return datatypes.JSON("[]")
	}
	pairs := make([][2]float64, len(points))
	for i, p := range points {
		pairs[i] = [2]float64{p.X, p.Y}
	}
	data, _ := json.Marshal(pairs)
	return datatypes.JSON(data)
}

// stringsToJSON converts a []string to datatypes.JSON for DB storage.
func stringsToJSON(s []string) datatypes.JSON {
	if len(s) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(s)
	return datatypes.JSON(data)
}

// TrackFingerprint identifies a driven layout by name, direction and waypoint
// coordinates.
func TrackFingerprint(t core.TrackSnapshot) string {
	h := xxhash.New()
	_, _ = h.WriteString(t.Name)
	if t.IsClockwise {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	var buf [8]byte
	for _, p := range t.Waypoints {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.X))
		_, _ = h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Y))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// CoreToTrackLayout converts a track snapshot and the config that produced it
// to a GORM model.TrackLayout.
func CoreToTrackLayout(t core.TrackSnapshot, cfg core.TrackConfig) model.TrackLayout {
	return model.TrackLayout{
		Name:        t.Name,
		Fingerprint: TrackFingerprint(t),
		IsClockwise: t.IsClockwise,
		FinishLine:  cfg.FinishLine,
		TrackLength: t.TrackLength,
		Waypoints:   waypointsToJSON(t.Waypoints),
	}
}

// CoreToEpisode converts a core.Episode to a GORM model.Episode.
// The track layout is converted but not linked; callers set TrackLayoutID.
func CoreToEpisode(e core.Episode) model.Episode {
	return model.Episode{
		UUID:        e.ID,
		StartTime:   e.StartTime,
		TrackLayout: CoreToTrackLayout(e.Track, e.Config),
		Agents:      stringsToJSON(e.Agents),
	}
}

// CoreToAgentSteps flattens a step snapshot into one row per agent.
func CoreToAgentSteps(s core.StepSnapshot, episodeID uint) []model.AgentStep {
	rows := make([]model.AgentStep, 0, len(s.Agents))
	for _, a := range s.Agents {
		closest, _ := json.Marshal(a.ClosestWaypoints)
		rows = append(rows, model.AgentStep{
			Time:               s.Time,
			EpisodeID:          episodeID,
			Sequence:           s.Sequence,
			AgentName:          a.Name,
			SteeringAngle:      a.SteeringAngle,
			Speed:              a.Speed,
			X:                  a.X,
			Y:                  a.Y,
			Z:                  a.Z,
			Roll:               a.Roll,
			Pitch:              a.Pitch,
			Yaw:                a.Yaw,
			Steps:              a.Steps,
			Done:               a.Done,
			IsOfftrack:         a.IsOfftrack,
			AllWheelsOnTrack:   a.AllWheelsOnTrack,
			Progress:           a.Progress,
			ClosestWaypoints:   datatypes.JSON(closest),
			DistanceFromCenter: a.DistanceFromCenter,
			TrackWidth:         a.TrackWidth,
			IsLeftOfCenter:     a.IsLeftOfCenter,
		})
	}
	return rows
}

