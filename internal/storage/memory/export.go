// internal/storage/memory/export.go
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/trackside/envstate/internal/storage"
	"github.com/trackside/envstate/pkg/core"
)

// EpisodeExport is the root JSON structure
type EpisodeExport struct {
	EpisodeID   string             `json:"episodeId"`
	StartTime   string             `json:"startTime"`
	Config      core.TrackConfig   `json:"config"`
	Track       core.TrackSnapshot `json:"track"`
	EndSequence uint               `json:"endSequence"`
	Agents      []AgentJSON        `json:"agents"`
}

// AgentJSON is one agent's trajectory
type AgentJSON struct {
	Name string `json:"name"`
	// [sequence, [x, y, z], yaw, speed, steeringAngle, progress,
	//  isOfftrack, allWheelsOnTrack, [prev, next], distanceFromCenter, done]
	States [][]any `json:"states"`
}

// exportJSON writes the episode data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := fmt.Sprintf("%s_%s", storage.SafeName(b.episode.Track.Name), storage.SafeName(b.episode.ID))

	var filename string
	if b.cfg.CompressOutput {
		filename = name + ".json.gz"
	} else {
		filename = name + ".json"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() EpisodeExport {
	export := EpisodeExport{
		EpisodeID: b.episode.ID,
		StartTime: b.episode.StartTime.UTC().Format("2006-01-02T15:04:05.000Z"),
		Config:    b.episode.Config,
		Track:     b.episode.Track,
		Agents:    make([]AgentJSON, 0, len(b.order)),
	}

	var maxSeq uint = 0

	for _, name := range b.order {
		record := b.agents[name]
		agent := AgentJSON{
			Name:   record.Name,
			States: make([][]any, 0, len(record.States)),
		}

		for i, s := range record.States {
			seq := record.Sequences[i]
			agent.States = append(agent.States, []any{
				seq,
				[]float64{s.X, s.Y, s.Z},
				s.Yaw,
				s.Speed,
				s.SteeringAngle,
				s.Progress,
				boolToInt(s.IsOfftrack),
				boolToInt(s.AllWheelsOnTrack),
				[]int{s.ClosestWaypoints[0], s.ClosestWaypoints[1]},
				s.DistanceFromCenter,
				boolToInt(s.Done),
			})
			if seq > maxSeq {
				maxSeq = seq
			}
		}

		export.Agents = append(export.Agents, agent)
	}

	export.EndSequence = maxSeq
	return export
}

func (b *Backend) writeJSON(path string, data EpisodeExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data EpisodeExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
