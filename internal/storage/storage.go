// internal/storage/storage.go
package storage

import "github.com/trackside/envstate/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Episode management
	StartEpisode(e *core.Episode) error
	EndEpisode() error

	// State recording
	RecordStep(s *core.StepSnapshot) error
}

// Exporter is an optional interface for storage backends that produce
// a file per episode.
type Exporter interface {
	GetExportedFilePath() string
}

// SafeName turns a track or episode name into something usable in a file name.
func SafeName(s string) string {
	if s == "" {
		return "unnamed"
	}
	b := []byte(s)
	for i, c := range b {
		switch c {
		case ' ', ':', '/', '\\':
			b[i] = '_'
		}
	}
	return string(b)
}
