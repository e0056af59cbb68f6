package storage

import (
	"errors"

	"github.com/trackside/envstate/pkg/core"
)

// Fanout forwards every call to each of its backends in order. A failing
// backend does not stop the others; the errors are joined.
type Fanout []Backend

func (f Fanout) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range f {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Init() error {
	return f.each(Backend.Init)
}

func (f Fanout) Close() error {
	return f.each(Backend.Close)
}

func (f Fanout) StartEpisode(e *core.Episode) error {
	return f.each(func(b Backend) error { return b.StartEpisode(e) })
}

func (f Fanout) RecordStep(s *core.StepSnapshot) error {
	return f.each(func(b Backend) error { return b.RecordStep(s) })
}

func (f Fanout) EndEpisode() error {
	return f.each(Backend.EndEpisode)
}

// GetExportedFilePath returns the path of the first backend that exported a file.
func (f Fanout) GetExportedFilePath() string {
	for _, b := range f {
		if e, ok := b.(Exporter); ok && e.GetExportedFilePath() != "" {
			return e.GetExportedFilePath()
		}
	}
	return ""
}
