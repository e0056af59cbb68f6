package episode

import (
	"log/slog"
	"sync"

	"github.com/trackside/envstate/pkg/core"
)

// Context holds the episode currently being recorded
type Context struct {
	mu      sync.RWMutex
	episode *core.Episode
}

// NewContext creates a new Context with a placeholder episode
func NewContext() *Context {
	return &Context{
		episode: &core.Episode{Track: core.TrackSnapshot{Name: "No track loaded"}},
	}
}

// GetEpisode returns the current episode
func (ec *Context) GetEpisode() *core.Episode {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.episode
}

// SetEpisode sets the current episode
func (ec *Context) SetEpisode(e *core.Episode) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.episode = e
}

// LogAttrs returns the episode attributes added to every log record.
func (ec *Context) LogAttrs() []slog.Attr {
	e := ec.GetEpisode()
	attrs := []slog.Attr{slog.String("track", e.Track.Name)}
	if e.ID != "" {
		attrs = append(attrs, slog.String("episode", e.ID))
	}
	return attrs
}
