// Package worker records the environment state to a storage backend after
// every simulator step.
package worker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trackside/envstate/internal/dispatcher"
	"github.com/trackside/envstate/internal/episode"
	"github.com/trackside/envstate/internal/storage"
	"github.com/trackside/envstate/internal/telemetry"
	"github.com/trackside/envstate/internal/track"
	"github.com/trackside/envstate/pkg/core"
)

// ObserverName is the name the recorder registers under.
const ObserverName = "recorder"

// DefaultBufferSize is the number of pending writes before OnStep blocks.
const DefaultBufferSize = 1024

// ErrClosed is returned for events that arrive after Close.
var ErrClosed = errors.New("recorder closed")

// Source is the state being recorded, normally an *envstate.EnvState. It must
// have seen an event before the recorder does.
type Source interface {
	TrackConfig() core.TrackConfig
	Geometry() telemetry.TrackGeometry
	AgentNames() []string
	Snapshot() core.StepSnapshot
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBufferSize sets how many writes may be pending.
func WithBufferSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithEpisodeContext publishes every started episode to ec.
func WithEpisodeContext(ec *episode.Context) Option {
	return func(r *Recorder) {
		r.episodes = ec
	}
}

// job is one pending backend call. A job with an episode ends the open one
// and starts it.
type job struct {
	episode *core.Episode
	step    *core.StepSnapshot
}

// Recorder is a dispatcher observer. Events are turned into jobs on the
// simulator's goroutine and written by a single writer goroutine in order.
type Recorder struct {
	src        Source
	backend    storage.Backend
	episodes   *episode.Context
	logger     *slog.Logger
	bufferSize int

	jobs chan job
	done chan struct{}

	mu      sync.Mutex
	current *core.Episode
	started bool
	closed  bool

	// writer goroutine only
	open bool

	written           atomic.Int64
	failed            atomic.Int64
	lastWriteDuration atomic.Int64
}

var _ dispatcher.Observer = (*Recorder)(nil)

// New creates a recorder writing src to backend. Call Start before
// registering it.
func New(src Source, backend storage.Backend, opts ...Option) *Recorder {
	r := &Recorder{
		src:        src,
		backend:    backend,
		logger:     slog.Default(),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.jobs = make(chan job, r.bufferSize)
	r.done = make(chan struct{})
	return r
}

// Start initializes the backend and starts the writer goroutine.
func (r *Recorder) Start() error {
	if err := r.backend.Init(); err != nil {
		return err
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	go r.writeLoop()
	return nil
}

// OnReset starts a new episode on the track the source now shows.
func (r *Recorder) OnReset(core.Environment, core.ResetResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.startEpisode()
	return nil
}

// OnStep queues a snapshot of the source. An episode is started first if no
// reset was seen yet.
func (r *Recorder) OnStep(core.Environment, core.StepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.current == nil {
		r.startEpisode()
	}

	s := r.src.Snapshot()
	s.EpisodeID = r.current.ID
	r.jobs <- job{step: &s}
	return nil
}

// startEpisode must be called with mu held.
func (r *Recorder) startEpisode() {
	cfg := r.src.TrackConfig()
	e := &core.Episode{
		ID:        uuid.NewString(),
		StartTime: time.Now().UTC(),
		Track:     track.New(cfg.Name, r.src.Geometry()).Snapshot(),
		Config:    cfg,
		Agents:    r.src.AgentNames(),
	}
	r.current = e
	if r.episodes != nil {
		r.episodes.SetEpisode(e)
	}
	r.jobs <- job{episode: e}
}

// Episode returns the episode being recorded, or nil before the first event.
func (r *Recorder) Episode() *core.Episode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stats returns the number of successful and failed backend writes.
func (r *Recorder) Stats() (written, failed int64) {
	return r.written.Load(), r.failed.Load()
}

// Pending returns the number of queued writes.
func (r *Recorder) Pending() int {
	return len(r.jobs)
}

// GetLastWriteDuration returns how long the last backend call took.
func (r *Recorder) GetLastWriteDuration() time.Duration {
	return time.Duration(r.lastWriteDuration.Load())
}

func (r *Recorder) writeLoop() {
	defer close(r.done)
	for j := range r.jobs {
		r.process(j)
	}
}

func (r *Recorder) process(j job) {
	start := time.Now()
	var err error
	switch {
	case j.episode != nil:
		if r.open {
			err = r.backend.EndEpisode()
			r.open = false
			if err != nil {
				r.logger.Error("failed to end episode", "error", err)
			}
		}
		err = r.backend.StartEpisode(j.episode)
		r.open = err == nil
		if err == nil {
			r.logger.Info("episode started", "episode", j.episode.ID, "track", j.episode.Track.Name, "agents", j.episode.Agents)
		}
	case j.step != nil:
		err = r.backend.RecordStep(j.step)
	}
	r.lastWriteDuration.Store(int64(time.Since(start)))

	if err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to write to backend", "error", err)
		return
	}
	r.written.Add(1)
}

// Close drains pending writes, ends the open episode and closes the backend.
// Events after Close return ErrClosed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.jobs)
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}
	<-r.done

	var errs []error
	if r.open {
		errs = append(errs, r.backend.EndEpisode())
		r.open = false
	}
	errs = append(errs, r.backend.Close())

	written, failed := r.Stats()
	r.logger.Info("recorder closed", "written", written, "failed", failed)
	return errors.Join(errs...)
}
