package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/trackside/envstate/pkg/core"
)

const defaultInterval = time.Second

// Recorder is what the monitor reports on, normally a *worker.Recorder.
type Recorder interface {
	Episode() *core.Episode
	Stats() (written, failed int64)
	Pending() int
	GetLastWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Recorder   Recorder
	Logger     *slog.Logger
	StatusPath string        // rewritten on every tick; empty only logs
	Interval   time.Duration // defaults to one second
}

// Status is one report of the recorder's progress.
type Status struct {
	Time                time.Time `json:"time"`
	EpisodeID           string    `json:"episodeId"`
	Track               string    `json:"track"`
	Written             int64     `json:"written"`
	Failed              int64     `json:"failed"`
	Pending             int       `json:"pending"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current recorder status. ok is false before
// the first episode starts.
func (s *Service) GetProgramStatus() (status Status, ok bool) {
	e := s.deps.Recorder.Episode()
	if e == nil {
		return Status{}, false
	}
	written, failed := s.deps.Recorder.Stats()
	return Status{
		Time:                time.Now(),
		EpisodeID:           e.ID,
		Track:               e.Track.Name,
		Written:             written,
		Failed:              failed,
		Pending:             s.deps.Recorder.Pending(),
		LastWriteDurationMs: float32(s.deps.Recorder.GetLastWriteDuration().Microseconds()) / 1000,
	}, true
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopChan, s.done = stop, done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				s.report()
				return
			case <-ticker.C:
				s.report()
			}
		}
	}()

	return nil
}

func (s *Service) report() {
	status, ok := s.GetProgramStatus()
	if !ok {
		return
	}
	s.deps.Logger.Debug("Recorder status",
		"episode", status.EpisodeID,
		"written", status.Written,
		"failed", status.Failed,
		"pending", status.Pending,
		"lastWriteMs", status.LastWriteDurationMs,
	)

	if s.deps.StatusPath == "" {
		return
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		s.deps.Logger.Error("Error encoding status", "error", err)
		return
	}
	if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err, "path", s.deps.StatusPath)
	}
}

// Stop stops the status monitor after a final report.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
