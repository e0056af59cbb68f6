// Package replay drives observers from a recorded telemetry log: one JSON
// record per line, optionally zstd compressed.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/trackside/envstate/internal/dispatcher"
	"github.com/trackside/envstate/pkg/core"
)

const maxLineSize = 16 * 1024 * 1024

// Simulator replays a log through a dispatcher. It reports the track and
// roster of the most recent reset, so observers see the same environment
// the live simulator showed them.
type Simulator struct {
	*dispatcher.Dispatcher

	logger *slog.Logger
	src    io.Closer
	sc     *bufio.Scanner
	line   int

	first *Record // the opening reset, published by Run

	mu     sync.RWMutex
	track  core.TrackConfig
	agents []string
	steps  int
	resets int
}

// Open opens a log file. Files ending in .zst are zstd decompressed.
func Open(path string, d *dispatcher.Dispatcher, logger *slog.Logger) (*Simulator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.ReadCloser = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open zstd reader: %w", err)
		}
		r = closeBoth{dec.IOReadCloser(), f}
	}

	s, err := New(r, d, logger)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

type closeBoth struct {
	io.ReadCloser
	f *os.File
}

func (c closeBoth) Close() error {
	return errors.Join(c.ReadCloser.Close(), c.f.Close())
}

// New reads the first record of r, which must be a reset naming the track
// and the agents, so Track and Agent answer before Run starts.
func New(r io.Reader, d *dispatcher.Dispatcher, logger *slog.Logger) (*Simulator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulator{
		Dispatcher: d,
		logger:     logger,
		sc:         bufio.NewScanner(r),
	}
	if c, ok := r.(io.Closer); ok {
		s.src = c
	}
	s.sc.Buffer(make([]byte, 64*1024), maxLineSize)

	rec, err := s.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &RecordError{Line: 1, Reason: "empty log"}
		}
		return nil, err
	}
	if rec.Type != TypeReset || rec.Track == nil || len(rec.Agents) == 0 {
		return nil, &RecordError{Line: s.line, Reason: "log must start with a reset naming the track and agents"}
	}
	s.track = rec.Track.config()
	s.agents = rec.Agents
	s.first = rec
	return s, nil
}

// next returns the next non-blank record, or io.EOF.
func (s *Simulator) next() (*Record, error) {
	for s.sc.Scan() {
		s.line++
		line := s.sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &RecordError{Line: s.line, Reason: err.Error()}
		}
		if err := rec.validate(s.line); err != nil {
			return nil, err
		}
		return &rec, nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", s.line+1, err)
	}
	return nil, io.EOF
}

// Track implements core.Environment.
func (s *Simulator) Track() core.TrackConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track
}

// Agent implements core.Environment.
func (s *Simulator) Agent() core.AgentRoster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return roster(s.agents)
}

// Steps returns how many step records have been published.
func (s *Simulator) Steps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// Resets returns how many reset records have been published.
func (s *Simulator) Resets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resets
}

// Run publishes every record in order until the log ends, an observer
// fails, or ctx is cancelled. Cancellation is checked between records.
func (s *Simulator) Run(ctx context.Context) error {
	defer s.close()

	if s.first != nil {
		rec := s.first
		s.first = nil
		if err := s.publish(rec); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := s.next()
		if errors.Is(err, io.EOF) {
			s.logger.Info("replay finished", "steps", s.Steps(), "resets", s.Resets())
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.publish(rec); err != nil {
			return err
		}
	}
}

func (s *Simulator) publish(rec *Record) error {
	switch rec.Type {
	case TypeReset:
		s.mu.Lock()
		if rec.Track != nil {
			s.track = rec.Track.config()
		}
		if len(rec.Agents) > 0 {
			s.agents = rec.Agents
		}
		s.resets++
		s.mu.Unlock()

		if err := s.PublishReset(s, core.ResetResult{Observations: rec.Observations}); err != nil {
			return fmt.Errorf("line %d: %w", s.line, err)
		}
	case TypeStep:
		if err := s.PublishStep(s, rec.stepResult()); err != nil {
			return fmt.Errorf("line %d: %w", s.line, err)
		}
		s.mu.Lock()
		s.steps++
		s.mu.Unlock()
	}
	return nil
}

func (s *Simulator) close() {
	if s.src != nil {
		if err := s.src.Close(); err != nil {
			s.logger.Warn("closing replay source", "error", err)
		}
		s.src = nil
	}
}
