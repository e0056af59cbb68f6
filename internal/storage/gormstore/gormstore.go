// Package gormstore implements the storage.Backend interface on GORM, for
// both Postgres and SQLite, with a queue and a background writer goroutine.
package gormstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trackside/envstate/internal/database"
	"github.com/trackside/envstate/internal/model"
	"github.com/trackside/envstate/internal/model/convert"
	"github.com/trackside/envstate/internal/queue"
	"github.com/trackside/envstate/pkg/core"
	"gorm.io/gorm"
)

var errNoEpisode = errors.New("no episode started")

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 2000
)

// Config holds configuration for the GORM storage backend.
type Config struct {
	FlushInterval time.Duration // how often queued steps are written
	BatchSize     int           // rows per insert transaction

	// SQLite only: periodic VACUUM INTO snapshot of an in-memory database
	DumpPath     string
	DumpInterval time.Duration
}

// Backend writes episodes and agent steps through GORM.
type Backend struct {
	db     *gorm.DB
	cfg    Config
	logger *slog.Logger

	steps   *queue.Queue[model.AgentStep]
	flushMu sync.Mutex

	mu        sync.Mutex
	episode   *model.Episode
	stepCount uint

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new GORM storage backend on db. A nil logger uses slog.Default.
func New(db *gorm.DB, cfg Config, logger *slog.Logger) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		db:     db,
		cfg:    cfg,
		logger: logger.With("backend", db.Name()),
		steps:  queue.New[model.AgentStep](),
	}
}

// Init migrates the schema and starts the writer (and dump) goroutines.
func (b *Backend) Init() error {
	if err := database.Migrate(b.db); err != nil {
		return err
	}
	b.logger.Info("database setup complete")

	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.writeLoop()

	if b.dumps() {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

func (b *Backend) dumps() bool {
	return b.db.Name() == "sqlite" && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0
}

// Close stops the goroutines, writes whatever is still queued and, for a
// dumped SQLite database, takes one last snapshot.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}

	err := b.flush()
	if b.dumps() {
		err = errors.Join(err, database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath))
	}
	return err
}

// StartEpisode stores the track layout (once per fingerprint) and the episode row.
func (b *Backend) StartEpisode(e *core.Episode) error {
	episode := convert.CoreToEpisode(*e)

	layout := episode.TrackLayout
	created, err := layout.GetOrInsert(b.db)
	if err != nil {
		return fmt.Errorf("failed to get or insert track layout: %w", err)
	}
	if created {
		b.logger.Info("new track layout", "track", layout.Name, "fingerprint", layout.Fingerprint)
	}

	episode.TrackLayoutID = layout.ID
	episode.TrackLayout = model.TrackLayout{}
	if err := b.db.Omit("TrackLayout").Create(&episode).Error; err != nil {
		return fmt.Errorf("failed to insert new episode: %w", err)
	}

	b.mu.Lock()
	b.episode = &episode
	b.stepCount = 0
	b.mu.Unlock()
	return nil
}

// RecordStep converts s to one row per agent and queues them for the writer.
func (b *Backend) RecordStep(s *core.StepSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.episode == nil {
		return errNoEpisode
	}

	b.steps.Push(convert.CoreToAgentSteps(*s, b.episode.ID)...)
	b.stepCount++
	return nil
}

// EndEpisode writes the queued steps and stamps the episode's end time and step count.
func (b *Backend) EndEpisode() error {
	b.mu.Lock()
	episode := b.episode
	steps := b.stepCount
	b.episode = nil
	b.mu.Unlock()
	if episode == nil {
		return errNoEpisode
	}

	if err := b.flush(); err != nil {
		return err
	}

	err := b.db.Model(&model.Episode{}).Where("id = ?", episode.ID).Updates(map[string]any{
		"end_time":   time.Now(),
		"step_count": steps,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close episode: %w", err)
	}
	return nil
}

// Steps reads back every agent step of the episode with the given id, in
// step order.
func (b *Backend) Steps(episodeID string) ([]core.AgentSnapshot, error) {
	var episode model.Episode
	if err := b.db.Where("uuid = ?", episodeID).First(&episode).Error; err != nil {
		return nil, err
	}

	var rows []model.AgentStep
	err := b.db.Where("episode_id = ?", episode.ID).Order("sequence, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]core.AgentSnapshot, len(rows))
	for i, r := range rows {
		out[i] = convert.AgentStepToCore(r)
	}
	return out, nil
}

// flush drains the step queue in batches, one transaction per batch. A
// failed batch goes back to the front of the queue.
func (b *Backend) flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for !b.steps.Empty() {
		batch := b.steps.Take(b.cfg.BatchSize)
		err := b.db.Transaction(func(tx *gorm.DB) error {
			return tx.Omit("Episode").Create(&batch).Error
		})
		if err != nil {
			b.steps.Requeue(batch...)
			return fmt.Errorf("error creating agent steps: %w", err)
		}
	}
	return nil
}

func (b *Backend) writeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			n := b.steps.Len()
			if n == 0 {
				continue
			}
			if err := b.flush(); err != nil {
				b.logger.Error("write failed", "error", err, "queued", b.steps.Len())
				continue
			}
			b.logger.Debug("wrote agent steps", "rows", n, "duration", time.Since(start))
		}
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
				b.logger.Error("error dumping to disk", "error", err)
			} else {
				b.logger.Debug("dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
			}
		}
	}
}
