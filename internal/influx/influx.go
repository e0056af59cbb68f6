package influx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/trackside/envstate/pkg/core"
)

// Measurement names written by the backend.
const (
	MeasurementAgentStatus = "agent_status"
	MeasurementEpisode     = "episode"
)

var errNoEpisode = errors.New("no episode started")

// Config holds InfluxDB connection settings.
type Config struct {
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string

	// BackupPath receives gzipped line protocol when the server is unreachable
	BackupPath string
	// Retention of a bucket created on first connect; 0 keeps data forever
	Retention time.Duration
}

// URL returns the server address.
func (c Config) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// Manager writes agent status points to InfluxDB, or to a gzipped
// line-protocol backup file when the server cannot be reached. It implements
// storage.Backend.
type Manager struct {
	cfg    Config
	Logger zerolog.Logger

	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool

	backupFile   *os.File
	BackupWriter *gzip.Writer

	mu      sync.Mutex
	episode *core.Episode
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		Logger: log,
	}
}

// Init connects to InfluxDB, falling back to the backup file.
func (m *Manager) Init() error {
	return m.Connect(context.Background())
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect(ctx context.Context) error {
	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	if m.cfg.BackupPath == "" {
		return errors.New("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}

	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: int64(m.cfg.Retention / time.Second),
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(lineProtocol, "\n") {
		lineProtocol += "\n"
	}
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// StartEpisode writes an episode start marker.
func (m *Manager) StartEpisode(e *core.Episode) error {
	m.mu.Lock()
	m.episode = e
	m.mu.Unlock()
	return m.WritePoint(EpisodePoint(e, "start", e.StartTime))
}

// RecordStep writes one agent_status point per agent.
func (m *Manager) RecordStep(s *core.StepSnapshot) error {
	m.mu.Lock()
	e := m.episode
	m.mu.Unlock()
	if e == nil {
		return errNoEpisode
	}

	for _, p := range StepPoints(e, s) {
		if err := m.WritePoint(p); err != nil {
			return err
		}
	}
	return nil
}

// EndEpisode writes an episode end marker and flushes pending points.
func (m *Manager) EndEpisode() error {
	m.mu.Lock()
	e := m.episode
	m.episode = nil
	m.mu.Unlock()
	if e == nil {
		return errNoEpisode
	}

	if err := m.WritePoint(EpisodePoint(e, "end", time.Now())); err != nil {
		return err
	}
	if m.IsValid {
		m.Writer.Flush()
	} else if m.BackupWriter != nil {
		return m.BackupWriter.Flush()
	}
	return nil
}

// Close flushes and releases the client and the backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	var err error
	if m.BackupWriter != nil {
		err = errors.Join(m.BackupWriter.Close(), m.backupFile.Close())
		m.BackupWriter = nil
	}
	return err
}

// EpisodePoint marks the start or end of an episode.
func EpisodePoint(e *core.Episode, event string, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementEpisode,
		map[string]string{
			"episode": e.ID,
			"track":   e.Track.Name,
		},
		map[string]any{
			"event":  event,
			"agents": len(e.Agents),
		},
		at,
	)
}

// StepPoints turns a step snapshot into one agent_status point per agent.
func StepPoints(e *core.Episode, s *core.StepSnapshot) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(s.Agents))
	for _, a := range s.Agents {
		points = append(points, influxdb2_write.NewPoint(
			MeasurementAgentStatus,
			map[string]string{
				"episode": e.ID,
				"track":   e.Track.Name,
				"agent":   a.Name,
			},
			map[string]any{
				"sequence":             int64(s.Sequence),
				"steps":                int64(a.Steps),
				"x":                    a.X,
				"y":                    a.Y,
				"z":                    a.Z,
				"yaw":                  a.Yaw,
				"speed":                a.Speed,
				"steering_angle":       a.SteeringAngle,
				"progress":             a.Progress,
				"distance_from_center": a.DistanceFromCenter,
				"track_width":          a.TrackWidth,
				"is_offtrack":          a.IsOfftrack,
				"all_wheels_on_track":  a.AllWheelsOnTrack,
				"is_left_of_center":    a.IsLeftOfCenter,
				"done":                 a.Done,
			},
			s.Time,
		))
	}
	return points
}
