package gormstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/internal/database"
	"github.com/trackside/envstate/internal/model"
	"github.com/trackside/envstate/internal/storage"
	"github.com/trackside/envstate/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

// newTestBackend creates a Backend on a private in-memory SQLite database.
// The writer ticks once an hour so tests decide when rows are written.
func newTestBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)

	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour
	}
	b := New(db, cfg, nil)
	require.NoError(t, b.Init())
	return b
}

func testEpisode(id string) *core.Episode {
	return &core.Episode{
		ID:        id,
		StartTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Track: core.TrackSnapshot{
			Name:        "oval",
			TrackLength: 30.84,
			Waypoints:   []core.Point2D{{X: -3, Y: -3}, {X: 0, Y: -3}, {X: 3, Y: -3}},
		},
		Config: core.TrackConfig{Name: "oval"},
		Agents: []string{"racer"},
	}
}

func step(seq uint, agents ...core.AgentSnapshot) *core.StepSnapshot {
	return &core.StepSnapshot{Sequence: seq, Time: time.Now(), Agents: agents}
}

func TestInitMigrates(t *testing.T) {
	b := newTestBackend(t, Config{})
	defer b.Close()

	for _, m := range model.DatabaseModels {
		assert.True(t, b.db.Migrator().HasTable(m), "%T", m)
	}
}

func TestRecordStepWithoutEpisode(t *testing.T) {
	b := newTestBackend(t, Config{})
	defer b.Close()

	assert.ErrorIs(t, b.RecordStep(step(1)), errNoEpisode)
	assert.ErrorIs(t, b.EndEpisode(), errNoEpisode)
}

func TestRecordStep_QueuesUntilEndEpisode(t *testing.T) {
	b := newTestBackend(t, Config{})
	defer b.Close()

	require.NoError(t, b.StartEpisode(testEpisode("ep1")))
	require.NoError(t, b.RecordStep(step(1,
		core.AgentSnapshot{Name: "racer", Steps: 1, Progress: 1},
		core.AgentSnapshot{Name: "rival", Steps: 1},
	)))
	require.NoError(t, b.RecordStep(step(2, core.AgentSnapshot{Name: "racer", Steps: 2, Progress: 2})))

	assert.Equal(t, 3, b.steps.Len())

	var count int64
	require.NoError(t, b.db.Model(&model.AgentStep{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, b.EndEpisode())
	assert.Zero(t, b.steps.Len())

	got, err := b.Steps("ep1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "racer", got[0].Name)
	assert.Equal(t, "rival", got[1].Name)
	assert.Equal(t, 2.0, got[2].Progress)

	var episode model.Episode
	require.NoError(t, b.db.Where("uuid = ?", "ep1").First(&episode).Error)
	assert.Equal(t, uint(2), episode.StepCount)
	assert.True(t, episode.EndTime.Valid)
}

func TestTrackLayoutStoredOncePerFingerprint(t *testing.T) {
	b := newTestBackend(t, Config{})
	defer b.Close()

	require.NoError(t, b.StartEpisode(testEpisode("ep1")))
	require.NoError(t, b.EndEpisode())
	require.NoError(t, b.StartEpisode(testEpisode("ep2")))
	require.NoError(t, b.EndEpisode())

	cw := testEpisode("ep3")
	cw.Track.IsClockwise = true
	require.NoError(t, b.StartEpisode(cw))
	require.NoError(t, b.EndEpisode())

	var layouts int64
	require.NoError(t, b.db.Model(&model.TrackLayout{}).Count(&layouts).Error)
	assert.Equal(t, int64(2), layouts)

	var episodes []model.Episode
	require.NoError(t, b.db.Order("id").Find(&episodes).Error)
	require.Len(t, episodes, 3)
	assert.Equal(t, episodes[0].TrackLayoutID, episodes[1].TrackLayoutID)
	assert.NotEqual(t, episodes[0].TrackLayoutID, episodes[2].TrackLayoutID)
}

func TestWriterFlushesInBackground(t *testing.T) {
	b := newTestBackend(t, Config{FlushInterval: 10 * time.Millisecond, BatchSize: 2})
	defer b.Close()

	require.NoError(t, b.StartEpisode(testEpisode("ep1")))
	for i := uint(1); i <= 5; i++ {
		require.NoError(t, b.RecordStep(step(i, core.AgentSnapshot{Name: "racer", Steps: i})))
	}

	require.Eventually(t, func() bool {
		var count int64
		b.db.Model(&model.AgentStep{}).Count(&count)
		return count == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseFlushesQueue(t *testing.T) {
	b := newTestBackend(t, Config{})

	require.NoError(t, b.StartEpisode(testEpisode("ep1")))
	require.NoError(t, b.RecordStep(step(1, core.AgentSnapshot{Name: "racer"})))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, b.db.Model(&model.AgentStep{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSqliteDumpOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envstate.db")
	b := newTestBackend(t, Config{DumpPath: path, DumpInterval: time.Hour})

	require.NoError(t, b.StartEpisode(testEpisode("ep1")))
	require.NoError(t, b.RecordStep(step(1, core.AgentSnapshot{Name: "racer", Steps: 1})))
	require.NoError(t, b.EndEpisode())
	require.NoError(t, b.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)

	disk, err := database.GetSqliteDB(path)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Model(&model.AgentStep{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStepsUnknownEpisode(t *testing.T) {
	b := newTestBackend(t, Config{})
	defer b.Close()

	_, err := b.Steps("missing")
	assert.Error(t, err)
}
