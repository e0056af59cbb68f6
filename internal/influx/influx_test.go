package influx

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackside/envstate/internal/storage"
	"github.com/trackside/envstate/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Manager)(nil)

func testEpisode() *core.Episode {
	return &core.Episode{
		ID:        "ep1",
		StartTime: time.Unix(1700000000, 0),
		Track:     core.TrackSnapshot{Name: "oval"},
		Agents:    []string{"racer"},
	}
}

func lineProtocol(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func TestConfigURL(t *testing.T) {
	cfg := Config{Protocol: "http", Host: "localhost", Port: "8086"}
	assert.Equal(t, "http://localhost:8086", cfg.URL())
}

func TestStepPoints(t *testing.T) {
	s := &core.StepSnapshot{
		Sequence: 3,
		Time:     time.Unix(1700000001, 0),
		Agents: []core.AgentSnapshot{
			{Name: "racer", Steps: 3, Progress: 42.5, IsOfftrack: true},
			{Name: "rival", Steps: 3},
		},
	}

	points := StepPoints(testEpisode(), s)
	require.Len(t, points, 2)

	line := lineProtocol(points[0])
	assert.True(t, strings.HasPrefix(line, MeasurementAgentStatus+","), line)
	assert.Contains(t, line, "agent=racer")
	assert.Contains(t, line, "episode=ep1")
	assert.Contains(t, line, "track=oval")
	assert.Contains(t, line, "progress=42.5")
	assert.Contains(t, line, "steps=3i")
	assert.Contains(t, line, "is_offtrack=true")
	assert.Contains(t, line, "1700000001000000000")

	assert.Contains(t, lineProtocol(points[1]), "agent=rival")
}

func TestEpisodePoint(t *testing.T) {
	line := lineProtocol(EpisodePoint(testEpisode(), "start", time.Unix(1700000000, 0)))
	assert.True(t, strings.HasPrefix(line, MeasurementEpisode+","), line)
	assert.Contains(t, line, `event="start"`)
	assert.Contains(t, line, "agents=1i")
}

func TestUnreachableServerWritesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(Config{
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "envstate",
		Bucket:     "agent_status",
		BackupPath: path,
	}, zerolog.Nop())

	require.NoError(t, m.Init())
	assert.False(t, m.IsValid)

	require.NoError(t, m.StartEpisode(testEpisode()))
	require.NoError(t, m.RecordStep(&core.StepSnapshot{
		Sequence: 1,
		Time:     time.Unix(1700000001, 0),
		Agents:   []core.AgentSnapshot{{Name: "racer", Steps: 1}},
	}))
	require.NoError(t, m.EndEpisode())
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if sc.Text() != "" {
			lines = append(lines, sc.Text())
		}
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `event="start"`)
	assert.True(t, strings.HasPrefix(lines[1], MeasurementAgentStatus))
	assert.Contains(t, lines[2], `event="end"`)
}

func TestUnreachableServerWithoutBackupPath(t *testing.T) {
	m := NewManager(Config{Protocol: "http", Host: "127.0.0.1", Port: "1"}, zerolog.Nop())
	assert.Error(t, m.Init())
	m.Close()
}

func TestRecordStepWithoutEpisode(t *testing.T) {
	m := NewManager(Config{}, zerolog.Nop())
	assert.ErrorIs(t, m.RecordStep(&core.StepSnapshot{}), errNoEpisode)
	assert.ErrorIs(t, m.EndEpisode(), errNoEpisode)
}

func TestWritePointWithoutWriter(t *testing.T) {
	m := NewManager(Config{}, zerolog.Nop())
	err := m.WritePoint(EpisodePoint(testEpisode(), "start", time.Now()))
	assert.Error(t, err)
}
