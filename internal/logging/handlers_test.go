package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingHandler accepts every record and fails to write it.
type failingHandler struct {
	slog.Handler
}

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("graylog unreachable")
}

func textHandler(buf *bytes.Buffer, lvl slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: lvl})
}

func TestFanout_EveryHandlerGetsRecord(t *testing.T) {
	var file, console bytes.Buffer
	logger := slog.New(newFanout(textHandler(&file, slog.LevelInfo), nil, textHandler(&console, slog.LevelInfo)))

	logger.Info("episode started", "track", "circle")

	assert.Contains(t, file.String(), "track=circle")
	assert.Contains(t, console.String(), "track=circle")
}

func TestFanout_DropsNilHandlers(t *testing.T) {
	f := newFanout(nil, textHandler(&bytes.Buffer{}, slog.LevelInfo), nil)
	assert.Len(t, f, 1)
	assert.False(t, newFanout().Enabled(context.Background(), slog.LevelError))
}

func TestFanout_EnabledIfAnyHandlerIs(t *testing.T) {
	info := textHandler(&bytes.Buffer{}, slog.LevelInfo)
	debug := textHandler(&bytes.Buffer{}, slog.LevelDebug)
	ctx := context.Background()

	assert.False(t, newFanout(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newFanout(info, debug).Enabled(ctx, slog.LevelDebug))
}

func TestFanout_LevelPerHandler(t *testing.T) {
	var verbose, quiet bytes.Buffer
	logger := slog.New(newFanout(textHandler(&verbose, slog.LevelDebug), textHandler(&quiet, slog.LevelWarn)))

	logger.Debug("step recorded")

	assert.Contains(t, verbose.String(), "step recorded")
	assert.Empty(t, quiet.String())
}

func TestFanout_FailingHandlerDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(failingHandler{}, textHandler(&buf, slog.LevelInfo))

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "recorder closed", 0)
	err := f.Handle(context.Background(), r)

	assert.ErrorContains(t, err, "graylog unreachable")
	assert.Contains(t, buf.String(), "recorder closed")
}

func TestFanout_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(textHandler(&buf, slog.LevelInfo))

	slog.New(f.WithAttrs([]slog.Attr{slog.String("component", "recorder")})).Info("a")
	slog.New(f.WithGroup("agent")).Info("b", "name", "racer")

	assert.Contains(t, buf.String(), "component=recorder")
	assert.Contains(t, buf.String(), "agent.name=racer")
	assert.Equal(t, f, f.WithGroup(""))
}

func TestContextHandler_EvaluatedPerRecord(t *testing.T) {
	var buf bytes.Buffer
	episode := "ep-1"
	h := contextHandler{
		next: textHandler(&buf, slog.LevelInfo),
		provider: func() []slog.Attr {
			return []slog.Attr{slog.String("episode", episode)}
		},
	}

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "recorder")}))
	logger.Info("first")
	episode = "ep-2"
	logger.Info("second")

	out := buf.String()
	assert.Contains(t, out, "component=recorder")
	assert.Contains(t, out, "episode=ep-1")
	assert.Contains(t, out, "episode=ep-2")

	assert.Equal(t, h, h.WithGroup(""))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestContextHandler_EmptyProvider(t *testing.T) {
	var buf bytes.Buffer
	h := contextHandler{next: textHandler(&buf, slog.LevelInfo), provider: func() []slog.Attr { return nil }}

	slog.New(h).Info("no episode yet")
	require.Contains(t, buf.String(), "no episode yet")
	assert.NotContains(t, buf.String(), "episode=")
}
