package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.False(t, p.MetricsEnabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NotNil(t, p.Meter("test"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_LogsOnly(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "envstate-test",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
	})
	require.NoError(t, err)

	assert.True(t, p.Enabled())
	assert.False(t, p.MetricsEnabled())
	require.NotNil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_MetricsWrittenOnShutdown(t *testing.T) {
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	var buf bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "envstate-test",
		ServiceVersion: "1.2.3",
		BatchTimeout:   time.Second,
		LogWriter:      &buf,
		MetricInterval: time.Hour,
	})
	require.NoError(t, err)
	require.True(t, p.MetricsEnabled())

	counter, err := otel.Meter("envstate-test").Int64Counter("envstate.test.steps")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "envstate.test.steps")
	assert.Contains(t, buf.String(), "1.2.3")
}

func TestNew_EnabledWithoutExporter(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "envstate-test"})
	assert.ErrorIs(t, err, errNoExporter)
}
