package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// Option adds an optional sink or decorator to Setup.
type Option func(*setupOptions)

type setupOptions struct {
	graylog io.Writer
	context ContextProvider
}

// WithGraylog also sends every record as JSON to w, normally a GELF writer.
func WithGraylog(w io.Writer) Option {
	return func(o *setupOptions) {
		o.graylog = w
	}
}

// WithContext adds the provider's attributes to every record.
func WithContext(p ContextProvider) Option {
	return func(o *setupOptions) {
		o.context = p
	}
}

// parseLevel maps a config log level to slog. Unknown levels are info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Setup (re)builds the logger. Records go to file, or to stdout when file
// is nil, plus Graylog and OTel when configured. A nil provider disables
// the OTel sink.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...Option) {
	so := &setupOptions{}
	for _, opt := range opts {
		opt(so)
	}
	m.logProvider = provider

	hopts := handlerOptions(parseLevel(level))
	if file == nil {
		file = os.Stdout
	}
	sinks := []slog.Handler{slog.NewTextHandler(file, hopts)}
	if so.graylog != nil {
		sinks = append(sinks, slog.NewJSONHandler(so.graylog, hopts))
	}
	if provider != nil {
		sinks = append(sinks, otelslog.NewHandler("envstate", otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = newFanout(sinks...)
	if so.context != nil {
		handler = contextHandler{next: handler, provider: so.context}
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// handlerOptions filters below lvl and writes times as UTC RFC3339.
func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.TimeKey {
				return a
			}
			if t, ok := a.Value.Any().(time.Time); ok {
				a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
			}
			return a
		},
	}
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
