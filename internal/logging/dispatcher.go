package logging

import "log/slog"

// DispatcherLogger is the dispatcher.Logger backed by slog. Every record is
// tagged component=dispatcher.
type DispatcherLogger struct {
	l *slog.Logger
}

func NewDispatcherLogger(logger *slog.Logger) *DispatcherLogger {
	return &DispatcherLogger{l: logger.With("component", "dispatcher")}
}

func (d *DispatcherLogger) Debug(msg string, kv ...any) { d.l.Debug(msg, kv...) }
func (d *DispatcherLogger) Info(msg string, kv ...any)  { d.l.Info(msg, kv...) }
func (d *DispatcherLogger) Error(msg string, kv ...any) { d.l.Error(msg, kv...) }
