package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath returns the session log file for appName in logsDir.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	name := fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405"))
	return filepath.Join(logsDir, name)
}

// OpenLogFile creates logsDir and opens the session log file for appending.
// A file left by a session that started in the same second is kept as
// <name>.old.
func OpenLogFile(logsDir, appName string, sessionStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	path := LogFilePath(logsDir, appName, sessionStart)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("rotate log file: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
