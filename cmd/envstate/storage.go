package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/trackside/envstate/internal/config"
	"github.com/trackside/envstate/internal/database"
	"github.com/trackside/envstate/internal/influx"
	"github.com/trackside/envstate/internal/storage"
	"github.com/trackside/envstate/internal/storage/gormstore"
	"github.com/trackside/envstate/internal/storage/memory"
	wsstorage "github.com/trackside/envstate/internal/storage/websocket"
)

func createStorageBackend(storageCfg config.StorageConfig, logOut io.Writer) (storage.Backend, error) {
	var backend storage.Backend

	switch storageCfg.Type {
	case "postgres":
		db, err := database.GetPostgresDB(database.PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		})
		if err != nil {
			return nil, err
		}
		backend = gormstore.New(db, gormstore.Config{}, Logger)
		Logger.Info("Postgres storage backend initialized", "host", viper.GetString("db.host"))

	case "sqlite":
		db, err := database.GetSqliteDB(storageCfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		cfg := gormstore.Config{}
		if storageCfg.SQLite.Path == "" {
			cfg.DumpPath = filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
			cfg.DumpInterval = storageCfg.SQLite.DumpInterval
		}
		backend = gormstore.New(db, cfg, Logger)
		Logger.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path, "dumpPath", cfg.DumpPath)

	case "websocket":
		wsURL := httpToWS(viper.GetString("websocket.url"))
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		backend = wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: viper.GetString("websocket.secret"),
		}, Logger)

	case "influx":
		backend = newInfluxBackend(logOut)

	case "memory", "":
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		backend = memory.New(storageCfg.Memory)

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}

	// influx.enabled adds agent status points next to any other backend
	if storageCfg.Type != "influx" && viper.GetBool("influx.enabled") {
		return storage.Fanout{backend, newInfluxBackend(logOut)}, nil
	}
	return backend, nil
}

func newInfluxBackend(logOut io.Writer) *influx.Manager {
	cfg := influx.Config{
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_influx_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405"))),
	}
	log := zerolog.New(logOut).With().Timestamp().Str("component", "influx").Logger()
	Logger.Info("InfluxDB storage backend initialized", "url", cfg.URL(), "bucket", cfg.Bucket)
	return influx.NewManager(cfg, log)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// exportedPath returns the file the backend wrote the last episode to, if any.
func exportedPath(backend storage.Backend) string {
	if e, ok := backend.(storage.Exporter); ok {
		return e.GetExportedFilePath()
	}
	return ""
}
