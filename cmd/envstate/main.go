// Command envstate replays a simulator telemetry log through the env state
// tracker and records every step to the configured storage backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"github.com/trackside/envstate/internal/api"
	"github.com/trackside/envstate/internal/config"
	"github.com/trackside/envstate/internal/dispatcher"
	"github.com/trackside/envstate/internal/envstate"
	"github.com/trackside/envstate/internal/episode"
	"github.com/trackside/envstate/internal/logging"
	"github.com/trackside/envstate/internal/monitor"
	intOtel "github.com/trackside/envstate/internal/otel"
	"github.com/trackside/envstate/internal/replay"
	"github.com/trackside/envstate/internal/trackgeom"
	"github.com/trackside/envstate/internal/worker"
	"github.com/trackside/envstate/pkg/core"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "envstate"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// EpisodeContext is the episode being recorded, added to every log record
	EpisodeContext = episode.NewContext()

	SessionStartTime = time.Now()
)

type options struct {
	configDir string
	replay    string
	agents    string
	steps     int
	speed     float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configDir, "config", ".", "directory holding "+config.FileName)
	flag.StringVar(&opts.replay, "replay", "", "telemetry log to replay (.jsonl or .jsonl.zst); empty replays a synthesized lap")
	flag.StringVar(&opts.agents, "agents", "racer", "comma separated agents of the synthesized lap")
	flag.IntVar(&opts.steps, "steps", 200, "steps of the synthesized lap")
	flag.Float64Var(&opts.speed, "speed", 2, "speed of the synthesized lap, m/s")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "envstate:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(opts.configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	logFile, err := setupLogging()
	if err != nil {
		return err
	}
	defer logFile.Close()
	defer shutdown()

	Logger.Info("Starting envstate", "version", Version, "buildDate", BuildDate)

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	path := opts.replay
	if path == "" {
		path, err = synthesizeLap(opts)
		if err != nil {
			return err
		}
	}

	sim, err := replay.Open(path, d, Logger)
	if err != nil {
		return err
	}
	Logger.Info("Replay opened", "path", path, "track", sim.Track().Name, "agents", sim.Agent().AgentConfigs())

	trackDir := viper.GetString("track.dir")
	layout, err := trackgeom.Load(trackDir, sim.Track().Name)
	if err != nil {
		return err
	}
	Logger.Info("Track loaded", "track", layout.Name, "waypoints", len(layout.Waypoints),
		"fingerprint", fmt.Sprintf("%016x", layout.Fingerprint()))

	env, err := envstate.New(sim,
		envstate.WithGeometryBuilder(trackgeom.Builder(trackDir)),
		envstate.WithLogger(Logger),
	)
	if err != nil {
		return err
	}

	backend, err := createStorageBackend(config.GetStorageConfig(), logFile)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	recorder := worker.New(env, backend,
		worker.WithBufferSize(viper.GetInt("recorder.bufferSize")),
		worker.WithLogger(Logger),
		worker.WithEpisodeContext(EpisodeContext),
	)
	if err := recorder.Start(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	// after envstate, so every snapshot includes the step
	sim.Register(worker.ObserverName, recorder, dispatcher.Logged())
	if err := checkObserverOrder(sim); err != nil {
		return errors.Join(err, recorder.Close())
	}
	Logger.Debug("Observers registered", "order", sim.Observers())

	monitorService := monitor.NewService(monitor.Dependencies{
		Recorder:   recorder,
		Logger:     Logger,
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
		Interval:   viper.GetDuration("monitor.interval"),
	})
	if viper.GetBool("monitor.enabled") {
		_ = monitorService.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	runErr := sim.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		Logger.Warn("Replay interrupted", "steps", sim.Steps())
		runErr = nil
	}
	closeErr := recorder.Close()
	monitorService.Stop()
	if path := exportedPath(backend); path != "" {
		Logger.Info("Episode exported", "path", path)
		uploadEpisode(path, recorder.Episode(), env.Snapshot().Sequence)
	}

	written, failed := recorder.Stats()
	Logger.Info("Replay done",
		"steps", sim.Steps(),
		"resets", sim.Resets(),
		"written", written,
		"failed", failed,
		"lastWrite", recorder.GetLastWriteDuration(),
		"elapsed", time.Since(start),
	)

	out, err := json.MarshalIndent(env.ToDict(), "", "  ")
	if err != nil {
		return errors.Join(runErr, closeErr, err)
	}
	fmt.Println(string(out))
	return errors.Join(runErr, closeErr)
}

// setupLogging opens the session log file and re-sets up logging with the
// file, and Graylog and OTel when enabled.
func setupLogging() (*os.File, error) {
	logsDir := viper.GetString("logsDir")
	logFile, err := logging.OpenLogFile(logsDir, AppName, SessionStartTime)
	if err != nil {
		return nil, err
	}
	logFilePath := logFile.Name()

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
			MetricInterval: otelCfg.MetricInterval,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", logFilePath, "endpoint", otelCfg.Endpoint,
				"metrics", OTelProvider.MetricsEnabled())
		}
	}

	setupOpts := []logging.Option{logging.WithContext(EpisodeContext.LogAttrs)}
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Warn("Graylog disabled", "error", err)
		} else {
			setupOpts = append(setupOpts, logging.WithGraylog(w))
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(io.MultiWriter(os.Stdout, logFile), viper.GetString("logLevel"), otelLogProvider, setupOpts...)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", logFilePath)
	return logFile, nil
}

// synthesizeLap writes a one-lap demo log on the configured track.
func synthesizeLap(opts options) (string, error) {
	trackCfg, err := config.GetTrackConfig()
	if err != nil {
		return "", err
	}
	geometry, err := trackgeom.Builder(viper.GetString("track.dir"))(trackCfg)
	if err != nil {
		return "", err
	}

	path := filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("%s_demo_%s.jsonl.zst", AppName, SessionStartTime.Format("20060102_150405")))
	w, err := replay.Create(path)
	if err != nil {
		return "", err
	}
	agents := strings.Split(opts.agents, ",")
	err = replay.WriteLap(w, trackCfg, geometry, agents, replay.LapOptions{
		Steps:   opts.steps,
		Speed:   opts.speed,
		Stagger: 0.5 / float64(len(agents)),
	})
	if err := errors.Join(err, w.Close()); err != nil {
		return "", fmt.Errorf("write demo lap: %w", err)
	}
	Logger.Info("Synthesized demo lap", "path", path, "track", trackCfg.Name, "agents", agents, "steps", opts.steps)
	return path, nil
}

// uploadEpisode sends the last exported episode to the viewer when
// api.serverUrl is set.
func uploadEpisode(path string, e *core.Episode, steps uint) {
	serverURL := viper.GetString("api.serverUrl")
	if serverURL == "" || e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := api.New(serverURL, viper.GetString("api.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Warn("Viewer unreachable, episode not uploaded", "error", err, "path", path)
		return
	}
	err := client.Upload(ctx, path, api.UploadMetadata{
		TrackName: e.Track.Name,
		EpisodeID: e.ID,
		Duration:  time.Since(e.StartTime).Seconds(),
		Steps:     int(steps),
		Tag:       viper.GetString("api.tag"),
	})
	if err != nil {
		Logger.Error("Failed to upload episode", "error", err, "path", path)
		return
	}
	Logger.Info("Episode uploaded", "url", serverURL, "episode", e.ID)
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
}
