package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/hlsnode/cmd"
	"github.com/smazurov/hlsnode/internal/api"
	"github.com/smazurov/hlsnode/internal/config"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/ffmpeg"
	"github.com/smazurov/hlsnode/internal/instance"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/metrics"
	"github.com/smazurov/hlsnode/internal/outputs"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/records/store"
	"github.com/smazurov/hlsnode/internal/streams"
	"github.com/smazurov/hlsnode/internal/supervisor"
	"github.com/smazurov/hlsnode/internal/systemd"
	"github.com/smazurov/hlsnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Record store
	RecordsBackend string `help:"Record store backend (toml, sqlite)" default:"toml" toml:"records.backend" env:"RECORDS_BACKEND"`
	RecordsPath    string `help:"Record store file" default:"records.toml" toml:"records.path" env:"RECORDS_PATH"`

	// HLS output
	OutputsRoot string `help:"Directory holding one HLS output directory per stream" default:"/var/www/html/streams" toml:"outputs.root" env:"OUTPUTS_ROOT"`

	// Transcoder settings
	TranscoderBinary        string `help:"ffmpeg executable" default:"ffmpeg" toml:"transcoder.binary" env:"TRANSCODER_BINARY"`
	TranscoderRTSPTransport string `help:"RTSP lower transport (tcp, udp)" default:"tcp" toml:"transcoder.rtsp_transport" env:"TRANSCODER_RTSP_TRANSPORT"`
	TranscoderHLSTime       int    `help:"HLS segment duration in seconds" default:"4" toml:"transcoder.hls_time" env:"TRANSCODER_HLS_TIME"`
	TranscoderHLSListSize   int    `help:"Segments kept in the playlist" default:"10" toml:"transcoder.hls_list_size" env:"TRANSCODER_HLS_LIST_SIZE"`
	TranscoderTimeout       int64  `help:"Source socket timeout in microseconds" default:"50000000" toml:"transcoder.timeout" env:"TRANSCODER_TIMEOUT"`
	TranscoderOptions       string `help:"Comma separated transcoder option keys, or none" default:"" toml:"transcoder.options" env:"TRANSCODER_OPTIONS"`
	TranscoderLogDir        string `help:"Directory for per-stream transcoder logs (disabled when empty)" default:"" toml:"transcoder.log_dir" env:"TRANSCODER_LOG_DIR"`

	// Watchdog settings, hot-reloaded from the config file
	WatchdogPollInterval   string `help:"How often each watchdog scans its output directory" default:"10s" toml:"watchdog.poll_interval" env:"WATCHDOG_POLL_INTERVAL"`
	WatchdogStaleThreshold string `help:"Output age after which a stream is restarted" default:"120s" toml:"watchdog.stale_threshold" env:"WATCHDOG_STALE_THRESHOLD"`

	// Instance lock
	InstanceLockFile string `help:"Single instance lock file" default:"hlsnode.lock" toml:"instance.lock_file" env:"INSTANCE_LOCK_FILE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (auth disabled when empty)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingWatchdog   string `help:"Watchdog logging level" default:"info" toml:"logging.watchdog" env:"LOGGING_WATCHDOG"`
	LoggingProcess    string `help:"Process spawner logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingTranscoder string `help:"Transcoder output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingRecords    string `help:"Record store logging level" default:"info" toml:"logging.records" env:"LOGGING_RECORDS"`
	LoggingOutputs    string `help:"Output directory logging level" default:"info" toml:"logging.outputs" env:"LOGGING_OUTPUTS"`
	LoggingStreams    string `help:"Streams logging level" default:"info" toml:"logging.streams" env:"LOGGING_STREAMS"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingConfig     string `help:"Config reload logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"watchdog":   opts.LoggingWatchdog,
				"process":    opts.LoggingProcess,
				"ffmpeg":     opts.LoggingTranscoder,
				"records":    opts.LoggingRecords,
				"outputs":    opts.LoggingOutputs,
				"streams":    opts.LoggingStreams,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
				"config":     opts.LoggingConfig,
			},
		})

		var app *application

		hooks.OnStart(func() {
			logger := logging.GetLogger("main")
			logger.Info("Starting hlsnode", "version", version.Summary())

			var err error
			app, err = newApplication(opts)
			if err != nil {
				logger.Error("Failed to start", "error", err)
				os.Exit(1)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := app.server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				app.shutdown()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if app != nil {
				app.shutdown()
			}
		})
	})

	cli.Root().Version = version.Summary()
	cli.Root().AddCommand(cmd.CreateRecordsCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}

// application holds everything the server command starts, in start order.
type application struct {
	logger     *slog.Logger
	lock       *instance.Lock
	store      records.Store
	controller *supervisor.Controller
	spawner    *process.Spawner
	watcher    *config.Watcher[config.WatchdogConfig]
	logWatcher *config.Watcher[logging.Config]
	server     *api.Server
	notifier   *systemd.Notifier

	stopOnce sync.Once
}

func newApplication(opts *Options) (*application, error) {
	app := &application{logger: logging.GetLogger("main"), notifier: systemd.NewNotifier()}
	ok := false
	defer func() {
		if !ok {
			app.shutdown()
		}
	}()

	lock, err := instance.Acquire(opts.InstanceLockFile)
	if err != nil {
		return nil, err
	}
	app.lock = lock

	settings, err := watchdogSettings(opts)
	if err != nil {
		return nil, err
	}
	transcoderOptions, err := ffmpeg.ParseOptions(opts.TranscoderOptions)
	if err != nil {
		return nil, fmt.Errorf("transcoder.options: %w", err)
	}

	app.store, err = store.Open(opts.RecordsBackend, opts.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("open records store: %w", err)
	}

	eventBus := events.New()
	logging.SetLogCallback(func(entry logging.LogEntry) {
		eventBus.Publish(events.LogEntryEvent{
			Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
	})

	layout := outputs.NewLayout(opts.OutputsRoot)
	app.spawner = process.NewSpawner(process.SpawnerOptions{
		OutputLogger: logging.GetLogger("ffmpeg"),
		LogParser:    ffmpeg.ParseLogLevel,
		LevelMapper:  ffmpeg.SlogLevel,
		LogDir:       opts.TranscoderLogDir,
		OnExit: func(_ int, stream string, code int) {
			metrics.IncProcessExit(stream, code)
		},
	})
	launcher := supervisor.NewFFmpegLauncher(app.spawner, layout, supervisor.TranscoderConfig{
		Binary:         opts.TranscoderBinary,
		RTSPTransport:  opts.TranscoderRTSPTransport,
		SegmentSeconds: opts.TranscoderHLSTime,
		ListSize:       opts.TranscoderHLSListSize,
		TimeoutMicros:  opts.TranscoderTimeout,
		Options:        transcoderOptions,
	})

	app.controller = supervisor.New(supervisor.Options{
		Store:    app.store,
		Launcher: launcher,
		Outputs:  layout,
		Settings: settings,
		Events:   eventBus,
	})

	// Nothing may start before pids left by a previous run are cleaned up.
	if err := app.controller.Reconcile(context.Background()); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	app.watcher = config.NewConfigWatcher(opts.Config, config.LoadWatchdogConfig, logging.GetLogger("config"))
	app.watcher.OnReload(func(wd config.WatchdogConfig) {
		app.controller.SetSettings(supervisor.Settings{
			PollInterval:   wd.PollInterval,
			StaleThreshold: wd.StaleThreshold,
		})
	})
	if err := app.watcher.Start(); err != nil {
		app.logger.Warn("Config hot reload disabled", "config", opts.Config, "error", err)
	}

	// Module levels edited in the file win over flags until the next restart.
	app.logWatcher = config.NewConfigWatcher(opts.Config, loadLoggingConfig, logging.GetLogger("config"))
	app.logWatcher.OnReload(logging.ApplyModuleLevels)
	if err := app.logWatcher.Start(); err != nil {
		app.logger.Warn("Logging level reload disabled", "config", opts.Config, "error", err)
	}

	streamService := streams.NewStreamService(&streams.ServiceOptions{
		Store:      app.store,
		Supervisor: app.controller,
		Outputs:    layout,
		EventBus:   eventBus,
	})

	app.server = api.NewServer(&api.Options{
		AuthUsername:   opts.AuthUsername,
		AuthPassword:   opts.AuthPassword,
		StreamService:  streamService,
		EventBus:       eventBus,
		MetricsHandler: metrics.Handler(),
	})

	if recs, err := app.store.List(); err == nil {
		app.notifier.Status(fmt.Sprintf("%d stream records, serving on %s", len(recs), opts.Port))
	}
	app.notifier.Ready()
	app.notifier.StartWatchdog(nil)

	ok = true
	return app, nil
}

// shutdown stops the HTTP server first so no new operations arrive, then
// kills every transcoder, then releases the store and the lock.
func (a *application) shutdown() {
	a.stopOnce.Do(a.stop)
}

func (a *application) stop() {
	a.notifier.Stopping()
	a.notifier.StopWatchdog()
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Error("Error stopping HTTP server", "error", err)
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping config watcher", "error", err)
		}
	}
	if a.logWatcher != nil {
		if err := a.logWatcher.Stop(); err != nil {
			a.logger.Warn("Error stopping logging watcher", "error", err)
		}
	}
	if a.controller != nil {
		a.logger.Info("Stopping all streams")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.controller.StopAll(ctx); err != nil {
			a.logger.Error("Error stopping streams", "error", err)
		}
		cancel()
		a.controller.Close()
	}
	if a.spawner != nil {
		// Children whose stop failed are still ours to reap.
		for _, child := range a.spawner.Running() {
			a.logger.Warn("Killing leftover transcoder", "stream", child.ID, "pid", child.PID)
			if err := a.spawner.Kill(child.PID); err != nil {
				a.logger.Error("Failed to kill leftover transcoder", "pid", child.PID, "error", err)
			}
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Error closing records store", "error", err)
		}
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			a.logger.Error("Error releasing instance lock", "error", err)
		}
	}
}

func loadLoggingConfig(path string) (logging.Config, error) {
	return config.LoadLoggingConfig(path), nil
}

func watchdogSettings(opts *Options) (supervisor.Settings, error) {
	poll, err := parseSeconds(opts.WatchdogPollInterval)
	if err != nil {
		return supervisor.Settings{}, fmt.Errorf("watchdog.poll_interval: %w", err)
	}
	stale, err := parseSeconds(opts.WatchdogStaleThreshold)
	if err != nil {
		return supervisor.Settings{}, fmt.Errorf("watchdog.stale_threshold: %w", err)
	}
	return supervisor.Settings{PollInterval: poll, StaleThreshold: stale}, nil
}

// parseSeconds accepts a Go duration or a bare number of seconds.
func parseSeconds(s string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
