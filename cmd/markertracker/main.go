package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/OCAP2/markertracker/internal/config"
	"github.com/OCAP2/markertracker/internal/logging"
	intOtel "github.com/OCAP2/markertracker/internal/otel"
	"github.com/OCAP2/markertracker/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/automaxprocs/maxprocs"
)

// module defs
var (
	CurrentVersion = "0.1.0"
	ServiceName    = "markertracker"
)

// file paths
var (
	ConfigDir        string
	TrackerLogFile   *os.File
	TrackerLogPath   string
	SessionStartTime = time.Now()
)

var (
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	// activeTracker feeds tracker attributes into every log record once the
	// spatial context exists.
	activeTracker atomic.Pointer[tracker.Manager]
)

// resolveConfigDir returns MARKERTRACKER_CONFIG_DIR, or the working directory.
func resolveConfigDir() string {
	if dir := os.Getenv("MARKERTRACKER_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "."
}

// setupLogging loads the config and routes logs to the session log file,
// OTel and Graylog as configured. Until it finishes, logs go to stdout.
func setupLogging() error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	ConfigDir = resolveConfigDir()
	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "path", viper.ConfigFileUsed())
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}

	TrackerLogPath = logging.LogFilePath(logsDir, ServiceName, SessionStartTime)
	if _, err := os.Stat(TrackerLogPath); err == nil {
		_ = os.Rename(TrackerLogPath, TrackerLogPath+".old")
	}

	var err error
	TrackerLogFile, err = os.OpenFile(TrackerLogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", TrackerLogPath, err)
	}
	Logger.Info("Begin logging in logs directory", "path", TrackerLogPath)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      TrackerLogFile,
			MetricWriter:   TrackerLogFile,
			MetricInterval: otelCfg.MetricInterval,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", TrackerLogPath, "endpoint", otelCfg.Endpoint)
		}
	}

	if viper.GetBool("graylog.enabled") {
		address := viper.GetString("graylog.address")
		w, err := logging.NewGraylogWriter(address)
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err)
		} else {
			SlogManager.AddRemote(w)
			Logger.Info("Shipping logs to Graylog", "address", address)
		}
	}

	SlogManager.SetContextProvider(func() []slog.Attr {
		tr := activeTracker.Load()
		if tr == nil {
			return nil
		}
		s := tr.Status()
		return []slog.Attr{
			slog.Bool("discovery", s.DiscoveryEnabled),
			slog.Bool("outstanding", s.Outstanding),
		}
	})

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(TrackerLogFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", TrackerLogPath, "version", CurrentVersion)
	return nil
}

// newZerolog returns the console-formatted zerolog logger used by the
// dispatcher and the database manager.
func newZerolog() zerolog.Logger {
	out := os.Stdout
	if TrackerLogFile != nil {
		out = TrackerLogFile
	}
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("logLevel")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}).
		Level(level).
		With().Timestamp().Str("service", ServiceName).
		Logger()
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "log flush failed: %v\n", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "otel shutdown failed: %v\n", err)
		}
	}
	if TrackerLogFile != nil {
		_ = TrackerLogFile.Close()
	}
}

func usage() {
	fmt.Printf(`%s %s

Usage:
  %s [run]           track markers until interrupted
  %s sessions [dir]  list sessions stored in SQLite dumps
  %s version         print the version
`, ServiceName, CurrentVersion, filepath.Base(os.Args[0]), filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
}

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
	}

	switch cmd {
	case "version":
		fmt.Println(CurrentVersion)
		return
	case "help", "-h", "--help":
		usage()
		return
	}

	if err := setupLogging(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdownTelemetry()

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...any) {
		Logger.Debug(fmt.Sprintf(format, a...))
	})); err != nil {
		Logger.Warn("Failed to set GOMAXPROCS", "error", err)
	}

	var err error
	switch cmd {
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = run(ctx)
	case "sessions":
		dir := filepath.Dir(config.GetStorageConfig().SQLite.Path)
		if len(args) > 1 {
			dir = args[1]
		}
		err = listSessions(os.Stdout, dir)
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		Logger.Error("Exiting with error", "command", cmd, "error", err)
		shutdownTelemetry()
		os.Exit(1)
	}
}
