package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "markertracker.cfg.json"

// TrackerConfig holds discovery and tracking loop settings
type TrackerConfig struct {
	InitialDiscovery   bool          `json:"initialDiscovery" mapstructure:"initialDiscovery"`
	DiscoveryCooldown  time.Duration `json:"discoveryCooldown" mapstructure:"discoveryCooldown"`
	CreatePollInterval time.Duration `json:"createPollInterval" mapstructure:"createPollInterval"`
	CreateTimeout      time.Duration `json:"createTimeout" mapstructure:"createTimeout"`
	TickInterval       time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	SmoothingWindow    int           `json:"smoothingWindow" mapstructure:"smoothingWindow"`
	SmoothingExpiry    time.Duration `json:"smoothingExpiry" mapstructure:"smoothingExpiry"`
	LatencyWindow      int           `json:"latencyWindow" mapstructure:"latencyWindow"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path          string        `json:"path" mapstructure:"path"` // dump target; empty disables dumps
	DumpInterval  time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// SimulatorConfig describes the simulated runtime used when no device is attached
type SimulatorConfig struct {
	Payloads        []string      `json:"payloads" mapstructure:"payloads"`
	Spacing         float64       `json:"spacing" mapstructure:"spacing"` // meters between markers
	MarkerSize      float64       `json:"markerSize" mapstructure:"markerSize"`
	ContextPolls    int           `json:"contextPolls" mapstructure:"contextPolls"`
	SnapshotLatency time.Duration `json:"snapshotLatency" mapstructure:"snapshotLatency"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./markerlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("tracker.initialDiscovery", true)
	viper.SetDefault("tracker.discoveryCooldown", "1s")
	viper.SetDefault("tracker.createPollInterval", "1ms")
	viper.SetDefault("tracker.createTimeout", "10s")
	viper.SetDefault("tracker.tickInterval", "16ms")
	viper.SetDefault("tracker.smoothingWindow", 5)
	viper.SetDefault("tracker.smoothingExpiry", "10s")
	viper.SetDefault("tracker.latencyWindow", 16)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./sessions/markertracker.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.flushInterval", "2s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "markertracker")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "./status.json")

	viper.SetDefault("simulator.payloads", []string{"QR-1", "QR-2", "https://example.com/dock/1"})
	viper.SetDefault("simulator.spacing", 0.5)
	viper.SetDefault("simulator.markerSize", 0.15)
	viper.SetDefault("simulator.contextPolls", 3)
	viper.SetDefault("simulator.snapshotLatency", "150ms")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// Watch re-reads the config file on change and calls onChange with the
// tracker settings. The caller applies discovery toggling and logLevel live;
// other keys take effect on restart.
func Watch(onChange func(TrackerConfig)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		onChange(GetTrackerConfig())
	})
	viper.WatchConfig()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetTrackerConfig returns the tracker settings.
func GetTrackerConfig() TrackerConfig {
	return TrackerConfig{
		InitialDiscovery:   viper.GetBool("tracker.initialDiscovery"),
		DiscoveryCooldown:  viper.GetDuration("tracker.discoveryCooldown"),
		CreatePollInterval: viper.GetDuration("tracker.createPollInterval"),
		CreateTimeout:      viper.GetDuration("tracker.createTimeout"),
		TickInterval:       viper.GetDuration("tracker.tickInterval"),
		SmoothingWindow:    viper.GetInt("tracker.smoothingWindow"),
		SmoothingExpiry:    viper.GetDuration("tracker.smoothingExpiry"),
		LatencyWindow:      viper.GetInt("tracker.latencyWindow"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:          viper.GetString("storage.sqlite.path"),
			DumpInterval:  viper.GetDuration("storage.sqlite.dumpInterval"),
			FlushInterval: viper.GetDuration("storage.sqlite.flushInterval"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetSimulatorConfig returns the simulated runtime settings.
func GetSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Payloads:        viper.GetStringSlice("simulator.payloads"),
		Spacing:         viper.GetFloat64("simulator.spacing"),
		MarkerSize:      viper.GetFloat64("simulator.markerSize"),
		ContextPolls:    viper.GetInt("simulator.contextPolls"),
		SnapshotLatency: viper.GetDuration("simulator.snapshotLatency"),
	}
}
