package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// load writes body as the config file of a fresh directory and loads it.
// viper is reset when the test ends.
func load(t *testing.T, body string) string {
	t.Helper()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644))
	require.NoError(t, Load(dir))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	load(t, `{}`)

	want := map[string]any{
		"logLevel":                 "info",
		"logsDir":                  "./markerlogs",
		"graylog.enabled":          false,
		"graylog.address":          "localhost:12201",
		"storage.type":             "memory",
		"storage.memory.outputDir": "./sessions",
		"monitor.enabled":          true,
		"monitor.statusFile":       "./status.json",
	}
	for key, v := range want {
		assert.Equal(t, v, viper.Get(key), key)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	load(t, `{
		"logLevel": "debug",
		"tracker": { "initialDiscovery": false, "discoveryCooldown": "250ms" }
	}`)

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.False(t, GetBool("tracker.initialDiscovery"))
	assert.Equal(t, 250*time.Millisecond, viper.GetDuration("tracker.discoveryCooldown"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	err := Load(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("payload", "QR-1")
	viper.Set("window", 5)
	viper.Set("discovery", true)

	assert.Equal(t, "QR-1", GetString("payload"))
	assert.Equal(t, 5, GetInt("window"))
	assert.True(t, GetBool("discovery"))
}

func TestGetTrackerConfig(t *testing.T) {
	load(t, `{"tracker": {"smoothingWindow": 9, "tickInterval": "33ms"}}`)

	assert.Equal(t, TrackerConfig{
		InitialDiscovery:   true,
		DiscoveryCooldown:  time.Second,
		CreatePollInterval: time.Millisecond,
		CreateTimeout:      10 * time.Second,
		TickInterval:       33 * time.Millisecond,
		SmoothingWindow:    9,
		SmoothingExpiry:    10 * time.Second,
		LatencyWindow:      16,
	}, GetTrackerConfig())
}

func TestGetStorageConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want StorageConfig
	}{
		{
			name: "defaults",
			body: `{}`,
			want: StorageConfig{
				Type:   "memory",
				Memory: MemoryConfig{OutputDir: "./sessions", CompressOutput: true},
				SQLite: SQLiteConfig{
					Path:          "./sessions/markertracker.db",
					DumpInterval:  3 * time.Minute,
					FlushInterval: 2 * time.Second,
				},
			},
		},
		{
			name: "sqlite",
			body: `{"storage": {
				"type": "sqlite",
				"memory": {"outputDir": "/tmp/out", "compressOutput": false},
				"sqlite": {"path": "/tmp/t.db", "dumpInterval": "10m", "flushInterval": "500ms"}
			}}`,
			want: StorageConfig{
				Type:   "sqlite",
				Memory: MemoryConfig{OutputDir: "/tmp/out"},
				SQLite: SQLiteConfig{
					Path:          "/tmp/t.db",
					DumpInterval:  10 * time.Minute,
					FlushInterval: 500 * time.Millisecond,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			load(t, tt.body)
			assert.Equal(t, tt.want, GetStorageConfig())
		})
	}
}

func TestGetOTelConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		load(t, `{}`)
		cfg := GetOTelConfig()
		assert.False(t, cfg.Enabled)
		assert.Equal(t, "markertracker", cfg.ServiceName)
		assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
		assert.Equal(t, 30*time.Second, cfg.MetricInterval)
		assert.Empty(t, cfg.Endpoint)
		assert.True(t, cfg.Insecure)
	})

	t.Run("collector", func(t *testing.T) {
		load(t, `{"otel": {
			"enabled": true,
			"serviceName": "headset-a",
			"batchTimeout": "30s",
			"metricInterval": "1m",
			"endpoint": "localhost:4318",
			"insecure": false
		}}`)
		cfg := GetOTelConfig()
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "headset-a", cfg.ServiceName)
		assert.Equal(t, 30*time.Second, cfg.BatchTimeout)
		assert.Equal(t, time.Minute, cfg.MetricInterval)
		assert.Equal(t, "localhost:4318", cfg.Endpoint)
		assert.False(t, cfg.Insecure)
	})
}

func TestGetMonitorConfig(t *testing.T) {
	load(t, `{"monitor": {"interval": "5s"}}`)

	mc := GetMonitorConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, 5*time.Second, mc.Interval)
	assert.Equal(t, "./status.json", mc.StatusFile)
}

func TestGetSimulatorConfig(t *testing.T) {
	load(t, `{"simulator": {"payloads": ["A", "B"], "snapshotLatency": "20ms"}}`)

	sc := GetSimulatorConfig()
	assert.Equal(t, []string{"A", "B"}, sc.Payloads)
	assert.Equal(t, 0.5, sc.Spacing)
	assert.Equal(t, 0.15, sc.MarkerSize)
	assert.Equal(t, 3, sc.ContextPolls)
	assert.Equal(t, 20*time.Millisecond, sc.SnapshotLatency)
}

func TestWatch_ReportsTrackerChanges(t *testing.T) {
	dir := load(t, `{"tracker": {"initialDiscovery": true}}`)

	changes := make(chan TrackerConfig, 4)
	Watch(func(cfg TrackerConfig) {
		select {
		case changes <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"tracker": {"initialDiscovery": false}}`), 0o644))

	// a write can surface as several events, the first possibly mid-write
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if !cfg.InitialDiscovery {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
