package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/markertracker/internal/config"
	"github.com/OCAP2/markertracker/internal/storage"
)

// sessionDBPath stamps the session start time into the dump file name so
// every run keeps its own SQLite file.
func sessionDBPath(path string, start time.Time) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = ".db"
	}
	return fmt.Sprintf("%s_%s%s", base, start.Format("20060102_150405"), ext)
}

func initStorage() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "sqlite" {
		storageCfg.SQLite.Path = sessionDBPath(storageCfg.SQLite.Path, SessionStartTime)
	}

	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	Logger.Info("Storage backend initialized", "type", storageCfg.Type, "sqlitePath", storageCfg.SQLite.Path)
	return backend, nil
}
