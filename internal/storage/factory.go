// internal/storage/factory.go
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/OCAP2/markertracker/internal/config"
	"github.com/OCAP2/markertracker/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/markertracker/internal/storage/sqlite"
)

// ErrUnknownType is returned for a storage.type with no backend.
var ErrUnknownType = errors.New("unknown storage type")

type constructor func(config.StorageConfig, *slog.Logger) Backend

var backends = map[string]constructor{
	"memory": func(cfg config.StorageConfig, _ *slog.Logger) Backend { return memory.New(cfg.Memory) },
	"sqlite": func(cfg config.StorageConfig, log *slog.Logger) Backend { return sqlitestorage.New(cfg.SQLite, log) },
}

// Types lists the accepted storage.type values.
func Types() []string {
	out := make([]string, 0, len(backends))
	for name := range backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewBackend returns the uninitialized backend named by cfg.Type.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	ctor, ok := backends[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownType, cfg.Type, Types())
	}
	return ctor(cfg, logger), nil
}
