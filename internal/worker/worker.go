// Package worker turns the batches published by the tracking loop into
// storage rows: one tracked marker per payload, one sighting per record and
// one summary per snapshot.
package worker

import (
	"log/slog"
	"time"

	"github.com/OCAP2/markertracker/internal/cache"
	"github.com/OCAP2/markertracker/internal/storage"
)

// Dependencies are optional; NewManager fills in defaults.
type Dependencies struct {
	MarkerCache *cache.MarkerCache
	PoseCache   *cache.PoseCache
	Logger      *slog.Logger
}

// Manager records marker batches into a storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager returns a manager writing to backend. Without a PoseCache poses
// are stored unsmoothed.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.MarkerCache == nil {
		deps.MarkerCache = cache.NewMarkerCache()
	}
	if deps.PoseCache == nil {
		deps.PoseCache = cache.NewPoseCache(1, 0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "worker")
	return &Manager{deps: deps, backend: backend}
}

// reset forgets every payload seen so far. RunLoop calls it on entry, since
// each loop run records a new session.
func (m *Manager) reset() {
	m.deps.MarkerCache.Reset()
	m.deps.PoseCache.Reset()
}

// TrackedPayloads lists the payloads recorded in the current session.
func (m *Manager) TrackedPayloads() []string {
	return m.deps.MarkerCache.Payloads()
}

// writeTimer is implemented by backends that batch their writes.
type writeTimer interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration reports how long the backend's last write cycle
// took, or 0 for backends that write synchronously.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if w, ok := m.backend.(writeTimer); ok {
		return w.GetLastDBWriteDuration()
	}
	return 0
}
