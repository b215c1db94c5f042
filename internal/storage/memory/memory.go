// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/markertracker/internal/config"
	v1 "github.com/OCAP2/markertracker/internal/storage/memory/export/v1"
	"github.com/OCAP2/markertracker/pkg/core"
)

// ErrNoSession is returned when data arrives outside a session
var ErrNoSession = errors.New("no active session")

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	markers   map[uint]*v1.MarkerRecord // keyed by assigned ID
	snapshots []core.SnapshotSummary

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		markers: make(map[uint]*v1.MarkerRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s

	// Reset all collections
	b.markers = make(map[uint]*v1.MarkerRecord)
	b.snapshots = nil
	b.idCounter = 0

	return nil
}

// EndSession stamps the end time and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	if b.session.EndTime.IsZero() {
		b.session.EndTime = time.Now()
	}
	return b.exportJSON()
}

// AddMarker registers a new marker
func (b *Backend) AddMarker(m *core.TrackedMarker) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}

	b.idCounter++
	m.ID = b.idCounter
	m.SessionID = b.session.ID

	b.markers[m.ID] = &v1.MarkerRecord{
		Marker:    *m,
		Sightings: make([]core.MarkerSighting, 0),
	}
	return nil
}

// TouchMarker advances a marker's last-seen time
func (b *Backend) TouchMarker(id uint, seen time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.markers[id]; ok && seen.After(record.Marker.LastSeen) {
		record.Marker.LastSeen = seen
	}
	return nil
}

// GetMarker looks up a marker by ID
func (b *Backend) GetMarker(id uint) (*core.TrackedMarker, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.markers[id]; ok {
		m := record.Marker
		return &m, true
	}
	return nil, false
}

// RecordSighting records a sighting against its marker
func (b *Backend) RecordSighting(s *core.MarkerSighting) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.markers[s.MarkerID]
	if !ok {
		return nil // silently ignore if marker not found
	}
	record.Sightings = append(record.Sightings, *s)
	return nil
}

// RecordSnapshot records a discovery cycle outcome
func (b *Backend) RecordSnapshot(s *core.SnapshotSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.snapshots = append(b.snapshots, *s)
	return nil
}
