// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/OCAP2/markertracker/internal/model"
	"github.com/OCAP2/markertracker/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Marker registration (assigns ID to the passed pointer)
	AddMarker(m *core.TrackedMarker) error
	TouchMarker(id uint, seen time.Time) error

	// Recording
	RecordSighting(s *core.MarkerSighting) error
	RecordSnapshot(s *core.SnapshotSummary) error
}

// Exportable is an optional interface for backends that write a session
// file when the session ends.
type Exportable interface {
	GetExportedFilePath() string
}

// PerformanceRecorder is an optional interface for backends that persist
// status monitor samples.
type PerformanceRecorder interface {
	RecordPerformance(p model.TrackerPerformance) error
}

// QueueReporter is an optional interface for backends that batch writes.
type QueueReporter interface {
	WriteQueueLengths() model.WriteQueueLengths
}
