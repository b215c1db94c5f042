// pkg/core/marker.go
package core

import "time"

// MarkerRecord is one decoded marker from a completed discovery snapshot.
type MarkerRecord struct {
	EntityID uint64   `json:"entityId"`
	MarkerID uint32   `json:"markerId"`
	Payload  string   `json:"payload"`
	Pose     Pose     `json:"pose"`
	Extents  Extent2D `json:"extents"`
}

// MarkerBatch is the full set of markers found by one snapshot. Each batch
// replaces the previous one; it is not a delta.
type MarkerBatch struct {
	Time    time.Time      `json:"time"`
	Records []MarkerRecord `json:"records"`
}

// TrackedMarker is a payload seen at least once during a tracking session.
// ID is assigned by the storage backend.
type TrackedMarker struct {
	ID        uint
	SessionID string
	Payload   string
	MarkerID  uint32
	FirstSeen time.Time
	LastSeen  time.Time
}

// MarkerSighting is one observation of a tracked marker.
type MarkerSighting struct {
	ID        uint
	SessionID string
	MarkerID  uint // TrackedMarker.ID
	Time      time.Time
	Pose      Pose // smoothed
	RawPose   Pose
	Extents   Extent2D
}

// SnapshotSummary describes one completed (or failed) discovery cycle.
type SnapshotSummary struct {
	ID          uint
	SessionID   string
	Time        time.Time
	MarkerCount int
	Payloads    []string
	Error       string
}

// Session is one run of the tracker against a runtime session.
type Session struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
	Runtime   string
}
