package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Marker{},
	&MarkerSighting{},
	&Snapshot{},
	&TrackerPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// TrackerPerformance is a periodic sample of tracker health written by the status monitor
type TrackerPerformance struct {
	Time               time.Time         `json:"time" gorm:"index:idx_trackerperformance_time"`
	SessionID          string            `json:"sessionId" gorm:"size:36;index:idx_trackerperformance_session_id"`
	Session            Session           `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	DiscoveryEnabled   bool              `json:"discoveryEnabled"`
	SnapshotsRequested uint64            `json:"snapshotsRequested"`
	SnapshotsCompleted uint64            `json:"snapshotsCompleted"`
	Errors             uint64            `json:"errors"`
	LastBatchSize      uint16            `json:"lastBatchSize"`
	AverageLatencyMs   float32           `json:"averageLatencyMs"`
	LastWriteMs        float32           `json:"lastWriteMs"`
	WriteQueueLengths  WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
}

func (*TrackerPerformance) TableName() string {
	return "tracker_performances"
}

// WriteQueueLengths counts rows waiting for the SQLite writer. Markers are
// inserted synchronously and never queue.
type WriteQueueLengths struct {
	Sightings uint32 `json:"sightings"`
	Snapshots uint32 `json:"snapshots"`
}

////////////////////////
// TRACKING MODELS
////////////////////////

// Session is one run of the tracker against a runtime session
type Session struct {
	ID        string       `json:"id" gorm:"primarykey;size:36"` // UUID
	StartTime time.Time    `json:"startTime" gorm:"index:idx_session_start"`
	EndTime   sql.NullTime `json:"endTime"`
	Runtime   string       `json:"runtime" gorm:"size:127"`
	Markers   []Marker     `json:"-"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Marker is a distinct payload seen during a session
type Marker struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID string    `json:"sessionId" gorm:"size:36;uniqueIndex:idx_marker_session_payload"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Payload   string    `json:"payload" gorm:"size:256;uniqueIndex:idx_marker_session_payload"` // Decoded QR text
	MarkerID  uint32    `json:"markerId"`                                                       // Runtime marker id of the first sighting
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

func (*Marker) TableName() string {
	return "markers"
}

// Orientation is a unit quaternion stored as four columns
type Orientation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// MarkerSighting is one observation of a marker in a completed snapshot
type MarkerSighting struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_markersighting_time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_markersighting_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	MarkerID  uint      `json:"markerId" gorm:"index:idx_markersighting_marker_id"` // Database ID of parent Marker
	Marker    Marker    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MarkerID;"`

	Position       geom.Point      `json:"position"`    // Smoothed center
	RawPosition    geom.Point      `json:"rawPosition"` // Center as reported by the runtime
	Orientation    Orientation     `json:"orientation" gorm:"embedded;embeddedPrefix:orient_"`
	RawOrientation Orientation     `json:"rawOrientation" gorm:"embedded;embeddedPrefix:raw_orient_"`
	Footprint      geom.LineString `json:"footprint"` // Closed outline of the marker plane
	Width          float32         `json:"width"`
	Height         float32         `json:"height"`
}

func (*MarkerSighting) TableName() string {
	return "marker_sightings"
}

// Snapshot records the outcome of one discovery cycle
type Snapshot struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time      `json:"time" gorm:"index:idx_snapshot_time"`
	SessionID   string         `json:"sessionId" gorm:"size:36;index:idx_snapshot_session_id"`
	Session     Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	MarkerCount uint16         `json:"markerCount"`
	Payloads    datatypes.JSON `json:"payloads"`
	Error       string         `json:"error" gorm:"size:512"`
}

func (*Snapshot) TableName() string {
	return "snapshots"
}
