// Package v1 contains the v1 export format for tracking sessions.
package v1

// FormatVersion is written into every v1 export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	Version   int        `json:"version"`
	SessionID string     `json:"sessionId"`
	Runtime   string     `json:"runtime"`
	StartTime string     `json:"startTime"` // RFC3339Nano, UTC
	EndTime   string     `json:"endTime,omitempty"`
	Duration  float64    `json:"duration"` // seconds
	Markers   []Marker   `json:"markers"`
	Snapshots []Snapshot `json:"snapshots"`
}

// Marker is one payload with its sightings.
//
// Sightings format: [offsetMs, [x, y, z], [qx, qy, qz, qw], [width, height], [rawX, rawY, rawZ]]
// where offsetMs is relative to the session start.
type Marker struct {
	ID        uint    `json:"id"`
	Payload   string  `json:"payload"`
	MarkerID  uint32  `json:"markerId"`
	FirstSeen int64   `json:"firstSeen"` // offsetMs
	LastSeen  int64   `json:"lastSeen"`  // offsetMs
	Sightings [][]any `json:"sightings"`
}

// Snapshot is one discovery cycle outcome
type Snapshot struct {
	Offset   int64    `json:"offset"` // offsetMs
	Count    int      `json:"count"`
	Payloads []string `json:"payloads"`
	Error    string   `json:"error,omitempty"`
}
