package v1

import (
	"math"
	"sort"
	"time"

	"github.com/OCAP2/markertracker/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session   *core.Session
	Markers   map[uint]*MarkerRecord
	Snapshots []core.SnapshotSummary
}

// MarkerRecord groups a marker with all its sightings
type MarkerRecord struct {
	Marker    core.TrackedMarker
	Sightings []core.MarkerSighting
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	start := data.Session.StartTime
	export := Export{
		Version:   FormatVersion,
		SessionID: data.Session.ID,
		Runtime:   data.Session.Runtime,
		StartTime: start.UTC().Format(time.RFC3339Nano),
		Markers:   make([]Marker, 0, len(data.Markers)),
		Snapshots: make([]Snapshot, 0, len(data.Snapshots)),
	}
	if !data.Session.EndTime.IsZero() {
		export.EndTime = data.Session.EndTime.UTC().Format(time.RFC3339Nano)
		export.Duration = data.Session.EndTime.Sub(start).Seconds()
	}

	ids := make([]uint, 0, len(data.Markers))
	for id := range data.Markers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		record := data.Markers[id]
		marker := Marker{
			ID:        record.Marker.ID,
			Payload:   record.Marker.Payload,
			MarkerID:  record.Marker.MarkerID,
			FirstSeen: offsetMs(start, record.Marker.FirstSeen),
			LastSeen:  offsetMs(start, record.Marker.LastSeen),
			Sightings: make([][]any, 0, len(record.Sightings)),
		}
		for _, s := range record.Sightings {
			marker.Sightings = append(marker.Sightings, []any{
				offsetMs(start, s.Time),                      // [0] offsetMs
				position(s.Pose.Position),                    // [1] smoothed center
				orientation(s.Pose.Orientation),              // [2] smoothed rotation
				[]float64{s.Extents.Width, s.Extents.Height}, // [3] extents
				position(s.RawPose.Position),                 // [4] raw center
			})
		}
		export.Markers = append(export.Markers, marker)
	}

	for _, s := range data.Snapshots {
		payloads := s.Payloads
		if payloads == nil {
			payloads = []string{}
		}
		export.Snapshots = append(export.Snapshots, Snapshot{
			Offset:   offsetMs(start, s.Time),
			Count:    s.MarkerCount,
			Payloads: payloads,
			Error:    s.Error,
		})
	}

	return export
}

func offsetMs(start, t time.Time) int64 {
	return t.Sub(start).Milliseconds()
}

// position rounds to millimeters to keep exports compact
func position(p core.Position3D) []float64 {
	return []float64{round(p.X, 3), round(p.Y, 3), round(p.Z, 3)}
}

func orientation(q core.Quaternion) []float64 {
	return []float64{round(q.X, 5), round(q.Y, 5), round(q.Z, 5), round(q.W, 5)}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
