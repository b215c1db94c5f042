// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/OCAP2/markertracker/internal/geo"
	"github.com/OCAP2/markertracker/internal/model"
	"github.com/OCAP2/markertracker/pkg/core"
	"gorm.io/datatypes"
)

// payloadsToJSON converts a []string to datatypes.JSON for DB storage.
func payloadsToJSON(payloads []string) datatypes.JSON {
	if len(payloads) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(payloads)
	return datatypes.JSON(data)
}

func quaternionToOrientation(q core.Quaternion) model.Orientation {
	return model.Orientation{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}

// CoreToSession converts a core.Session to a GORM model.Session.
// A zero EndTime is stored as NULL.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		ID:        s.ID,
		StartTime: s.StartTime,
		EndTime:   sql.NullTime{Time: s.EndTime, Valid: !s.EndTime.IsZero()},
		Runtime:   s.Runtime,
	}
}

// CoreToMarker converts a core.TrackedMarker to a GORM model.Marker.
func CoreToMarker(m core.TrackedMarker) model.Marker {
	return model.Marker{
		ID:        m.ID,
		SessionID: m.SessionID,
		Payload:   m.Payload,
		MarkerID:  m.MarkerID,
		FirstSeen: m.FirstSeen,
		LastSeen:  m.LastSeen,
	}
}

// CoreToMarkerSighting converts a core.MarkerSighting to a GORM model.MarkerSighting.
// The footprint is computed from the smoothed pose.
func CoreToMarkerSighting(s core.MarkerSighting) model.MarkerSighting {
	return model.MarkerSighting{
		ID:             s.ID,
		Time:           s.Time,
		SessionID:      s.SessionID,
		MarkerID:       s.MarkerID,
		Position:       geo.PointFromPosition(s.Pose.Position),
		RawPosition:    geo.PointFromPosition(s.RawPose.Position),
		Orientation:    quaternionToOrientation(s.Pose.Orientation),
		RawOrientation: quaternionToOrientation(s.RawPose.Orientation),
		Footprint:      geo.Footprint(s.Pose, s.Extents),
		Width:          float32(s.Extents.Width),
		Height:         float32(s.Extents.Height),
	}
}

// CoreToSnapshot converts a core.SnapshotSummary to a GORM model.Snapshot.
func CoreToSnapshot(s core.SnapshotSummary) model.Snapshot {
	return model.Snapshot{
		ID:          s.ID,
		Time:        s.Time,
		SessionID:   s.SessionID,
		MarkerCount: uint16(s.MarkerCount),
		Payloads:    payloadsToJSON(s.Payloads),
		Error:       s.Error,
	}
}
