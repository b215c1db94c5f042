package convert

import (
	"encoding/json"

	"github.com/OCAP2/markertracker/internal/geo"
	"github.com/OCAP2/markertracker/internal/model"
	"github.com/OCAP2/markertracker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToPosition3D converts a stored point, returning the origin for empty geometry
func pointToPosition3D(p geom.Point) core.Position3D {
	pos, err := geo.PositionFromPoint(p)
	if err != nil {
		return core.Position3D{}
	}
	return pos
}

func orientationToQuaternion(o model.Orientation) core.Quaternion {
	return core.Quaternion{X: o.X, Y: o.Y, Z: o.Z, W: o.W}
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:        s.ID,
		StartTime: s.StartTime,
		Runtime:   s.Runtime,
	}
	if s.EndTime.Valid {
		out.EndTime = s.EndTime.Time
	}
	return out
}

// MarkerToCore converts a GORM Marker to a core.TrackedMarker.
func MarkerToCore(m model.Marker) core.TrackedMarker {
	return core.TrackedMarker{
		ID:        m.ID,
		SessionID: m.SessionID,
		Payload:   m.Payload,
		MarkerID:  m.MarkerID,
		FirstSeen: m.FirstSeen,
		LastSeen:  m.LastSeen,
	}
}

// MarkerSightingToCore converts a GORM MarkerSighting to a core.MarkerSighting.
// The footprint is derived data and is not read back.
func MarkerSightingToCore(s model.MarkerSighting) core.MarkerSighting {
	return core.MarkerSighting{
		ID:        s.ID,
		SessionID: s.SessionID,
		MarkerID:  s.MarkerID,
		Time:      s.Time,
		Pose: core.Pose{
			Position:    pointToPosition3D(s.Position),
			Orientation: orientationToQuaternion(s.Orientation),
		},
		RawPose: core.Pose{
			Position:    pointToPosition3D(s.RawPosition),
			Orientation: orientationToQuaternion(s.RawOrientation),
		},
		Extents: core.Extent2D{Width: float64(s.Width), Height: float64(s.Height)},
	}
}

// SnapshotToCore converts a GORM Snapshot to a core.SnapshotSummary.
func SnapshotToCore(s model.Snapshot) core.SnapshotSummary {
	var payloads []string
	if len(s.Payloads) > 0 {
		_ = json.Unmarshal(s.Payloads, &payloads)
	}
	return core.SnapshotSummary{
		ID:          s.ID,
		SessionID:   s.SessionID,
		Time:        s.Time,
		MarkerCount: int(s.MarkerCount),
		Payloads:    payloads,
		Error:       s.Error,
	}
}
