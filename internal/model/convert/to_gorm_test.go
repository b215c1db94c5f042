package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var when = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPayloadsToJSON(t *testing.T) {
	assert.JSONEq(t, `[]`, string(payloadsToJSON(nil)))
	assert.JSONEq(t, `["QR-1","https://example.com/a?b=c"]`,
		string(payloadsToJSON([]string{"QR-1", "https://example.com/a?b=c"})))
}

func TestCoreToSession(t *testing.T) {
	open := CoreToSession(core.Session{ID: "6f1c", StartTime: when, Runtime: "sim"})
	assert.Equal(t, "6f1c", open.ID)
	assert.False(t, open.EndTime.Valid)

	closed := CoreToSession(core.Session{ID: "6f1c", StartTime: when, EndTime: when.Add(time.Hour)})
	require.True(t, closed.EndTime.Valid)
	assert.Equal(t, when.Add(time.Hour), closed.EndTime.Time)
}

func TestCoreToMarker(t *testing.T) {
	m := CoreToMarker(core.TrackedMarker{
		ID: 3, SessionID: "s", Payload: "QR-42", MarkerID: 9,
		FirstSeen: when, LastSeen: when.Add(time.Second),
	})
	assert.Equal(t, uint(3), m.ID)
	assert.Equal(t, "QR-42", m.Payload)
	assert.Equal(t, uint32(9), m.MarkerID)
	assert.Equal(t, when.Add(time.Second), m.LastSeen)
}

func TestCoreToMarkerSighting(t *testing.T) {
	s := CoreToMarkerSighting(core.MarkerSighting{
		SessionID: "s",
		MarkerID:  3,
		Time:      when,
		Pose:      core.Pose{Position: core.Position3D{X: 1, Y: 2, Z: -3}, Orientation: core.IdentityQuaternion},
		RawPose:   core.Pose{Position: core.Position3D{X: 1.5, Y: 2, Z: -3}, Orientation: core.IdentityQuaternion},
		Extents:   core.Extent2D{Width: 0.25, Height: 0.5},
	})

	c, ok := s.Position.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1.0, c.X)
	assert.Equal(t, -3.0, c.Z)

	raw, ok := s.RawPosition.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 1.5, raw.X)

	assert.Equal(t, 1.0, s.Orientation.W)
	assert.Equal(t, float32(0.25), s.Width)
	assert.Equal(t, float32(0.5), s.Height)
	assert.True(t, s.Footprint.IsClosed())
	assert.Equal(t, 5, s.Footprint.Coordinates().Length())
}

func TestCoreToSnapshot(t *testing.T) {
	s := CoreToSnapshot(core.SnapshotSummary{
		SessionID: "s", Time: when, MarkerCount: 2, Payloads: []string{"a", "b"},
	})
	assert.Equal(t, uint16(2), s.MarkerCount)

	var payloads []string
	require.NoError(t, json.Unmarshal(s.Payloads, &payloads))
	assert.Equal(t, []string{"a", "b"}, payloads)

	failed := CoreToSnapshot(core.SnapshotSummary{Error: "query: size insufficient"})
	assert.Equal(t, "query: size insufficient", failed.Error)
	assert.JSONEq(t, `[]`, string(failed.Payloads))
}
