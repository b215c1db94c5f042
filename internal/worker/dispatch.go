package worker

import (
	"errors"
	"fmt"

	"github.com/OCAP2/markertracker/internal/dispatcher"
	"github.com/OCAP2/markertracker/pkg/core"
)

// Commands published by the tracking loop.
const (
	CommandSnapshot = ":MARKERS:SNAPSHOT:"
	CommandError    = ":TRACKER:ERROR:"
)

// ErrUnexpectedPayload is returned when an event carries the wrong payload type.
var ErrUnexpectedPayload = errors.New("unexpected event payload")

// RegisterHandlers registers the recording handlers with the dispatcher.
// Both are buffered so the poll loop never waits on storage.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CommandSnapshot, m.handleSnapshot, dispatcher.Buffered(64), dispatcher.Logged())
	d.Register(CommandError, m.handleError, dispatcher.Buffered(64), dispatcher.Logged())
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	batch, ok := e.Payload.(core.MarkerBatch)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", CommandSnapshot, ErrUnexpectedPayload, e.Payload)
	}
	if batch.Time.IsZero() {
		batch.Time = e.Timestamp
	}

	var errs []error
	payloads := make([]string, 0, len(batch.Records))
	for _, rec := range batch.Records {
		payloads = append(payloads, rec.Payload)
		if err := m.recordSighting(batch, rec); err != nil {
			errs = append(errs, err)
		}
	}

	summary := core.SnapshotSummary{
		Time:        batch.Time,
		MarkerCount: len(batch.Records),
		Payloads:    payloads,
	}
	if err := m.backend.RecordSnapshot(&summary); err != nil {
		errs = append(errs, fmt.Errorf("failed to record snapshot: %w", err))
	}

	return nil, errors.Join(errs...)
}

// recordSighting resolves the payload to a tracked marker, creating it on
// first sight, and stores the smoothed pose.
func (m *Manager) recordSighting(batch core.MarkerBatch, rec core.MarkerRecord) error {
	id, created, err := m.deps.MarkerCache.Resolve(rec.Payload, func() (uint, error) {
		marker := core.TrackedMarker{
			Payload:   rec.Payload,
			MarkerID:  rec.MarkerID,
			FirstSeen: batch.Time,
			LastSeen:  batch.Time,
		}
		if err := m.backend.AddMarker(&marker); err != nil {
			return 0, err
		}
		return marker.ID, nil
	})
	switch {
	case err != nil:
		return fmt.Errorf("failed to add marker %q: %w", rec.Payload, err)
	case created:
		m.deps.Logger.Info("New marker", "payload", rec.Payload, "id", id, "markerId", rec.MarkerID)
	default:
		if err := m.backend.TouchMarker(id, batch.Time); err != nil {
			return fmt.Errorf("failed to touch marker %q: %w", rec.Payload, err)
		}
	}

	sighting := core.MarkerSighting{
		MarkerID: id,
		Time:     batch.Time,
		Pose:     m.deps.PoseCache.Observe(rec.Payload, rec.Pose, batch.Time),
		RawPose:  rec.Pose,
		Extents:  rec.Extents,
	}
	if err := m.backend.RecordSighting(&sighting); err != nil {
		return fmt.Errorf("failed to record sighting of %q: %w", rec.Payload, err)
	}
	return nil
}

func (m *Manager) handleError(e dispatcher.Event) (any, error) {
	err, ok := e.Payload.(error)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", CommandError, ErrUnexpectedPayload, e.Payload)
	}

	summary := core.SnapshotSummary{
		Time:  e.Timestamp,
		Error: err.Error(),
	}
	if err := m.backend.RecordSnapshot(&summary); err != nil {
		return nil, fmt.Errorf("failed to record snapshot error: %w", err)
	}
	return nil, nil
}
