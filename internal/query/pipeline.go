// Package query turns a completed discovery snapshot into marker records.
package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/OCAP2/markertracker/pkg/core"
	"github.com/OCAP2/markertracker/pkg/spatial"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Dependencies holds the collaborators a Pipeline needs.
type Dependencies struct {
	API    spatial.SpatialEntityAPI
	Logger *slog.Logger
}

// Pipeline runs the complete, count, typed and decode steps for one snapshot.
// It is not safe for concurrent use; one Pipeline serves one poll loop.
type Pipeline struct {
	api        spatial.SpatialEntityAPI
	logger     *slog.Logger
	capability spatial.Capability
	cond       spatial.QueryCondition
	buf        *Buffers

	decoded metric.Int64Counter
	skipped metric.Int64Counter
}

// New creates a Pipeline querying the given components for capability.
func New(deps Dependencies, capability spatial.Capability, components []spatial.ComponentType) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		api:        deps.API,
		logger:     logger,
		capability: capability,
		cond:       spatial.QueryCondition{ComponentTypes: append([]spatial.ComponentType(nil), components...)},
		buf:        NewBuffers(capability),
	}

	var err error
	m := meter()
	p.decoded, err = m.Int64Counter("tracker.markers.decoded",
		metric.WithDescription("Marker payloads decoded from snapshots"),
	)
	if err != nil {
		return nil, fmt.Errorf("create decoded counter: %w", err)
	}
	p.skipped, err = m.Int64Counter("tracker.markers.skipped",
		metric.WithDescription("Snapshot entities not reported as markers"),
	)
	if err != nil {
		return nil, fmt.Errorf("create skipped counter: %w", err)
	}
	return p, nil
}

// Run completes the snapshot future f and returns the markers it found, in
// backend order. The snapshot is destroyed before Run returns. A non-nil
// empty slice means the snapshot completed with no reportable markers.
func (p *Pipeline) Run(sc spatial.Context, f spatial.Future, space spatial.Space, t spatial.Time) ([]core.MarkerRecord, error) {
	completion, res := p.api.CreateSpatialDiscoverySnapshotComplete(sc, &spatial.SnapshotCompletionInfo{
		BaseSpace: space,
		Time:      t,
		Future:    f,
	})
	if err := spatial.Check(spatial.OpCreateSnapshotComplete, res); err != nil {
		return nil, err
	}
	if err := spatial.Check(spatial.OpCreateSnapshotComplete, completion.FutureResult); err != nil {
		return nil, err
	}
	defer p.destroy(completion.Snapshot)

	n, err := p.count(completion.Snapshot)
	if err != nil {
		return nil, err
	}

	result := p.buf.typedView(n)
	if err := spatial.Check(spatial.OpQueryComponentData,
		p.api.QuerySpatialComponentData(completion.Snapshot, &p.cond, result)); err != nil {
		return nil, fmt.Errorf("typed pass: %w", err)
	}
	// The typed pass must not report more entities than the lists were sized for.
	if result.EntityIDCountOutput < n {
		n = result.EntityIDCountOutput
	}

	return p.collect(completion.Snapshot, n)
}

// count runs the entity-only pass and returns how many entities the snapshot holds.
func (p *Pipeline) count(snapshot spatial.Snapshot) (uint32, error) {
	result := p.buf.countView()
	if err := spatial.Check(spatial.OpQueryComponentData,
		p.api.QuerySpatialComponentData(snapshot, &p.cond, result)); err != nil {
		return 0, fmt.Errorf("count pass: %w", err)
	}

	n := result.EntityIDCountOutput
	if n > MaxMarkers || result.EntityStateCountOutput > MaxMarkers {
		return 0, fmt.Errorf("count pass returned %d entities: %w", n,
			&spatial.BackendError{Op: spatial.OpQueryComponentData, Code: spatial.ErrorSizeInsufficient})
	}
	return n, nil
}

func (p *Pipeline) collect(snapshot spatial.Snapshot, n uint32) ([]core.MarkerRecord, error) {
	records := make([]core.MarkerRecord, 0, n)
	var skipped int64

	for i := uint32(0); i < n; i++ {
		state := p.buf.entityStates[i]
		marker := p.buf.markers[i]

		if !p.reportable(state, marker) {
			p.logger.Debug("skipping marker entity",
				"entity", p.buf.entityIDs[i],
				"state", state,
				"capability", marker.Capability,
				"bufferID", marker.Data.BufferID,
				"bufferType", marker.Data.BufferType,
			)
			skipped++
			continue
		}

		payload, err := p.readString(snapshot, marker.Data.BufferID)
		if err != nil {
			if errors.Is(err, spatial.ErrDecode) {
				p.logger.Warn("failed to decode marker payload",
					"entity", p.buf.entityIDs[i],
					"error", err,
				)
				skipped++
				continue
			}
			return nil, err
		}

		bounds := p.buf.bounds[i]
		records = append(records, core.MarkerRecord{
			EntityID: uint64(p.buf.entityIDs[i]),
			MarkerID: marker.MarkerID,
			Payload:  payload,
			Pose:     core.PoseFromSpatial(bounds.Center),
			Extents:  core.ExtentFromSpatial(bounds.Extents),
		})
	}

	attrs := metric.WithAttributes(attribute.String("capability", p.capability.String()))
	p.decoded.Add(context.Background(), int64(len(records)), attrs)
	if skipped > 0 {
		p.skipped.Add(context.Background(), skipped, attrs)
	}
	return records, nil
}

func (p *Pipeline) reportable(state spatial.TrackingState, marker spatial.MarkerData) bool {
	return state == spatial.TrackingStateTracking &&
		marker.Capability == p.capability &&
		marker.Data.BufferID != spatial.NullBufferID &&
		marker.Data.BufferType == spatial.BufferTypeString
}

// readString reads a string buffer into the fixed text buffer. Payloads that
// do not fit, lack a terminator or are not UTF-8 are reported as ErrDecode.
func (p *Pipeline) readString(snapshot spatial.Snapshot, id spatial.BufferID) (string, error) {
	text := p.buf.text[:]
	written, res := p.api.GetSpatialBufferString(snapshot, id, text)
	if res == spatial.ErrorSizeInsufficient {
		return "", fmt.Errorf("%w: payload needs %d bytes, have %d", spatial.ErrDecode, written, len(text))
	}
	if err := spatial.Check(spatial.OpGetBufferString, res); err != nil {
		return "", err
	}
	if written == 0 || int(written) > len(text) {
		return "", fmt.Errorf("%w: runtime wrote %d bytes", spatial.ErrDecode, written)
	}

	end := bytes.IndexByte(text[:written], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: missing terminator", spatial.ErrDecode)
	}
	if !utf8.Valid(text[:end]) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8", spatial.ErrDecode)
	}
	return string(text[:end]), nil
}

func (p *Pipeline) destroy(snapshot spatial.Snapshot) {
	if err := spatial.Check(spatial.OpDestroySnapshot, p.api.DestroySpatialSnapshot(snapshot)); err != nil {
		p.logger.Warn("failed to destroy snapshot", "snapshot", snapshot, "error", err)
	}
}
