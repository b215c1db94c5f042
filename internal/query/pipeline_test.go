package query

import (
	"fmt"
	"testing"

	"github.com/OCAP2/markertracker/internal/simulator"
	"github.com/OCAP2/markertracker/pkg/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var components = []spatial.ComponentType{spatial.ComponentTypeBounded2D, spatial.ComponentTypeMarker}

func qr(id spatial.EntityID, state spatial.TrackingState, payload string) simulator.Entity {
	return simulator.Entity{
		ID:         id,
		State:      state,
		Capability: spatial.CapabilityMarkerTrackingQRCode,
		MarkerID:   uint32(id),
		BufferType: spatial.BufferTypeString,
		Payload:    payload,
		Bounds: spatial.Bounded2DData{
			Center: spatial.Posef{
				Orientation: spatial.Quaternionf{W: 1},
				Position:    spatial.Vector3f{X: float32(id), Y: 1.5, Z: -2},
			},
			Extents: spatial.Extent2Df{Width: 0.1, Height: 0.1},
		},
	}
}

type fixture struct {
	rt       *simulator.Runtime
	ctx      spatial.Context
	pipeline *Pipeline
}

func newFixture(t *testing.T, cfg simulator.Config, entities ...simulator.Entity) *fixture {
	t.Helper()
	rt := simulator.New(cfg, entities...)

	f, res := rt.CreateSpatialContextAsync(rt.Handle(), &spatial.ContextCreateInfo{
		CapabilityConfigs: []spatial.CapabilityConfig{{
			Capability:        spatial.CapabilityMarkerTrackingQRCode,
			EnabledComponents: components,
		}},
	})
	require.Equal(t, spatial.Success, res)
	completion, res := rt.CreateSpatialContextComplete(rt.Handle(), f)
	require.Equal(t, spatial.Success, res)
	require.Equal(t, spatial.Success, completion.FutureResult)

	p, err := New(Dependencies{API: rt}, spatial.CapabilityMarkerTrackingQRCode, components)
	require.NoError(t, err)
	return &fixture{rt: rt, ctx: completion.Context, pipeline: p}
}

func (fx *fixture) snapshot(t *testing.T) spatial.Future {
	t.Helper()
	f, res := fx.rt.CreateSpatialDiscoverySnapshotAsync(fx.ctx, &spatial.SnapshotCreateInfo{ComponentTypes: components})
	require.Equal(t, spatial.Success, res)
	return f
}

func (fx *fixture) run(t *testing.T) ([]string, error) {
	t.Helper()
	records, err := fx.pipeline.Run(fx.ctx, fx.snapshot(t), 1, 1000)
	if err != nil {
		return nil, err
	}
	payloads := make([]string, 0, len(records))
	for _, r := range records {
		payloads = append(payloads, r.Payload)
	}
	return payloads, nil
}

func TestRun_TrackingMarkerWithPose(t *testing.T) {
	fx := newFixture(t, simulator.Config{},
		qr(1, spatial.TrackingStateTracking, "QR-42"),
		qr(2, spatial.TrackingStateStopped, "QR-43"),
	)

	records, err := fx.pipeline.Run(fx.ctx, fx.snapshot(t), 1, 1000)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "QR-42", r.Payload)
	assert.EqualValues(t, 1, r.EntityID)
	assert.EqualValues(t, 1, r.MarkerID)
	assert.InDelta(t, 1.0, r.Pose.Position.X, 1e-6)
	assert.InDelta(t, 1.5, r.Pose.Position.Y, 1e-6)
	assert.InDelta(t, -2.0, r.Pose.Position.Z, 1e-6)
	assert.InDelta(t, 1.0, r.Pose.Orientation.W, 1e-6)
	assert.InDelta(t, 0.1, r.Extents.Width, 1e-6)
}

func TestRun_Filters(t *testing.T) {
	wrongCap := qr(3, spatial.TrackingStateTracking, "aruco")
	wrongCap.Capability = spatial.CapabilityMarkerTrackingArucoMkr
	noBuffer := qr(4, spatial.TrackingStateTracking, "none")
	noBuffer.NoBuffer = true
	binary := qr(5, spatial.TrackingStateTracking, "bytes")
	binary.BufferType = spatial.BufferTypeUint8

	fx := newFixture(t, simulator.Config{},
		qr(1, spatial.TrackingStateTracking, "first"),
		qr(2, spatial.TrackingStatePaused, "paused"),
		wrongCap,
		noBuffer,
		binary,
		qr(6, spatial.TrackingStateTracking, "last"),
	)

	payloads, err := fx.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "last"}, payloads, "backend order is kept")
	assert.Equal(t, 2, fx.rt.Calls(spatial.OpGetBufferString), "only reportable entities are read")
}

func TestRun_EmptySnapshot(t *testing.T) {
	fx := newFixture(t, simulator.Config{})

	records, err := fx.pipeline.Run(fx.ctx, fx.snapshot(t), 1, 1000)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestRun_DecodeFailureSkipsRecord(t *testing.T) {
	invalid := qr(2, spatial.TrackingStateTracking, "")
	invalid.RawPayload = []byte{0xff, 0xfe, 'x'}
	oversized := qr(3, spatial.TrackingStateTracking, string(make([]byte, PayloadCapacity)))

	fx := newFixture(t, simulator.Config{},
		qr(1, spatial.TrackingStateTracking, "ok-1"),
		invalid,
		oversized,
		qr(4, spatial.TrackingStateTracking, "ok-4"),
	)

	payloads, err := fx.run(t)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok-1", "ok-4"}, payloads)
}

func TestRun_PayloadAtCapacity(t *testing.T) {
	long := make([]byte, PayloadCapacity-1)
	for i := range long {
		long[i] = 'a'
	}
	fx := newFixture(t, simulator.Config{}, qr(1, spatial.TrackingStateTracking, string(long)))

	payloads, err := fx.run(t)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Len(t, payloads[0], PayloadCapacity-1)
}

func TestRun_CompletionFailure(t *testing.T) {
	fx := newFixture(t, simulator.Config{SnapshotFutureResult: spatial.ErrorRuntimeFailure},
		qr(1, spatial.TrackingStateTracking, "QR-42"),
	)

	_, err := fx.run(t)
	var be *spatial.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, spatial.ErrorRuntimeFailure, be.Code)
	assert.Equal(t, spatial.OpCreateSnapshotComplete, be.Op)
	assert.Equal(t, 0, fx.rt.Calls(spatial.OpQueryComponentData))
}

func TestRun_QueryFailure(t *testing.T) {
	fx := newFixture(t, simulator.Config{}, qr(1, spatial.TrackingStateTracking, "QR-42"))
	fx.rt.FailNext(spatial.OpQueryComponentData, spatial.ErrorRuntimeFailure)

	_, err := fx.run(t)
	assert.ErrorIs(t, err, &spatial.BackendError{Code: spatial.ErrorRuntimeFailure})
	assert.Equal(t, 0, fx.rt.LiveSnapshots(), "snapshot destroyed on failure")
}

func TestRun_BufferReadFailureFailsBatch(t *testing.T) {
	fx := newFixture(t, simulator.Config{}, qr(1, spatial.TrackingStateTracking, "QR-42"))
	fx.rt.FailNext(spatial.OpGetBufferString, spatial.ErrorSpatialBufferIDInvalid)

	_, err := fx.run(t)
	assert.ErrorIs(t, err, &spatial.BackendError{Code: spatial.ErrorSpatialBufferIDInvalid})
}

func TestRun_TooManyEntities(t *testing.T) {
	entities := make([]simulator.Entity, MaxMarkers+1)
	for i := range entities {
		entities[i] = qr(spatial.EntityID(i+1), spatial.TrackingStateTracking, fmt.Sprintf("QR-%d", i))
	}
	fx := newFixture(t, simulator.Config{}, entities...)

	_, err := fx.run(t)
	assert.ErrorIs(t, err, &spatial.BackendError{Code: spatial.ErrorSizeInsufficient})
}

func TestRun_FullCapacity(t *testing.T) {
	entities := make([]simulator.Entity, MaxMarkers)
	for i := range entities {
		entities[i] = qr(spatial.EntityID(i+1), spatial.TrackingStateTracking, fmt.Sprintf("QR-%d", i))
	}
	fx := newFixture(t, simulator.Config{StrictCapacity: true}, entities...)

	payloads, err := fx.run(t)
	require.NoError(t, err)
	assert.Len(t, payloads, MaxMarkers)
}

func TestRun_QueryShape(t *testing.T) {
	fx := newFixture(t, simulator.Config{StrictCapacity: true},
		qr(1, spatial.TrackingStateTracking, "a"),
		qr(2, spatial.TrackingStateTracking, "b"),
		qr(3, spatial.TrackingStateStopped, "c"),
	)

	for i := 0; i < 3; i++ {
		_, err := fx.run(t)
		require.NoError(t, err)
	}

	queries := fx.rt.Queries()
	require.Len(t, queries, 6)
	for i, q := range queries {
		assert.EqualValues(t, MaxMarkers, q.EntityIDCapacity, "capacity never changes")
		assert.EqualValues(t, MaxMarkers, q.EntityStateCapacity)
		if i%2 == 0 {
			assert.Equal(t, 0, q.ChainLength, "count pass has no chained lists")
		} else {
			assert.Equal(t, 2, q.ChainLength, "typed pass chains both lists")
			assert.EqualValues(t, 3, q.BoundCount)
			assert.EqualValues(t, 3, q.MarkerCount)
		}
	}
	assert.Equal(t, 3, fx.rt.Calls(spatial.OpDestroySnapshot))
	assert.Equal(t, 0, fx.rt.LiveSnapshots())
}

func TestNewBuffers_Defaults(t *testing.T) {
	b := NewBuffers(spatial.CapabilityMarkerTrackingQRCode)
	for i := 0; i < MaxMarkers; i++ {
		assert.Equal(t, spatial.TrackingStateStopped, b.entityStates[i])
		assert.Equal(t, spatial.NullBufferID, b.markers[i].Data.BufferID)
		assert.Equal(t, spatial.BufferTypeUnknown, b.markers[i].Data.BufferType)
	}
}
