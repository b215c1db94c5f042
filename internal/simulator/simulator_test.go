package simulator

import (
	"testing"
	"time"

	"github.com/OCAP2/markertracker/pkg/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var markerComponents = []spatial.ComponentType{spatial.ComponentTypeBounded2D, spatial.ComponentTypeMarker}

func createContext(t *testing.T, r *Runtime) spatial.Context {
	t.Helper()
	f, res := r.CreateSpatialContextAsync(r.Handle(), &spatial.ContextCreateInfo{
		CapabilityConfigs: []spatial.CapabilityConfig{{
			Capability:        spatial.CapabilityMarkerTrackingQRCode,
			EnabledComponents: markerComponents,
		}},
	})
	require.Equal(t, spatial.Success, res)
	for {
		state, res := r.PollFuture(f)
		require.Equal(t, spatial.Success, res)
		if state == spatial.FutureStateReady {
			break
		}
	}
	completion, res := r.CreateSpatialContextComplete(r.Handle(), f)
	require.Equal(t, spatial.Success, res)
	require.Equal(t, spatial.Success, completion.FutureResult)
	return completion.Context
}

func takeSnapshot(t *testing.T, r *Runtime, ctx spatial.Context) spatial.Snapshot {
	t.Helper()
	f, res := r.CreateSpatialDiscoverySnapshotAsync(ctx, &spatial.SnapshotCreateInfo{ComponentTypes: markerComponents})
	require.Equal(t, spatial.Success, res)
	completion, res := r.CreateSpatialDiscoverySnapshotComplete(ctx, &spatial.SnapshotCompletionInfo{Future: f})
	require.Equal(t, spatial.Success, res)
	require.Equal(t, spatial.Success, completion.FutureResult)
	return completion.Snapshot
}

func TestRow(t *testing.T) {
	entities := Row([]string{"QR-1", "QR-2", "QR-3"}, 0.5, 0.15)
	require.Len(t, entities, 3)

	assert.Equal(t, spatial.EntityID(1), entities[0].ID)
	assert.Equal(t, uint32(3), entities[2].MarkerID)
	assert.InDelta(t, -0.5, entities[0].Bounds.Center.Position.X, 1e-6)
	assert.InDelta(t, 0, entities[1].Bounds.Center.Position.X, 1e-6)
	assert.InDelta(t, 0.5, entities[2].Bounds.Center.Position.X, 1e-6)
	for _, e := range entities {
		assert.Equal(t, spatial.TrackingStateTracking, e.State)
		assert.Equal(t, spatial.BufferTypeString, e.BufferType)
		assert.InDelta(t, 0.15, e.Bounds.Extents.Width, 1e-6)
		assert.Equal(t, float32(1), e.Bounds.Center.Orientation.W)
	}

	assert.Empty(t, Row(nil, 0.5, 0.15))
}

func TestExtensions(t *testing.T) {
	ext := New(Config{}).Extensions()
	assert.NotNil(t, ext.SpatialEntity)
	assert.True(t, ext.MarkerTracking)
	assert.NotNil(t, ext.Future)

	ext = New(Config{NoSpatialEntity: true, NoMarkerTracking: true, NoFuture: true}).Extensions()
	assert.Nil(t, ext.SpatialEntity)
	assert.False(t, ext.MarkerTracking)
	assert.Nil(t, ext.Future)
}

func TestPollFuture_PendingThenReadyThenConsumed(t *testing.T) {
	r := New(Config{ContextPolls: 2})
	f, res := r.CreateSpatialContextAsync(r.Handle(), &spatial.ContextCreateInfo{
		CapabilityConfigs: []spatial.CapabilityConfig{{Capability: spatial.CapabilityMarkerTrackingQRCode, EnabledComponents: markerComponents}},
	})
	require.Equal(t, spatial.Success, res)

	_, res = r.CreateSpatialContextComplete(r.Handle(), f)
	assert.Equal(t, spatial.ErrorFuturePending, res)

	for i := 0; i < 2; i++ {
		state, _ := r.PollFuture(f)
		assert.Equal(t, spatial.FutureStatePending, state)
	}
	state, _ := r.PollFuture(f)
	assert.Equal(t, spatial.FutureStateReady, state)

	_, res = r.CreateSpatialContextComplete(r.Handle(), f)
	require.Equal(t, spatial.Success, res)

	_, res = r.PollFuture(f)
	assert.Equal(t, spatial.ErrorFutureInvalid, res)
	_, res = r.CreateSpatialContextComplete(r.Handle(), f)
	assert.Equal(t, spatial.ErrorFutureInvalid, res)
	assert.Equal(t, 1, r.LiveContexts())
}

func TestCreateContext_RejectsUnsupportedCapability(t *testing.T) {
	r := New(Config{})
	_, res := r.CreateSpatialContextAsync(r.Handle(), &spatial.ContextCreateInfo{
		CapabilityConfigs: []spatial.CapabilityConfig{{Capability: spatial.CapabilityPlaneTracking}},
	})
	assert.Equal(t, spatial.ErrorSpatialCapabilityUnsupported, res)

	_, res = r.CreateSpatialContextAsync(r.Handle(), nil)
	assert.Equal(t, spatial.ErrorSpatialCapabilityConfigurationInvalid, res)

	_, res = r.CreateSpatialContextAsync(r.Handle()+1, &spatial.ContextCreateInfo{})
	assert.Equal(t, spatial.ErrorHandleInvalid, res)
}

func TestSnapshotLatency(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r := New(Config{SnapshotLatency: 100 * time.Millisecond, Now: func() time.Time { return now }})
	ctx := createContext(t, r)

	f, res := r.CreateSpatialDiscoverySnapshotAsync(ctx, nil)
	require.Equal(t, spatial.Success, res)

	state, _ := r.PollFuture(f)
	assert.Equal(t, spatial.FutureStatePending, state)

	now = now.Add(100 * time.Millisecond)
	state, _ = r.PollFuture(f)
	assert.Equal(t, spatial.FutureStateReady, state)
}

func TestQueryAndBufferString(t *testing.T) {
	r := New(Config{}, Row([]string{"QR-1", "https://example.com/dock/1"}, 0.5, 0.15)...)
	ctx := createContext(t, r)
	snap := takeSnapshot(t, r, ctx)

	// count-only call
	var count spatial.QueryResult
	require.Equal(t, spatial.Success, r.QuerySpatialComponentData(snap, nil, &count))
	assert.Equal(t, uint32(2), count.EntityIDCountOutput)

	bounds := &spatial.Bounded2DList{BoundCount: 4, Bounds: make([]spatial.Bounded2DData, 4)}
	markers := &spatial.MarkerList{MarkerCount: 4, Markers: make([]spatial.MarkerData, 4)}
	result := spatial.QueryResult{
		EntityIDCapacityInput:    4,
		EntityIDs:                make([]spatial.EntityID, 4),
		EntityStateCapacityInput: 4,
		EntityStates:             make([]spatial.TrackingState, 4),
	}
	spatial.AttachResultViews(&result, bounds, markers)
	require.Equal(t, spatial.Success, r.QuerySpatialComponentData(snap, &spatial.QueryCondition{ComponentTypes: markerComponents}, &result))
	assert.Equal(t, []spatial.EntityID{1, 2}, result.EntityIDs[:2])

	buf := make([]byte, 8)
	needed, res := r.GetSpatialBufferString(snap, markers.Markers[1].Data.BufferID, buf)
	assert.Equal(t, spatial.ErrorSizeInsufficient, res)
	assert.Equal(t, uint32(len("https://example.com/dock/1")+1), needed)

	buf = make([]byte, 256)
	n, res := r.GetSpatialBufferString(snap, markers.Markers[0].Data.BufferID, buf)
	require.Equal(t, spatial.Success, res)
	assert.Equal(t, "QR-1\x00", string(buf[:n]))

	obs := r.Queries()
	require.Len(t, obs, 2)
	assert.Equal(t, uint32(0), obs[0].EntityIDCapacity)
	assert.Equal(t, 2, obs[1].ChainLength)
}

func TestFailNext(t *testing.T) {
	r := New(Config{})
	r.FailNext(spatial.OpPollFuture, spatial.ErrorRuntimeFailure)

	_, res := r.PollFuture(1)
	assert.Equal(t, spatial.ErrorRuntimeFailure, res)
	_, res = r.PollFuture(1)
	assert.Equal(t, spatial.ErrorFutureInvalid, res, "failure applies once")
	assert.Equal(t, 2, r.Calls(spatial.OpPollFuture))
	assert.Equal(t, 2, r.TotalCalls())
}

func TestDestroyContextDropsSnapshots(t *testing.T) {
	r := New(Config{}, Row([]string{"QR-1"}, 0, 0.1)...)
	ctx := createContext(t, r)
	takeSnapshot(t, r, ctx)
	require.Equal(t, 1, r.LiveSnapshots())

	assert.Equal(t, spatial.Success, r.DestroySpatialContext(ctx))
	assert.Equal(t, 0, r.LiveSnapshots())
	assert.Equal(t, 0, r.LiveContexts())
	assert.Equal(t, spatial.ErrorHandleInvalid, r.DestroySpatialContext(ctx))
}
