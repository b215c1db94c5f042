package simulator

import (
	"github.com/OCAP2/markertracker/pkg/spatial"
)

// PollFuture implements spatial.FutureAPI.
func (r *Runtime) PollFuture(f spatial.Future) (spatial.FutureState, spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpPollFuture); failed {
		return 0, res
	}

	pf, ok := r.futures[f]
	if !ok || pf.consumed {
		return 0, spatial.ErrorFutureInvalid
	}
	if pf.polls > 0 {
		pf.polls--
		return spatial.FutureStatePending, spatial.Success
	}
	if pf.kind == futureSnapshot && r.cfg.Now().Sub(pf.createdAt) < r.cfg.SnapshotLatency {
		return spatial.FutureStatePending, spatial.Success
	}
	return spatial.FutureStateReady, spatial.Success
}

// CreateSpatialContextAsync implements spatial.SpatialEntityAPI.
func (r *Runtime) CreateSpatialContextAsync(session spatial.SessionHandle, info *spatial.ContextCreateInfo) (spatial.Future, spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpCreateContextAsync); failed {
		return 0, res
	}
	if session != r.Handle() {
		return 0, spatial.ErrorHandleInvalid
	}
	if info == nil || len(info.CapabilityConfigs) == 0 {
		return 0, spatial.ErrorSpatialCapabilityConfigurationInvalid
	}
	for _, cfg := range info.CapabilityConfigs {
		if cfg.Capability != spatial.CapabilityMarkerTrackingQRCode {
			return 0, spatial.ErrorSpatialCapabilityUnsupported
		}
		for _, c := range cfg.EnabledComponents {
			if c != spatial.ComponentTypeBounded2D && c != spatial.ComponentTypeMarker {
				return 0, spatial.ErrorSpatialComponentUnsupportedForCap
			}
		}
	}

	f := spatial.Future(r.handle())
	r.futures[f] = &pendingFuture{
		kind:      futureContext,
		polls:     r.cfg.ContextPolls,
		createdAt: r.cfg.Now(),
		configs:   info.CapabilityConfigs,
	}
	return f, spatial.Success
}

// CreateSpatialContextComplete implements spatial.SpatialEntityAPI.
func (r *Runtime) CreateSpatialContextComplete(session spatial.SessionHandle, f spatial.Future) (spatial.ContextCompletion, spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpCreateContextComplete); failed {
		return spatial.ContextCompletion{}, res
	}
	if session != r.Handle() {
		return spatial.ContextCompletion{}, spatial.ErrorHandleInvalid
	}
	pf, res := r.takeReady(f, futureContext)
	if !res.Succeeded() {
		return spatial.ContextCompletion{}, res
	}

	if r.cfg.ContextFutureResult != spatial.Success {
		return spatial.ContextCompletion{FutureResult: r.cfg.ContextFutureResult}, spatial.Success
	}

	state := &contextState{components: make(map[spatial.ComponentType]bool)}
	for _, cfg := range pf.configs {
		for _, c := range cfg.EnabledComponents {
			state.components[c] = true
		}
	}
	ctx := spatial.Context(r.handle())
	r.contexts[ctx] = state
	return spatial.ContextCompletion{FutureResult: spatial.Success, Context: ctx}, spatial.Success
}

// DestroySpatialContext implements spatial.SpatialEntityAPI.
func (r *Runtime) DestroySpatialContext(ctx spatial.Context) spatial.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpDestroyContext); failed {
		return res
	}
	if _, ok := r.contexts[ctx]; !ok {
		return spatial.ErrorHandleInvalid
	}
	delete(r.contexts, ctx)
	for id, s := range r.snapshots {
		if s.ctx == ctx {
			delete(r.snapshots, id)
		}
	}
	return spatial.Success
}

// CreateSpatialDiscoverySnapshotAsync implements spatial.SpatialEntityAPI.
func (r *Runtime) CreateSpatialDiscoverySnapshotAsync(ctx spatial.Context, info *spatial.SnapshotCreateInfo) (spatial.Future, spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpCreateSnapshotAsync); failed {
		return 0, res
	}
	state, ok := r.contexts[ctx]
	if !ok {
		return 0, spatial.ErrorHandleInvalid
	}
	if info != nil {
		for _, c := range info.ComponentTypes {
			if !state.components[c] {
				return 0, spatial.ErrorSpatialComponentNotEnabled
			}
		}
	}

	f := spatial.Future(r.handle())
	r.futures[f] = &pendingFuture{
		kind:      futureSnapshot,
		ctx:       ctx,
		polls:     r.cfg.SnapshotPolls,
		createdAt: r.cfg.Now(),
	}
	return f, spatial.Success
}

// CreateSpatialDiscoverySnapshotComplete implements spatial.SpatialEntityAPI.
func (r *Runtime) CreateSpatialDiscoverySnapshotComplete(ctx spatial.Context, info *spatial.SnapshotCompletionInfo) (spatial.SnapshotCompletion, spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpCreateSnapshotComplete); failed {
		return spatial.SnapshotCompletion{}, res
	}
	if _, ok := r.contexts[ctx]; !ok {
		return spatial.SnapshotCompletion{}, spatial.ErrorHandleInvalid
	}
	if info == nil {
		return spatial.SnapshotCompletion{}, spatial.ErrorValidationFailure
	}
	pf, res := r.takeReady(info.Future, futureSnapshot)
	if !res.Succeeded() {
		return spatial.SnapshotCompletion{}, res
	}
	if pf.ctx != ctx {
		return spatial.SnapshotCompletion{}, spatial.ErrorFutureInvalid
	}
	if r.cfg.SnapshotFutureResult != spatial.Success {
		return spatial.SnapshotCompletion{FutureResult: r.cfg.SnapshotFutureResult}, spatial.Success
	}

	snap := &snapshotState{
		ctx:      ctx,
		entities: append([]Entity(nil), r.entities...),
		buffers:  make(map[spatial.BufferID][]byte),
		bufferOf: make([]spatial.BufferID, len(r.entities)),
	}
	for i, e := range snap.entities {
		if e.NoBuffer || e.BufferType == spatial.BufferTypeUnknown {
			continue
		}
		id := spatial.BufferID(r.handle())
		snap.buffers[id] = e.payloadBytes()
		snap.bufferOf[i] = id
	}

	handle := spatial.Snapshot(r.handle())
	r.snapshots[handle] = snap
	return spatial.SnapshotCompletion{FutureResult: spatial.Success, Snapshot: handle}, spatial.Success
}

// DestroySpatialSnapshot implements spatial.SpatialEntityAPI.
func (r *Runtime) DestroySpatialSnapshot(snapshot spatial.Snapshot) spatial.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpDestroySnapshot); failed {
		return res
	}
	if _, ok := r.snapshots[snapshot]; !ok {
		return spatial.ErrorHandleInvalid
	}
	delete(r.snapshots, snapshot)
	return spatial.Success
}

// QuerySpatialComponentData implements spatial.SpatialEntityAPI. It follows
// the two-call idiom: a zero capacity only reports the count.
func (r *Runtime) QuerySpatialComponentData(snapshot spatial.Snapshot, cond *spatial.QueryCondition, result *spatial.QueryResult) spatial.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpQueryComponentData); failed {
		return res
	}
	snap, ok := r.snapshots[snapshot]
	if !ok {
		return spatial.ErrorHandleInvalid
	}
	if result == nil {
		return spatial.ErrorValidationFailure
	}

	obs := QueryObservation{
		EntityIDCapacity:    result.EntityIDCapacityInput,
		EntityStateCapacity: result.EntityStateCapacityInput,
		ChainLength:         spatial.ChainLength(result),
	}
	bounds, hasBounds := spatial.FindResultBlock[*spatial.Bounded2DList](result)
	if hasBounds {
		obs.BoundCount = bounds.BoundCount
	}
	markers, hasMarkers := spatial.FindResultBlock[*spatial.MarkerList](result)
	if hasMarkers {
		obs.MarkerCount = markers.MarkerCount
	}
	r.queries = append(r.queries, obs)

	if cond != nil && r.contexts[snap.ctx] != nil {
		for _, c := range cond.ComponentTypes {
			if !r.contexts[snap.ctx].components[c] {
				return spatial.ErrorSpatialComponentNotEnabled
			}
		}
	}

	if r.cfg.StrictCapacity && result.EntityIDCapacityInput != 0 {
		state := r.contexts[snap.ctx]
		if state != nil {
			if state.firstCapacity == 0 {
				state.firstCapacity = result.EntityIDCapacityInput
			} else if state.firstCapacity != result.EntityIDCapacityInput {
				return spatial.ErrorValidationFailure
			}
		}
	}

	n := uint32(len(snap.entities))
	result.EntityIDCountOutput = n
	result.EntityStateCountOutput = n
	if result.EntityIDCapacityInput == 0 {
		return spatial.Success
	}
	if result.EntityIDCapacityInput < n || result.EntityStateCapacityInput < n ||
		uint32(len(result.EntityIDs)) < n || uint32(len(result.EntityStates)) < n {
		return spatial.ErrorSizeInsufficient
	}
	for i, e := range snap.entities {
		result.EntityIDs[i] = e.ID
		result.EntityStates[i] = e.State
	}

	if hasBounds {
		if bounds.BoundCount < n || uint32(len(bounds.Bounds)) < n {
			return spatial.ErrorSizeInsufficient
		}
		for i, e := range snap.entities {
			bounds.Bounds[i] = e.Bounds
		}
	}
	if hasMarkers {
		if markers.MarkerCount < n || uint32(len(markers.Markers)) < n {
			return spatial.ErrorSizeInsufficient
		}
		for i, e := range snap.entities {
			markers.Markers[i] = spatial.MarkerData{
				Capability: e.Capability,
				MarkerID:   e.MarkerID,
				Data: spatial.Buffer{
					BufferID:   snap.bufferOf[i],
					BufferType: e.BufferType,
				},
			}
		}
	}
	return spatial.Success
}

// GetSpatialBufferString implements spatial.SpatialEntityAPI.
func (r *Runtime) GetSpatialBufferString(snapshot spatial.Snapshot, id spatial.BufferID, buf []byte) (uint32, spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, failed := r.enter(spatial.OpGetBufferString); failed {
		return 0, res
	}
	snap, ok := r.snapshots[snapshot]
	if !ok {
		return 0, spatial.ErrorHandleInvalid
	}
	data, ok := snap.buffers[id]
	if !ok {
		return 0, spatial.ErrorSpatialBufferIDInvalid
	}

	needed := uint32(len(data) + 1)
	if uint32(len(buf)) < needed {
		return needed, spatial.ErrorSizeInsufficient
	}
	copy(buf, data)
	buf[len(data)] = 0
	return needed, spatial.Success
}

// takeReady consumes a ready future of the given kind. Callers hold r.mu.
func (r *Runtime) takeReady(f spatial.Future, kind futureKind) (*pendingFuture, spatial.Result) {
	pf, ok := r.futures[f]
	if !ok || pf.consumed || pf.kind != kind {
		return nil, spatial.ErrorFutureInvalid
	}
	if pf.polls > 0 {
		return nil, spatial.ErrorFuturePending
	}
	if kind == futureSnapshot && r.cfg.Now().Sub(pf.createdAt) < r.cfg.SnapshotLatency {
		return nil, spatial.ErrorFuturePending
	}
	pf.consumed = true
	delete(r.futures, f)
	return pf, spatial.Success
}
