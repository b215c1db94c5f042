// Package simulator is an in-process spatial runtime. It backs the
// markertracker binary when no headset is attached and drives the tests.
package simulator

import (
	"sync"
	"time"

	"github.com/OCAP2/markertracker/pkg/spatial"
)

// Entity is one marker known to the simulated runtime.
type Entity struct {
	ID         spatial.EntityID
	State      spatial.TrackingState
	Capability spatial.Capability
	MarkerID   uint32
	BufferType spatial.BufferType
	Payload    string
	RawPayload []byte // overrides Payload when set
	NoBuffer   bool   // report a null buffer id
	Bounds     spatial.Bounded2DData
}

func (e Entity) payloadBytes() []byte {
	if e.RawPayload != nil {
		return e.RawPayload
	}
	return []byte(e.Payload)
}

// Config controls which extensions are advertised and how futures resolve.
type Config struct {
	NoSpatialEntity  bool
	NoMarkerTracking bool
	NoFuture         bool

	// Futures report pending for this many polls after creation.
	ContextPolls  int
	SnapshotPolls int
	// Snapshot futures additionally stay pending until this much time passed.
	SnapshotLatency time.Duration

	// Non-success values are reported as the future result on completion.
	// The zero value is spatial.Success.
	ContextFutureResult  spatial.Result
	SnapshotFutureResult spatial.Result

	// Reject queries whose entity capacity differs from the first query made
	// against the context, like some shipping runtimes do.
	StrictCapacity bool

	Now func() time.Time
}

type futureKind int

const (
	futureContext futureKind = iota + 1
	futureSnapshot
)

type pendingFuture struct {
	kind      futureKind
	ctx       spatial.Context
	polls     int
	createdAt time.Time
	consumed  bool
	configs   []spatial.CapabilityConfig
}

type contextState struct {
	components    map[spatial.ComponentType]bool
	firstCapacity uint32
}

type snapshotState struct {
	ctx      spatial.Context
	entities []Entity
	buffers  map[spatial.BufferID][]byte
	bufferOf []spatial.BufferID
}

// QueryObservation captures the shape of one QuerySpatialComponentData call.
type QueryObservation struct {
	EntityIDCapacity    uint32
	EntityStateCapacity uint32
	ChainLength         int
	BoundCount          uint32
	MarkerCount         uint32
}

// Runtime implements spatial.Session, spatial.SpatialEntityAPI and
// spatial.FutureAPI.
type Runtime struct {
	mu sync.Mutex

	cfg      Config
	entities []Entity

	nextHandle uint64
	futures    map[spatial.Future]*pendingFuture
	contexts   map[spatial.Context]*contextState
	snapshots  map[spatial.Snapshot]*snapshotState

	calls   map[string]int
	failure map[string]spatial.Result
	queries []QueryObservation
}

// New creates a runtime with the given entities.
func New(cfg Config, entities ...Entity) *Runtime {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runtime{
		cfg:       cfg,
		entities:  append([]Entity(nil), entities...),
		futures:   make(map[spatial.Future]*pendingFuture),
		contexts:  make(map[spatial.Context]*contextState),
		snapshots: make(map[spatial.Snapshot]*snapshotState),
		calls:     make(map[string]int),
		failure:   make(map[string]spatial.Result),
	}
}

// Handle returns the simulated session handle.
func (r *Runtime) Handle() spatial.SessionHandle {
	return 1
}

// Extensions advertises the function tables enabled by Config.
func (r *Runtime) Extensions() spatial.Extensions {
	var ext spatial.Extensions
	if !r.cfg.NoSpatialEntity {
		ext.SpatialEntity = r
	}
	ext.MarkerTracking = !r.cfg.NoMarkerTracking
	if !r.cfg.NoFuture {
		ext.Future = r
	}
	return ext
}

// SetEntities replaces the entities seen by future snapshots.
func (r *Runtime) SetEntities(entities ...Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = append([]Entity(nil), entities...)
}

// SetSnapshotFutureResult changes the result reported by later snapshot completions.
func (r *Runtime) SetSnapshotFutureResult(res spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.SnapshotFutureResult = res
}

// FailNext makes the next call of op return res.
func (r *Runtime) FailNext(op string, res spatial.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure[op] = res
}

// Calls returns how many times op was invoked.
func (r *Runtime) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// TotalCalls returns the number of runtime calls of any kind.
func (r *Runtime) TotalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.calls {
		total += n
	}
	return total
}

// Queries returns every observed QuerySpatialComponentData call.
func (r *Runtime) Queries() []QueryObservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]QueryObservation(nil), r.queries...)
}

// LiveContexts returns the number of contexts not yet destroyed.
func (r *Runtime) LiveContexts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// LiveSnapshots returns the number of snapshots not yet destroyed.
func (r *Runtime) LiveSnapshots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// enter records a call and returns an injected failure, if any.
// Callers hold r.mu.
func (r *Runtime) enter(op string) (spatial.Result, bool) {
	r.calls[op]++
	if res, ok := r.failure[op]; ok {
		delete(r.failure, op)
		return res, true
	}
	return spatial.Success, false
}

func (r *Runtime) handle() uint64 {
	r.nextHandle++
	return r.nextHandle
}
