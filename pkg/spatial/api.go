package spatial

// Extensions lists what a runtime advertises. Function tables are nil when
// the corresponding extension is absent.
type Extensions struct {
	SpatialEntity  SpatialEntityAPI
	MarkerTracking bool
	Future         FutureAPI
}

// Session is the slice of a runtime session the tracker needs.
type Session interface {
	Handle() SessionHandle
	Extensions() Extensions
}

// FutureAPI polls asynchronous runtime jobs.
type FutureAPI interface {
	PollFuture(f Future) (FutureState, Result)
}

// SpatialEntityAPI is the function table of the spatial entity extension.
// Calls never block; long-running work is returned as a Future.
type SpatialEntityAPI interface {
	CreateSpatialContextAsync(session SessionHandle, info *ContextCreateInfo) (Future, Result)
	CreateSpatialContextComplete(session SessionHandle, f Future) (ContextCompletion, Result)
	DestroySpatialContext(ctx Context) Result

	CreateSpatialDiscoverySnapshotAsync(ctx Context, info *SnapshotCreateInfo) (Future, Result)
	CreateSpatialDiscoverySnapshotComplete(ctx Context, info *SnapshotCompletionInfo) (SnapshotCompletion, Result)
	DestroySpatialSnapshot(snapshot Snapshot) Result

	// QuerySpatialComponentData fills result and every block chained from it.
	QuerySpatialComponentData(snapshot Snapshot, cond *QueryCondition, result *QueryResult) Result

	// GetSpatialBufferString copies a NUL-terminated string into buf and
	// returns the number of bytes written including the terminator.
	GetSpatialBufferString(snapshot Snapshot, id BufferID, buf []byte) (uint32, Result)
}

// CapabilityConfig enables one capability with a set of components.
type CapabilityConfig struct {
	Capability        Capability
	EnabledComponents []ComponentType
}

// ContextCreateInfo describes a spatial context.
type ContextCreateInfo struct {
	CapabilityConfigs []CapabilityConfig
}

// ContextCompletion is the outcome of a create-context future.
type ContextCompletion struct {
	FutureResult Result
	Context      Context
}

// SnapshotCreateInfo selects the components a discovery snapshot captures.
type SnapshotCreateInfo struct {
	ComponentTypes []ComponentType
}

// SnapshotCompletionInfo locates a snapshot in space and time.
type SnapshotCompletionInfo struct {
	BaseSpace Space
	Time      Time
	Future    Future
}

// SnapshotCompletion is the outcome of a create-snapshot future.
type SnapshotCompletion struct {
	FutureResult Result
	Snapshot     Snapshot
}

// QueryCondition filters entities by component.
type QueryCondition struct {
	ComponentTypes []ComponentType
}

// Function names used to label failures.
const (
	OpPollFuture             = "xrPollFutureEXT"
	OpCreateContextAsync     = "xrCreateSpatialContextAsyncEXT"
	OpCreateContextComplete  = "xrCreateSpatialContextCompleteEXT"
	OpDestroyContext         = "xrDestroySpatialContextEXT"
	OpCreateSnapshotAsync    = "xrCreateSpatialDiscoverySnapshotAsyncEXT"
	OpCreateSnapshotComplete = "xrCreateSpatialDiscoverySnapshotCompleteEXT"
	OpDestroySnapshot        = "xrDestroySpatialSnapshotEXT"
	OpQueryComponentData     = "xrQuerySpatialComponentDataEXT"
	OpGetBufferString        = "xrGetSpatialBufferStringEXT"
)
