// Package spatial describes the call surface of a spatial-entity sensing runtime:
// opaque handles, enums, query structures and result codes. Implementations
// live outside this module (device runtimes) or in internal/simulator.
package spatial

// Extension names advertised by a runtime.
const (
	ExtSpatialEntity         = "XR_EXT_spatial_entity"
	ExtSpatialMarkerTracking = "XR_EXT_spatial_marker_tracking"
	ExtFuture                = "XR_EXT_future"
)

// Opaque runtime handles. Zero is never a valid handle.
type (
	SessionHandle uint64
	Context       uint64
	Snapshot      uint64
	Space         uint64
	EntityID      uint64
	BufferID      uint64
)

// Future is a token for an asynchronous runtime job.
type Future uint64

// Time is a runtime timestamp in nanoseconds.
type Time int64

// NullBufferID marks an absent buffer reference.
const NullBufferID BufferID = 0

// FutureState is the state reported by PollFuture.
type FutureState int32

const (
	FutureStatePending FutureState = 1
	FutureStateReady   FutureState = 2
)

func (s FutureState) String() string {
	switch s {
	case FutureStatePending:
		return "PENDING"
	case FutureStateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Capability is a sensing feature enabled on a spatial context.
type Capability int32

const (
	CapabilityPlaneTracking          Capability = 1000741000
	CapabilityMarkerTrackingQRCode   Capability = 1000743000
	CapabilityMarkerTrackingMicroQR  Capability = 1000743001
	CapabilityMarkerTrackingArucoMkr Capability = 1000743002
	CapabilityMarkerTrackingAprilTag Capability = 1000743003
	CapabilityAnchor                 Capability = 1000762000
)

func (c Capability) String() string {
	switch c {
	case CapabilityPlaneTracking:
		return "PLANE_TRACKING"
	case CapabilityMarkerTrackingQRCode:
		return "MARKER_TRACKING_QR_CODE"
	case CapabilityMarkerTrackingMicroQR:
		return "MARKER_TRACKING_MICRO_QR_CODE"
	case CapabilityMarkerTrackingArucoMkr:
		return "MARKER_TRACKING_ARUCO_MARKER"
	case CapabilityMarkerTrackingAprilTag:
		return "MARKER_TRACKING_APRIL_TAG"
	case CapabilityAnchor:
		return "ANCHOR"
	default:
		return "UNKNOWN"
	}
}

// ComponentType is a data facet that can be requested per entity.
type ComponentType int32

const (
	ComponentTypeBounded2D ComponentType = 1
	ComponentTypeBounded3D ComponentType = 2
	ComponentTypeParent    ComponentType = 3
	ComponentTypeMesh3D    ComponentType = 4
	ComponentTypeMarker    ComponentType = 1000743000
)

// TrackingState of an entity within a snapshot.
type TrackingState int32

const (
	TrackingStateStopped  TrackingState = 1
	TrackingStateTracking TrackingState = 2
	TrackingStatePaused   TrackingState = 3
)

func (s TrackingState) String() string {
	switch s {
	case TrackingStateStopped:
		return "STOPPED"
	case TrackingStateTracking:
		return "TRACKING"
	case TrackingStatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// BufferType tags the element type of a snapshot buffer.
type BufferType int32

const (
	BufferTypeUnknown  BufferType = 0
	BufferTypeString   BufferType = 1
	BufferTypeUint8    BufferType = 2
	BufferTypeUint16   BufferType = 3
	BufferTypeUint32   BufferType = 4
	BufferTypeFloat    BufferType = 5
	BufferTypeVector2f BufferType = 6
	BufferTypeVector3f BufferType = 7
)

func (t BufferType) String() string {
	switch t {
	case BufferTypeString:
		return "STRING"
	case BufferTypeUint8:
		return "UINT8"
	case BufferTypeUint16:
		return "UINT16"
	case BufferTypeUint32:
		return "UINT32"
	case BufferTypeFloat:
		return "FLOAT"
	case BufferTypeVector2f:
		return "VECTOR2F"
	case BufferTypeVector3f:
		return "VECTOR3F"
	default:
		return "UNKNOWN"
	}
}

// Vector3f is a position in meters.
type Vector3f struct {
	X, Y, Z float32
}

// Quaternionf is a unit rotation.
type Quaternionf struct {
	X, Y, Z, W float32
}

// Posef is a rigid transform in a reference space.
type Posef struct {
	Orientation Quaternionf
	Position    Vector3f
}

// IdentityPose has no rotation and sits at the space origin.
var IdentityPose = Posef{Orientation: Quaternionf{W: 1}}

// Extent2Df is a width/height pair in meters.
type Extent2Df struct {
	Width, Height float32
}

// Bounded2DData is the planar bound of an entity: a center pose and extents
// along the pose's local X and Y axes.
type Bounded2DData struct {
	Center  Posef
	Extents Extent2Df
}

// Buffer references a typed buffer owned by a snapshot.
type Buffer struct {
	BufferID   BufferID
	BufferType BufferType
}

// MarkerData is the marker component of one entity.
type MarkerData struct {
	Capability Capability
	MarkerID   uint32
	Data       Buffer
}
