package query

import "github.com/OCAP2/markertracker/pkg/spatial"

// MaxMarkers is the entity capacity passed to every component query. Some
// runtimes reject a capacity that differs from the first query made against a
// context, so storage is sized once and never resized.
const MaxMarkers = 32

// PayloadCapacity is the size of the buffer a marker payload is decoded into,
// including the NUL terminator.
const PayloadCapacity = 256

// Buffers holds every array the runtime writes into during a query.
// It is allocated once per context and reused for each snapshot.
type Buffers struct {
	entityIDs    [MaxMarkers]spatial.EntityID
	entityStates [MaxMarkers]spatial.TrackingState
	bounds       [MaxMarkers]spatial.Bounded2DData
	markers      [MaxMarkers]spatial.MarkerData
	text         [PayloadCapacity]byte

	result    spatial.QueryResult
	boundList spatial.Bounded2DList
	markList  spatial.MarkerList
}

// NewBuffers allocates query storage with entity states defaulting to
// stopped and marker components defaulting to an empty buffer reference.
func NewBuffers(capability spatial.Capability) *Buffers {
	b := &Buffers{}
	for i := range b.entityStates {
		b.entityStates[i] = spatial.TrackingStateStopped
	}
	for i := range b.markers {
		b.markers[i] = spatial.MarkerData{
			Capability: capability,
			Data: spatial.Buffer{
				BufferID:   spatial.NullBufferID,
				BufferType: spatial.BufferTypeUnknown,
			},
		}
	}
	return b
}

// countView prepares the entity-only query: ids and states at full capacity,
// no chained component lists.
func (b *Buffers) countView() *spatial.QueryResult {
	spatial.DetachResultViews(&b.result)
	b.result.EntityIDCapacityInput = MaxMarkers
	b.result.EntityIDCountOutput = 0
	b.result.EntityIDs = b.entityIDs[:]
	b.result.EntityStateCapacityInput = MaxMarkers
	b.result.EntityStateCountOutput = 0
	b.result.EntityStates = b.entityStates[:]
	return &b.result
}

// typedView attaches the bounded-2D and marker lists, each sized to n, to
// the same query result used by the count pass.
func (b *Buffers) typedView(n uint32) *spatial.QueryResult {
	b.boundList.BoundCount = n
	b.boundList.Bounds = b.bounds[:n]
	b.markList.MarkerCount = n
	b.markList.Markers = b.markers[:n]
	spatial.AttachResultViews(&b.result, &b.boundList, &b.markList)
	return &b.result
}
