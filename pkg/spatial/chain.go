package spatial

// StructureType identifies a chained result block.
type StructureType int32

const (
	StructureTypeBounded2DList StructureType = 1000740010
	StructureTypeMarkerList    StructureType = 1000743010
)

// ResultBlock is a typed result structure chained after a QueryResult. Every
// attached block receives the component data of its type; a block that is not
// attached leaves that component unread.
type ResultBlock interface {
	StructureType() StructureType
	Next() ResultBlock
	link(next ResultBlock)
}

// QueryResult receives entity ids and tracking states. Capacities are set by
// the caller; count outputs are written by the runtime.
type QueryResult struct {
	next ResultBlock

	EntityIDCapacityInput uint32
	EntityIDCountOutput   uint32
	EntityIDs             []EntityID

	EntityStateCapacityInput uint32
	EntityStateCountOutput   uint32
	EntityStates             []TrackingState
}

// Next returns the first chained block, or nil.
func (r *QueryResult) Next() ResultBlock {
	return r.next
}

// Bounded2DList receives one Bounded2DData per returned entity.
type Bounded2DList struct {
	next ResultBlock

	BoundCount uint32
	Bounds     []Bounded2DData
}

func (*Bounded2DList) StructureType() StructureType { return StructureTypeBounded2DList }
func (l *Bounded2DList) Next() ResultBlock { return l.next }
func (l *Bounded2DList) link(next ResultBlock) { l.next = next }

// MarkerList receives one MarkerData per returned entity.
type MarkerList struct {
	next ResultBlock

	MarkerCount uint32
	Markers     []MarkerData
}

func (*MarkerList) StructureType() StructureType { return StructureTypeMarkerList }
func (l *MarkerList) Next() ResultBlock { return l.next }
func (l *MarkerList) link(next ResultBlock) { l.next = next }

// AttachResultViews replaces the chain hanging off result with blocks, linked
// in the given order. A block must not appear twice.
func AttachResultViews(result *QueryResult, blocks ...ResultBlock) {
	DetachResultViews(result)

	var tail ResultBlock
	for _, b := range blocks {
		b.link(nil)
		if tail == nil {
			result.next = b
		} else {
			tail.link(b)
		}
		tail = b
	}
}

// DetachResultViews unlinks every block chained from result.
func DetachResultViews(result *QueryResult) {
	b := result.next
	result.next = nil
	for b != nil {
		next := b.Next()
		b.link(nil)
		b = next
	}
}

// FindResultBlock returns the first chained block of type T.
func FindResultBlock[T ResultBlock](result *QueryResult) (T, bool) {
	for b := result.next; b != nil; b = b.Next() {
		if t, ok := b.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// ChainLength counts the blocks chained from result.
func ChainLength(result *QueryResult) int {
	n := 0
	for b := result.next; b != nil; b = b.Next() {
		n++
	}
	return n
}
