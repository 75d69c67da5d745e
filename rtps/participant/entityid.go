package participant

import (
	"sync/atomic"

	"rtpsgo/rtps/types"
)

// entityIdAllocator hands out unique EntityIds within one participant's
// GuidPrefix namespace (spec.md §3's "within a participant, all entity-ids
// are unique" invariant), using the low 3 bytes as a monotonic counter.
type entityIdAllocator struct {
	counter uint32
}

func (a *entityIdAllocator) next(keyed bool, isWriter bool) types.EntityId {
	n := atomic.AddUint32(&a.counter, 1)
	var kind byte
	switch {
	case isWriter && keyed:
		kind = types.EntityKindWriterWithKey
	case isWriter && !keyed:
		kind = types.EntityKindWriterNoKey
	case !isWriter && keyed:
		kind = types.EntityKindReaderWithKey
	default:
		kind = types.EntityKindReaderNoKey
	}
	return types.EntityId{byte(n >> 16), byte(n >> 8), byte(n), kind}
}
