// Package history implements the per-endpoint ordered history cache of
// spec.md §4.2: writer-side (sequence-number keyed) and reader-side
// ((writer-guid,sequence-number) keyed) stores of cache-changes, with
// QoS-driven eviction.
package history

import (
	"time"

	"rtpsgo/rtps/types"
)

// SampleState distinguishes samples a reader has already surfaced to the
// user from ones it hasn't.
type SampleState int

const (
	NotRead SampleState = iota
	Read
)

// CacheChange is one published sample: an ALIVE datum or a lifecycle
// marker (spec.md §3). Payload is held as an immutable byte slice so the
// writer cache, outbound DATA frames and a loopback reader cache can share
// one allocation, per §9's cache-change-ownership note.
type CacheChange struct {
	Kind             types.ChangeKind
	WriterGuid       types.GUID
	InstanceHandle   types.InstanceHandle
	SequenceNumber   types.SequenceNumber
	SourceTimestamp  *time.Time
	DataPayload      []byte
	InlineQos        []byte // encoded parameter list, opaque to the history cache

	// Reader-side-only bookkeeping.
	ReceptionTimestamp time.Time
	SampleState        SampleState
	DisposedGeneration  uint32
	NoWritersGeneration uint32
}

// IsAlive reports whether the change represents live data rather than a
// dispose/unregister marker.
func (c CacheChange) IsAlive() bool { return c.Kind == types.ChangeKindAlive }
