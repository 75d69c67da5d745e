// Package endpoint implements the stateless and stateful writer/reader
// endpoints of spec.md §4.3-§4.6: per-matched-remote-entity proxies, the
// reliability state machine driving HEARTBEAT/ACKNACK/GAP exchange, and
// DATA_FRAG fragmentation/reassembly.
package endpoint

import (
	"sync"

	"rtpsgo/rtps/types"
)

// ReaderProxy is a writer's view of one matched remote reader (spec.md
// §4.4): which locators to send to, whether it is reliable, and which
// sequence numbers it still needs.
type ReaderProxy struct {
	RemoteReaderGuid  types.GUID
	UnicastLocators   []types.Locator
	MulticastLocators []types.Locator
	Reliable          bool
	ExpectsInlineQos  bool

	mu              sync.Mutex
	unsent          map[types.SequenceNumber]bool
	requested       map[types.SequenceNumber]bool
	acked           types.SequenceNumber // highest sequence number acked as received
}

// NewReaderProxy returns a proxy with every writer sequence number from
// 1..upTo marked unsent.
func NewReaderProxy(guid types.GUID, unicast, multicast []types.Locator, reliable bool, upTo types.SequenceNumber) *ReaderProxy {
	p := &ReaderProxy{
		RemoteReaderGuid:  guid,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		Reliable:          reliable,
		unsent:            make(map[types.SequenceNumber]bool),
		requested:         make(map[types.SequenceNumber]bool),
	}
	for sn := types.SequenceNumber(1); sn <= upTo; sn++ {
		p.unsent[sn] = true
	}
	return p
}

// MarkUnsent records a newly-added writer change as needing to be pushed.
func (p *ReaderProxy) MarkUnsent(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsent[sn] = true
}

// NextUnsent pops the lowest pending sequence number to send, if any, so
// first-time pushes go out in the order the writer produced them.
func (p *ReaderProxy) NextUnsent() (types.SequenceNumber, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sn, ok := lowestSeqNum(p.unsent)
	if !ok {
		return 0, false
	}
	delete(p.unsent, sn)
	return sn, true
}

// PendingCount reports how many sequence numbers are still unsent or
// outstanding as requested retransmissions.
func (p *ReaderProxy) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unsent) + len(p.requested)
}

// NextRequested pops the lowest nack'd sequence number to retransmit.
func (p *ReaderProxy) NextRequested() (types.SequenceNumber, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sn, ok := lowestSeqNum(p.requested)
	if !ok {
		return 0, false
	}
	delete(p.requested, sn)
	return sn, true
}

// lowestSeqNum returns the smallest key in a sequence-number set, since map
// iteration order is not the wire order RTPS expects pending changes to be
// pushed or retransmitted in.
func lowestSeqNum(set map[types.SequenceNumber]bool) (types.SequenceNumber, bool) {
	first := true
	var min types.SequenceNumber
	for sn := range set {
		if first || sn < min {
			min = sn
			first = false
		}
	}
	return min, !first
}

// ApplyAckNack updates the proxy's acked/requested sets from a received
// ACKNACK: every member of the set is a gap to retransmit, and Base-1 is
// the highest sequence number the reader has fully acknowledged.
func (p *ReaderProxy) ApplyAckNack(base types.SequenceNumber, requested []types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if base-1 > p.acked {
		p.acked = base - 1
	}
	for _, sn := range requested {
		delete(p.unsent, sn)
		p.requested[sn] = true
	}
}

// IsAcked reports whether sn has been acknowledged by this reader.
func (p *ReaderProxy) IsAcked(sn types.SequenceNumber) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sn <= p.acked
}

// HasUnackedChanges reports whether the proxy is still owed any data,
// either unsent or requested-but-not-yet-retransmitted.
func (p *ReaderProxy) HasUnackedChanges() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unsent) > 0 || len(p.requested) > 0
}
