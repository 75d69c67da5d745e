package endpoint

import (
	"sync"

	"rtpsgo/rtps/types"
)

// WriterProxy is a reader's view of one matched remote writer (spec.md
// §4.6): the highest contiguous sequence number received, the set of
// sequence numbers known to exist but not yet received, and in-progress
// fragment reassembly.
type WriterProxy struct {
	RemoteWriterGuid types.GUID
	UnicastLocators  []types.Locator

	mu              sync.Mutex
	highestReceived types.SequenceNumber
	missing         map[types.SequenceNumber]bool
	acknackCount    types.Count
	frags           map[types.SequenceNumber]*FragmentAssembler
}

// NewWriterProxy returns an empty proxy that has received nothing yet.
func NewWriterProxy(guid types.GUID, unicast []types.Locator) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGuid: guid,
		UnicastLocators:  unicast,
		missing:          make(map[types.SequenceNumber]bool),
		frags:            make(map[types.SequenceNumber]*FragmentAssembler),
	}
}

// ReceivedChange records a complete sample, extending highestReceived and
// clearing it from the missing set.
func (p *WriterProxy) ReceivedChange(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receivedLocked(sn)
}

func (p *WriterProxy) receivedLocked(sn types.SequenceNumber) {
	delete(p.missing, sn)
	if sn <= p.highestReceived {
		return
	}
	for gap := p.highestReceived + 1; gap < sn; gap++ {
		p.missing[gap] = true
	}
	p.highestReceived = sn
}

// ApplyHeartbeat folds in a writer's advertised [firstSN, lastSN] range,
// adding any newly-implied sequence numbers to the missing set, and drops
// missing entries below firstSN (the writer no longer holds them).
func (p *WriterProxy) ApplyHeartbeat(firstSN, lastSN types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sn := range p.missing {
		if sn < firstSN {
			delete(p.missing, sn)
		}
	}
	if lastSN > p.highestReceived {
		for gap := p.highestReceived + 1; gap <= lastSN; gap++ {
			if gap >= firstSN {
				p.missing[gap] = true
			}
		}
	}
}

// ApplyGap removes [gapStart, gapListBase) union gapList members from the
// missing set: the writer has told us these will never arrive.
func (p *WriterProxy) ApplyGap(gapStart, gapListBase types.SequenceNumber, gapList []types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sn := gapStart; sn < gapListBase; sn++ {
		delete(p.missing, sn)
		if sn > p.highestReceived {
			p.highestReceived = sn
		}
	}
	for _, sn := range gapList {
		delete(p.missing, sn)
		if sn > p.highestReceived {
			p.highestReceived = sn
		}
	}
}

// ReceivedBase returns the lowest sequence number this proxy has not yet
// received: the base an ACKNACK built from this proxy's state should use.
func (p *WriterProxy) ReceivedBase() types.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := p.highestReceived + 1
	for sn := range p.missing {
		if sn < base {
			base = sn
		}
	}
	return base
}

// MissingSet returns the sequence numbers this proxy still needs, sorted.
func (p *WriterProxy) MissingSet() []types.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.SequenceNumber, 0, len(p.missing))
	for sn := range p.missing {
		out = append(out, sn)
	}
	sortSeq(out)
	return out
}

func sortSeq(s []types.SequenceNumber) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// NextAckNackCount returns the next strictly-increasing ACKNACK count this
// proxy's reader should stamp.
func (p *WriterProxy) NextAckNackCount() types.Count {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acknackCount++
	return p.acknackCount
}

// Assembler returns (creating if necessary) the fragment assembler for sn.
func (p *WriterProxy) Assembler(sn types.SequenceNumber, dataSize uint32, fragmentSize uint16) *FragmentAssembler {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.frags[sn]
	if !ok {
		a = NewFragmentAssembler(dataSize, fragmentSize)
		p.frags[sn] = a
	}
	return a
}

// DropAssembler discards fragment-reassembly state for sn, typically once
// complete or superseded by a GAP.
func (p *WriterProxy) DropAssembler(sn types.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.frags, sn)
}
