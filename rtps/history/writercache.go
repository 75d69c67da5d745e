package history

import (
	"sort"
	"sync"

	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
	"rtpsgo/rtpserr"
)

// PendingAckFunc reports whether a sequence number is still awaiting
// acknowledgement from at least one matched reader proxy. Reliable writers
// must not evict a change while this holds, per spec.md §4.2.
type PendingAckFunc func(sn types.SequenceNumber) bool

// WriterHistoryCache is the writer-side ordered store of cache-changes
// keyed by sequence number (spec.md §3/§4.2).
type WriterHistoryCache struct {
	mu         sync.Mutex
	qos        qos.EndpointQos
	reliable   bool
	changes    map[types.SequenceNumber]*CacheChange
	order      []types.SequenceNumber // ascending, kept in sync with changes
	byInstance map[types.InstanceHandle][]types.SequenceNumber
	lastSeq    types.SequenceNumber
}

// NewWriterHistoryCache returns an empty cache governed by q.
func NewWriterHistoryCache(q qos.EndpointQos) *WriterHistoryCache {
	return &WriterHistoryCache{
		qos:        q,
		reliable:   q.Reliability.Kind == qos.Reliable,
		changes:    make(map[types.SequenceNumber]*CacheChange),
		byInstance: make(map[types.InstanceHandle][]types.SequenceNumber),
	}
}

// NextSequenceNumber returns the sequence number the next AddChange call
// must use, preserving the "strictly increasing, consecutive" invariant.
func (c *WriterHistoryCache) NextSequenceNumber() types.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq + 1
}

// LastChangeSequenceNumber returns the highest sequence number ever added.
func (c *WriterHistoryCache) LastChangeSequenceNumber() types.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq
}

// AddChange inserts change, which must carry the next consecutive sequence
// number. Under KEEP_LAST it evicts the oldest change(s) of the same
// instance beyond the configured depth (skipping any still pending ack for
// a reliable writer); under KEEP_ALL it never evicts and instead returns
// rtpserr.ErrOutOfResources once RESOURCE_LIMITS is hit.
func (c *WriterHistoryCache) AddChange(change CacheChange, pending PendingAckFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if change.SequenceNumber != c.lastSeq+1 {
		return rtpserr.ErrBadParameter
	}

	if c.qos.History.Kind == qos.KeepAll {
		if c.qos.ResourceLimits.MaxSamplesPerInstance > 0 {
			if len(c.byInstance[change.InstanceHandle]) >= c.qos.ResourceLimits.MaxSamplesPerInstance {
				return rtpserr.ErrOutOfResources
			}
		}
		if c.qos.ResourceLimits.MaxSamples > 0 && len(c.changes) >= c.qos.ResourceLimits.MaxSamples {
			return rtpserr.ErrOutOfResources
		}
	}

	cp := change
	c.changes[change.SequenceNumber] = &cp
	c.order = append(c.order, change.SequenceNumber)
	c.byInstance[change.InstanceHandle] = append(c.byInstance[change.InstanceHandle], change.SequenceNumber)
	c.lastSeq = change.SequenceNumber

	if c.qos.History.Kind == qos.KeepLast {
		c.evictKeepLastLocked(change.InstanceHandle, pending)
	}
	return nil
}

// evictKeepLastLocked removes the oldest changes of instance beyond the
// configured depth. Changes still pending acknowledgement for a reliable
// writer are left in place (the invariant in spec.md §4.2 forbids removing
// them); the depth bound is then simply exceeded until they ack or expire.
func (c *WriterHistoryCache) evictKeepLastLocked(instance types.InstanceHandle, pending PendingAckFunc) {
	depth := c.qos.History.Depth
	if depth <= 0 {
		depth = 1
	}
	seqs := c.byInstance[instance]
	for len(seqs) > depth {
		oldest := seqs[0]
		if c.reliable && pending != nil && pending(oldest) {
			break
		}
		delete(c.changes, oldest)
		c.removeFromOrderLocked(oldest)
		seqs = seqs[1:]
	}
	c.byInstance[instance] = seqs
}

func (c *WriterHistoryCache) removeFromOrderLocked(sn types.SequenceNumber) {
	idx := sort.Search(len(c.order), func(i int) bool { return c.order[i] >= sn })
	if idx < len(c.order) && c.order[idx] == sn {
		c.order = append(c.order[:idx], c.order[idx+1:]...)
	}
}

// RemoveChange removes a change by sequence number. For a reliable writer
// it refuses to remove a change that pending reports as still awaiting
// acknowledgement, unless force is set (used when lifespan has elapsed).
func (c *WriterHistoryCache) RemoveChange(sn types.SequenceNumber, pending PendingAckFunc, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	change, ok := c.changes[sn]
	if !ok {
		return nil
	}
	if c.reliable && !force && pending != nil && pending(sn) {
		return rtpserr.ErrPreconditionNotMet
	}
	delete(c.changes, sn)
	c.removeFromOrderLocked(sn)
	seqs := c.byInstance[change.InstanceHandle]
	for i, s := range seqs {
		if s == sn {
			c.byInstance[change.InstanceHandle] = append(seqs[:i], seqs[i+1:]...)
			break
		}
	}
	return nil
}

// GetChange looks up a change by sequence number.
func (c *WriterHistoryCache) GetChange(sn types.SequenceNumber) (CacheChange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.changes[sn]
	if !ok {
		return CacheChange{}, false
	}
	return *ch, true
}

// IterChanges returns, in sequence-number order, every change with
// from <= seq <= to.
func (c *WriterHistoryCache) IterChanges(from, to types.SequenceNumber) []CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []CacheChange
	for _, sn := range c.order {
		if sn < from {
			continue
		}
		if sn > to {
			break
		}
		out = append(out, *c.changes[sn])
	}
	return out
}

// AllChanges returns every change currently retained, in sequence order.
func (c *WriterHistoryCache) AllChanges() []CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheChange, 0, len(c.order))
	for _, sn := range c.order {
		out = append(out, *c.changes[sn])
	}
	return out
}

// Count returns the number of changes currently retained.
func (c *WriterHistoryCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}
