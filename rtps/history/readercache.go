package history

import (
	"sync"

	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// ViewState distinguishes an instance the reader is seeing data for for the
// first time (or for the first time since NO_WRITERS) from one it has
// already surfaced.
type ViewState int

const (
	NewView ViewState = iota
	NotNewView
)

// InstanceState mirrors the DCPS instance-state machine.
type InstanceState int

const (
	InstanceAlive InstanceState = iota
	InstanceNotAliveDisposed
	InstanceNotAliveNoWriters
)

type instanceRecord struct {
	state               InstanceState
	viewState           ViewState
	disposedGeneration  uint32
	noWritersGeneration uint32
	liveWriters         map[types.GUID]bool
}

// ReaderKey identifies a change in the reader-side cache by
// (writer-guid, sequence-number), per spec.md §3.
type ReaderKey struct {
	WriterGuid types.GUID
	Seq        types.SequenceNumber
}

// ReaderHistoryCache is the reader-side store of cache-changes, indexed by
// (writer,seq) with duplicate rejection and per-instance QoS eviction
// (spec.md §4.2/§4.6).
type ReaderHistoryCache struct {
	mu          sync.Mutex
	qos         qos.EndpointQos
	changes     map[ReaderKey]*CacheChange
	order       []ReaderKey
	byInstance  map[types.InstanceHandle][]ReaderKey
	instances   map[types.InstanceHandle]*instanceRecord
	highestSeq  map[types.GUID]types.SequenceNumber
}

func NewReaderHistoryCache(q qos.EndpointQos) *ReaderHistoryCache {
	return &ReaderHistoryCache{
		qos:        q,
		changes:    make(map[ReaderKey]*CacheChange),
		byInstance: make(map[types.InstanceHandle][]ReaderKey),
		instances:  make(map[types.InstanceHandle]*instanceRecord),
		highestSeq: make(map[types.GUID]types.SequenceNumber),
	}
}

func (c *ReaderHistoryCache) instanceLocked(h types.InstanceHandle) *instanceRecord {
	rec, ok := c.instances[h]
	if !ok {
		rec = &instanceRecord{state: InstanceAlive, viewState: NewView, liveWriters: make(map[types.GUID]bool)}
		c.instances[h] = rec
	}
	return rec
}

// HighestReceivedSeq reports the highest sequence number accepted from a
// given writer, for duplicate/gap bookkeeping by the stateful reader.
func (c *ReaderHistoryCache) HighestReceivedSeq(writer types.GUID) types.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highestSeq[writer]
}

// AddChange inserts change unless it duplicates an existing (writer,seq)
// entry. It updates the instance-state machine (ALIVE -> DISPOSED on a
// dispose change) and enforces KEEP_LAST/KEEP_ALL eviction. Returns false
// (no error) when the change was a silently-dropped duplicate.
func (c *ReaderHistoryCache) AddChange(change CacheChange) (accepted bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := ReaderKey{WriterGuid: change.WriterGuid, Seq: change.SequenceNumber}
	if _, dup := c.changes[key]; dup {
		return false, nil
	}
	if change.SequenceNumber <= c.highestSeq[change.WriterGuid] {
		// Older than or equal to something already delivered from this
		// writer and not a tracked duplicate key: stale, drop silently.
		if c.highestSeq[change.WriterGuid] != 0 {
			return false, nil
		}
	}

	rec := c.instanceLocked(change.InstanceHandle)
	switch change.Kind {
	case types.ChangeKindNotAliveDisposed, types.ChangeKindNotAliveDisposedUnregistered:
		rec.state = InstanceNotAliveDisposed
		rec.disposedGeneration++
	case types.ChangeKindNotAliveUnregistered:
		// handled via UnregisterWriterForInstance by the caller; a bare
		// unregister change still records the generation it was seen at.
	}
	change.DisposedGeneration = rec.disposedGeneration
	change.NoWritersGeneration = rec.noWritersGeneration
	change.SampleState = NotRead

	cp := change
	c.changes[key] = &cp
	c.order = append(c.order, key)
	c.byInstance[change.InstanceHandle] = append(c.byInstance[change.InstanceHandle], key)
	if change.SequenceNumber > c.highestSeq[change.WriterGuid] {
		c.highestSeq[change.WriterGuid] = change.SequenceNumber
	}

	c.evictLocked(change.InstanceHandle)
	return true, nil
}

func (c *ReaderHistoryCache) evictLocked(instance types.InstanceHandle) {
	if c.qos.History.Kind != qos.KeepLast {
		return
	}
	depth := c.qos.History.Depth
	if depth <= 0 {
		depth = 1
	}
	keys := c.byInstance[instance]
	for len(keys) > depth {
		oldest := keys[0]
		delete(c.changes, oldest)
		c.removeFromOrderLocked(oldest)
		keys = keys[1:]
	}
	c.byInstance[instance] = keys
}

func (c *ReaderHistoryCache) removeFromOrderLocked(key ReaderKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// RegisterWriterForInstance records that a live writer is publishing to
// instance, reviving it from NO_WRITERS if it was there.
func (c *ReaderHistoryCache) RegisterWriterForInstance(instance types.InstanceHandle, writer types.GUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.instanceLocked(instance)
	rec.liveWriters[writer] = true
	if rec.state == InstanceNotAliveNoWriters {
		rec.state = InstanceAlive
		rec.viewState = NewView
	}
}

// UnregisterWriterForInstance removes writer from instance's live-writer
// set; once it empties, the instance transitions ALIVE -> NO_WRITERS
// (spec.md §4.6).
func (c *ReaderHistoryCache) UnregisterWriterForInstance(instance types.InstanceHandle, writer types.GUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.instances[instance]
	if !ok {
		return
	}
	delete(rec.liveWriters, writer)
	if len(rec.liveWriters) == 0 && rec.state == InstanceAlive {
		rec.state = InstanceNotAliveNoWriters
		rec.noWritersGeneration++
	}
}

// InstanceState returns the current instance-state of handle.
func (c *ReaderHistoryCache) InstanceState(handle types.InstanceHandle) InstanceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.instances[handle]
	if !ok {
		return InstanceAlive
	}
	return rec.state
}

// SelectionFilter restricts Read/Take to samples matching the given states;
// a nil slice for any field means "match all".
type SelectionFilter struct {
	SampleStates   []SampleState
	ViewStates     []ViewState
	InstanceStates []InstanceState
}

func (f SelectionFilter) matches(sampleState SampleState, viewState ViewState, instanceState InstanceState) bool {
	if f.SampleStates != nil && !containsSample(f.SampleStates, sampleState) {
		return false
	}
	if f.ViewStates != nil && !containsView(f.ViewStates, viewState) {
		return false
	}
	if f.InstanceStates != nil && !containsInstance(f.InstanceStates, instanceState) {
		return false
	}
	return true
}

func containsSample(s []SampleState, v SampleState) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
func containsView(s []ViewState, v ViewState) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
func containsInstance(s []InstanceState, v InstanceState) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Read returns up to maxSamples matching changes without altering their
// sample_state. maxSamples <= 0 means unbounded.
func (c *ReaderHistoryCache) Read(maxSamples int, filter SelectionFilter) []CacheChange {
	return c.selectAndMaybeTake(maxSamples, filter, false)
}

// Take returns up to maxSamples matching changes and removes them from the
// cache.
func (c *ReaderHistoryCache) Take(maxSamples int, filter SelectionFilter) []CacheChange {
	return c.selectAndMaybeTake(maxSamples, filter, true)
}

func (c *ReaderHistoryCache) selectAndMaybeTake(maxSamples int, filter SelectionFilter, take bool) []CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []CacheChange
	var toRemove []ReaderKey
	for _, key := range c.order {
		ch := c.changes[key]
		rec := c.instanceLocked(ch.InstanceHandle)
		if !filter.matches(ch.SampleState, rec.viewState, rec.state) {
			continue
		}
		out = append(out, *ch)
		if take {
			toRemove = append(toRemove, key)
		}
		rec.viewState = NotNewView
		if maxSamples > 0 && len(out) >= maxSamples {
			break
		}
	}
	for _, key := range toRemove {
		ch := c.changes[key]
		delete(c.changes, key)
		c.removeFromOrderLocked(key)
		keys := c.byInstance[ch.InstanceHandle]
		for i, k := range keys {
			if k == key {
				c.byInstance[ch.InstanceHandle] = append(keys[:i], keys[i+1:]...)
				break
			}
		}
	}
	return out
}

// Count returns the number of retained changes.
func (c *ReaderHistoryCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}

// CountForInstance returns the number of samples (of any change kind)
// retained for a given instance, used to check the KEEP_LAST(depth)
// invariant in tests.
func (c *ReaderHistoryCache) CountForInstance(h types.InstanceHandle) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byInstance[h])
}
