package endpoint

import (
	"sync"

	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/metrics"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// StatefulWriter tracks each matched reader individually, driving reliable
// delivery via HEARTBEAT/ACKNACK/GAP (spec.md §4.4).
type StatefulWriter struct {
	Guid types.GUID

	mu             sync.Mutex
	qos            qos.EndpointQos
	cache          *history.WriterHistoryCache
	proxies        map[types.GUID]*ReaderProxy
	heartbeatCount types.Count
}

// NewStatefulWriter constructs a writer governed by q, backed by a fresh
// history cache.
func NewStatefulWriter(guid types.GUID, q qos.EndpointQos) *StatefulWriter {
	return &StatefulWriter{
		Guid:    guid,
		qos:     q,
		cache:   history.NewWriterHistoryCache(q),
		proxies: make(map[types.GUID]*ReaderProxy),
	}
}

// MatchReader adds (or replaces) the proxy for a newly-matched reader,
// seeding it with every sequence number from 1 through the last one this
// writer assigned, including any since evicted from the history cache.
func (w *StatefulWriter) MatchReader(guid types.GUID, unicast, multicast []types.Locator, reliable bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.proxies[guid] = NewReaderProxy(guid, unicast, multicast, reliable, w.cache.LastChangeSequenceNumber())
	metrics.MatchedEndpoints.WithLabelValues(w.Guid.String()).Set(float64(len(w.proxies)))
}

// UnmatchReader drops a reader proxy, e.g. on SEDP unmatch or lease expiry.
func (w *StatefulWriter) UnmatchReader(guid types.GUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.proxies, guid)
	metrics.MatchedEndpoints.WithLabelValues(w.Guid.String()).Set(float64(len(w.proxies)))
}

// MatchedReaders returns the GUIDs of every currently-matched reader.
func (w *StatefulWriter) MatchedReaders() []types.GUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]types.GUID, 0, len(w.proxies))
	for g := range w.proxies {
		out = append(out, g)
	}
	return out
}

// Write appends a new change to the history cache and marks it unsent for
// every matched reader proxy. Returns the assigned sequence number.
func (w *StatefulWriter) Write(change history.CacheChange) (types.SequenceNumber, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sn := w.cache.NextSequenceNumber()
	change.SequenceNumber = sn
	change.WriterGuid = w.Guid
	if err := w.cache.AddChange(change, w.pendingAckLocked); err != nil {
		return 0, err
	}
	for _, p := range w.proxies {
		p.MarkUnsent(sn)
	}
	metrics.HistoryCacheSize.WithLabelValues(w.Guid.String()).Set(float64(w.cache.Count()))
	return sn, nil
}

func (w *StatefulWriter) pendingAckLocked(sn types.SequenceNumber) bool {
	for _, p := range w.proxies {
		if p.Reliable && !p.IsAcked(sn) {
			return true
		}
	}
	return false
}

// PendingAck reports whether sn is still unacknowledged by any reliable
// matched reader, for use by callers managing lifespan-driven eviction.
func (w *StatefulWriter) PendingAck(sn types.SequenceNumber) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingAckLocked(sn)
}

// NextOutbound pops the next pending submessage(s) for guid's proxy,
// preferring retransmission requests over first-time sends. A single
// cache-change may produce more than one OutboundData when it is fragmented;
// a sequence number no longer in the history cache goes out as a GAP.
func (w *StatefulWriter) NextOutbound(guid types.GUID) ([]OutboundData, bool) {
	w.mu.Lock()
	p, ok := w.proxies[guid]
	w.mu.Unlock()
	if !ok {
		return nil, false
	}

	sn, ok := p.NextRequested()
	if !ok {
		sn, ok = p.NextUnsent()
	}
	if !ok {
		return nil, false
	}

	w.mu.Lock()
	change, found := w.cache.GetChange(sn)
	fragmentSize := w.qos.FragmentSize
	w.mu.Unlock()

	locs := p.UnicastLocators
	if len(locs) == 0 {
		locs = p.MulticastLocators
	}
	if !found {
		// Evicted since it was marked pending: tell the reader it's gone via
		// GAP instead.
		gap := messages.Gap{
			ReaderId: p.RemoteReaderGuid.EntityId,
			WriterId: w.Guid.EntityId,
			GapStart: sn,
			GapList:  messages.NewSequenceNumberSet(sn+1, nil),
		}
		return []OutboundData{{Locators: locs, Body: gap}}, true
	}
	return buildOutbound(change, sn, p.RemoteReaderGuid.EntityId, w.Guid.EntityId, locs, fragmentSize), true
}

// BuildHeartbeat produces the next HEARTBEAT announcing the writer's
// currently-held sequence-number range, addressed to every matched reader.
func (w *StatefulWriter) BuildHeartbeat() messages.Heartbeat {
	w.mu.Lock()
	defer w.mu.Unlock()
	metrics.HeartbeatsSentTotal.Inc()
	w.heartbeatCount++
	first := types.SequenceNumber(1)
	if all := w.cache.AllChanges(); len(all) > 0 {
		first = all[0].SequenceNumber
	}
	return messages.Heartbeat{
		ReaderId: types.EntityIdUnknown,
		WriterId: w.Guid.EntityId,
		FirstSN:  first,
		LastSN:   w.cache.LastChangeSequenceNumber(),
		Count:    w.heartbeatCount,
	}
}

// HandleAckNack folds a reader's ACKNACK into its proxy state.
func (w *StatefulWriter) HandleAckNack(readerGuid types.GUID, ack messages.AckNack) {
	w.mu.Lock()
	p, ok := w.proxies[readerGuid]
	w.mu.Unlock()
	if !ok {
		return
	}
	p.ApplyAckNack(ack.ReaderSNState.Base, ack.ReaderSNState.Members())
}

// AnyUnacked reports whether any reliable matched reader still has data
// unsent or awaiting retransmission, or has not yet acknowledged the
// writer's last change, for wait_for_acknowledgments support.
func (w *StatefulWriter) AnyUnacked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last := w.cache.LastChangeSequenceNumber()
	for _, p := range w.proxies {
		if p.Reliable && (p.HasUnackedChanges() || !p.IsAcked(last)) {
			return true
		}
	}
	return false
}

// Cache exposes the underlying history cache for read-only inspection
// (e.g. wait_for_historical_data checks on a matched reader's view).
func (w *StatefulWriter) Cache() *history.WriterHistoryCache { return w.cache }

// EntityId returns the writer's entity-id, for receiver.WriterSink routing.
func (w *StatefulWriter) EntityId() types.EntityId { return w.Guid.EntityId }

// ReaderLocators returns the locators a HEARTBEAT addressed to guid's proxy
// should go to, preferring unicast the same way NextOutbound does.
func (w *StatefulWriter) ReaderLocators(guid types.GUID) ([]types.Locator, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.proxies[guid]
	if !ok {
		return nil, false
	}
	if len(p.UnicastLocators) > 0 {
		return p.UnicastLocators, true
	}
	return p.MulticastLocators, true
}

// HandleNackFrag folds a fragment-level retransmission request into the
// proxy by marking the whole change unsent again, so NextOutbound resends
// all of its fragments rather than only the individual ones requested.
func (w *StatefulWriter) HandleNackFrag(readerGuid types.GUID, n messages.NackFrag) {
	w.mu.Lock()
	p, ok := w.proxies[readerGuid]
	w.mu.Unlock()
	if !ok {
		return
	}
	p.MarkUnsent(n.WriterSN)
}
