package endpoint

import (
	"sync"
	"time"

	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/metrics"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// KeyExtractor derives the InstanceHandle for a sample's serialized
// payload; supplied by the owning DataReader's TypeSupport.
type KeyExtractor func(serializedPayload []byte) types.InstanceHandle

// StatefulReader tracks each matched writer individually, generating
// coalesced ACKNACK feedback and reassembling DATA_FRAG (spec.md §4.6).
type StatefulReader struct {
	Guid types.GUID

	mu      sync.Mutex
	qos     qos.EndpointQos
	cache   *history.ReaderHistoryCache
	proxies map[types.GUID]*WriterProxy
	keyOf   KeyExtractor
}

func NewStatefulReader(guid types.GUID, q qos.EndpointQos, keyOf KeyExtractor) *StatefulReader {
	if keyOf == nil {
		keyOf = func([]byte) types.InstanceHandle { return types.InstanceHandleNil }
	}
	return &StatefulReader{
		Guid:    guid,
		qos:     q,
		cache:   history.NewReaderHistoryCache(q),
		proxies: make(map[types.GUID]*WriterProxy),
		keyOf:   keyOf,
	}
}

// MatchWriter adds the proxy for a newly-matched writer.
func (r *StatefulReader) MatchWriter(guid types.GUID, unicast []types.Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies[guid] = NewWriterProxy(guid, unicast)
	r.cache.RegisterWriterForInstance(types.InstanceHandleNil, guid)
	metrics.MatchedEndpoints.WithLabelValues(r.Guid.String()).Set(float64(len(r.proxies)))
}

// UnmatchWriter drops a writer proxy and unregisters the writer from the nil
// instance (the one MatchWriter registered it for), which goes NO_WRITERS if
// no other writer is left on it. Keyed instances the writer was registered
// for through HandleData/HandleDataFrag keep it as a live writer.
func (r *StatefulReader) UnmatchWriter(guid types.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.proxies, guid)
	r.cache.UnregisterWriterForInstance(types.InstanceHandleNil, guid)
	metrics.MatchedEndpoints.WithLabelValues(r.Guid.String()).Set(float64(len(r.proxies)))
}

// MatchedWriters returns the GUIDs of every currently-matched writer.
func (r *StatefulReader) MatchedWriters() []types.GUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.GUID, 0, len(r.proxies))
	for g := range r.proxies {
		out = append(out, g)
	}
	return out
}

// HandleData ingests a complete (non-fragmented) DATA submessage from
// writerGuid.
func (r *StatefulReader) HandleData(writerGuid types.GUID, d messages.Data) {
	r.mu.Lock()
	p, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return
	}
	p.ReceivedChange(d.WriterSN)

	change := changeFromData(writerGuid, d, r.keyOf)
	change.SequenceNumber = d.WriterSN
	change.ReceptionTimestamp = time.Now()
	r.cache.RegisterWriterForInstance(change.InstanceHandle, writerGuid)
	_, _ = r.cache.AddChange(change)
	metrics.HistoryCacheSize.WithLabelValues(r.Guid.String()).Set(float64(r.cache.Count()))
}

// HandleDataFrag ingests one DATA_FRAG submessage, adding its payload
// fragments to the writer proxy's assembler and promoting to a full
// CacheChange once every fragment has arrived.
func (r *StatefulReader) HandleDataFrag(writerGuid types.GUID, d messages.DataFrag) {
	r.mu.Lock()
	p, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return
	}
	asm := p.Assembler(d.WriterSN, d.DataSize, d.FragmentSize)
	full, complete := asm.AddFragments(d.FragmentStartingNum, d.FragmentsInSubmessage, d.SerializedPayload)
	if !complete {
		return
	}
	p.DropAssembler(d.WriterSN)
	p.ReceivedChange(d.WriterSN)

	change := changeFromDataFrag(writerGuid, d, full, r.keyOf)
	change.SequenceNumber = d.WriterSN
	change.ReceptionTimestamp = time.Now()
	r.cache.RegisterWriterForInstance(change.InstanceHandle, writerGuid)
	_, _ = r.cache.AddChange(change)
}

// HandleHeartbeat folds a writer's advertised range into the matching
// proxy's missing set; the ACKNACK answering it is built by BuildAckNack.
func (r *StatefulReader) HandleHeartbeat(writerGuid types.GUID, hb messages.Heartbeat) {
	r.mu.Lock()
	p, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return
	}
	p.ApplyHeartbeat(hb.FirstSN, hb.LastSN)
}

// HandleGap folds a writer's GAP into the matching proxy.
func (r *StatefulReader) HandleGap(writerGuid types.GUID, g messages.Gap) {
	r.mu.Lock()
	p, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return
	}
	p.ApplyGap(g.GapStart, g.GapList.Base, g.GapList.Members())
}

// BuildAckNack produces the ACKNACK this reader owes writerGuid, reporting
// ok=false only when writerGuid is not a matched writer. When nothing is
// missing the ACKNACK is still produced, with Final set.
func (r *StatefulReader) BuildAckNack(writerGuid types.GUID) (messages.AckNack, bool) {
	r.mu.Lock()
	p, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return messages.AckNack{}, false
	}
	missing := p.MissingSet()
	base := p.ReceivedBase()
	set := messages.NewSequenceNumberSet(base, missing)
	return messages.AckNack{
		ReaderId:      r.Guid.EntityId,
		WriterId:      writerGuid.EntityId,
		ReaderSNState: set,
		Count:         p.NextAckNackCount(),
		Final:         len(missing) == 0,
	}, true
}

// Cache exposes the underlying history cache.
func (r *StatefulReader) Cache() *history.ReaderHistoryCache { return r.cache }

// ExtractKey exposes the reader's key-extraction function, used when a
// component outside the endpoint package (e.g. discovery) needs to derive
// the same instance handle the cache did.
func (r *StatefulReader) ExtractKey(payload []byte) types.InstanceHandle { return r.keyOf(payload) }

// EntityId returns the reader's entity-id, for receiver.ReaderSink routing.
func (r *StatefulReader) EntityId() types.EntityId { return r.Guid.EntityId }

// WriterLocators returns the locators an ACKNACK addressed to guid's proxy
// should go to.
func (r *StatefulReader) WriterLocators(guid types.GUID) ([]types.Locator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proxies[guid]
	if !ok {
		return nil, false
	}
	return p.UnicastLocators, true
}

// CaughtUpWith reports whether this reader has received everything writerGuid
// has ever advertised via HEARTBEAT, i.e. has no outstanding missing sequence
// numbers for it. Used by wait_for_historical_data.
func (r *StatefulReader) CaughtUpWith(writerGuid types.GUID) bool {
	r.mu.Lock()
	p, ok := r.proxies[writerGuid]
	r.mu.Unlock()
	if !ok {
		return true
	}
	return len(p.MissingSet()) == 0
}
