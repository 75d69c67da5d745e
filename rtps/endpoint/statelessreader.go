package endpoint

import (
	"time"

	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// StatelessReader accepts DATA from any writer with no per-writer
// bookkeeping and no retransmission requests (spec.md §4.5). Used for SPDP,
// where missed announcements are simply superseded by the next periodic
// one rather than retransmitted.
type StatelessReader struct {
	Guid  types.GUID
	cache *history.ReaderHistoryCache
	keyOf KeyExtractor
}

func NewStatelessReader(guid types.GUID, q qos.EndpointQos, keyOf KeyExtractor) *StatelessReader {
	if keyOf == nil {
		keyOf = func([]byte) types.InstanceHandle { return types.InstanceHandleNil }
	}
	return &StatelessReader{
		Guid:  guid,
		cache: history.NewReaderHistoryCache(q),
		keyOf: keyOf,
	}
}

// HandleData ingests a DATA submessage from writerGuid, unconditionally
// (no proxy, no dedup beyond the cache's own (writer,seq) key).
func (r *StatelessReader) HandleData(writerGuid types.GUID, d messages.Data) {
	change := changeFromData(writerGuid, d, r.keyOf)
	change.SequenceNumber = d.WriterSN
	change.ReceptionTimestamp = time.Now()
	r.cache.RegisterWriterForInstance(change.InstanceHandle, writerGuid)
	_, _ = r.cache.AddChange(change)
}

// Cache exposes the underlying history cache.
func (r *StatelessReader) Cache() *history.ReaderHistoryCache { return r.cache }

// EntityId returns the reader's entity-id.
func (r *StatelessReader) EntityId() types.EntityId { return r.Guid.EntityId }

// HandleDataFrag is a no-op for stateless readers: spec.md §4.5 scopes
// stateless reception to SPDP, whose participant-proxy payload never
// exceeds fragment_size.
func (r *StatelessReader) HandleDataFrag(writerGuid types.GUID, d messages.DataFrag) {}

// HandleGap is a no-op: stateless readers track no per-writer state for
// GAP to update (spec.md §4.5).
func (r *StatelessReader) HandleGap(writerGuid types.GUID, g messages.Gap) {}

// HandleHeartbeat is a no-op: a stateless reader never sends ACKNACK.
func (r *StatelessReader) HandleHeartbeat(writerGuid types.GUID, hb messages.Heartbeat) {}
