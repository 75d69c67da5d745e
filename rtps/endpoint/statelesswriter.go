package endpoint

import (
	"sync"

	"rtpsgo/rtps/history"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// StatelessWriter sends every change to a fixed locator list with no
// per-reader bookkeeping or retransmission (spec.md §4.3). Used for SPDP
// participant announcements, where the multicast group stands in for
// explicit matching.
type StatelessWriter struct {
	Guid types.GUID

	mu       sync.Mutex
	qos      qos.EndpointQos
	cache    *history.WriterHistoryCache
	locators []types.Locator
}

func NewStatelessWriter(guid types.GUID, q qos.EndpointQos, locators []types.Locator) *StatelessWriter {
	return &StatelessWriter{
		Guid:     guid,
		qos:      q,
		cache:    history.NewWriterHistoryCache(q),
		locators: locators,
	}
}

// AddLocator appends a destination locator, e.g. a newly-discovered peer's
// metatraffic unicast locator.
func (w *StatelessWriter) AddLocator(l types.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.locators {
		if existing.Equal(l) {
			return
		}
	}
	w.locators = append(w.locators, l)
}

// Write appends change to the history cache and returns the submessage(s)
// ready to broadcast to every configured locator.
func (w *StatelessWriter) Write(change history.CacheChange) ([]OutboundData, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sn := w.cache.NextSequenceNumber()
	change.SequenceNumber = sn
	change.WriterGuid = w.Guid
	if err := w.cache.AddChange(change, nil); err != nil {
		return nil, err
	}

	locs := make([]types.Locator, len(w.locators))
	copy(locs, w.locators)
	return buildOutbound(change, sn, types.EntityIdUnknown, w.Guid.EntityId, locs, w.qos.FragmentSize), nil
}

// Cache exposes the underlying history cache.
func (w *StatelessWriter) Cache() *history.WriterHistoryCache { return w.cache }

// EntityId returns the writer's entity-id.
func (w *StatelessWriter) EntityId() types.EntityId { return w.Guid.EntityId }
