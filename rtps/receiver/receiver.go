// Package receiver implements the per-datagram message dispatch of
// spec.md §4.7: parse the RTPS header, thread INFO_* submessages into a
// receiver state, and route every other submessage to the local endpoint(s)
// it addresses by reader-id or writer-id.
package receiver

import (
	"time"

	"github.com/rs/zerolog/log"

	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/metrics"
	"rtpsgo/rtps/types"
)

// State carries the INFO_*-derived context that applies to every
// submessage following it within one RTPS message (spec.md §4.7).
type State struct {
	SourceGuidPrefix     types.GuidPrefix
	SourceVersion        types.ProtocolVersion
	SourceVendor         types.VendorId
	DestGuidPrefix       types.GuidPrefix
	UnicastReplyLocators []types.Locator
	MulticastReplyLocators []types.Locator
	HaveTimestamp        bool
	Timestamp            time.Time
}

// ReaderSink receives submessages addressed to a local reader by
// reader-id: DATA, DATA_FRAG, GAP and HEARTBEAT. Implemented by
// *endpoint.StatefulReader and *endpoint.StatelessReader.
type ReaderSink interface {
	EntityId() types.EntityId
	HandleData(writerGuid types.GUID, d messages.Data)
	HandleDataFrag(writerGuid types.GUID, d messages.DataFrag)
	HandleGap(writerGuid types.GUID, g messages.Gap)
	HandleHeartbeat(writerGuid types.GUID, hb messages.Heartbeat)
}

// WriterSink receives submessages addressed to a local writer by
// writer-id: ACKNACK and NACK_FRAG. Implemented by *endpoint.StatefulWriter.
type WriterSink interface {
	EntityId() types.EntityId
	HandleAckNack(readerGuid types.GUID, a messages.AckNack)
	HandleNackFrag(readerGuid types.GUID, n messages.NackFrag)
}

// Dispatcher routes decoded submessages to the local endpoints they
// address, within the scope of one participant (one GuidPrefix namespace).
type Dispatcher struct {
	LocalPrefix types.GuidPrefix
	Readers     func() []ReaderSink
	Writers     func() []WriterSink
}

// Deliver decodes buf as one RTPS message from srcLocator and dispatches
// every submessage it contains. Wire errors are recovered locally per
// spec.md §7 and never propagated to the caller: a message whose header or
// submessage framing cannot be parsed is logged and dropped, and a
// submessage whose body fails to decode is skipped by messages.Parse while
// the rest of the message is still delivered.
func (d *Dispatcher) Deliver(buf []byte, srcLocator types.Locator) {
	msg, err := messages.Parse(buf)
	if err != nil {
		log.Debug().Err(err).Str("from", srcLocator.String()).Msg("rtps receiver: dropping unparsable message")
		return
	}

	st := State{SourceGuidPrefix: msg.Header.GuidPrefix, SourceVersion: msg.Header.Version, SourceVendor: msg.Header.VendorId}
	for _, sm := range msg.Submessages {
		if sm.Unknown {
			log.Debug().Uint8("id", sm.Header.SubmessageId).Msg("rtps receiver: skipping unknown submessage")
			continue
		}
		d.dispatchOne(&st, sm.Body)
	}
}

func (d *Dispatcher) dispatchOne(st *State, body messages.SubmessageBody) {
	switch b := body.(type) {
	case messages.InfoTs:
		if b.Invalidate {
			st.HaveTimestamp = false
		} else {
			st.HaveTimestamp = true
			st.Timestamp = b.Timestamp
		}
	case messages.InfoSrc:
		st.SourceGuidPrefix = b.GuidPrefix
		st.SourceVersion = b.ProtocolVersion
		st.SourceVendor = b.VendorId
	case messages.InfoDst:
		st.DestGuidPrefix = b.GuidPrefix
	case messages.InfoReply:
		st.UnicastReplyLocators = b.UnicastLocatorList
		if b.HasMulticast {
			st.MulticastReplyLocators = b.MulticastLocatorList
		}
	case messages.Pad:
		// no-op
	case messages.Data:
		metrics.SubmessagesTotal.WithLabelValues("rx", "DATA").Inc()
		writerGuid := types.GUID{Prefix: st.SourceGuidPrefix, EntityId: b.WriterId}
		d.forEachReader(b.ReaderId, b.WriterId, func(r ReaderSink) { r.HandleData(writerGuid, b) })
	case messages.DataFrag:
		metrics.SubmessagesTotal.WithLabelValues("rx", "DATA_FRAG").Inc()
		writerGuid := types.GUID{Prefix: st.SourceGuidPrefix, EntityId: b.WriterId}
		d.forEachReader(b.ReaderId, b.WriterId, func(r ReaderSink) { r.HandleDataFrag(writerGuid, b) })
	case messages.Gap:
		metrics.SubmessagesTotal.WithLabelValues("rx", "GAP").Inc()
		writerGuid := types.GUID{Prefix: st.SourceGuidPrefix, EntityId: b.WriterId}
		d.forEachReader(b.ReaderId, b.WriterId, func(r ReaderSink) { r.HandleGap(writerGuid, b) })
	case messages.Heartbeat:
		metrics.SubmessagesTotal.WithLabelValues("rx", "HEARTBEAT").Inc()
		writerGuid := types.GUID{Prefix: st.SourceGuidPrefix, EntityId: b.WriterId}
		d.forEachReader(b.ReaderId, b.WriterId, func(r ReaderSink) { r.HandleHeartbeat(writerGuid, b) })
	case messages.AckNack:
		metrics.SubmessagesTotal.WithLabelValues("rx", "ACKNACK").Inc()
		metrics.AckNacksReceivedTotal.Inc()
		readerGuid := types.GUID{Prefix: st.SourceGuidPrefix, EntityId: b.ReaderId}
		d.forEachWriter(b.WriterId, b.ReaderId, func(w WriterSink) { w.HandleAckNack(readerGuid, b) })
	case messages.NackFrag:
		metrics.SubmessagesTotal.WithLabelValues("rx", "NACK_FRAG").Inc()
		readerGuid := types.GUID{Prefix: st.SourceGuidPrefix, EntityId: b.ReaderId}
		d.forEachWriter(b.WriterId, b.ReaderId, func(w WriterSink) { w.HandleNackFrag(readerGuid, b) })
	}
}

// forEachReader routes to the single reader matching readerId, or fans out
// to every local reader when readerId is ENTITYID_UNKNOWN (spec.md §4.7).
// writerId is not consulted here; each reader decides what to do with a
// writer it has no proxy for.
func (d *Dispatcher) forEachReader(readerId, writerId types.EntityId, fn func(ReaderSink)) {
	for _, r := range d.Readers() {
		if readerId != types.EntityIdUnknown && r.EntityId() != readerId {
			continue
		}
		fn(r)
	}
}

func (d *Dispatcher) forEachWriter(writerId, readerId types.EntityId, fn func(WriterSink)) {
	for _, w := range d.Writers() {
		if writerId != types.EntityIdUnknown && w.EntityId() != writerId {
			continue
		}
		fn(w)
	}
}
