package participant

import (
	"rtpsgo/rtps/discovery"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/types"
)

// spdpReaderSink routes DATA destined for the SPDP builtin reader through
// SPDPService.HandleData instead of only the bare StatelessReader, so every
// arriving participant announcement also updates the lease cache.
type spdpReaderSink struct {
	svc         *discovery.SPDPService
	localPrefix types.GuidPrefix
}

func (a spdpReaderSink) EntityId() types.EntityId { return a.svc.Reader.EntityId() }

func (a spdpReaderSink) HandleData(writerGuid types.GUID, d messages.Data) {
	a.svc.HandleData(writerGuid, d, a.localPrefix)
}

func (a spdpReaderSink) HandleDataFrag(writerGuid types.GUID, d messages.DataFrag) {}
func (a spdpReaderSink) HandleGap(writerGuid types.GUID, g messages.Gap)           {}
func (a spdpReaderSink) HandleHeartbeat(writerGuid types.GUID, hb messages.Heartbeat) {}

// sedpPubReaderSink feeds every publication announcement received on the
// SEDP publications builtin reader into SEDPService's matcher.
type sedpPubReaderSink struct {
	svc *discovery.SEDPService
}

func (a sedpPubReaderSink) EntityId() types.EntityId { return a.svc.PubReader.EntityId() }

func (a sedpPubReaderSink) HandleData(writerGuid types.GUID, d messages.Data) {
	a.svc.PubReader.HandleData(writerGuid, d)
	a.svc.IngestPublication(d.SerializedPayload)
}

func (a sedpPubReaderSink) HandleDataFrag(writerGuid types.GUID, d messages.DataFrag) {
	a.svc.PubReader.HandleDataFrag(writerGuid, d)
}
func (a sedpPubReaderSink) HandleGap(writerGuid types.GUID, g messages.Gap) {
	a.svc.PubReader.HandleGap(writerGuid, g)
}
func (a sedpPubReaderSink) HandleHeartbeat(writerGuid types.GUID, hb messages.Heartbeat) {
	a.svc.PubReader.HandleHeartbeat(writerGuid, hb)
}

// sedpSubReaderSink is sedpPubReaderSink's subscription-side counterpart.
type sedpSubReaderSink struct {
	svc *discovery.SEDPService
}

func (a sedpSubReaderSink) EntityId() types.EntityId { return a.svc.SubReader.EntityId() }

func (a sedpSubReaderSink) HandleData(writerGuid types.GUID, d messages.Data) {
	a.svc.SubReader.HandleData(writerGuid, d)
	a.svc.IngestSubscription(d.SerializedPayload)
}

func (a sedpSubReaderSink) HandleDataFrag(writerGuid types.GUID, d messages.DataFrag) {
	a.svc.SubReader.HandleDataFrag(writerGuid, d)
}
func (a sedpSubReaderSink) HandleGap(writerGuid types.GUID, g messages.Gap) {
	a.svc.SubReader.HandleGap(writerGuid, g)
}
func (a sedpSubReaderSink) HandleHeartbeat(writerGuid types.GUID, hb messages.Heartbeat) {
	a.svc.SubReader.HandleHeartbeat(writerGuid, hb)
}
