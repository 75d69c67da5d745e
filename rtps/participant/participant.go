// Package participant implements the user-facing DDS entities of spec.md
// §6: DomainParticipant, Publisher/Subscriber and DataWriter/DataReader,
// wired on top of the endpoint, discovery and runtime packages.
package participant

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/discovery"
	"rtpsgo/rtps/endpoint"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/receiver"
	"rtpsgo/rtps/runtime"
	"rtpsgo/rtps/transport"
	"rtpsgo/rtps/types"
)

// reliabilityFlushPeriod is how often every reliable writer's pending DATA
// and HEARTBEAT, and every reliable reader's ACKNACK, are pushed out.
const reliabilityFlushPeriod = 2 * time.Second

// DomainParticipant is the entry point into one DDS domain (spec.md §6):
// it owns the participant's GUID, transport, the SPDP/SEDP builtin
// services, and every Publisher/Subscriber created under it.
type DomainParticipant struct {
	guid                      types.GUID
	domainId                  types.DomainId
	domainTag                 string
	transport                 transport.Transport
	defaultUnicastLocator     types.Locator
	metatrafficUnicastLocator types.Locator

	spdp       *discovery.SPDPService
	sedp       *discovery.SEDPService
	supervisor *runtime.Supervisor
	entityIds  entityIdAllocator

	mu          sync.Mutex
	publishers  []*Publisher
	subscribers []*Subscriber
	topics      map[string]discovery.DiscoveredTopicData
}

// NewDomainParticipant joins domainId over tr, starting the SPDP announce
// loop, the message receive loop and the reliability flush loop on its own
// supervised goroutines. The GuidPrefix is a fresh xid, which is exactly
// the 12 bytes spec.md §3's GuidPrefix needs.
func NewDomainParticipant(ctx context.Context, domainId types.DomainId, domainTag string, tr transport.Transport) (*DomainParticipant, error) {
	var prefix types.GuidPrefix
	copy(prefix[:], xid.New().Bytes())
	guid := types.GUID{Prefix: prefix, EntityId: types.EntityIdParticipant}

	mcastLocator := types.LocatorFromUDPv4(types.SPDPMulticastAddress, types.SPDPMulticastPort(domainId))
	if err := tr.JoinMulticast(mcastLocator); err != nil {
		return nil, err
	}

	unicastLocator := tr.UnicastLocator()
	p := &DomainParticipant{
		guid:                      guid,
		domainId:                  domainId,
		domainTag:                 domainTag,
		transport:                 tr,
		defaultUnicastLocator:     unicastLocator,
		metatrafficUnicastLocator: unicastLocator,
		spdp:                      discovery.NewSPDPService(domainId, guid, mcastLocator),
		sedp:                      discovery.NewSEDPService(prefix),
		supervisor:                runtime.NewSupervisor(ctx),
		topics:                    make(map[string]discovery.DiscoveredTopicData),
	}

	p.spdp.OnDiscovered = func(proxy discovery.ParticipantProxy) {
		log.Info().Str("participant", proxy.GuidPrefix.String()).Msg("spdp: discovered remote participant")
	}
	p.spdp.OnLost = func(lost types.GuidPrefix) {
		log.Info().Str("participant", lost.String()).Msg("spdp: participant lease expired")
		p.sedp.ParticipantLost(lost)
	}
	p.sedp.OnEndpointsMatched = func(writerGuid, readerGuid types.GUID) {
		log.Info().Str("writer", writerGuid.String()).Str("reader", readerGuid.String()).Msg("sedp: endpoints matched")
	}

	dispatcher := &receiver.Dispatcher{
		LocalPrefix: prefix,
		Readers:     p.readerSinks,
		Writers:     p.writerSinks,
	}

	p.supervisor.Go("spdp-announce", func(ctx context.Context) error {
		p.spdp.Run(ctx, discovery.DefaultSPDPPeriod, p.selfProxy, func(outs []endpoint.OutboundData) {
			for _, out := range outs {
				p.sendOutbound(ctx, out)
			}
		})
		return nil
	})

	p.supervisor.Go("receive", func(ctx context.Context) error {
		for {
			dg, err := tr.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			dispatcher.Deliver(dg.Payload, dg.From)
		}
	})

	p.supervisor.Go("reliability-flush", func(ctx context.Context) error {
		ticker := time.NewTicker(reliabilityFlushPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				p.flushReliable(ctx)
			}
		}
	})

	return p, nil
}

func (p *DomainParticipant) selfProxy() discovery.ParticipantProxy {
	return discovery.ParticipantProxy{
		GuidPrefix:                 p.guid.Prefix,
		ProtocolVersion:            types.ProtocolVersion24,
		VendorId:                   types.VendorIdThis,
		DomainId:                   p.domainId,
		DomainTag:                  p.domainTag,
		MetatrafficUnicastLocators: []types.Locator{p.metatrafficUnicastLocator},
		DefaultUnicastLocators:     []types.Locator{p.defaultUnicastLocator},
		AvailableBuiltinEndpoints:  discovery.DefaultBuiltinEndpoints,
		LeaseDuration:              discovery.DefaultSPDPPeriod * 6,
	}
}

func (p *DomainParticipant) readerSinks() []receiver.ReaderSink {
	out := []receiver.ReaderSink{
		spdpReaderSink{svc: p.spdp, localPrefix: p.guid.Prefix},
		sedpPubReaderSink{svc: p.sedp},
		sedpSubReaderSink{svc: p.sedp},
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subscribers {
		for _, r := range sub.readers {
			out = append(out, r.reader)
		}
	}
	return out
}

func (p *DomainParticipant) writerSinks() []receiver.WriterSink {
	out := []receiver.WriterSink{p.sedp.PubWriter, p.sedp.SubWriter}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pub := range p.publishers {
		for _, w := range pub.writers {
			out = append(out, w.writer)
		}
	}
	return out
}

func (p *DomainParticipant) allStatefulWriters() []*endpoint.StatefulWriter {
	out := []*endpoint.StatefulWriter{p.sedp.PubWriter, p.sedp.SubWriter}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pub := range p.publishers {
		for _, w := range pub.writers {
			out = append(out, w.writer)
		}
	}
	return out
}

func (p *DomainParticipant) allStatefulReaders() []*endpoint.StatefulReader {
	out := []*endpoint.StatefulReader{p.sedp.PubReader, p.sedp.SubReader}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subscribers {
		for _, r := range sub.readers {
			out = append(out, r.reader)
		}
	}
	return out
}

// send wraps body as the sole submessage of one RTPS message addressed from
// this participant and transmits it to every locator in locs.
func (p *DomainParticipant) send(ctx context.Context, locs []types.Locator, body messages.SubmessageBody) {
	if len(locs) == 0 {
		return
	}
	msg := messages.Message{
		Header:      messages.RTPSHeader{Version: types.ProtocolVersion24, VendorId: types.VendorIdThis, GuidPrefix: p.guid.Prefix},
		Submessages: []messages.Submessage{{Body: body}},
	}
	payload := messages.Marshal(msg, cdr.LittleEndian)
	for _, loc := range locs {
		if err := p.transport.Send(ctx, loc, payload); err != nil {
			log.Warn().Err(err).Str("to", loc.String()).Msg("rtps: send failed")
		}
	}
}

func (p *DomainParticipant) sendOutbound(ctx context.Context, out endpoint.OutboundData) {
	p.send(ctx, out.Locators, out.Body)
}

// sendData is DataWriter.flushTo's hook for pushing one outbound submessage
// built by StatefulWriter.NextOutbound to the matched reader it targets.
func (p *DomainParticipant) sendData(writerGuid, readerGuid types.GUID, out endpoint.OutboundData) {
	p.sendOutbound(p.supervisor.Context(), out)
}

// flushReliable drains every reliable writer's pending DATA, announces a
// HEARTBEAT to every matched reader, and collects the ACKNACK every
// reliable reader owes its matched writers (spec.md §4.4's periodic
// HEARTBEAT path, for readers that missed the immediate push).
func (p *DomainParticipant) flushReliable(ctx context.Context) {
	for _, w := range p.allStatefulWriters() {
		matched := w.MatchedReaders()
		for _, rg := range matched {
			for {
				outs, ok := w.NextOutbound(rg)
				if !ok {
					break
				}
				for _, out := range outs {
					p.sendOutbound(ctx, out)
				}
			}
		}
		if len(matched) == 0 {
			continue
		}
		hb := w.BuildHeartbeat()
		for _, rg := range matched {
			if locs, ok := w.ReaderLocators(rg); ok {
				p.send(ctx, locs, hb)
			}
		}
	}
	for _, r := range p.allStatefulReaders() {
		for _, wg := range r.MatchedWriters() {
			ack, ok := r.BuildAckNack(wg)
			if !ok {
				continue
			}
			if locs, ok := r.WriterLocators(wg); ok {
				p.send(ctx, locs, ack)
			}
		}
	}
}

// CreatePublisher returns a new, empty Publisher owned by p.
func (p *DomainParticipant) CreatePublisher() *Publisher {
	pub := &Publisher{participant: p, writers: make(map[types.GUID]*DataWriter)}
	p.mu.Lock()
	p.publishers = append(p.publishers, pub)
	p.mu.Unlock()
	return pub
}

// CreateSubscriber returns a new, empty Subscriber owned by p.
func (p *DomainParticipant) CreateSubscriber() *Subscriber {
	sub := &Subscriber{participant: p, readers: make(map[types.GUID]*DataReader)}
	p.mu.Lock()
	p.subscribers = append(p.subscribers, sub)
	p.mu.Unlock()
	return sub
}

// DeleteParticipant stops every background loop and closes the transport.
func (p *DomainParticipant) DeleteParticipant() error {
	if err := p.supervisor.Shutdown(); err != nil {
		return err
	}
	return p.transport.Close()
}

// AssertLiveliness re-announces this participant immediately, independent
// of the periodic SPDP schedule, for assert_liveliness with
// MANUAL_BY_PARTICIPANT liveliness.
func (p *DomainParticipant) AssertLiveliness() error {
	outs, err := p.spdp.Announce(p.selfProxy())
	if err != nil {
		return err
	}
	for _, out := range outs {
		p.sendOutbound(p.supervisor.Context(), out)
	}
	return nil
}

// GetDiscoveredParticipants returns every remote participant currently
// within its SPDP lease.
func (p *DomainParticipant) GetDiscoveredParticipants() []discovery.ParticipantProxy {
	return p.spdp.DiscoveredParticipants()
}

// registerTopic records name's type/qos the first time it's seen locally,
// for get_discovered_topics and lookup_topicdescription; this core has no
// wire-level topic announcer (SEDP's builtin topic endpoints are declared
// in BuiltinEndpointSet but not exercised), so topic
// discovery only surfaces topics created by this participant.
func (p *DomainParticipant) registerTopic(name, typeName string, q qos.EndpointQos) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.topics[name]; !exists {
		p.topics[name] = discovery.DiscoveredTopicData{Name: name, TypeName: typeName, Qos: q}
	}
}

// GetDiscoveredTopics returns every topic a local DataWriter or DataReader
// has registered.
func (p *DomainParticipant) GetDiscoveredTopics() []discovery.DiscoveredTopicData {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]discovery.DiscoveredTopicData, 0, len(p.topics))
	for _, t := range p.topics {
		out = append(out, t)
	}
	return out
}

// LookupTopicDescription returns the registered topic named name, if any.
func (p *DomainParticipant) LookupTopicDescription(name string) (discovery.DiscoveredTopicData, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	return t, ok
}

// IgnoreParticipant drops a remote participant's lease and ignores any
// further announcement from it.
func (p *DomainParticipant) IgnoreParticipant(prefix types.GuidPrefix) {
	p.spdp.IgnoreParticipant(prefix)
}

// IgnoreTopic removes name from the locally-registered topic set.
func (p *DomainParticipant) IgnoreTopic(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.topics, name)
}

// IgnorePublication drops a remote DataWriter from matching.
func (p *DomainParticipant) IgnorePublication(guid types.GUID) {
	p.sedp.IgnoreWriter(guid)
}

// IgnoreSubscription drops a remote DataReader from matching.
func (p *DomainParticipant) IgnoreSubscription(guid types.GUID) {
	p.sedp.IgnoreReader(guid)
}
