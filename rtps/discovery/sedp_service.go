package discovery

import (
	"encoding/hex"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"rtpsgo/rtps/endpoint"
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// discoveredTTL is the go-cache expiration passed to every remoteWriters/
// remoteReaders entry. SEDP itself carries no per-entry lease; an entry is
// instead removed explicitly by ParticipantLost when the owning
// participant's SPDP lease expires, so entries never expire on their own
// (the caches were constructed with gocache.NoExpiration as their default).
const discoveredTTL = gocache.DefaultExpiration

// LocalWriterEntry is what a DomainParticipant registers for one of its own
// DataWriters, enough to announce it and to test remote readers against it.
type LocalWriterEntry struct {
	Guid      types.GUID
	TopicName string
	TypeName  string
	Data      DiscoveredWriterData
	Writer    *endpoint.StatefulWriter
}

type LocalReaderEntry struct {
	Guid      types.GUID
	TopicName string
	TypeName  string
	Data      DiscoveredReaderData
	Reader    *endpoint.StatefulReader
}

// SEDPService runs the reliable publication/subscription announcers and
// detectors and performs QoS-aware endpoint matching (spec.md §4.8, §4.9).
// A singleflight.Group collapses concurrent matching work for the same
// remote GUID: a burst of duplicate DATA resubmissions for an
// already-in-flight match (common right after a HEARTBEAT-triggered
// retransmission) runs the compatibility check once rather than once per
// duplicate.
type SEDPService struct {
	PubWriter *endpoint.StatefulWriter // announces local DataWriters
	PubReader *endpoint.StatefulReader // detects remote DataWriters
	SubWriter *endpoint.StatefulWriter // announces local DataReaders
	SubReader *endpoint.StatefulReader // detects remote DataReaders

	mu             sync.Mutex
	LocalWriters   map[types.GUID]*LocalWriterEntry
	LocalReaders   map[types.GUID]*LocalReaderEntry
	remoteWriters  *gocache.Cache // guid hex -> DiscoveredWriterData
	remoteReaders  *gocache.Cache // guid hex -> DiscoveredReaderData
	ignored        *gocache.Cache // guid hex -> true, for ignore_publication/ignore_subscription
	matchGroup     singleflight.Group

	// OnEndpointsMatched fires every time tryMatch finds a compatible
	// (writer,reader) pair involving a local endpoint, so the same pair can
	// be reported more than once; it lets the caller wire cross-participant
	// unicast locators into its transport's peer list.
	OnEndpointsMatched func(writerGuid, readerGuid types.GUID)
}

func NewSEDPService(localGuidPrefix types.GuidPrefix) *SEDPService {
	return &SEDPService{
		PubWriter: endpoint.NewStatefulWriter(
			types.GUID{Prefix: localGuidPrefix, EntityId: types.EntityIdSEDPBuiltinPublicationsWriter}, reliableBuiltinQos()),
		PubReader: endpoint.NewStatefulReader(
			types.GUID{Prefix: localGuidPrefix, EntityId: types.EntityIdSEDPBuiltinPublicationsReader}, reliableBuiltinQos(), nil),
		SubWriter: endpoint.NewStatefulWriter(
			types.GUID{Prefix: localGuidPrefix, EntityId: types.EntityIdSEDPBuiltinSubscriptionsWriter}, reliableBuiltinQos()),
		SubReader: endpoint.NewStatefulReader(
			types.GUID{Prefix: localGuidPrefix, EntityId: types.EntityIdSEDPBuiltinSubscriptionsReader}, reliableBuiltinQos(), nil),
		LocalWriters:  make(map[types.GUID]*LocalWriterEntry),
		LocalReaders:  make(map[types.GUID]*LocalReaderEntry),
		remoteWriters: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		remoteReaders: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		ignored:       gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
}

// reliableBuiltinQos is the QoS every built-in SEDP endpoint uses: reliable,
// transient-local, keep-all, per spec.md §4.8's requirement that discovery
// data survive late joiners and never silently drop under load.
func reliableBuiltinQos() qos.EndpointQos {
	return qos.EndpointQos{
		Reliability: qos.ReliabilityQos{Kind: qos.Reliable, MaxBlockingTime: time.Second},
		Durability:  qos.DurabilityQos{Kind: qos.TransientLocal},
		History:     qos.HistoryQos{Kind: qos.KeepAll},
	}
}

// newDiscoveryChange wraps a discovery payload as the CacheChange a builtin
// SEDP writer publishes; the instance handle is irrelevant to matching
// (every announcement is its own immutable instance keyed by GUID on the
// wire), so it's left nil and matching instead keys off WriterGuid/ReaderGuid
// fields threaded through the decoded payload.
func newDiscoveryChange(guid types.GUID, payload []byte) history.CacheChange {
	return history.CacheChange{
		Kind:        types.ChangeKindAlive,
		DataPayload: payload,
	}
}

// AnnouncePublication registers a local DataWriter and appends its
// DiscoveredWriterData to the publications announcer's history, then tries
// to match it against every already-discovered remote reader for the same
// topic.
func (s *SEDPService) AnnouncePublication(entry LocalWriterEntry) error {
	s.mu.Lock()
	s.LocalWriters[entry.Guid] = &entry
	s.mu.Unlock()

	if _, err := s.PubWriter.Write(newDiscoveryChange(entry.Guid, EncodeDiscoveredWriterData(entry.Data))); err != nil {
		return err
	}
	for _, item := range s.remoteReaders.Items() {
		remote := item.Object.(DiscoveredReaderData)
		s.tryMatch(entry.Data, remote)
	}
	return nil
}

// AnnounceSubscription registers a local DataReader symmetrically.
func (s *SEDPService) AnnounceSubscription(entry LocalReaderEntry) error {
	s.mu.Lock()
	s.LocalReaders[entry.Guid] = &entry
	s.mu.Unlock()

	if _, err := s.SubWriter.Write(newDiscoveryChange(entry.Guid, EncodeDiscoveredReaderData(entry.Data))); err != nil {
		return err
	}
	for _, item := range s.remoteWriters.Items() {
		remote := item.Object.(DiscoveredWriterData)
		s.tryMatch(remote, entry.Data)
	}
	return nil
}

// IngestPublication folds a remote DiscoveredWriterData into the cache and
// matches it against every local reader.
func (s *SEDPService) IngestPublication(payload []byte) {
	remote, err := DecodeDiscoveredWriterData(payload)
	if err != nil {
		log.Debug().Err(err).Msg("sedp: dropping malformed publication announcement")
		return
	}
	key := guidKey(remote.WriterGuid)
	if _, ignored := s.ignored.Get(key); ignored {
		return
	}
	_, _, _ = s.matchGroup.Do("pub:"+key, func() (interface{}, error) {
		s.remoteWriters.Set(key, remote, discoveredTTL)
		s.mu.Lock()
		locals := make([]LocalReaderEntry, 0, len(s.LocalReaders))
		for _, e := range s.LocalReaders {
			locals = append(locals, *e)
		}
		s.mu.Unlock()
		for _, local := range locals {
			s.tryMatch(remote, local.Data)
		}
		return nil, nil
	})
}

// IngestSubscription folds a remote DiscoveredReaderData into the cache and
// matches it against every local writer.
func (s *SEDPService) IngestSubscription(payload []byte) {
	remote, err := DecodeDiscoveredReaderData(payload)
	if err != nil {
		log.Debug().Err(err).Msg("sedp: dropping malformed subscription announcement")
		return
	}
	key := guidKey(remote.ReaderGuid)
	if _, ignored := s.ignored.Get(key); ignored {
		return
	}
	_, _, _ = s.matchGroup.Do("sub:"+key, func() (interface{}, error) {
		s.remoteReaders.Set(key, remote, discoveredTTL)
		s.mu.Lock()
		locals := make([]LocalWriterEntry, 0, len(s.LocalWriters))
		for _, e := range s.LocalWriters {
			locals = append(locals, *e)
		}
		s.mu.Unlock()
		for _, local := range locals {
			s.tryMatch(local.Data, remote)
		}
		return nil, nil
	})
}

func guidKey(g types.GUID) string {
	return hex.EncodeToString(g.Prefix[:]) + hex.EncodeToString(g.EntityId[:])
}

// IgnoreWriter discards a remote DataWriter from future and existing
// matching, for ignore_publication.
func (s *SEDPService) IgnoreWriter(guid types.GUID) {
	key := guidKey(guid)
	s.ignored.Set(key, true, gocache.NoExpiration)
	s.remoteWriters.Delete(key)
	s.mu.Lock()
	for _, local := range s.LocalReaders {
		local.Reader.UnmatchWriter(guid)
	}
	s.mu.Unlock()
}

// IgnoreReader is IgnoreWriter's reader-side counterpart, for
// ignore_subscription.
func (s *SEDPService) IgnoreReader(guid types.GUID) {
	key := guidKey(guid)
	s.ignored.Set(key, true, gocache.NoExpiration)
	s.remoteReaders.Delete(key)
	s.mu.Lock()
	for _, local := range s.LocalWriters {
		local.Writer.UnmatchReader(guid)
	}
	s.mu.Unlock()
}

func (s *SEDPService) tryMatch(w DiscoveredWriterData, r DiscoveredReaderData) {
	result := Evaluate(w, r)
	if !result.Compatible {
		log.Debug().
			Str("writer", w.WriterGuid.String()).
			Str("reader", r.ReaderGuid.String()).
			Int("policy", int(result.PolicyId)).
			Msg("sedp: incompatible QoS, not matching")
		return
	}
	s.mu.Lock()
	localWriter, haveWriter := s.LocalWriters[w.WriterGuid]
	localReader, haveReader := s.LocalReaders[r.ReaderGuid]
	s.mu.Unlock()

	if haveWriter {
		localWriter.Writer.MatchReader(r.ReaderGuid, r.UnicastLocators, r.MulticastLocators, r.Qos.Reliability.Kind != 0)
	}
	if haveReader {
		localReader.Reader.MatchWriter(w.WriterGuid, w.UnicastLocators)
	}
	if haveWriter || haveReader {
		if s.OnEndpointsMatched != nil {
			s.OnEndpointsMatched(w.WriterGuid, r.ReaderGuid)
		}
	}
}

// RemoveLocalWriter drops a deleted local DataWriter's registration; it is
// not un-announced on the wire (spec.md leaves withdrawal of a disposed
// publication's SEDP entry unspecified), but it no longer participates in
// future matching.
func (s *SEDPService) RemoveLocalWriter(guid types.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.LocalWriters, guid)
}

// RemoveLocalReader is RemoveLocalWriter's reader-side counterpart.
func (s *SEDPService) RemoveLocalReader(guid types.GUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.LocalReaders, guid)
}

// ParticipantLost drops every discovered endpoint owned by a participant
// whose SPDP lease expired, unmatching it from any local endpoint it was
// paired with.
func (s *SEDPService) ParticipantLost(prefix types.GuidPrefix) {
	for key, item := range s.remoteWriters.Items() {
		d := item.Object.(DiscoveredWriterData)
		if d.WriterGuid.Prefix == prefix {
			s.remoteWriters.Delete(key)
			s.mu.Lock()
			for _, local := range s.LocalReaders {
				local.Reader.UnmatchWriter(d.WriterGuid)
			}
			s.mu.Unlock()
		}
	}
	for key, item := range s.remoteReaders.Items() {
		d := item.Object.(DiscoveredReaderData)
		if d.ReaderGuid.Prefix == prefix {
			s.remoteReaders.Delete(key)
			s.mu.Lock()
			for _, local := range s.LocalWriters {
				local.Writer.UnmatchReader(d.ReaderGuid)
			}
			s.mu.Unlock()
		}
	}
}
