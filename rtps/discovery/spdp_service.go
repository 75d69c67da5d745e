package discovery

import (
	"context"
	"encoding/hex"
	"reflect"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"rtpsgo/rtps/endpoint"
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// DefaultSPDPPeriod is the periodic participant-announcement interval
// spec.md §4.8 defaults to.
const DefaultSPDPPeriod = 5 * time.Second

// SPDPService runs the best-effort periodic participant announcement and
// ingests remote announcements. Each discovered remote participant is a
// go-cache entry whose TTL is its own advertised lease_duration, refreshed
// on every fresh announcement; expiry fires OnLost, implementing spec.md
// §4.8's "lease elapses without refresh" removal.
type SPDPService struct {
	Domain types.DomainId
	Writer *endpoint.StatelessWriter
	Reader *endpoint.StatelessReader

	leases  *gocache.Cache
	ignored *gocache.Cache

	// OnDiscovered is invoked (not on the cache's janitor goroutine, but
	// synchronously from IngestAnnouncement) for every newly-seen remote
	// participant, and again whenever that participant's proxy content
	// changes.
	OnDiscovered func(ParticipantProxy)
	// OnLost is invoked when a participant's lease expires without renewal.
	OnLost func(types.GuidPrefix)
}

// NewSPDPService constructs the stateless writer/reader pair and lease
// cache for one participant's SPDP traffic.
func NewSPDPService(domain types.DomainId, localGuid types.GUID, mcastLocator types.Locator) *SPDPService {
	w := endpoint.NewStatelessWriter(
		types.GUID{Prefix: localGuid.Prefix, EntityId: types.EntityIdSPDPBuiltinParticipantWriter},
		qos.Default(),
		[]types.Locator{mcastLocator},
	)
	r := endpoint.NewStatelessReader(
		types.GUID{Prefix: localGuid.Prefix, EntityId: types.EntityIdSPDPBuiltinParticipantReader},
		qos.EndpointQos{History: qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}},
		nil,
	)
	s := &SPDPService{
		Domain: domain,
		Writer: w,
		Reader: r,
		// The default expiration is never used, since every Set call below
		// supplies its own TTL (the participant's advertised lease duration);
		// the one-second cleanup interval is how often expired leases are
		// removed, which is what fires OnEvicted.
		leases:  gocache.New(gocache.NoExpiration, time.Second),
		ignored: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
	}
	s.leases.OnEvicted(func(key string, value interface{}) {
		proxy := value.(ParticipantProxy)
		log.Info().Str("participant", key).Msg("spdp: lease expired, participant removed")
		if s.OnLost != nil {
			s.OnLost(proxy.GuidPrefix)
		}
	})
	return s
}

// Announce publishes self as the current participant proxy, returning the
// outbound DATA ready for the transport to broadcast to the SPDP
// multicast group.
func (s *SPDPService) Announce(self ParticipantProxy) ([]endpoint.OutboundData, error) {
	payload := EncodeParticipantProxy(self)
	return s.Writer.Write(history.CacheChange{
		Kind:            types.ChangeKindAlive,
		DataPayload:     payload,
		SourceTimestamp: timePtr(time.Now()),
	})
}

// Run periodically announces self every period until ctx is cancelled. send
// is handed each announcement's outbound DATA for the transport to
// broadcast.
func (s *SPDPService) Run(ctx context.Context, period time.Duration, self func() ParticipantProxy, send func([]endpoint.OutboundData)) {
	if period <= 0 {
		period = DefaultSPDPPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	s.announceOnce(self, send)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.announceOnce(self, send)
		}
	}
}

func (s *SPDPService) announceOnce(self func() ParticipantProxy, send func([]endpoint.OutboundData)) {
	outs, err := s.Announce(self())
	if err != nil {
		log.Warn().Err(err).Msg("spdp: announce failed")
		return
	}
	send(outs)
}

// IngestAnnouncement decodes and folds one received SPDP DATA payload into
// the lease cache, invoking OnDiscovered when the participant is new or has
// changed.
func (s *SPDPService) IngestAnnouncement(payload []byte, localGuidPrefix types.GuidPrefix) {
	proxy, err := DecodeParticipantProxy(payload, s.Domain)
	if err != nil {
		log.Debug().Err(err).Msg("spdp: dropping malformed announcement")
		return
	}
	if proxy.GuidPrefix == localGuidPrefix {
		return // never discover ourselves
	}
	key := hex.EncodeToString(proxy.GuidPrefix[:])
	if _, ignored := s.ignored.Get(key); ignored {
		return
	}
	ttl := proxy.LeaseDuration
	if ttl <= 0 {
		ttl = DefaultSPDPPeriod * 6
	}
	old, existed := s.leases.Get(key)
	s.leases.Set(key, proxy, ttl)
	if (!existed || !reflect.DeepEqual(old, proxy)) && s.OnDiscovered != nil {
		s.OnDiscovered(proxy)
	}
}

// HandleData adapts a DATA submessage from the message receiver into
// IngestAnnouncement, matching the endpoint.ReaderSink-style handler shape
// used elsewhere (the stateless reader itself has no opinion on payload
// semantics).
func (s *SPDPService) HandleData(writerGuid types.GUID, d messages.Data, localGuidPrefix types.GuidPrefix) {
	s.Reader.HandleData(writerGuid, d)
	s.IngestAnnouncement(d.SerializedPayload, localGuidPrefix)
}

// DiscoveredParticipants returns every remote participant proxy currently
// within its lease, for get_discovered_participants.
func (s *SPDPService) DiscoveredParticipants() []ParticipantProxy {
	out := make([]ParticipantProxy, 0, s.leases.ItemCount())
	for _, item := range s.leases.Items() {
		out = append(out, item.Object.(ParticipantProxy))
	}
	return out
}

// IgnoreParticipant drops prefix's lease (if any) and discards any future
// announcement from it, for ignore_participant.
func (s *SPDPService) IgnoreParticipant(prefix types.GuidPrefix) {
	key := hex.EncodeToString(prefix[:])
	s.ignored.Set(key, true, gocache.NoExpiration)
	s.leases.Delete(key)
}

func timePtr(t time.Time) *time.Time { return &t }
