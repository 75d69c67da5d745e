// Package discovery implements the built-in SPDP participant-discovery
// and SEDP endpoint-discovery protocols of spec.md §4.8: the periodic
// best-effort participant announcement, the reliable publication/
// subscription/topic announcers and detectors, and the QoS-aware matcher
// that installs reader/writer proxies on compatible pairs.
package discovery

import (
	"time"

	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

// BuiltinEndpointSet is the bitmap a participant advertises for which of
// its builtin SEDP endpoints are present (spec.md §4.1 PID_BUILTIN_ENDPOINT_SET).
type BuiltinEndpointSet uint32

const (
	DisabledBuiltinEndpoints                   BuiltinEndpointSet = 0
	BuiltinParticipantAnnouncer                BuiltinEndpointSet = 1 << 0
	BuiltinParticipantDetector                  BuiltinEndpointSet = 1 << 1
	BuiltinPublicationsAnnouncer                BuiltinEndpointSet = 1 << 2
	BuiltinPublicationsDetector                 BuiltinEndpointSet = 1 << 3
	BuiltinSubscriptionsAnnouncer               BuiltinEndpointSet = 1 << 4
	BuiltinSubscriptionsDetector                BuiltinEndpointSet = 1 << 5
	BuiltinParticipantMessageDataWriter         BuiltinEndpointSet = 1 << 10
	BuiltinParticipantMessageDataReader         BuiltinEndpointSet = 1 << 11
	BuiltinTopicsAnnouncer                      BuiltinEndpointSet = 1 << 28
	BuiltinTopicsDetector                       BuiltinEndpointSet = 1 << 29
)

// DefaultBuiltinEndpoints is the set this implementation always enables:
// every SEDP announcer/detector pair.
const DefaultBuiltinEndpoints = BuiltinParticipantAnnouncer | BuiltinParticipantDetector |
	BuiltinPublicationsAnnouncer | BuiltinPublicationsDetector |
	BuiltinSubscriptionsAnnouncer | BuiltinSubscriptionsDetector |
	BuiltinTopicsAnnouncer | BuiltinTopicsDetector

// ParticipantProxy is the SPDP-announced description of a remote
// participant (spec.md §4.8, §3 "Participant").
type ParticipantProxy struct {
	GuidPrefix               types.GuidPrefix
	ProtocolVersion          types.ProtocolVersion
	VendorId                 types.VendorId
	DomainId                 types.DomainId
	DomainTag                string
	MetatrafficUnicastLocators   []types.Locator
	MetatrafficMulticastLocators []types.Locator
	DefaultUnicastLocators       []types.Locator
	DefaultMulticastLocators     []types.Locator
	AvailableBuiltinEndpoints    BuiltinEndpointSet
	LeaseDuration                time.Duration
}

// DiscoveredWriterData is the SEDP publication announcement for one local
// or remote DataWriter (spec.md §4.8).
type DiscoveredWriterData struct {
	WriterGuid       types.GUID
	TopicName        string
	TypeName         string
	Qos              qos.EndpointQos
	UnicastLocators  []types.Locator
	MulticastLocators []types.Locator
}

// DiscoveredReaderData is the SEDP subscription announcement for one local
// or remote DataReader (spec.md §4.8).
type DiscoveredReaderData struct {
	ReaderGuid        types.GUID
	TopicName         string
	TypeName          string
	Qos               qos.EndpointQos
	UnicastLocators   []types.Locator
	MulticastLocators []types.Locator
	ExpectsInlineQos  bool
}

// DiscoveredTopicData is the SEDP topic announcement (spec.md §4.8); this
// core only uses it to surface get_discovered_topics, never to enforce
// type consistency beyond the name comparisons DiscoveredWriterData/
// DiscoveredReaderData already perform.
type DiscoveredTopicData struct {
	Name     string
	TypeName string
	Qos      qos.EndpointQos
}

// MatchResult reports the outcome of comparing one writer/reader pair's
// topic, type and QoS.
type MatchResult struct {
	Compatible bool
	PolicyId   qos.IncompatiblePolicyId // meaningful only when !Compatible
}

// Evaluate compares a locally or remotely discovered writer/reader pair:
// topic and type names must match exactly, then QoS compatibility follows
// spec.md §4.9's request/offer rules.
func Evaluate(w DiscoveredWriterData, r DiscoveredReaderData) MatchResult {
	if w.TopicName != r.TopicName || w.TypeName != r.TypeName {
		return MatchResult{Compatible: false}
	}
	if pid := qos.CheckCompatible(w.Qos, r.Qos); pid != qos.PolicyNone {
		return MatchResult{Compatible: false, PolicyId: pid}
	}
	return MatchResult{Compatible: true}
}
