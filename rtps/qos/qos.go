// Package qos defines the QoS policy set enforced at design level by
// spec.md §4.9: reliability, durability, history, deadline, lifespan,
// liveliness, and the request/offer compatibility rules between readers
// and writers.
package qos

import "time"

// ReliabilityKind selects best-effort or reliable delivery.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

type ReliabilityQos struct {
	Kind            ReliabilityKind
	MaxBlockingTime time.Duration
}

// DurabilityKind selects whether late-joining readers get historical data.
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
)

type DurabilityQos struct {
	Kind DurabilityKind
}

// HistoryKind selects keep-last-N or keep-all retention (spec.md §4.2).
type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

type HistoryQos struct {
	Kind  HistoryKind
	Depth int // meaningful only for KeepLast
}

type ResourceLimitsQos struct {
	MaxSamples            int // <=0 means unbounded
	MaxInstances          int
	MaxSamplesPerInstance int
}

type DeadlineQos struct {
	Period time.Duration // 0 means infinite (no deadline)
}

type LatencyBudgetQos struct {
	Duration time.Duration
}

type LifespanQos struct {
	Duration time.Duration // 0 means infinite
}

type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

type LivelinessQos struct {
	Kind         LivelinessKind
	LeaseDuration time.Duration
}

type DestinationOrderKind int

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

type DestinationOrderQos struct {
	Kind DestinationOrderKind
}

type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

type OwnershipQos struct {
	Kind     OwnershipKind
	Strength int32
}

type PresentationAccessScope int

const (
	InstancePresentation PresentationAccessScope = iota
	TopicPresentation
	GroupPresentation
)

type PresentationQos struct {
	AccessScope     PresentationAccessScope
	CoherentAccess  bool
	OrderedAccess   bool
}

type PartitionQos struct {
	Names []string
}

type UserDataQos struct {
	Value []byte
}

// EndpointQos bundles the policies exchanged between a writer and a reader
// during SEDP matching and enforced by the data-plane endpoints.
type EndpointQos struct {
	Reliability       ReliabilityQos
	Durability        DurabilityQos
	History           HistoryQos
	ResourceLimits    ResourceLimitsQos
	Deadline          DeadlineQos
	LatencyBudget     LatencyBudgetQos
	Lifespan          LifespanQos
	Liveliness        LivelinessQos
	DestinationOrder  DestinationOrderQos
	Ownership         OwnershipQos
	Presentation      PresentationQos
	Partition         PartitionQos
	UserData          UserDataQos

	// FragmentSize bounds the payload size of one DATA submessage a
	// stateful writer emits (spec.md §4.4): a change whose payload exceeds
	// it is split into DATA_FRAG fragments of exactly FragmentSize bytes
	// except the last. Zero disables fragmentation.
	FragmentSize uint16
}

// Default returns the OMG-default QoS: best-effort, volatile, keep-last(1).
func Default() EndpointQos {
	return EndpointQos{
		Reliability: ReliabilityQos{Kind: BestEffort},
		Durability:  DurabilityQos{Kind: Volatile},
		History:     HistoryQos{Kind: KeepLast, Depth: 1},
		Liveliness:  LivelinessQos{Kind: Automatic},
	}
}

// IncompatiblePolicyId identifies which policy failed compatibility, for
// OFFERED/REQUESTED_INCOMPATIBLE_QOS status reporting (spec.md §4.8).
type IncompatiblePolicyId int

const (
	PolicyNone IncompatiblePolicyId = iota
	PolicyReliability
	PolicyDurability
	PolicyDeadline
	PolicyLatencyBudget
	PolicyOwnership
	PolicyPresentation
)

// CheckCompatible implements the request/offer rules of spec.md §4.9: the
// reader's requested policy must be satisfied by the writer's offered
// policy. Returns PolicyNone when compatible, else the first incompatible
// policy found (evaluation order matches the order they're listed in the
// spec).
func CheckCompatible(offered, requested EndpointQos) IncompatiblePolicyId {
	// Reliability: requested <= offered (RELIABLE requested needs RELIABLE offered).
	if requested.Reliability.Kind == Reliable && offered.Reliability.Kind != Reliable {
		return PolicyReliability
	}
	// Durability: requested <= offered (TRANSIENT_LOCAL requested needs >= TRANSIENT_LOCAL offered).
	if requested.Durability.Kind == TransientLocal && offered.Durability.Kind != TransientLocal {
		return PolicyDurability
	}
	// Deadline: requested period must be >= offered period (reader willing
	// to tolerate at least as long a gap as the writer promises).
	if requested.Deadline.Period > 0 {
		if offered.Deadline.Period == 0 || requested.Deadline.Period < offered.Deadline.Period {
			return PolicyDeadline
		}
	}
	// Latency budget: requested duration must be >= offered.
	if requested.LatencyBudget.Duration > offered.LatencyBudget.Duration {
		return PolicyLatencyBudget
	}
	// Ownership kind must match exactly.
	if requested.Ownership.Kind != offered.Ownership.Kind {
		return PolicyOwnership
	}
	// Presentation access scope: requested <= offered.
	if requested.Presentation.AccessScope > offered.Presentation.AccessScope {
		return PolicyPresentation
	}
	return PolicyNone
}
