// Package metrics registers the Prometheus collectors the RTPS core
// exposes as an ambient observability concern (spec.md §5/§9 ambient
// stack), built the way linkerd-linkerd2's controller packages declare
// package-level promauto collectors and runZeroInc-sockstats registers
// them against a caller-supplied registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MailboxDepth tracks the number of pending mails per actor, sampled each
	// time the actor's loop waits for its next mail; a steadily growing depth
	// signals a stuck actor.
	MailboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_mailbox_depth",
		Help: "Number of mails currently queued for an actor.",
	}, []string{"actor"})

	// SubmessagesTotal counts the DATA, DATA_FRAG, GAP, HEARTBEAT, ACKNACK and
	// NACK_FRAG submessages the message receiver dispatches, labeled by
	// direction and submessage type; only direction "rx" is recorded.
	SubmessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtps_submessages_total",
		Help: "Total RTPS submessages processed, by direction and type.",
	}, []string{"direction", "type"})

	// HeartbeatsSentTotal counts HEARTBEAT submessages emitted by stateful
	// writers.
	HeartbeatsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtps_heartbeats_sent_total",
		Help: "Total HEARTBEAT submessages sent by stateful writers.",
	})

	// AckNacksReceivedTotal counts every ACKNACK submessage the message
	// receiver dispatches, whether or not a local writer holds a proxy for
	// its sender.
	AckNacksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtps_acknacks_received_total",
		Help: "Total ACKNACK submessages received by stateful writers.",
	})

	// HistoryCacheSize reports the current retained-change count of an
	// endpoint's history cache.
	HistoryCacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_history_cache_size",
		Help: "Number of cache-changes currently retained by an endpoint's history cache.",
	}, []string{"endpoint"})

	// MatchedEndpoints reports the number of matched remote endpoints for a
	// local writer or reader, updated on every SEDP match/unmatch.
	MatchedEndpoints = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rtps_matched_endpoints",
		Help: "Number of matched remote endpoints for a local writer or reader.",
	}, []string{"endpoint"})
)
