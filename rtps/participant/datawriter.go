package participant

import (
	"context"
	"time"

	"rtpsgo/rtps/discovery"
	"rtpsgo/rtps/endpoint"
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtpserr"
	"rtpsgo/rtps/runtime"
	"rtpsgo/rtps/typesupport"
	"rtpsgo/rtps/types"
)

// Publisher groups DataWriters the way spec.md §6 describes; this core does
// not implement PRESENTATION's coherent/ordered-access grouping beyond
// holding the writers, since no component exercises that QoS policy's
// transactional semantics yet.
type Publisher struct {
	participant *DomainParticipant
	suspended   bool
	writers     map[types.GUID]*DataWriter
}

// CreateDataWriter registers topic/type/qos with SEDP and returns a
// ready-to-use DataWriter backed by a StatefulWriter.
func (p *Publisher) CreateDataWriter(topicName string, ts typesupport.TypeSupport, q qos.EndpointQos) (*DataWriter, error) {
	guid := types.GUID{Prefix: p.participant.guid.Prefix, EntityId: p.participant.entityIds.next(ts.IsKeyed(), true)}
	w := endpoint.NewStatefulWriter(guid, q)

	dw := &DataWriter{
		Guid:        guid,
		publisher:   p,
		participant: p.participant,
		writer:      w,
		typeSupport: ts,
		qos:         q,
		actor:       runtime.NewActor(p.participant.supervisor.Context(), "datawriter:"+guid.String()),
	}
	p.writers[guid] = dw
	p.participant.registerTopic(topicName, ts.TypeName(), q)

	data := discovery.DiscoveredWriterData{
		WriterGuid:      guid,
		TopicName:       topicName,
		TypeName:        ts.TypeName(),
		Qos:             q,
		UnicastLocators: []types.Locator{p.participant.defaultUnicastLocator},
	}
	entry := discovery.LocalWriterEntry{Guid: guid, TopicName: topicName, TypeName: ts.TypeName(), Data: data, Writer: w}
	if err := p.participant.sedp.AnnouncePublication(entry); err != nil {
		return nil, err
	}
	return dw, nil
}

// DeleteDataWriter removes w from the publisher and its SEDP announcer.
func (p *Publisher) DeleteDataWriter(w *DataWriter) {
	delete(p.writers, w.Guid)
	p.participant.sedp.RemoveLocalWriter(w.Guid)
}

// SuspendPublications sets the publisher's suspended flag (spec.md §6). No
// send path reads the flag: DataWriter.Write still sends DATA immediately
// and the participant's reliability flush still sends pending DATA.
func (p *Publisher) SuspendPublications() { p.suspended = true }

// ResumePublications clears the suspended flag.
func (p *Publisher) ResumePublications() { p.suspended = false }

// DataWriter publishes samples on one topic (spec.md §6).
type DataWriter struct {
	Guid types.GUID

	publisher   *Publisher
	participant *DomainParticipant
	writer      *endpoint.StatefulWriter
	typeSupport typesupport.TypeSupport
	qos         qos.EndpointQos
	actor       *runtime.Actor
}

// Write serializes sample and appends it to the writer's history, pushing
// DATA to every currently-matched reader proxy immediately (spec.md §4.4's
// push path; periodic HEARTBEAT/repair for readers that miss it runs on the
// participant's timer-driven flush loop).
func (w *DataWriter) Write(ctx context.Context, sample any) error {
	return w.actor.Ask(ctx, func(ctx context.Context) {
		w.writeLocked(sample, types.ChangeKindAlive)
	})
}

// Dispose marks the instance identified by sample's key fields as
// NOT_ALIVE_DISPOSED (spec.md §6, scenario S5).
func (w *DataWriter) Dispose(ctx context.Context, sample any) error {
	return w.actor.Ask(ctx, func(ctx context.Context) {
		w.writeLocked(sample, types.ChangeKindNotAliveDisposed)
	})
}

// UnregisterInstance marks the instance as NOT_ALIVE_UNREGISTERED.
func (w *DataWriter) UnregisterInstance(ctx context.Context, sample any) error {
	return w.actor.Ask(ctx, func(ctx context.Context) {
		w.writeLocked(sample, types.ChangeKindNotAliveUnregistered)
	})
}

// RegisterInstance pre-derives and returns the InstanceHandle for sample's
// key fields, before any data is written for it.
func (w *DataWriter) RegisterInstance(sample any) types.InstanceHandle {
	return w.typeSupport.InstanceHandle(sample)
}

func (w *DataWriter) writeLocked(sample any, kind types.ChangeKind) {
	var payload []byte
	var err error
	if kind == types.ChangeKindAlive {
		payload, err = w.typeSupport.Serialize(sample)
	} else {
		// A dispose/unregister change carries no data payload on the wire
		// (flushTo's outbound builder replaces it with STATUS_INFO/KEY_HASH);
		// only the key bytes are needed here, to derive the instance handle.
		payload, err = w.typeSupport.SerializeKey(sample)
	}
	if err != nil {
		return
	}
	change := history.CacheChange{
		Kind:            kind,
		InstanceHandle:  w.typeSupport.InstanceHandle(sample),
		DataPayload:     payload,
		SourceTimestamp: timePtr(time.Now()),
	}
	sn, err := w.writer.Write(change)
	if err != nil {
		return
	}
	w.flushTo(sn)
}

// flushTo pushes sn (and anything else pending) to every matched reader
// proxy via the participant's transport.
func (w *DataWriter) flushTo(_ types.SequenceNumber) {
	for _, guid := range w.writer.MatchedReaders() {
		for {
			outs, ok := w.writer.NextOutbound(guid)
			if !ok {
				break
			}
			for _, out := range outs {
				w.participant.sendData(w.Guid, guid, out)
			}
		}
	}
}

// WaitForAcknowledgments blocks until every reliable matched reader has
// acknowledged everything currently in the writer's history, or timeout
// elapses.
func (w *DataWriter) WaitForAcknowledgments(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if !w.writer.AnyUnacked() {
			return nil
		}
		if time.Now().After(deadline) {
			return rtpserr.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// GetMatchedSubscriptions returns the GUIDs of every reader currently
// matched with this writer.
func (w *DataWriter) GetMatchedSubscriptions() []types.GUID {
	return w.writer.MatchedReaders()
}

func timePtr(t time.Time) *time.Time { return &t }
