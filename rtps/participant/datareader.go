package participant

import (
	"context"
	"time"

	"rtpsgo/rtps/discovery"
	"rtpsgo/rtps/endpoint"
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtpserr"
	"rtpsgo/rtps/typesupport"
	"rtpsgo/rtps/types"
)

// Subscriber groups DataReaders (spec.md §6).
type Subscriber struct {
	participant *DomainParticipant
	readers     map[types.GUID]*DataReader
}

// CreateDataReader registers topic/type/qos with SEDP and returns a
// ready-to-use DataReader backed by a StatefulReader.
func (s *Subscriber) CreateDataReader(topicName string, ts typesupport.TypeSupport, q qos.EndpointQos) (*DataReader, error) {
	guid := types.GUID{Prefix: s.participant.guid.Prefix, EntityId: s.participant.entityIds.next(ts.IsKeyed(), false)}
	keyOf := func(payload []byte) types.InstanceHandle {
		v, err := ts.Deserialize(payload)
		if err != nil {
			return types.InstanceHandleNil
		}
		return ts.InstanceHandle(v)
	}
	r := endpoint.NewStatefulReader(guid, q, keyOf)

	dr := &DataReader{
		Guid:        guid,
		subscriber:  s,
		participant: s.participant,
		reader:      r,
		typeSupport: ts,
		qos:         q,
	}
	s.readers[guid] = dr
	s.participant.registerTopic(topicName, ts.TypeName(), q)

	data := discovery.DiscoveredReaderData{
		ReaderGuid:      guid,
		TopicName:       topicName,
		TypeName:        ts.TypeName(),
		Qos:             q,
		UnicastLocators: []types.Locator{s.participant.defaultUnicastLocator},
	}
	entry := discovery.LocalReaderEntry{Guid: guid, TopicName: topicName, TypeName: ts.TypeName(), Data: data, Reader: r}
	if err := s.participant.sedp.AnnounceSubscription(entry); err != nil {
		return nil, err
	}
	return dr, nil
}

// DeleteDataReader removes r from the subscriber and its SEDP announcer.
func (s *Subscriber) DeleteDataReader(r *DataReader) {
	delete(s.readers, r.Guid)
	s.participant.sedp.RemoveLocalReader(r.Guid)
}

// GetDataReaders returns every reader this subscriber owns, in no
// particular order; it takes no sample/view/instance state masks and does
// no filtering.
func (s *Subscriber) GetDataReaders() []*DataReader {
	out := make([]*DataReader, 0, len(s.readers))
	for _, r := range s.readers {
		out = append(out, r)
	}
	return out
}

// Sample is one value surfaced to the user by read/take, paired with the
// cache-change metadata the DDS read API exposes alongside it.
type Sample struct {
	Data           any
	InstanceHandle types.InstanceHandle
	Kind           types.ChangeKind
	SampleState    history.SampleState
	SourceTimestamp *time.Time
}

// DataReader receives samples on one topic (spec.md §6).
type DataReader struct {
	Guid types.GUID

	subscriber  *Subscriber
	participant *DomainParticipant
	reader      *endpoint.StatefulReader
	typeSupport typesupport.TypeSupport
	qos         qos.EndpointQos
}

// Read returns up to maxSamples currently-held samples without marking them
// READ, oldest first, matching every matched writer's (writer,seq) order.
func (r *DataReader) Read(maxSamples int) []Sample {
	return r.collect(maxSamples, false)
}

// Take is Read but additionally removes the returned samples from the
// reader's cache (spec.md §4.6).
func (r *DataReader) Take(maxSamples int) []Sample {
	return r.collect(maxSamples, true)
}

func (r *DataReader) collect(maxSamples int, remove bool) []Sample {
	var changes []history.CacheChange
	if remove {
		changes = r.reader.Cache().Take(maxSamples, history.SelectionFilter{})
	} else {
		changes = r.reader.Cache().Read(maxSamples, history.SelectionFilter{})
	}
	out := make([]Sample, 0, len(changes))
	for _, c := range changes {
		var decoded any
		if len(c.DataPayload) > 0 {
			if v, err := r.typeSupport.Deserialize(c.DataPayload); err == nil {
				decoded = v
			}
		}
		out = append(out, Sample{
			Data:            decoded,
			InstanceHandle:  c.InstanceHandle,
			Kind:            c.Kind,
			SampleState:     c.SampleState,
			SourceTimestamp: c.SourceTimestamp,
		})
	}
	return out
}

// WaitForHistoricalData blocks until every matched TRANSIENT_LOCAL writer
// has finished replaying its retained history to this reader, or timeout
// elapses. See DESIGN.md for the decided behavior when a writer disconnects
// mid-replay (an open question spec.md leaves unresolved).
func (r *DataReader) WaitForHistoricalData(ctx context.Context, timeout time.Duration) error {
	if r.qos.Durability.Kind != qos.TransientLocal {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for {
		allCaughtUp := true
		for _, writerGuid := range r.reader.MatchedWriters() {
			if !r.reader.CaughtUpWith(writerGuid) {
				allCaughtUp = false
				break
			}
		}
		if allCaughtUp {
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

// GetMatchedPublications returns the GUIDs of every writer currently
// matched with this reader.
func (r *DataReader) GetMatchedPublications() []types.GUID {
	return r.reader.MatchedWriters()
}
