package endpoint

import (
	"testing"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/receiver"
	"rtpsgo/rtps/typesupport"
	"rtpsgo/rtps/types"
)

// deliver marshals every outbound submessage a writer produced into one
// RTPS message per submessage and feeds the bytes through a
// receiver.Dispatcher, in place of a real socket. This is the "in-process
// fake transport" the loopback scenarios below exercise: real wire
// encode/parse and real submessage routing, no network.
func deliver(writerGuid types.GUID, outs []OutboundData, readers []receiver.ReaderSink) {
	d := &receiver.Dispatcher{
		LocalPrefix: writerGuid.Prefix,
		Readers:     func() []receiver.ReaderSink { return readers },
		Writers:     func() []receiver.WriterSink { return nil },
	}
	for _, out := range outs {
		msg := messages.Message{
			Header:      messages.RTPSHeader{Version: types.ProtocolVersion24, VendorId: types.VendorIdThis, GuidPrefix: writerGuid.Prefix},
			Submessages: []messages.Submessage{{Body: out.Body}},
		}
		d.Deliver(messages.Marshal(msg, cdr.LittleEndian), types.InvalidLocator)
	}
}

// drainOutbound pops every pending submessage NextOutbound has for
// readerGuid's proxy, across as many cache-changes as are pending.
func drainOutbound(w *StatefulWriter, readerGuid types.GUID) []OutboundData {
	var all []OutboundData
	for {
		outs, ok := w.NextOutbound(readerGuid)
		if !ok {
			break
		}
		all = append(all, outs...)
	}
	return all
}

type chatSample struct {
	Body []byte
}

// TestLoopbackBestEffortDeliversInOrder is spec.md §8 scenario S1: three
// unkeyed best-effort samples, taken back in write order with NOT_READ
// sample state and an ALIVE instance. KEEP_LAST's default depth of one
// would evict "A" and "B" before they're ever taken, since all three share
// the topic's single (keyless) instance, so the test widens History to hold
// all three — the scenario's "QoS default" is about reliability, not depth.
func TestLoopbackBestEffortDeliversInOrder(t *testing.T) {
	ts := typesupport.NewStructTypeSupport("Chat", (*chatSample)(nil))
	q := qos.Default()
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 3}

	writerGuid := testGuid(1, types.EntityKindWriterNoKey)
	readerGuid := testGuid(2, types.EntityKindReaderNoKey)

	w := NewStatefulWriter(writerGuid, q)
	r := NewStatefulReader(readerGuid, q, nil)
	w.MatchReader(readerGuid, nil, nil, false)
	r.MatchWriter(writerGuid, nil)

	for _, body := range [][]byte{[]byte("A"), []byte("B"), []byte("C")} {
		payload, err := ts.Serialize(&chatSample{Body: body})
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		if _, err := w.Write(history.CacheChange{Kind: types.ChangeKindAlive, DataPayload: payload}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	deliver(writerGuid, drainOutbound(w, readerGuid), []receiver.ReaderSink{r})

	samples := r.Cache().Take(10, history.SelectionFilter{})
	if len(samples) != 3 {
		t.Fatalf("took %d samples, want 3", len(samples))
	}
	want := []string{"A", "B", "C"}
	for i, ch := range samples {
		if ch.SampleState != history.NotRead {
			t.Fatalf("sample %d: sample_state = %v, want NotRead", i, ch.SampleState)
		}
		if r.Cache().InstanceState(ch.InstanceHandle) != history.InstanceAlive {
			t.Fatalf("sample %d: instance_state not ALIVE", i)
		}
		decoded, err := ts.Deserialize(ch.DataPayload)
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		if got := string(decoded.(*chatSample).Body); got != want[i] {
			t.Fatalf("sample %d = %q, want %q", i, got, want[i])
		}
	}
}

type keyedSample struct {
	ID uint32 `rtps:"key"`
	V  uint32
}

// TestLoopbackDisposeCarriesStatusInfo is spec.md §8 scenario S5: an ALIVE
// write followed by a dispose of the same instance delivers two samples,
// the second with an empty payload and a PID_STATUS_INFO DISPOSED bit
// (rather than the reader inferring NOT_ALIVE from an empty payload alone).
func TestLoopbackDisposeCarriesStatusInfo(t *testing.T) {
	ts := typesupport.NewStructTypeSupport("K", (*keyedSample)(nil))
	keyOf := func(payload []byte) types.InstanceHandle {
		v, err := ts.Deserialize(payload)
		if err != nil {
			return types.InstanceHandleNil
		}
		return ts.InstanceHandle(v)
	}
	q := qos.Default()
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 2}

	writerGuid := testGuid(1, types.EntityKindWriterWithKey)
	readerGuid := testGuid(2, types.EntityKindReaderWithKey)

	w := NewStatefulWriter(writerGuid, q)
	r := NewStatefulReader(readerGuid, q, keyOf)
	w.MatchReader(readerGuid, nil, nil, false)
	r.MatchWriter(writerGuid, nil)

	sample := &keyedSample{ID: 7, V: 1}
	payload, err := ts.Serialize(sample)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	handle := ts.InstanceHandle(sample)
	if _, err := w.Write(history.CacheChange{Kind: types.ChangeKindAlive, InstanceHandle: handle, DataPayload: payload}); err != nil {
		t.Fatalf("Write alive: %v", err)
	}

	keyPayload, err := ts.SerializeKey(&keyedSample{ID: 7})
	if err != nil {
		t.Fatalf("SerializeKey: %v", err)
	}
	if _, err := w.Write(history.CacheChange{Kind: types.ChangeKindNotAliveDisposed, InstanceHandle: handle, DataPayload: keyPayload}); err != nil {
		t.Fatalf("Write dispose: %v", err)
	}

	deliver(writerGuid, drainOutbound(w, readerGuid), []receiver.ReaderSink{r})

	samples := r.Cache().Take(10, history.SelectionFilter{})
	if len(samples) != 2 {
		t.Fatalf("took %d samples, want 2", len(samples))
	}

	alive := samples[0]
	if alive.Kind != types.ChangeKindAlive {
		t.Fatalf("sample 0 kind = %v, want ALIVE", alive.Kind)
	}
	decoded, err := ts.Deserialize(alive.DataPayload)
	if err != nil {
		t.Fatalf("Deserialize alive: %v", err)
	}
	if v := decoded.(*keyedSample).V; v != 1 {
		t.Fatalf("alive sample V = %d, want 1", v)
	}

	disposed := samples[1]
	if disposed.Kind != types.ChangeKindNotAliveDisposed {
		t.Fatalf("sample 1 kind = %v, want NOT_ALIVE_DISPOSED", disposed.Kind)
	}
	if len(disposed.DataPayload) != 0 {
		t.Fatalf("disposed sample payload = %d bytes, want empty", len(disposed.DataPayload))
	}
	if disposed.InstanceHandle != handle {
		t.Fatalf("disposed sample instance handle doesn't match the writer's")
	}
	if r.Cache().InstanceState(handle) != history.InstanceNotAliveDisposed {
		t.Fatalf("instance_state = %v, want NOT_ALIVE_DISPOSED", r.Cache().InstanceState(handle))
	}
}

type blobSample struct {
	Body []byte
}

// TestLoopbackFragmentsAndReassembles is spec.md §8 scenario S6: a 5000-byte
// RELIABLE payload with fragment_size=1344 goes out as multiple DATA_FRAG
// submessages and comes back as exactly one sample with the original bytes.
func TestLoopbackFragmentsAndReassembles(t *testing.T) {
	const fragmentSize = 1344
	ts := typesupport.NewStructTypeSupport("Blob", (*blobSample)(nil))
	q := qos.Default()
	q.Reliability.Kind = qos.Reliable
	q.History = qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}
	q.FragmentSize = fragmentSize

	writerGuid := testGuid(1, types.EntityKindWriterNoKey)
	readerGuid := testGuid(2, types.EntityKindReaderNoKey)

	w := NewStatefulWriter(writerGuid, q)
	r := NewStatefulReader(readerGuid, q, nil)
	w.MatchReader(readerGuid, nil, nil, true)
	r.MatchWriter(writerGuid, nil)

	body := make([]byte, 5000)
	for i := range body {
		body[i] = byte(i)
	}
	payload, err := ts.Serialize(&blobSample{Body: body})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, err := w.Write(history.CacheChange{Kind: types.ChangeKindAlive, DataPayload: payload}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	outs := drainOutbound(w, readerGuid)
	var fragCount int
	for _, out := range outs {
		if _, ok := out.Body.(messages.DataFrag); ok {
			fragCount++
		}
	}
	if fragCount < 4 {
		t.Fatalf("got %d DATA_FRAG submessages, want >= 4", fragCount)
	}

	deliver(writerGuid, outs, []receiver.ReaderSink{r})

	samples := r.Cache().Take(10, history.SelectionFilter{})
	if len(samples) != 1 {
		t.Fatalf("took %d samples, want exactly 1", len(samples))
	}
	decoded, err := ts.Deserialize(samples[0].DataPayload)
	if err != nil {
		t.Fatalf("Deserialize reassembled payload: %v", err)
	}
	got := decoded.(*blobSample).Body
	if len(got) != len(body) {
		t.Fatalf("reassembled body length = %d, want %d", len(got), len(body))
	}
	for i := range body {
		if got[i] != body[i] {
			t.Fatalf("reassembled body differs at byte %d: got %d, want %d", i, got[i], body[i])
		}
	}
}
