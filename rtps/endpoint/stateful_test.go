package endpoint

import (
	"testing"

	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/qos"
	"rtpsgo/rtps/types"
)

func testGuid(prefixByte byte, entityKind byte) types.GUID {
	return types.GUID{
		Prefix:   types.GuidPrefix{prefixByte},
		EntityId: types.EntityId{0, 0, 1, entityKind},
	}
}

// TestStatefulWriterReaderReliableExchange drives one ALIVE sample all the
// way from Write through NextOutbound/HandleData, then the HEARTBEAT and
// ACKNACK it takes to bring the matched proxies into agreement.
func TestStatefulWriterReaderReliableExchange(t *testing.T) {
	q := qos.Default()
	q.Reliability.Kind = qos.Reliable

	writerGuid := testGuid(1, types.EntityKindWriterWithKey)
	readerGuid := testGuid(2, types.EntityKindReaderWithKey)

	w := NewStatefulWriter(writerGuid, q)
	r := NewStatefulReader(readerGuid, q, nil)

	w.MatchReader(readerGuid, nil, nil, true)
	r.MatchWriter(writerGuid, nil)

	sample := history.CacheChange{
		Kind:           types.ChangeKindAlive,
		InstanceHandle: types.InstanceHandle{9},
		DataPayload:    []byte("payload"),
	}
	sn, err := w.Write(sample)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if sn != 1 {
		t.Fatalf("sn = %d, want 1", sn)
	}

	outs, ok := w.NextOutbound(readerGuid)
	if !ok || len(outs) != 1 {
		t.Fatalf("NextOutbound should have one pending DATA, got %d ok=%v", len(outs), ok)
	}
	data, ok := outs[0].Body.(messages.Data)
	if !ok {
		t.Fatalf("outbound body is %T, want messages.Data", outs[0].Body)
	}
	if data.WriterSN != 1 {
		t.Fatalf("data.WriterSN = %d, want 1", data.WriterSN)
	}
	if _, ok := w.NextOutbound(readerGuid); ok {
		t.Fatal("NextOutbound should have nothing left after draining the one change")
	}

	r.HandleData(writerGuid, data)
	if !r.CaughtUpWith(writerGuid) {
		t.Fatal("reader should be caught up: it has everything the writer ever sent and no heartbeat yet implied more")
	}

	hb := w.BuildHeartbeat()
	if hb.LastSN != 1 {
		t.Fatalf("heartbeat LastSN = %d, want 1", hb.LastSN)
	}
	r.HandleHeartbeat(writerGuid, hb)
	if !r.CaughtUpWith(writerGuid) {
		t.Fatal("reader should still be caught up after a heartbeat confirming what it already has")
	}

	ack, ok := r.BuildAckNack(writerGuid)
	if !ok {
		t.Fatal("BuildAckNack should produce an ACKNACK")
	}
	if !ack.Final {
		t.Fatal("ACKNACK should be Final: the reader has no missing sequence numbers")
	}

	w.HandleAckNack(readerGuid, ack)
	if w.AnyUnacked() {
		t.Fatal("writer should have no unacked changes once the reader ACKNACKed everything")
	}

	samples := r.Cache().Read(10, history.SelectionFilter{})
	if len(samples) != 1 {
		t.Fatalf("reader cache has %d samples, want 1", len(samples))
	}
}

// TestStatefulReaderDetectsGapFromHeartbeat checks that a HEARTBEAT
// advertising sequence numbers the reader never received leaves it not
// caught up, and that the resulting ACKNACK is non-final.
func TestStatefulReaderDetectsGapFromHeartbeat(t *testing.T) {
	q := qos.Default()
	q.Reliability.Kind = qos.Reliable
	writerGuid := testGuid(1, types.EntityKindWriterWithKey)
	readerGuid := testGuid(2, types.EntityKindReaderWithKey)

	r := NewStatefulReader(readerGuid, q, nil)
	r.MatchWriter(writerGuid, nil)

	hb := messages.Heartbeat{
		ReaderId: readerGuid.EntityId,
		WriterId: writerGuid.EntityId,
		FirstSN:  1,
		LastSN:   3,
		Count:    1,
	}
	r.HandleHeartbeat(writerGuid, hb)
	if r.CaughtUpWith(writerGuid) {
		t.Fatal("reader should not be caught up: writer advertised seq 1-3 and nothing arrived")
	}

	ack, ok := r.BuildAckNack(writerGuid)
	if !ok || ack.Final {
		t.Fatalf("expected a non-final ACKNACK requesting retransmission, got ok=%v final=%v", ok, ack.Final)
	}
}
