package receiver

import (
	"testing"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/types"
)

type fakeReader struct {
	id       types.EntityId
	dataHits int
	lastData messages.Data
}

func (f *fakeReader) EntityId() types.EntityId { return f.id }
func (f *fakeReader) HandleData(writerGuid types.GUID, d messages.Data) {
	f.dataHits++
	f.lastData = d
}
func (f *fakeReader) HandleDataFrag(types.GUID, messages.DataFrag) {}
func (f *fakeReader) HandleGap(types.GUID, messages.Gap)           {}
func (f *fakeReader) HandleHeartbeat(types.GUID, messages.Heartbeat) {}

type fakeWriter struct {
	id        types.EntityId
	ackHits   int
	lastAck   messages.AckNack
}

func (f *fakeWriter) EntityId() types.EntityId { return f.id }
func (f *fakeWriter) HandleAckNack(readerGuid types.GUID, a messages.AckNack) {
	f.ackHits++
	f.lastAck = a
}
func (f *fakeWriter) HandleNackFrag(types.GUID, messages.NackFrag) {}

func buildMessage(t *testing.T, sms ...messages.SubmessageBody) []byte {
	t.Helper()
	msg := messages.Message{
		Header: messages.RTPSHeader{
			Version:    types.ProtocolVersion24,
			VendorId:   types.VendorIdThis,
			GuidPrefix: types.GuidPrefix{9, 9, 9},
		},
	}
	for _, s := range sms {
		msg.Submessages = append(msg.Submessages, messages.Submessage{Body: s})
	}
	return messages.Marshal(msg, cdr.BigEndian)
}

func TestDispatcherRoutesDataToMatchingReader(t *testing.T) {
	target := &fakeReader{id: types.EntityId{0, 0, 1, types.EntityKindReaderWithKey}}
	other := &fakeReader{id: types.EntityId{0, 0, 2, types.EntityKindReaderWithKey}}

	d := &Dispatcher{
		Readers: func() []ReaderSink { return []ReaderSink{target, other} },
		Writers: func() []WriterSink { return nil },
	}

	buf := buildMessage(t, messages.Data{
		ReaderId:          target.id,
		WriterId:          types.EntityId{0, 0, 1, types.EntityKindWriterWithKey},
		WriterSN:          7,
		SerializedPayload: []byte("x"),
		HasPayload:        true,
	})

	d.Deliver(buf, types.Locator{})

	if target.dataHits != 1 {
		t.Fatalf("target.dataHits = %d, want 1", target.dataHits)
	}
	if other.dataHits != 0 {
		t.Fatalf("other.dataHits = %d, want 0: message addressed a different reader", other.dataHits)
	}
	if target.lastData.WriterSN != 7 {
		t.Fatalf("lastData.WriterSN = %d, want 7", target.lastData.WriterSN)
	}
}

func TestDispatcherFansOutDataWhenReaderIdUnknown(t *testing.T) {
	a := &fakeReader{id: types.EntityId{0, 0, 1, types.EntityKindReaderWithKey}}
	b := &fakeReader{id: types.EntityId{0, 0, 2, types.EntityKindReaderWithKey}}

	d := &Dispatcher{
		Readers: func() []ReaderSink { return []ReaderSink{a, b} },
		Writers: func() []WriterSink { return nil },
	}

	buf := buildMessage(t, messages.Data{
		ReaderId:          types.EntityIdUnknown,
		WriterId:          types.EntityId{0, 0, 1, types.EntityKindWriterWithKey},
		WriterSN:          1,
		SerializedPayload: []byte("x"),
		HasPayload:        true,
	})

	d.Deliver(buf, types.Locator{})

	if a.dataHits != 1 || b.dataHits != 1 {
		t.Fatalf("expected both readers hit once, got a=%d b=%d", a.dataHits, b.dataHits)
	}
}

func TestDispatcherRoutesAckNackToMatchingWriter(t *testing.T) {
	target := &fakeWriter{id: types.EntityId{0, 0, 1, types.EntityKindWriterWithKey}}
	other := &fakeWriter{id: types.EntityId{0, 0, 2, types.EntityKindWriterWithKey}}

	d := &Dispatcher{
		Readers: func() []ReaderSink { return nil },
		Writers: func() []WriterSink { return []WriterSink{target, other} },
	}

	buf := buildMessage(t, messages.AckNack{
		ReaderId:      types.EntityId{0, 0, 1, types.EntityKindReaderWithKey},
		WriterId:      target.id,
		ReaderSNState: messages.NewSequenceNumberSet(1, nil),
		Count:         1,
		Final:         true,
	})

	d.Deliver(buf, types.Locator{})

	if target.ackHits != 1 {
		t.Fatalf("target.ackHits = %d, want 1", target.ackHits)
	}
	if other.ackHits != 0 {
		t.Fatalf("other.ackHits = %d, want 0", other.ackHits)
	}
}

func TestDispatcherDropsUnparsableMessageWithoutPanicking(t *testing.T) {
	d := &Dispatcher{
		Readers: func() []ReaderSink { return nil },
		Writers: func() []WriterSink { return nil },
	}
	d.Deliver([]byte{1, 2, 3}, types.Locator{})
}
