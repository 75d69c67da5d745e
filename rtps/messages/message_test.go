package messages

import (
	"testing"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/types"
)

func testHeader() RTPSHeader {
	return RTPSHeader{
		Version:    types.ProtocolVersion24,
		VendorId:   types.VendorIdThis,
		GuidPrefix: types.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}
}

func TestMarshalParseDataRoundTrip(t *testing.T) {
	msg := Message{
		Header: testHeader(),
		Submessages: []Submessage{
			{Body: Data{
				ReaderId:          types.EntityIdUnknown,
				WriterId:          types.EntityId{0, 0, 1, types.EntityKindWriterWithKey},
				WriterSN:          types.SequenceNumber(42),
				SerializedPayload: []byte("hello"),
				HasPayload:        true,
			}},
		},
	}

	buf := Marshal(msg, cdr.LittleEndian)
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Header.GuidPrefix != msg.Header.GuidPrefix {
		t.Fatalf("GuidPrefix = %x, want %x", got.Header.GuidPrefix, msg.Header.GuidPrefix)
	}
	if len(got.Submessages) != 1 {
		t.Fatalf("got %d submessages, want 1", len(got.Submessages))
	}
	data, ok := got.Submessages[0].Body.(Data)
	if !ok {
		t.Fatalf("submessage body is %T, want Data", got.Submessages[0].Body)
	}
	if data.WriterSN != 42 {
		t.Fatalf("WriterSN = %d, want 42", data.WriterSN)
	}
	if string(data.SerializedPayload) != "hello" {
		t.Fatalf("SerializedPayload = %q, want %q", data.SerializedPayload, "hello")
	}
}

func TestMarshalParseMultipleSubmessages(t *testing.T) {
	msg := Message{
		Header: testHeader(),
		Submessages: []Submessage{
			{Body: Heartbeat{FirstSN: 1, LastSN: 5, Count: 1}},
			{Body: AckNack{
				ReaderSNState: NewSequenceNumberSet(6, nil),
				Count:         1,
				Final:         true,
			}},
		},
	}

	buf := Marshal(msg, cdr.BigEndian)
	got, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Submessages) != 2 {
		t.Fatalf("got %d submessages, want 2", len(got.Submessages))
	}
	hb, ok := got.Submessages[0].Body.(Heartbeat)
	if !ok || hb.LastSN != 5 {
		t.Fatalf("first submessage = %+v, ok=%v", got.Submessages[0].Body, ok)
	}
	ack, ok := got.Submessages[1].Body.(AckNack)
	if !ok || !ack.Final {
		t.Fatalf("second submessage = %+v, ok=%v", got.Submessages[1].Body, ok)
	}
}

func TestParseToleratesUnknownSubmessageId(t *testing.T) {
	w := cdr.NewWriter(cdr.BigEndian)
	marshalRTPSHeader(w, testHeader())
	// A made-up submessage id with a well-formed length, followed by a real one.
	w.WriteByte(0x7f)
	w.WriteByte(0)
	w.WriteUint16(4)
	w.WriteBytes([]byte{0, 0, 0, 0})
	marshalSubmessage(w, Heartbeat{FirstSN: 1, LastSN: 1, Count: 1}, cdr.BigEndian, true)

	got, err := Parse(w.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Submessages) != 2 {
		t.Fatalf("got %d submessages, want 2", len(got.Submessages))
	}
	if !got.Submessages[0].Unknown {
		t.Fatal("first submessage should be marked Unknown")
	}
	if _, ok := got.Submessages[1].Body.(Heartbeat); !ok {
		t.Fatalf("second submessage = %T, want Heartbeat", got.Submessages[1].Body)
	}
}
