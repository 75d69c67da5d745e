package parameterlist

import (
	"bytes"
	"testing"

	"rtpsgo/rtps/cdr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pl := ParameterList{}
	pl.Add(PID_TOPIC_NAME, []byte("Square"))
	pl.Add(PID_TYPE_NAME, []byte("ShapeType"))
	pl.Add(PID_KEY_HASH, bytes.Repeat([]byte{0xaa}, 16))

	w := cdr.NewWriter(cdr.BigEndian)
	Encode(w, pl)

	r := cdr.NewReader(w.Bytes(), cdr.BigEndian)
	got, err := Decode(r, AllRecognizedPIDs)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Decode returns each value with the zero padding Encode added to bring
	// it to a multiple of 4 bytes.
	topic, ok := got.Get(PID_TOPIC_NAME)
	if !ok || string(topic) != "Square\x00\x00" {
		t.Fatalf("PID_TOPIC_NAME = %q, %v", topic, ok)
	}
	typeName, ok := got.Get(PID_TYPE_NAME)
	if !ok || string(typeName) != "ShapeType\x00\x00\x00" {
		t.Fatalf("PID_TYPE_NAME = %q, %v", typeName, ok)
	}
	keyHash, ok := got.Get(PID_KEY_HASH)
	if !ok || !bytes.Equal(keyHash, bytes.Repeat([]byte{0xaa}, 16)) {
		t.Fatalf("PID_KEY_HASH mismatch: %x", keyHash)
	}
}

func TestDecodeSkipsUnrecognizedWithoutMustUnderstand(t *testing.T) {
	pl := ParameterList{}
	pl.Add(ParameterId(0x1999), []byte("unknown vendor extension"))
	pl.Add(PID_TOPIC_NAME, []byte("Square"))

	w := cdr.NewWriter(cdr.BigEndian)
	Encode(w, pl)

	r := cdr.NewReader(w.Bytes(), cdr.BigEndian)
	got, err := Decode(r, AllRecognizedPIDs)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := got.Get(ParameterId(0x1999)); ok {
		t.Fatal("unrecognized PID should have been skipped")
	}
	if topic, ok := got.Get(PID_TOPIC_NAME); !ok || string(topic) != "Square\x00\x00" {
		t.Fatalf("PID_TOPIC_NAME = %q, %v", topic, ok)
	}
}

func TestDecodeRejectsUnrecognizedMustUnderstand(t *testing.T) {
	pl := ParameterList{}
	pl.Add(ParameterId(0x9999)|mustUnderstandBit, []byte("must understand"))

	w := cdr.NewWriter(cdr.BigEndian)
	Encode(w, pl)

	r := cdr.NewReader(w.Bytes(), cdr.BigEndian)
	if _, err := Decode(r, AllRecognizedPIDs); err == nil {
		t.Fatal("expected an error for an unrecognized must-understand PID")
	}
}

func TestEncodePadsValuesTo4Bytes(t *testing.T) {
	pl := ParameterList{}
	pl.Add(PID_TOPIC_NAME, []byte("abc")) // 3 bytes, needs 1 byte of padding

	w := cdr.NewWriter(cdr.BigEndian)
	Encode(w, pl)

	r := cdr.NewReader(w.Bytes(), cdr.BigEndian)
	id, err := r.ReadUint16()
	if err != nil || ParameterId(id) != PID_TOPIC_NAME {
		t.Fatalf("id = %v, %v", id, err)
	}
	length, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("ReadUint16 length: %v", err)
	}
	if length != 4 {
		t.Fatalf("padded length = %d, want 4", length)
	}
}
