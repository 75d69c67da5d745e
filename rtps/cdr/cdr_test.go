package cdr

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(LittleEndian)
	w.WriteEncapsulationHeader(CDR_LE)
	w.WriteByte(0xab)
	w.WriteUint16(0x1234)
	w.WriteInt32(-7)
	w.WriteUint64(123456789012345)
	w.WriteFloat32(3.5)
	w.WriteFloat64(2.71828)
	w.WriteString("hello rtps")
	w.WriteSequenceLength(3)
	w.WriteBytes([]byte{1, 2, 3})

	r, kind, err := NewReaderFromEncapsulation(w.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromEncapsulation: %v", err)
	}
	if kind != CDR_LE {
		t.Fatalf("kind = %v, want CDR_LE", kind)
	}
	r.SetOrder(kind.Endianness())

	if b, err := r.ReadByte(); err != nil || b != 0xab {
		t.Fatalf("ReadByte = %v, %v", b, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadUint16 = %v, %v", v, err)
	}
	if v, err := r.ReadInt32(); err != nil || v != -7 {
		t.Fatalf("ReadInt32 = %v, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 123456789012345 {
		t.Fatalf("ReadUint64 = %v, %v", v, err)
	}
	if v, err := r.ReadFloat32(); err != nil || v != 3.5 {
		t.Fatalf("ReadFloat32 = %v, %v", v, err)
	}
	if v, err := r.ReadFloat64(); err != nil || v != 2.71828 {
		t.Fatalf("ReadFloat64 = %v, %v", v, err)
	}
	if s, err := r.ReadString(); err != nil || s != "hello rtps" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	if n, err := r.ReadSequenceLength(); err != nil || n != 3 {
		t.Fatalf("ReadSequenceLength = %v, %v", n, err)
	}
	if b, err := r.ReadBytes(3); err != nil || string(b) != "\x01\x02\x03" {
		t.Fatalf("ReadBytes = %v, %v", b, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", r.Remaining())
	}
}

func TestReadPastEndErrors(t *testing.T) {
	r := NewReader([]byte{1, 2}, LittleEndian)
	if _, err := r.ReadUint64(); err == nil {
		t.Fatal("expected error reading past end of buffer")
	}
}

func TestEncapsulationKindEndianness(t *testing.T) {
	cases := []struct {
		kind EncapsulationKind
		want Endianness
	}{
		{CDR_BE, BigEndian},
		{CDR_LE, LittleEndian},
		{PL_CDR_BE, BigEndian},
		{PL_CDR_LE, LittleEndian},
	}
	for _, c := range cases {
		if got := c.kind.Endianness(); got != c.want {
			t.Errorf("%v.Endianness() = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestIsParameterList(t *testing.T) {
	if CDR_LE.IsParameterList() {
		t.Error("CDR_LE should not be a parameter list encapsulation")
	}
	if !PL_CDR_LE.IsParameterList() {
		t.Error("PL_CDR_LE should be a parameter list encapsulation")
	}
}
