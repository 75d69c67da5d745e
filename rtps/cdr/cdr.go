// Package cdr implements CDR (Common Data Representation) primitive
// (de)serialization with configurable endianness and the 4-byte
// encapsulation header (spec.md §4.1). The Parameter List framing used for
// PL_CDR payloads is in package parameterlist.
package cdr

import (
	"encoding/binary"
	"math"

	"rtpsgo/rtpserr"
)

// Endianness selects the byte order a CDR stream is encoded/decoded with.
type Endianness bool

const (
	BigEndian    Endianness = false
	LittleEndian Endianness = true
)

func (e Endianness) order() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// EncapsulationKind is the 2-byte representation id prefixing every
// serialized payload (spec.md §4.1).
type EncapsulationKind uint16

const (
	CDR_BE    EncapsulationKind = 0x0000
	CDR_LE    EncapsulationKind = 0x0001
	PL_CDR_BE EncapsulationKind = 0x0002
	PL_CDR_LE EncapsulationKind = 0x0003
)

// Endianness reports the byte order implied by an encapsulation kind.
func (k EncapsulationKind) Endianness() Endianness {
	if k == CDR_LE || k == PL_CDR_LE {
		return LittleEndian
	}
	return BigEndian
}

// IsParameterList reports whether k is one of the PL_CDR variants.
func (k EncapsulationKind) IsParameterList() bool {
	return k == PL_CDR_BE || k == PL_CDR_LE
}

// Writer accumulates a CDR-encoded byte stream. Alignment is tracked
// relative to the start of the encapsulation (i.e. position 0 of buf, right
// after the 4-byte encapsulation header is conventionally written first).
type Writer struct {
	buf   []byte
	order Endianness
}

// NewWriter returns a Writer that encodes primitives in the given byte order.
func NewWriter(order Endianness) *Writer {
	return &Writer{order: order}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Order reports the Writer's configured byte order.
func (w *Writer) Order() Endianness { return w.order }

func (w *Writer) pad(align int) {
	if align <= 1 {
		return
	}
	rem := len(w.buf) % align
	if rem == 0 {
		return
	}
	for i := 0; i < align-rem; i++ {
		w.buf = append(w.buf, 0)
	}
}

// WriteEncapsulationHeader writes the 2-byte representation id + 2-byte
// options header that begins every serialized payload. The header is always
// big-endian, whatever the Writer's own byte order, so that
// NewReaderFromEncapsulation can read it back.
func (w *Writer) WriteEncapsulationHeader(kind EncapsulationKind) {
	w.buf = append(w.buf, byte(uint16(kind)>>8), byte(uint16(kind)), 0x00, 0x00)
}

func (w *Writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) WriteUint16(v uint16) {
	w.pad(2)
	b := make([]byte, 2)
	w.order.order().PutUint16(b, v)
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteUint32(v uint32) {
	w.pad(4)
	b := make([]byte, 4)
	w.order.order().PutUint32(b, v)
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteUint64(v uint64) {
	w.pad(8)
	b := make([]byte, 8)
	w.order.order().PutUint64(b, v)
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteString writes a u32 length (including the NUL terminator) followed by
// the string bytes and a trailing NUL, per spec.md §4.1.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteSequenceLength writes the u32 element count preceding a sequence.
func (w *Writer) WriteSequenceLength(n int) { w.WriteUint32(uint32(n)) }

// Reader parses a CDR-encoded byte stream.
type Reader struct {
	buf   []byte
	pos   int
	order Endianness
}

// NewReader returns a Reader over buf using the given byte order.
func NewReader(buf []byte, order Endianness) *Reader {
	return &Reader{buf: buf, order: order}
}

// NewReaderFromEncapsulation reads the 4-byte encapsulation header off the
// front of buf and returns a Reader configured with the implied byte order.
func NewReaderFromEncapsulation(buf []byte) (*Reader, EncapsulationKind, error) {
	if len(buf) < 4 {
		return nil, 0, rtpserr.ErrNotEnoughData
	}
	kind := EncapsulationKind(binary.BigEndian.Uint16(buf[0:2]))
	r := &Reader{buf: buf, pos: 4, order: kind.Endianness()}
	return r, kind, nil
}

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) Pos() int { return r.pos }

func (r *Reader) SetOrder(o Endianness) { r.order = o }

func (r *Reader) Order() Endianness { return r.order }

func (r *Reader) pad(align int) {
	if align <= 1 {
		return
	}
	rem := r.pos % align
	if rem != 0 {
		r.pos += align - rem
	}
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return rtpserr.ErrNotEnoughData
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	r.pad(2)
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.order().Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	r.pad(4)
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.order().Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	r.pad(8)
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.order().Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	bits, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	bits, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// ReadString reads a u32-length-prefixed, NUL-terminated string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", rtpserr.ErrInvalidData
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	// Strip the trailing NUL.
	if len(b) > 0 && b[len(b)-1] == 0 {
		return string(b[:len(b)-1]), nil
	}
	return string(b), nil
}

// ReadSequenceLength reads the u32 element count preceding a sequence.
func (r *Reader) ReadSequenceLength() (int, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
