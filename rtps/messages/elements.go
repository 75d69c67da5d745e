package messages

import (
	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/types"
	"rtpsgo/rtpserr"
)

// SequenceNumberSet encodes a contiguous run of sequence numbers starting
// at Base, with Bits[i] set when Base+i is a member of the set (used by
// ACKNACK for requested/acked ranges and by HEARTBEAT implicitly).
type SequenceNumberSet struct {
	Base    types.SequenceNumber
	NumBits uint32
	Bits    []bool // len == NumBits
}

// NewSequenceNumberSet builds a set from an explicit member list relative
// to base; members need not be sorted.
func NewSequenceNumberSet(base types.SequenceNumber, members []types.SequenceNumber) SequenceNumberSet {
	if len(members) == 0 {
		return SequenceNumberSet{Base: base, NumBits: 0}
	}
	max := members[0]
	for _, m := range members {
		if m > max {
			max = m
		}
	}
	numBits := uint32(max-base) + 1
	bits := make([]bool, numBits)
	for _, m := range members {
		if m >= base {
			bits[m-base] = true
		}
	}
	return SequenceNumberSet{Base: base, NumBits: numBits, Bits: bits}
}

// Members returns the sequence numbers whose bit is set.
func (s SequenceNumberSet) Members() []types.SequenceNumber {
	var out []types.SequenceNumber
	for i, b := range s.Bits {
		if b {
			out = append(out, s.Base+types.SequenceNumber(i))
		}
	}
	return out
}

func encodeBitmap(w *cdr.Writer, numBits uint32, bits []bool) {
	w.WriteUint32(numBits)
	numWords := (numBits + 31) / 32
	for wi := uint32(0); wi < numWords; wi++ {
		var word uint32
		for b := uint32(0); b < 32; b++ {
			idx := wi*32 + b
			if idx >= numBits {
				break
			}
			if bits[idx] {
				word |= 1 << (31 - b)
			}
		}
		w.WriteUint32(word)
	}
}

func decodeBitmap(r *cdr.Reader) (numBits uint32, bits []bool, err error) {
	numBits, err = r.ReadUint32()
	if err != nil {
		return 0, nil, err
	}
	if numBits > 256 {
		return 0, nil, rtpserr.ErrInvalidData
	}
	numWords := (numBits + 31) / 32
	bits = make([]bool, numBits)
	for wi := uint32(0); wi < numWords; wi++ {
		word, err := r.ReadUint32()
		if err != nil {
			return 0, nil, err
		}
		for b := uint32(0); b < 32; b++ {
			idx := wi*32 + b
			if idx >= numBits {
				break
			}
			if word&(1<<(31-b)) != 0 {
				bits[idx] = true
			}
		}
	}
	return numBits, bits, nil
}

// Marshal writes the SequenceNumberSet: bitmapBase (i32 high, u32 low) then
// the bitmap.
func (s SequenceNumberSet) Marshal(w *cdr.Writer) {
	high, low := s.Base.HighLow()
	w.WriteInt32(high)
	w.WriteUint32(low)
	encodeBitmap(w, s.NumBits, s.Bits)
}

func UnmarshalSequenceNumberSet(r *cdr.Reader) (SequenceNumberSet, error) {
	high, err := r.ReadInt32()
	if err != nil {
		return SequenceNumberSet{}, err
	}
	low, err := r.ReadUint32()
	if err != nil {
		return SequenceNumberSet{}, err
	}
	numBits, bits, err := decodeBitmap(r)
	if err != nil {
		return SequenceNumberSet{}, err
	}
	return SequenceNumberSet{Base: types.SequenceNumberFromHighLow(high, low), NumBits: numBits, Bits: bits}, nil
}

// FragmentNumberSet is the fragment-indexed analogue of SequenceNumberSet,
// used by NACK_FRAG.
type FragmentNumberSet struct {
	Base    uint32
	NumBits uint32
	Bits    []bool
}

func (s FragmentNumberSet) Marshal(w *cdr.Writer) {
	w.WriteUint32(s.Base)
	encodeBitmap(w, s.NumBits, s.Bits)
}

func UnmarshalFragmentNumberSet(r *cdr.Reader) (FragmentNumberSet, error) {
	base, err := r.ReadUint32()
	if err != nil {
		return FragmentNumberSet{}, err
	}
	numBits, bits, err := decodeBitmap(r)
	if err != nil {
		return FragmentNumberSet{}, err
	}
	return FragmentNumberSet{Base: base, NumBits: numBits, Bits: bits}, nil
}

func marshalGuidPrefix(w *cdr.Writer, p types.GuidPrefix) { w.WriteBytes(p[:]) }

func unmarshalGuidPrefix(r *cdr.Reader) (types.GuidPrefix, error) {
	b, err := r.ReadBytes(12)
	if err != nil {
		return types.GuidPrefix{}, err
	}
	var p types.GuidPrefix
	copy(p[:], b)
	return p, nil
}

func marshalEntityId(w *cdr.Writer, e types.EntityId) { w.WriteBytes(e[:]) }

func unmarshalEntityId(r *cdr.Reader) (types.EntityId, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return types.EntityId{}, err
	}
	var e types.EntityId
	copy(e[:], b)
	return e, nil
}

func marshalLocator(w *cdr.Writer, l types.Locator) {
	w.WriteInt32(int32(l.Kind))
	w.WriteUint32(l.Port)
	w.WriteBytes(l.Address[:])
}

func unmarshalLocator(r *cdr.Reader) (types.Locator, error) {
	kind, err := r.ReadInt32()
	if err != nil {
		return types.Locator{}, err
	}
	port, err := r.ReadUint32()
	if err != nil {
		return types.Locator{}, err
	}
	addr, err := r.ReadBytes(16)
	if err != nil {
		return types.Locator{}, err
	}
	l := types.Locator{Kind: types.LocatorKind(kind), Port: port}
	copy(l.Address[:], addr)
	return l, nil
}

// MarshalLocatorList writes a u32 count followed by each Locator.
func MarshalLocatorList(w *cdr.Writer, locs []types.Locator) {
	w.WriteSequenceLength(len(locs))
	for _, l := range locs {
		marshalLocator(w, l)
	}
}

func UnmarshalLocatorList(r *cdr.Reader) ([]types.Locator, error) {
	n, err := r.ReadSequenceLength()
	if err != nil {
		return nil, err
	}
	out := make([]types.Locator, 0, n)
	for i := 0; i < n; i++ {
		l, err := unmarshalLocator(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
