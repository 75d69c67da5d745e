package messages

import (
	"time"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/types"
)

// Gap tells a reader that a range of sequence numbers will never be sent
// (e.g. because the writer evicted them before the reader asked).
type Gap struct {
	ReaderId     types.EntityId
	WriterId     types.EntityId
	GapStart     types.SequenceNumber
	GapList      SequenceNumberSet // base == gapListBase
}

func (Gap) submessageId() byte { return SubmessageIdGap }
func (Gap) flags() byte        { return 0 }

func (g Gap) marshalBody(w *cdr.Writer) {
	marshalEntityId(w, g.ReaderId)
	marshalEntityId(w, g.WriterId)
	high, low := g.GapStart.HighLow()
	w.WriteInt32(high)
	w.WriteUint32(low)
	g.GapList.Marshal(w)
}

func unmarshalGap(r *cdr.Reader) (Gap, error) {
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return Gap{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return Gap{}, err
	}
	high, err := r.ReadInt32()
	if err != nil {
		return Gap{}, err
	}
	low, err := r.ReadUint32()
	if err != nil {
		return Gap{}, err
	}
	list, err := UnmarshalSequenceNumberSet(r)
	if err != nil {
		return Gap{}, err
	}
	return Gap{
		ReaderId: readerId,
		WriterId: writerId,
		GapStart: types.SequenceNumberFromHighLow(high, low),
		GapList:  list,
	}, nil
}

// Heartbeat flags.
const (
	heartbeatFlagFinal      byte = 0x02
	heartbeatFlagLiveliness byte = 0x04
)

// Heartbeat announces the range of sequence numbers a writer currently
// holds, driving reader-side ACKNACK generation (spec.md §4.4/§4.6).
type Heartbeat struct {
	ReaderId    types.EntityId
	WriterId    types.EntityId
	FirstSN     types.SequenceNumber
	LastSN      types.SequenceNumber
	Count       types.Count
	Final       bool
	Liveliness  bool
}

func (Heartbeat) submessageId() byte { return SubmessageIdHeartbeat }

func (h Heartbeat) flags() byte {
	var f byte
	if h.Final {
		f |= heartbeatFlagFinal
	}
	if h.Liveliness {
		f |= heartbeatFlagLiveliness
	}
	return f
}

func (h Heartbeat) marshalBody(w *cdr.Writer) {
	marshalEntityId(w, h.ReaderId)
	marshalEntityId(w, h.WriterId)
	fh, fl := h.FirstSN.HighLow()
	w.WriteInt32(fh)
	w.WriteUint32(fl)
	lh, ll := h.LastSN.HighLow()
	w.WriteInt32(lh)
	w.WriteUint32(ll)
	w.WriteInt32(int32(h.Count))
}

func unmarshalHeartbeat(r *cdr.Reader, flags byte) (Heartbeat, error) {
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return Heartbeat{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return Heartbeat{}, err
	}
	fh, err := r.ReadInt32()
	if err != nil {
		return Heartbeat{}, err
	}
	fl, err := r.ReadUint32()
	if err != nil {
		return Heartbeat{}, err
	}
	lh, err := r.ReadInt32()
	if err != nil {
		return Heartbeat{}, err
	}
	ll, err := r.ReadUint32()
	if err != nil {
		return Heartbeat{}, err
	}
	count, err := r.ReadInt32()
	if err != nil {
		return Heartbeat{}, err
	}
	return Heartbeat{
		ReaderId:   readerId,
		WriterId:   writerId,
		FirstSN:    types.SequenceNumberFromHighLow(fh, fl),
		LastSN:     types.SequenceNumberFromHighLow(lh, ll),
		Count:      types.Count(count),
		Final:      flags&heartbeatFlagFinal != 0,
		Liveliness: flags&heartbeatFlagLiveliness != 0,
	}, nil
}

// HeartbeatFrag tells a reader how many fragments of an in-progress change
// the writer has available, for partially-sent large changes.
type HeartbeatFrag struct {
	ReaderId        types.EntityId
	WriterId        types.EntityId
	WriterSN        types.SequenceNumber
	LastFragmentNum uint32
	Count           types.Count
}

func (HeartbeatFrag) submessageId() byte { return SubmessageIdHeartbeatFrag }
func (HeartbeatFrag) flags() byte        { return 0 }

func (h HeartbeatFrag) marshalBody(w *cdr.Writer) {
	marshalEntityId(w, h.ReaderId)
	marshalEntityId(w, h.WriterId)
	sh, sl := h.WriterSN.HighLow()
	w.WriteInt32(sh)
	w.WriteUint32(sl)
	w.WriteUint32(h.LastFragmentNum)
	w.WriteInt32(int32(h.Count))
}

func unmarshalHeartbeatFrag(r *cdr.Reader) (HeartbeatFrag, error) {
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return HeartbeatFrag{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return HeartbeatFrag{}, err
	}
	sh, err := r.ReadInt32()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	sl, err := r.ReadUint32()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	last, err := r.ReadUint32()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	count, err := r.ReadInt32()
	if err != nil {
		return HeartbeatFrag{}, err
	}
	return HeartbeatFrag{
		ReaderId:        readerId,
		WriterId:        writerId,
		WriterSN:        types.SequenceNumberFromHighLow(sh, sl),
		LastFragmentNum: last,
		Count:           types.Count(count),
	}, nil
}

// AckNack flags.
const ackNackFlagFinal byte = 0x02

// AckNack acknowledges received sequence numbers and requests missing ones
// (spec.md §4.6).
type AckNack struct {
	ReaderId     types.EntityId
	WriterId     types.EntityId
	ReaderSNState SequenceNumberSet
	Count         types.Count
	Final         bool
}

func (AckNack) submessageId() byte { return SubmessageIdAckNack }

func (a AckNack) flags() byte {
	if a.Final {
		return ackNackFlagFinal
	}
	return 0
}

func (a AckNack) marshalBody(w *cdr.Writer) {
	marshalEntityId(w, a.ReaderId)
	marshalEntityId(w, a.WriterId)
	a.ReaderSNState.Marshal(w)
	w.WriteInt32(int32(a.Count))
}

func unmarshalAckNack(r *cdr.Reader, flags byte) (AckNack, error) {
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return AckNack{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return AckNack{}, err
	}
	state, err := UnmarshalSequenceNumberSet(r)
	if err != nil {
		return AckNack{}, err
	}
	count, err := r.ReadInt32()
	if err != nil {
		return AckNack{}, err
	}
	return AckNack{
		ReaderId:      readerId,
		WriterId:      writerId,
		ReaderSNState: state,
		Count:         types.Count(count),
		Final:         flags&ackNackFlagFinal != 0,
	}, nil
}

// NackFrag requests retransmission of specific fragments of a partially
// received change.
type NackFrag struct {
	ReaderId       types.EntityId
	WriterId       types.EntityId
	WriterSN       types.SequenceNumber
	FragmentNumberState FragmentNumberSet
	Count          types.Count
}

func (NackFrag) submessageId() byte { return SubmessageIdNackFrag }
func (NackFrag) flags() byte        { return 0 }

func (n NackFrag) marshalBody(w *cdr.Writer) {
	marshalEntityId(w, n.ReaderId)
	marshalEntityId(w, n.WriterId)
	sh, sl := n.WriterSN.HighLow()
	w.WriteInt32(sh)
	w.WriteUint32(sl)
	n.FragmentNumberState.Marshal(w)
	w.WriteInt32(int32(n.Count))
}

func unmarshalNackFrag(r *cdr.Reader) (NackFrag, error) {
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return NackFrag{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return NackFrag{}, err
	}
	sh, err := r.ReadInt32()
	if err != nil {
		return NackFrag{}, err
	}
	sl, err := r.ReadUint32()
	if err != nil {
		return NackFrag{}, err
	}
	state, err := UnmarshalFragmentNumberSet(r)
	if err != nil {
		return NackFrag{}, err
	}
	count, err := r.ReadInt32()
	if err != nil {
		return NackFrag{}, err
	}
	return NackFrag{
		ReaderId:            readerId,
		WriterId:            writerId,
		WriterSN:            types.SequenceNumberFromHighLow(sh, sl),
		FragmentNumberState: state,
		Count:               types.Count(count),
	}, nil
}

// Pad is a no-op submessage used for alignment padding.
type Pad struct{}

func (Pad) submessageId() byte          { return SubmessageIdPad }
func (Pad) flags() byte                 { return 0 }
func (Pad) marshalBody(w *cdr.Writer)   {}
func unmarshalPad(r *cdr.Reader) (Pad, error) { return Pad{}, nil }

// InfoTs carries the source timestamp applied to subsequent submessages in
// the same message; the invalidate flag clears a previously set timestamp.
const infoTsFlagInvalidate byte = 0x02

type InfoTs struct {
	Timestamp  time.Time
	Invalidate bool
}

func (InfoTs) submessageId() byte { return SubmessageIdInfoTs }

func (t InfoTs) flags() byte {
	if t.Invalidate {
		return infoTsFlagInvalidate
	}
	return 0
}

func (t InfoTs) marshalBody(w *cdr.Writer) {
	if t.Invalidate {
		return
	}
	sec, fraction := toRTPSTime(t.Timestamp)
	w.WriteInt32(sec)
	w.WriteUint32(fraction)
}

func unmarshalInfoTs(r *cdr.Reader, flags byte) (InfoTs, error) {
	if flags&infoTsFlagInvalidate != 0 {
		return InfoTs{Invalidate: true}, nil
	}
	sec, err := r.ReadInt32()
	if err != nil {
		return InfoTs{}, err
	}
	frac, err := r.ReadUint32()
	if err != nil {
		return InfoTs{}, err
	}
	return InfoTs{Timestamp: fromRTPSTime(sec, frac)}, nil
}

// toRTPSTime/fromRTPSTime convert to/from the RTPS (i32 seconds, u32
// fraction-of-second in 2^-32ths) timestamp representation.
func toRTPSTime(t time.Time) (int32, uint32) {
	sec := t.Unix()
	nsec := t.Nanosecond()
	fraction := uint32((uint64(nsec) << 32) / 1_000_000_000)
	return int32(sec), fraction
}

func fromRTPSTime(sec int32, fraction uint32) time.Time {
	nsec := (uint64(fraction) * 1_000_000_000) >> 32
	return time.Unix(int64(sec), int64(nsec)).UTC()
}

// InfoSrc overrides the apparent source GuidPrefix/version/vendor of
// subsequent submessages (used when relaying).
type InfoSrc struct {
	ProtocolVersion types.ProtocolVersion
	VendorId        types.VendorId
	GuidPrefix      types.GuidPrefix
}

func (InfoSrc) submessageId() byte { return SubmessageIdInfoSrc }
func (InfoSrc) flags() byte        { return 0 }

func (s InfoSrc) marshalBody(w *cdr.Writer) {
	w.WriteUint32(0) // unused
	w.WriteByte(s.ProtocolVersion.Major)
	w.WriteByte(s.ProtocolVersion.Minor)
	w.WriteBytes(s.VendorId[:])
	marshalGuidPrefix(w, s.GuidPrefix)
}

func unmarshalInfoSrc(r *cdr.Reader) (InfoSrc, error) {
	if _, err := r.ReadUint32(); err != nil {
		return InfoSrc{}, err
	}
	major, err := r.ReadByte()
	if err != nil {
		return InfoSrc{}, err
	}
	minor, err := r.ReadByte()
	if err != nil {
		return InfoSrc{}, err
	}
	vendor, err := r.ReadBytes(2)
	if err != nil {
		return InfoSrc{}, err
	}
	prefix, err := unmarshalGuidPrefix(r)
	if err != nil {
		return InfoSrc{}, err
	}
	var vid types.VendorId
	copy(vid[:], vendor)
	return InfoSrc{
		ProtocolVersion: types.ProtocolVersion{Major: major, Minor: minor},
		VendorId:        vid,
		GuidPrefix:      prefix,
	}, nil
}

// InfoDst sets the destination GuidPrefix for subsequent submessages,
// directing a message sent to a multicast/shared locator at one participant.
type InfoDst struct {
	GuidPrefix types.GuidPrefix
}

func (InfoDst) submessageId() byte { return SubmessageIdInfoDst }
func (InfoDst) flags() byte        { return 0 }

func (d InfoDst) marshalBody(w *cdr.Writer) { marshalGuidPrefix(w, d.GuidPrefix) }

func unmarshalInfoDst(r *cdr.Reader) (InfoDst, error) {
	prefix, err := unmarshalGuidPrefix(r)
	if err != nil {
		return InfoDst{}, err
	}
	return InfoDst{GuidPrefix: prefix}, nil
}

// InfoReply supplies locators subsequent submessages' senders should use to
// reply, when they differ from the sending locator.
const infoReplyFlagMulticast byte = 0x02

type InfoReply struct {
	UnicastLocatorList   []types.Locator
	MulticastLocatorList []types.Locator
	HasMulticast         bool
}

func (InfoReply) submessageId() byte { return SubmessageIdInfoReply }

func (r InfoReply) flags() byte {
	if r.HasMulticast {
		return infoReplyFlagMulticast
	}
	return 0
}

func (ir InfoReply) marshalBody(w *cdr.Writer) {
	MarshalLocatorList(w, ir.UnicastLocatorList)
	if ir.HasMulticast {
		MarshalLocatorList(w, ir.MulticastLocatorList)
	}
}

func unmarshalInfoReply(r *cdr.Reader, flags byte) (InfoReply, error) {
	uni, err := UnmarshalLocatorList(r)
	if err != nil {
		return InfoReply{}, err
	}
	ir := InfoReply{UnicastLocatorList: uni}
	if flags&infoReplyFlagMulticast != 0 {
		multi, err := UnmarshalLocatorList(r)
		if err != nil {
			return InfoReply{}, err
		}
		ir.MulticastLocatorList = multi
		ir.HasMulticast = true
	}
	return ir, nil
}
