// Package messages implements RTPS submessage framing and the full
// message envelope (spec.md §4.1): magic "RTPS" + version + vendor +
// GuidPrefix followed by a sequence of length-delimited submessages.
package messages

import (
	"rtpsgo/rtps/cdr"
	"rtpsgo/rtpserr"
)

// SubmessageBody is implemented by every concrete submessage payload type.
type SubmessageBody interface {
	submessageId() byte
	flags() byte
	marshalBody(w *cdr.Writer)
}

// Submessage pairs a decoded header with its typed body. Body is nil (and
// Unknown is true) for submessage ids this codec doesn't recognize, which
// decoding skips via OctetsToNextHeader rather than rejecting the message
// (spec.md §4.1: "Decoding must tolerate unknown submessage ids").
type Submessage struct {
	Header  SubmessageHeader
	Body    SubmessageBody
	Unknown bool
}

// Message is a full RTPS datagram: header plus an ordered submessage list.
type Message struct {
	Header      RTPSHeader
	Submessages []Submessage
}

// Marshal encodes m using the given byte order for every submessage.
func Marshal(m Message, order cdr.Endianness) []byte {
	w := cdr.NewWriter(order)
	marshalRTPSHeader(w, m.Header)
	for i, sm := range m.Submessages {
		marshalSubmessage(w, sm.Body, order, i == len(m.Submessages)-1)
	}
	return w.Bytes()
}

func marshalSubmessage(w *cdr.Writer, body SubmessageBody, order cdr.Endianness, isLast bool) {
	flags := body.flags()
	if order == cdr.LittleEndian {
		flags |= endiannessFlag
	}

	// Encode the body into a scratch writer first so we can compute
	// octets_to_next_header.
	scratch := cdr.NewWriter(order)
	body.marshalBody(scratch)
	payload := scratch.Bytes()

	octets := uint16(len(payload))
	if isLast && (body.submessageId() == SubmessageIdData || body.submessageId() == SubmessageIdDataFrag) {
		octets = 0
	}

	marshalSubmessageHeader(w, body.submessageId(), flags, octets)
	w.WriteBytes(payload)
}

// Parse decodes a full RTPS message from buf, skipping (but preserving as
// Unknown) any submessage whose id this codec doesn't recognize, and
// dropping any submessage whose body fails to decode while still decoding
// the ones after it. An error is returned only when the RTPS header or a
// submessage header or length is malformed.
func Parse(buf []byte) (Message, error) {
	r := cdr.NewReader(buf, cdr.BigEndian)
	header, err := unmarshalRTPSHeader(r)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Header: header}
	for r.Remaining() > 0 {
		if r.Remaining() < 4 {
			break
		}
		smHeader, err := unmarshalSubmessageHeader(r)
		if err != nil {
			return msg, err
		}
		order := smHeader.Endianness()

		var bodyLen int
		if smHeader.OctetsToNextHeader == 0 {
			bodyLen = r.Remaining()
		} else {
			bodyLen = int(smHeader.OctetsToNextHeader)
		}
		if bodyLen > r.Remaining() {
			return msg, rtpserr.ErrNotEnoughData
		}
		bodyBytes, err := r.ReadBytes(bodyLen)
		if err != nil {
			return msg, err
		}

		body, unknown, err := decodeBody(smHeader, bodyBytes, order)
		if err != nil {
			// The body's length is known, so only this submessage is lost.
			continue
		}
		msg.Submessages = append(msg.Submessages, Submessage{Header: smHeader, Body: body, Unknown: unknown})
	}
	return msg, nil
}

func decodeBody(h SubmessageHeader, buf []byte, order cdr.Endianness) (SubmessageBody, bool, error) {
	br := cdr.NewReader(buf, order)
	switch h.SubmessageId {
	case SubmessageIdPad:
		b, err := unmarshalPad(br)
		return b, false, err
	case SubmessageIdAckNack:
		b, err := unmarshalAckNack(br, h.Flags)
		return b, false, err
	case SubmessageIdHeartbeat:
		b, err := unmarshalHeartbeat(br, h.Flags)
		return b, false, err
	case SubmessageIdGap:
		b, err := unmarshalGap(br)
		return b, false, err
	case SubmessageIdInfoTs:
		b, err := unmarshalInfoTs(br, h.Flags)
		return b, false, err
	case SubmessageIdInfoSrc:
		b, err := unmarshalInfoSrc(br)
		return b, false, err
	case SubmessageIdInfoDst:
		b, err := unmarshalInfoDst(br)
		return b, false, err
	case SubmessageIdInfoReply:
		b, err := unmarshalInfoReply(br, h.Flags)
		return b, false, err
	case SubmessageIdNackFrag:
		b, err := unmarshalNackFrag(br)
		return b, false, err
	case SubmessageIdHeartbeatFrag:
		b, err := unmarshalHeartbeatFrag(br)
		return b, false, err
	case SubmessageIdData:
		b, err := unmarshalData(br, h.Flags)
		return b, false, err
	case SubmessageIdDataFrag:
		b, err := unmarshalDataFrag(br, h.Flags)
		return b, false, err
	default:
		return nil, true, nil
	}
}
