package messages

import (
	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/types"
	"rtpsgo/rtpserr"
)

// Submessage ids (spec.md §4.1).
const (
	SubmessageIdPad           byte = 0x01
	SubmessageIdAckNack       byte = 0x06
	SubmessageIdHeartbeat     byte = 0x07
	SubmessageIdGap           byte = 0x08
	SubmessageIdInfoTs        byte = 0x09
	SubmessageIdInfoSrc       byte = 0x0c
	SubmessageIdInfoReplyIP4  byte = 0x0d
	SubmessageIdInfoDst       byte = 0x0e
	SubmessageIdInfoReply     byte = 0x0f
	SubmessageIdNackFrag      byte = 0x12
	SubmessageIdHeartbeatFrag byte = 0x13
	SubmessageIdData          byte = 0x15
	SubmessageIdDataFrag      byte = 0x16
)

const endiannessFlag byte = 0x01

// SubmessageHeader is the 4-byte header prefixing every submessage.
type SubmessageHeader struct {
	SubmessageId       byte
	Flags              byte
	OctetsToNextHeader uint16
}

func (h SubmessageHeader) Endianness() cdr.Endianness {
	if h.Flags&endiannessFlag != 0 {
		return cdr.LittleEndian
	}
	return cdr.BigEndian
}

func marshalSubmessageHeader(w *cdr.Writer, id, flags byte, octetsToNext uint16) {
	w.WriteByte(id)
	w.WriteByte(flags)
	w.WriteUint16(octetsToNext)
}

func unmarshalSubmessageHeader(r *cdr.Reader) (SubmessageHeader, error) {
	id, err := r.ReadByte()
	if err != nil {
		return SubmessageHeader{}, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return SubmessageHeader{}, err
	}
	// octets_to_next_header is always little/big per the submessage's own
	// endianness flag, read with the reader's configured order; we must
	// first read raw bytes then reinterpret per the submessage flag.
	b, err := r.ReadBytes(2)
	if err != nil {
		return SubmessageHeader{}, err
	}
	var octets uint16
	if flags&endiannessFlag != 0 {
		octets = uint16(b[0]) | uint16(b[1])<<8
	} else {
		octets = uint16(b[1]) | uint16(b[0])<<8
	}
	return SubmessageHeader{SubmessageId: id, Flags: flags, OctetsToNextHeader: octets}, nil
}

// RTPSHeader is the fixed header that begins every RTPS message: magic
// "RTPS" + ProtocolVersion(2) + VendorId(2) + GuidPrefix(12).
type RTPSHeader struct {
	Version    types.ProtocolVersion
	VendorId   types.VendorId
	GuidPrefix types.GuidPrefix
}

var rtpsMagic = [4]byte{'R', 'T', 'P', 'S'}

func marshalRTPSHeader(w *cdr.Writer, h RTPSHeader) {
	w.WriteBytes(rtpsMagic[:])
	w.WriteByte(h.Version.Major)
	w.WriteByte(h.Version.Minor)
	w.WriteBytes(h.VendorId[:])
	w.WriteBytes(h.GuidPrefix[:])
}

func unmarshalRTPSHeader(r *cdr.Reader) (RTPSHeader, error) {
	magic, err := r.ReadBytes(4)
	if err != nil {
		return RTPSHeader{}, err
	}
	if magic[0] != 'R' || magic[1] != 'T' || magic[2] != 'P' || magic[3] != 'S' {
		return RTPSHeader{}, rtpserr.ErrInvalidData
	}
	major, err := r.ReadByte()
	if err != nil {
		return RTPSHeader{}, err
	}
	minor, err := r.ReadByte()
	if err != nil {
		return RTPSHeader{}, err
	}
	vendor, err := r.ReadBytes(2)
	if err != nil {
		return RTPSHeader{}, err
	}
	prefix, err := unmarshalGuidPrefix(r)
	if err != nil {
		return RTPSHeader{}, err
	}
	var vid types.VendorId
	copy(vid[:], vendor)
	return RTPSHeader{
		Version:    types.ProtocolVersion{Major: major, Minor: minor},
		VendorId:   vid,
		GuidPrefix: prefix,
	}, nil
}

const RTPSHeaderLen = 20
