package discovery

import (
	"encoding/binary"
	"time"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/parameterlist"
	"rtpsgo/rtps/types"
)

// EncodeParticipantProxy serializes p as a PL_CDR_LE parameter list, the
// wire form of the SPDP participant announcement's data payload (spec.md
// §4.1/§4.8).
func EncodeParticipantProxy(p ParticipantProxy) []byte {
	w := cdr.NewWriter(cdr.LittleEndian)
	w.WriteEncapsulationHeader(cdr.PL_CDR_LE)

	var pl parameterlist.ParameterList
	pl.Add(parameterlist.PID_PROTOCOL_VERSION, []byte{p.ProtocolVersion.Major, p.ProtocolVersion.Minor})
	pl.Add(parameterlist.PID_VENDOR_ID, append([]byte(nil), p.VendorId[:]...))
	guid := types.GUID{Prefix: p.GuidPrefix, EntityId: types.EntityIdParticipant}
	pl.Add(parameterlist.PID_PARTICIPANT_GUID, encodeGuid(guid))
	if p.DomainTag != "" {
		pl.Add(parameterlist.PID_USER_DATA, []byte(p.DomainTag))
	}
	for _, l := range p.MetatrafficUnicastLocators {
		pl.Add(parameterlist.PID_METATRAFFIC_UNICAST_LOCATOR, encodeLocator(l))
	}
	for _, l := range p.MetatrafficMulticastLocators {
		pl.Add(parameterlist.PID_METATRAFFIC_MULTICAST_LOCATOR, encodeLocator(l))
	}
	for _, l := range p.DefaultUnicastLocators {
		pl.Add(parameterlist.PID_DEFAULT_UNICAST_LOCATOR, encodeLocator(l))
	}
	for _, l := range p.DefaultMulticastLocators {
		pl.Add(parameterlist.PID_DEFAULT_MULTICAST_LOCATOR, encodeLocator(l))
	}
	pl.Add(parameterlist.PID_BUILTIN_ENDPOINT_SET, encodeUint32(uint32(p.AvailableBuiltinEndpoints)))
	pl.Add(parameterlist.PID_PARTICIPANT_LEASE_DURATION, encodeDuration(p.LeaseDuration))

	parameterlist.Encode(w, pl)
	return w.Bytes()
}

// DecodeParticipantProxy parses an SPDP announcement payload. domain fills
// DomainId, which the payload does not carry; a missing lease duration
// defaults to 30s, and any other omitted field is left zero.
func DecodeParticipantProxy(payload []byte, domain types.DomainId) (ParticipantProxy, error) {
	r, _, err := cdr.NewReaderFromEncapsulation(payload)
	if err != nil {
		return ParticipantProxy{}, err
	}
	pl, err := parameterlist.Decode(r, parameterlist.AllRecognizedPIDs)
	if err != nil {
		return ParticipantProxy{}, err
	}

	p := ParticipantProxy{DomainId: domain, LeaseDuration: 30 * time.Second}
	if v, ok := pl.Get(parameterlist.PID_PROTOCOL_VERSION); ok && len(v) >= 2 {
		p.ProtocolVersion = types.ProtocolVersion{Major: v[0], Minor: v[1]}
	}
	if v, ok := pl.Get(parameterlist.PID_VENDOR_ID); ok && len(v) >= 2 {
		copy(p.VendorId[:], v)
	}
	if v, ok := pl.Get(parameterlist.PID_PARTICIPANT_GUID); ok {
		guid := decodeGuid(v)
		p.GuidPrefix = guid.Prefix
	}
	if v, ok := pl.Get(parameterlist.PID_USER_DATA); ok {
		p.DomainTag = string(v)
	}
	for _, param := range pl.Parameters {
		switch param.ID {
		case parameterlist.PID_METATRAFFIC_UNICAST_LOCATOR:
			p.MetatrafficUnicastLocators = append(p.MetatrafficUnicastLocators, decodeLocator(param.Value))
		case parameterlist.PID_METATRAFFIC_MULTICAST_LOCATOR:
			p.MetatrafficMulticastLocators = append(p.MetatrafficMulticastLocators, decodeLocator(param.Value))
		case parameterlist.PID_DEFAULT_UNICAST_LOCATOR:
			p.DefaultUnicastLocators = append(p.DefaultUnicastLocators, decodeLocator(param.Value))
		case parameterlist.PID_DEFAULT_MULTICAST_LOCATOR:
			p.DefaultMulticastLocators = append(p.DefaultMulticastLocators, decodeLocator(param.Value))
		}
	}
	if v, ok := pl.Get(parameterlist.PID_BUILTIN_ENDPOINT_SET); ok && len(v) >= 4 {
		p.AvailableBuiltinEndpoints = BuiltinEndpointSet(binary.BigEndian.Uint32(v))
	}
	if v, ok := pl.Get(parameterlist.PID_PARTICIPANT_LEASE_DURATION); ok {
		p.LeaseDuration = decodeDuration(v)
	}
	return p, nil
}

func encodeGuid(g types.GUID) []byte {
	b := make([]byte, 16)
	copy(b[0:12], g.Prefix[:])
	copy(b[12:16], g.EntityId[:])
	return b
}

func decodeGuid(b []byte) types.GUID {
	var g types.GUID
	if len(b) < 16 {
		return g
	}
	copy(g.Prefix[:], b[0:12])
	copy(g.EntityId[:], b[12:16])
	return g
}

func encodeLocator(l types.Locator) []byte {
	w := cdr.NewWriter(cdr.BigEndian)
	w.WriteInt32(int32(l.Kind))
	w.WriteUint32(l.Port)
	w.WriteBytes(l.Address[:])
	return w.Bytes()
}

func decodeLocator(b []byte) types.Locator {
	r := cdr.NewReader(b, cdr.BigEndian)
	kind, _ := r.ReadInt32()
	port, _ := r.ReadUint32()
	addr, _ := r.ReadBytes(16)
	var l types.Locator
	l.Kind = types.LocatorKind(kind)
	l.Port = port
	copy(l.Address[:], addr)
	return l
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func encodeDuration(d time.Duration) []byte {
	w := cdr.NewWriter(cdr.BigEndian)
	w.WriteInt32(int32(d / time.Second))
	w.WriteUint32(uint32(d % time.Second))
	return w.Bytes()
}

func decodeDuration(b []byte) time.Duration {
	if len(b) < 8 {
		return 0
	}
	sec := int32(binary.BigEndian.Uint32(b[0:4]))
	nsec := binary.BigEndian.Uint32(b[4:8])
	return time.Duration(sec)*time.Second + time.Duration(nsec)
}

// SPDPMulticastLocator returns the well-known multicast locator every
// participant in domain listens on for participant announcements
// (spec.md §6).
func SPDPMulticastLocator(domain types.DomainId) types.Locator {
	return types.LocatorFromUDPv4(types.SPDPMulticastAddress, types.SPDPMulticastPort(domain))
}
