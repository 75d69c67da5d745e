// Package parameterlist implements PL_CDR Parameter List framing: a
// sequence of {PID:u16, length:u16, value} entries aligned to 4 bytes and
// terminated by PID_SENTINEL (spec.md §4.1).
package parameterlist

import (
	"rtpsgo/rtps/cdr"
	"rtpsgo/rtpserr"
)

// ParameterId identifies the semantic meaning of a parameter list entry.
type ParameterId uint16

// Recognized PIDs (spec.md §4.1). The high bit (0x8000) marks
// "must-understand": an unrecognized PID with that bit set rejects the
// whole list.
const (
	PID_PAD                             ParameterId = 0x0000
	PID_SENTINEL                        ParameterId = 0x0001
	PID_USER_DATA                       ParameterId = 0x002c
	PID_TOPIC_NAME                      ParameterId = 0x0005
	PID_TYPE_NAME                       ParameterId = 0x0007
	PID_DURABILITY                      ParameterId = 0x001d
	PID_DEADLINE                        ParameterId = 0x0023
	PID_LATENCY_BUDGET                  ParameterId = 0x0027
	PID_LIVELINESS                      ParameterId = 0x001b
	PID_RELIABILITY                     ParameterId = 0x001a
	PID_LIFESPAN                        ParameterId = 0x002b
	PID_DESTINATION_ORDER               ParameterId = 0x0025
	PID_HISTORY                         ParameterId = 0x0040
	PID_RESOURCE_LIMITS                 ParameterId = 0x0041
	PID_OWNERSHIP                       ParameterId = 0x001f
	PID_PRESENTATION                    ParameterId = 0x0021
	PID_PARTITION                       ParameterId = 0x0029
	PID_PROTOCOL_VERSION                ParameterId = 0x0015
	PID_VENDOR_ID                       ParameterId = 0x0016
	PID_UNICAST_LOCATOR                 ParameterId = 0x002f
	PID_MULTICAST_LOCATOR               ParameterId = 0x0030
	PID_DEFAULT_UNICAST_LOCATOR         ParameterId = 0x0031
	PID_DEFAULT_MULTICAST_LOCATOR       ParameterId = 0x0048
	PID_METATRAFFIC_UNICAST_LOCATOR     ParameterId = 0x0032
	PID_METATRAFFIC_MULTICAST_LOCATOR   ParameterId = 0x0033
	PID_PARTICIPANT_GUID                ParameterId = 0x0050
	PID_ENDPOINT_GUID                   ParameterId = 0x005a
	PID_PARTICIPANT_LEASE_DURATION      ParameterId = 0x0002
	PID_BUILTIN_ENDPOINT_SET            ParameterId = 0x0058
	PID_STATUS_INFO                     ParameterId = 0x0071
	PID_KEY_HASH                        ParameterId = 0x0070
)

const mustUnderstandBit ParameterId = 0x8000

// IsMustUnderstand reports whether the must-understand bit is set on pid.
func (pid ParameterId) IsMustUnderstand() bool {
	return pid&mustUnderstandBit != 0
}

// Parameter is a single {PID, value} entry of a ParameterList.
type Parameter struct {
	ID    ParameterId
	Value []byte
}

// ParameterList is an ordered sequence of Parameters, as exchanged inline in
// DATA submessages (inline QoS) and in SPDP/SEDP discovery payloads.
type ParameterList struct {
	Parameters []Parameter
}

// Get returns the first parameter with the given id, if present.
func (pl ParameterList) Get(id ParameterId) ([]byte, bool) {
	for _, p := range pl.Parameters {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

// Add appends a parameter.
func (pl *ParameterList) Add(id ParameterId, value []byte) {
	pl.Parameters = append(pl.Parameters, Parameter{ID: id, Value: value})
}

// Encode serializes the parameter list (without an encapsulation header) to
// w, terminating it with PID_SENTINEL. Every entry (and the list as a
// whole) is aligned to 4 bytes.
func Encode(w *cdr.Writer, pl ParameterList) {
	for _, p := range pl.Parameters {
		encodeOne(w, p)
	}
	w.WriteUint16(uint16(PID_SENTINEL))
	w.WriteUint16(0)
}

func encodeOne(w *cdr.Writer, p Parameter) {
	// Pad the parameter's value to a multiple of 4 before writing the
	// length, per the RTPS PL_CDR framing rule.
	padded := len(p.Value)
	if rem := padded % 4; rem != 0 {
		padded += 4 - rem
	}
	w.WriteUint16(uint16(p.ID))
	w.WriteUint16(uint16(padded))
	w.WriteBytes(p.Value)
	for i := len(p.Value); i < padded; i++ {
		w.WriteByte(0)
	}
}

// Decode parses a ParameterList from r, stopping at PID_SENTINEL. An
// unrecognized PID with the must-understand bit set aborts decoding with
// rtpserr.ErrInvalidData; other unrecognized PIDs are skipped.
func Decode(r *cdr.Reader, recognized map[ParameterId]bool) (ParameterList, error) {
	var pl ParameterList
	for {
		if r.Remaining() < 4 {
			return pl, rtpserr.ErrNotEnoughData
		}
		idRaw, err := r.ReadUint16()
		if err != nil {
			return pl, err
		}
		id := ParameterId(idRaw)
		length, err := r.ReadUint16()
		if err != nil {
			return pl, err
		}
		if id == PID_SENTINEL {
			return pl, nil
		}
		value, err := r.ReadBytes(int(length))
		if err != nil {
			return pl, err
		}
		if recognized != nil && !recognized[id&^mustUnderstandBit] && !recognized[id] {
			if id.IsMustUnderstand() {
				return pl, rtpserr.ErrInvalidData
			}
			continue
		}
		pl.Parameters = append(pl.Parameters, Parameter{ID: id, Value: value})
	}
}

// AllRecognizedPIDs is the set of PIDs this core understands; used as the
// default `recognized` set passed to Decode.
var AllRecognizedPIDs = map[ParameterId]bool{
	PID_USER_DATA:                     true,
	PID_TOPIC_NAME:                    true,
	PID_TYPE_NAME:                     true,
	PID_DURABILITY:                    true,
	PID_DEADLINE:                      true,
	PID_LATENCY_BUDGET:                true,
	PID_LIVELINESS:                    true,
	PID_RELIABILITY:                   true,
	PID_LIFESPAN:                      true,
	PID_DESTINATION_ORDER:             true,
	PID_HISTORY:                       true,
	PID_RESOURCE_LIMITS:               true,
	PID_OWNERSHIP:                     true,
	PID_PRESENTATION:                  true,
	PID_PARTITION:                     true,
	PID_PROTOCOL_VERSION:              true,
	PID_VENDOR_ID:                     true,
	PID_UNICAST_LOCATOR:               true,
	PID_MULTICAST_LOCATOR:             true,
	PID_DEFAULT_UNICAST_LOCATOR:       true,
	PID_DEFAULT_MULTICAST_LOCATOR:     true,
	PID_METATRAFFIC_UNICAST_LOCATOR:   true,
	PID_METATRAFFIC_MULTICAST_LOCATOR: true,
	PID_PARTICIPANT_GUID:              true,
	PID_ENDPOINT_GUID:                 true,
	PID_PARTICIPANT_LEASE_DURATION:    true,
	PID_BUILTIN_ENDPOINT_SET:          true,
	PID_STATUS_INFO:                  true,
	PID_KEY_HASH:                     true,
}
