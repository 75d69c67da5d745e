package discovery

import (
	"encoding/binary"
	"time"

	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/parameterlist"
	"rtpsgo/rtps/qos"
)

// EncodeDiscoveredWriterData serializes a publication announcement as a
// PL_CDR_LE parameter list (spec.md §4.8).
func EncodeDiscoveredWriterData(d DiscoveredWriterData) []byte {
	w := cdr.NewWriter(cdr.LittleEndian)
	w.WriteEncapsulationHeader(cdr.PL_CDR_LE)

	var pl parameterlist.ParameterList
	pl.Add(parameterlist.PID_ENDPOINT_GUID, encodeGuid(d.WriterGuid))
	pl.Add(parameterlist.PID_TOPIC_NAME, encodeString(d.TopicName))
	pl.Add(parameterlist.PID_TYPE_NAME, encodeString(d.TypeName))
	encodeEndpointQos(&pl, d.Qos)
	for _, l := range d.UnicastLocators {
		pl.Add(parameterlist.PID_UNICAST_LOCATOR, encodeLocator(l))
	}
	for _, l := range d.MulticastLocators {
		pl.Add(parameterlist.PID_MULTICAST_LOCATOR, encodeLocator(l))
	}
	parameterlist.Encode(w, pl)
	return w.Bytes()
}

// DecodeDiscoveredWriterData parses a publication announcement payload.
func DecodeDiscoveredWriterData(payload []byte) (DiscoveredWriterData, error) {
	r, _, err := cdr.NewReaderFromEncapsulation(payload)
	if err != nil {
		return DiscoveredWriterData{}, err
	}
	pl, err := parameterlist.Decode(r, parameterlist.AllRecognizedPIDs)
	if err != nil {
		return DiscoveredWriterData{}, err
	}
	var d DiscoveredWriterData
	if v, ok := pl.Get(parameterlist.PID_ENDPOINT_GUID); ok {
		d.WriterGuid = decodeGuid(v)
	}
	if v, ok := pl.Get(parameterlist.PID_TOPIC_NAME); ok {
		d.TopicName = string(v)
	}
	if v, ok := pl.Get(parameterlist.PID_TYPE_NAME); ok {
		d.TypeName = string(v)
	}
	d.Qos = decodeEndpointQos(pl)
	for _, param := range pl.Parameters {
		switch param.ID {
		case parameterlist.PID_UNICAST_LOCATOR:
			d.UnicastLocators = append(d.UnicastLocators, decodeLocator(param.Value))
		case parameterlist.PID_MULTICAST_LOCATOR:
			d.MulticastLocators = append(d.MulticastLocators, decodeLocator(param.Value))
		}
	}
	return d, nil
}

// EncodeDiscoveredReaderData serializes a subscription announcement.
func EncodeDiscoveredReaderData(d DiscoveredReaderData) []byte {
	w := cdr.NewWriter(cdr.LittleEndian)
	w.WriteEncapsulationHeader(cdr.PL_CDR_LE)

	var pl parameterlist.ParameterList
	pl.Add(parameterlist.PID_ENDPOINT_GUID, encodeGuid(d.ReaderGuid))
	pl.Add(parameterlist.PID_TOPIC_NAME, encodeString(d.TopicName))
	pl.Add(parameterlist.PID_TYPE_NAME, encodeString(d.TypeName))
	encodeEndpointQos(&pl, d.Qos)
	for _, l := range d.UnicastLocators {
		pl.Add(parameterlist.PID_UNICAST_LOCATOR, encodeLocator(l))
	}
	for _, l := range d.MulticastLocators {
		pl.Add(parameterlist.PID_MULTICAST_LOCATOR, encodeLocator(l))
	}
	parameterlist.Encode(w, pl)
	return w.Bytes()
}

// DecodeDiscoveredReaderData parses a subscription announcement payload.
func DecodeDiscoveredReaderData(payload []byte) (DiscoveredReaderData, error) {
	r, _, err := cdr.NewReaderFromEncapsulation(payload)
	if err != nil {
		return DiscoveredReaderData{}, err
	}
	pl, err := parameterlist.Decode(r, parameterlist.AllRecognizedPIDs)
	if err != nil {
		return DiscoveredReaderData{}, err
	}
	var d DiscoveredReaderData
	if v, ok := pl.Get(parameterlist.PID_ENDPOINT_GUID); ok {
		d.ReaderGuid = decodeGuid(v)
	}
	if v, ok := pl.Get(parameterlist.PID_TOPIC_NAME); ok {
		d.TopicName = string(v)
	}
	if v, ok := pl.Get(parameterlist.PID_TYPE_NAME); ok {
		d.TypeName = string(v)
	}
	d.Qos = decodeEndpointQos(pl)
	for _, param := range pl.Parameters {
		switch param.ID {
		case parameterlist.PID_UNICAST_LOCATOR:
			d.UnicastLocators = append(d.UnicastLocators, decodeLocator(param.Value))
		case parameterlist.PID_MULTICAST_LOCATOR:
			d.MulticastLocators = append(d.MulticastLocators, decodeLocator(param.Value))
		}
	}
	return d, nil
}

// encodeEndpointQos writes the subset of EndpointQos that drives SEDP
// compatibility matching (spec.md §4.9): reliability, durability, deadline,
// latency budget, ownership and presentation access scope.
func encodeEndpointQos(pl *parameterlist.ParameterList, q qos.EndpointQos) {
	pl.Add(parameterlist.PID_RELIABILITY, []byte{byte(q.Reliability.Kind)})
	pl.Add(parameterlist.PID_DURABILITY, []byte{byte(q.Durability.Kind)})
	pl.Add(parameterlist.PID_DEADLINE, encodeUint32(uint32(q.Deadline.Period)))
	pl.Add(parameterlist.PID_LATENCY_BUDGET, encodeUint32(uint32(q.LatencyBudget.Duration)))
	ownership := make([]byte, 5)
	ownership[0] = byte(q.Ownership.Kind)
	binary.BigEndian.PutUint32(ownership[1:], uint32(q.Ownership.Strength))
	pl.Add(parameterlist.PID_OWNERSHIP, ownership)
	pl.Add(parameterlist.PID_PRESENTATION, []byte{byte(q.Presentation.AccessScope)})
}

func decodeEndpointQos(pl parameterlist.ParameterList) qos.EndpointQos {
	q := qos.Default()
	if v, ok := pl.Get(parameterlist.PID_RELIABILITY); ok && len(v) >= 1 {
		q.Reliability.Kind = qos.ReliabilityKind(v[0])
	}
	if v, ok := pl.Get(parameterlist.PID_DURABILITY); ok && len(v) >= 1 {
		q.Durability.Kind = qos.DurabilityKind(v[0])
	}
	if v, ok := pl.Get(parameterlist.PID_DEADLINE); ok && len(v) >= 4 {
		q.Deadline.Period = time.Duration(binary.BigEndian.Uint32(v))
	}
	if v, ok := pl.Get(parameterlist.PID_LATENCY_BUDGET); ok && len(v) >= 4 {
		q.LatencyBudget.Duration = time.Duration(binary.BigEndian.Uint32(v))
	}
	if v, ok := pl.Get(parameterlist.PID_OWNERSHIP); ok && len(v) >= 5 {
		q.Ownership.Kind = qos.OwnershipKind(v[0])
		q.Ownership.Strength = int32(binary.BigEndian.Uint32(v[1:]))
	}
	if v, ok := pl.Get(parameterlist.PID_PRESENTATION); ok && len(v) >= 1 {
		q.Presentation.AccessScope = qos.PresentationAccessScope(v[0])
	}
	return q
}

func encodeString(s string) []byte { return append([]byte(s), 0) }
