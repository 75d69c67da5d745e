package messages

import (
	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/parameterlist"
	"rtpsgo/rtps/types"
)

// Data flags (bit 0 is the shared endianness flag).
const (
	dataFlagInlineQos byte = 0x02
	dataFlagData      byte = 0x04
	dataFlagKey       byte = 0x08
)

// Data carries one cache-change's serialized payload (spec.md §4.1).
type Data struct {
	ReaderId            types.EntityId
	WriterId            types.EntityId
	WriterSN            types.SequenceNumber
	InlineQos           parameterlist.ParameterList
	HasInlineQos        bool
	SerializedPayload    []byte // encapsulated CDR payload, or key-only bytes when Key is true
	HasPayload           bool
	Key                  bool
}

func (Data) submessageId() byte { return SubmessageIdData }

func (d Data) flags() byte {
	var f byte
	if d.HasInlineQos {
		f |= dataFlagInlineQos
	}
	if d.HasPayload {
		f |= dataFlagData
	}
	if d.Key {
		f |= dataFlagKey
	}
	return f
}

func (d Data) marshalBody(w *cdr.Writer) {
	w.WriteUint16(0) // extraFlags
	w.WriteInt16(0)  // octetsToInlineQos placeholder omitted: readers don't need it for this codec
	marshalEntityId(w, d.ReaderId)
	marshalEntityId(w, d.WriterId)
	high, low := d.WriterSN.HighLow()
	w.WriteInt32(high)
	w.WriteUint32(low)
	if d.HasInlineQos {
		parameterlist.Encode(w, d.InlineQos)
	}
	if d.HasPayload {
		w.WriteBytes(d.SerializedPayload)
	}
}

func unmarshalData(r *cdr.Reader, flags byte) (Data, error) {
	if _, err := r.ReadUint16(); err != nil { // extraFlags
		return Data{}, err
	}
	if _, err := r.ReadInt16(); err != nil { // octetsToInlineQos
		return Data{}, err
	}
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return Data{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return Data{}, err
	}
	high, err := r.ReadInt32()
	if err != nil {
		return Data{}, err
	}
	low, err := r.ReadUint32()
	if err != nil {
		return Data{}, err
	}
	d := Data{
		ReaderId: readerId,
		WriterId: writerId,
		WriterSN: types.SequenceNumberFromHighLow(high, low),
		HasInlineQos: flags&dataFlagInlineQos != 0,
		HasPayload:   flags&dataFlagData != 0,
		Key:          flags&dataFlagKey != 0,
	}
	if d.HasInlineQos {
		pl, err := parameterlist.Decode(r, parameterlist.AllRecognizedPIDs)
		if err != nil {
			return Data{}, err
		}
		d.InlineQos = pl
	}
	if d.HasPayload {
		payload, err := r.ReadBytes(r.Remaining())
		if err != nil {
			return Data{}, err
		}
		d.SerializedPayload = append([]byte(nil), payload...)
	}
	return d, nil
}

// DataFrag carries one fragment of an oversized payload (spec.md §4.4).
const (
	dataFragFlagInlineQos byte = 0x02
	dataFragFlagKey       byte = 0x04
)

type DataFrag struct {
	ReaderId            types.EntityId
	WriterId            types.EntityId
	WriterSN            types.SequenceNumber
	FragmentStartingNum uint32 // 1-based
	FragmentsInSubmessage uint16
	FragmentSize          uint16
	DataSize              uint32 // total unfragmented payload size
	InlineQos             parameterlist.ParameterList
	HasInlineQos          bool
	SerializedPayload     []byte
	Key                   bool
}

func (DataFrag) submessageId() byte { return SubmessageIdDataFrag }

func (d DataFrag) flags() byte {
	var f byte
	if d.HasInlineQos {
		f |= dataFragFlagInlineQos
	}
	if d.Key {
		f |= dataFragFlagKey
	}
	return f
}

func (d DataFrag) marshalBody(w *cdr.Writer) {
	w.WriteUint16(0) // extraFlags
	w.WriteInt16(0)  // octetsToInlineQos
	marshalEntityId(w, d.ReaderId)
	marshalEntityId(w, d.WriterId)
	high, low := d.WriterSN.HighLow()
	w.WriteInt32(high)
	w.WriteUint32(low)
	w.WriteUint32(d.FragmentStartingNum)
	w.WriteUint16(d.FragmentsInSubmessage)
	w.WriteUint16(d.FragmentSize)
	w.WriteUint32(d.DataSize)
	if d.HasInlineQos {
		parameterlist.Encode(w, d.InlineQos)
	}
	w.WriteBytes(d.SerializedPayload)
}

func unmarshalDataFrag(r *cdr.Reader, flags byte) (DataFrag, error) {
	if _, err := r.ReadUint16(); err != nil {
		return DataFrag{}, err
	}
	if _, err := r.ReadInt16(); err != nil {
		return DataFrag{}, err
	}
	readerId, err := unmarshalEntityId(r)
	if err != nil {
		return DataFrag{}, err
	}
	writerId, err := unmarshalEntityId(r)
	if err != nil {
		return DataFrag{}, err
	}
	high, err := r.ReadInt32()
	if err != nil {
		return DataFrag{}, err
	}
	low, err := r.ReadUint32()
	if err != nil {
		return DataFrag{}, err
	}
	fragStart, err := r.ReadUint32()
	if err != nil {
		return DataFrag{}, err
	}
	fragsIn, err := r.ReadUint16()
	if err != nil {
		return DataFrag{}, err
	}
	fragSize, err := r.ReadUint16()
	if err != nil {
		return DataFrag{}, err
	}
	dataSize, err := r.ReadUint32()
	if err != nil {
		return DataFrag{}, err
	}
	d := DataFrag{
		ReaderId:            readerId,
		WriterId:            writerId,
		WriterSN:            types.SequenceNumberFromHighLow(high, low),
		FragmentStartingNum: fragStart,
		FragmentsInSubmessage: fragsIn,
		FragmentSize:          fragSize,
		DataSize:              dataSize,
		HasInlineQos:          flags&dataFragFlagInlineQos != 0,
		Key:                   flags&dataFragFlagKey != 0,
	}
	if d.HasInlineQos {
		pl, err := parameterlist.Decode(r, parameterlist.AllRecognizedPIDs)
		if err != nil {
			return DataFrag{}, err
		}
		d.InlineQos = pl
	}
	payload, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return DataFrag{}, err
	}
	d.SerializedPayload = append([]byte(nil), payload...)
	return d, nil
}
