package endpoint

import (
	"rtpsgo/rtps/cdr"
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/parameterlist"
	"rtpsgo/rtps/types"
)

// OutboundData is a ready-to-send submessage (DATA, DATA_FRAG or GAP) plus the
// locators it should go to.
type OutboundData struct {
	Locators []types.Locator
	Body     messages.SubmessageBody
}

// buildOutbound converts one cache-change into the submessage(s) it goes
// out as. A dispose/unregister change is sent keyed, with empty payload and
// a STATUS_INFO/KEY_HASH inline QoS pair identifying which instance and
// which transition it marks (spec.md §3/§4.1/§4.6), since the remote side
// must never mistake it for an ordinary ALIVE sample. An ALIVE change
// whose payload exceeds fragmentSize is split into DATA_FRAG fragments of
// exactly fragmentSize bytes except the last (spec.md §4.4); fragmentSize
// <= 0 disables fragmentation.
func buildOutbound(change history.CacheChange, sn types.SequenceNumber, readerId, writerId types.EntityId, locs []types.Locator, fragmentSize uint16) []OutboundData {
	pl := decodeInlineQos(change.InlineQos)

	if change.Kind != types.ChangeKindAlive {
		if sip, ok := messages.StatusInfoParameter(change.Kind); ok {
			pl.Add(sip.ID, sip.Value)
		}
		pl.Add(parameterlist.PID_KEY_HASH, change.InstanceHandle[:])
		data := messages.Data{
			ReaderId:     readerId,
			WriterId:     writerId,
			WriterSN:     sn,
			Key:          true,
			HasInlineQos: true,
			InlineQos:    pl,
		}
		return []OutboundData{{Locators: locs, Body: data}}
	}

	if fragmentSize > 0 && len(change.DataPayload) > int(fragmentSize) {
		return fragmentOutbound(change, sn, readerId, writerId, locs, fragmentSize, pl)
	}

	data := messages.Data{
		ReaderId:          readerId,
		WriterId:          writerId,
		WriterSN:          sn,
		SerializedPayload: change.DataPayload,
		HasPayload:        len(change.DataPayload) > 0,
	}
	if len(pl.Parameters) > 0 {
		data.InlineQos = pl
		data.HasInlineQos = true
	}
	return []OutboundData{{Locators: locs, Body: data}}
}

func decodeInlineQos(encoded []byte) parameterlist.ParameterList {
	if len(encoded) == 0 {
		return parameterlist.ParameterList{}
	}
	pl, err := parameterlist.Decode(cdr.NewReader(encoded, cdr.BigEndian), parameterlist.AllRecognizedPIDs)
	if err != nil {
		return parameterlist.ParameterList{}
	}
	return pl
}

func fragmentOutbound(change history.CacheChange, sn types.SequenceNumber, readerId, writerId types.EntityId, locs []types.Locator, fragmentSize uint16, pl parameterlist.ParameterList) []OutboundData {
	payload := change.DataPayload
	dataSize := uint32(len(payload))
	out := make([]OutboundData, 0, (len(payload)+int(fragmentSize)-1)/int(fragmentSize))
	fragNum := uint32(1)
	for offset := 0; offset < len(payload); offset += int(fragmentSize) {
		end := offset + int(fragmentSize)
		if end > len(payload) {
			end = len(payload)
		}
		frag := messages.DataFrag{
			ReaderId:              readerId,
			WriterId:              writerId,
			WriterSN:              sn,
			FragmentStartingNum:   fragNum,
			FragmentsInSubmessage: 1,
			FragmentSize:          fragmentSize,
			DataSize:              dataSize,
			SerializedPayload:     payload[offset:end],
		}
		if len(pl.Parameters) > 0 {
			frag.InlineQos = pl
			frag.HasInlineQos = true
		}
		out = append(out, OutboundData{Locators: locs, Body: frag})
		fragNum++
	}
	return out
}
