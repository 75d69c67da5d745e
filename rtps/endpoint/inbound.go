package endpoint

import (
	"rtpsgo/rtps/history"
	"rtpsgo/rtps/messages"
	"rtpsgo/rtps/types"
)

// changeFromData derives a CacheChange from a received DATA submessage.
// For a keyed (dispose/unregister) submessage it decodes STATUS_INFO for
// the change kind and KEY_HASH for the instance handle, rather than
// trusting the single Key bit alone or deriving the handle from an empty
// payload (spec.md §4.1/§4.6).
func changeFromData(writerGuid types.GUID, d messages.Data, keyOf KeyExtractor) history.CacheChange {
	kind := types.ChangeKindAlive
	handle := keyOf(d.SerializedPayload)
	if d.Key && d.HasInlineQos {
		kind = messages.ChangeKindFromStatusInfo(d.InlineQos)
		if h, ok := messages.InstanceHandleFromKeyHash(d.InlineQos); ok {
			handle = h
		}
	}
	return history.CacheChange{
		Kind:           kind,
		WriterGuid:     writerGuid,
		InstanceHandle: handle,
		DataPayload:    d.SerializedPayload,
	}
}

// changeFromDataFrag is changeFromData's counterpart for a reassembled
// DATA_FRAG payload.
func changeFromDataFrag(writerGuid types.GUID, d messages.DataFrag, full []byte, keyOf KeyExtractor) history.CacheChange {
	kind := types.ChangeKindAlive
	handle := keyOf(full)
	if d.Key && d.HasInlineQos {
		kind = messages.ChangeKindFromStatusInfo(d.InlineQos)
		if h, ok := messages.InstanceHandleFromKeyHash(d.InlineQos); ok {
			handle = h
		}
	}
	return history.CacheChange{
		Kind:           kind,
		WriterGuid:     writerGuid,
		InstanceHandle: handle,
		DataPayload:    full,
	}
}
