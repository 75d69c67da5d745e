package messages

import (
	"rtpsgo/rtps/parameterlist"
	"rtpsgo/rtps/types"
)

// Low-order bits of the 4-byte PID_STATUS_INFO value (spec.md §4.1/§4.6).
const (
	statusInfoDisposedFlag     byte = 0x01
	statusInfoUnregisteredFlag byte = 0x02
)

// StatusInfoParameter encodes kind as a PID_STATUS_INFO parameter. ok is
// false for ChangeKindAlive, which carries no STATUS_INFO.
func StatusInfoParameter(kind types.ChangeKind) (parameterlist.Parameter, bool) {
	var flags byte
	switch kind {
	case types.ChangeKindNotAliveDisposed:
		flags = statusInfoDisposedFlag
	case types.ChangeKindNotAliveUnregistered:
		flags = statusInfoUnregisteredFlag
	case types.ChangeKindNotAliveDisposedUnregistered:
		flags = statusInfoDisposedFlag | statusInfoUnregisteredFlag
	default:
		return parameterlist.Parameter{}, false
	}
	return parameterlist.Parameter{ID: parameterlist.PID_STATUS_INFO, Value: []byte{0, 0, 0, flags}}, true
}

// ChangeKindFromStatusInfo derives the ChangeKind a DATA/DATA_FRAG
// submessage's inline QoS carries: ALIVE when no STATUS_INFO parameter is
// present, one of the NOT_ALIVE_* kinds otherwise.
func ChangeKindFromStatusInfo(pl parameterlist.ParameterList) types.ChangeKind {
	v, ok := pl.Get(parameterlist.PID_STATUS_INFO)
	if !ok || len(v) < 4 {
		return types.ChangeKindAlive
	}
	flags := v[3]
	disposed := flags&statusInfoDisposedFlag != 0
	unregistered := flags&statusInfoUnregisteredFlag != 0
	switch {
	case disposed && unregistered:
		return types.ChangeKindNotAliveDisposedUnregistered
	case disposed:
		return types.ChangeKindNotAliveDisposed
	case unregistered:
		return types.ChangeKindNotAliveUnregistered
	default:
		return types.ChangeKindAlive
	}
}

// InstanceHandleFromKeyHash extracts the InstanceHandle carried by a
// PID_KEY_HASH parameter, if present.
func InstanceHandleFromKeyHash(pl parameterlist.ParameterList) (types.InstanceHandle, bool) {
	v, ok := pl.Get(parameterlist.PID_KEY_HASH)
	if !ok || len(v) < 16 {
		return types.InstanceHandle{}, false
	}
	var h types.InstanceHandle
	copy(h[:], v[:16])
	return h, true
}
