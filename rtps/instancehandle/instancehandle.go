// Package instancehandle derives the 16-byte InstanceHandle used to key
// topic instances (spec.md §3): the MD5 of the serialized key when it
// exceeds 16 bytes, or the key bytes themselves zero-padded otherwise.
package instancehandle

import (
	"crypto/md5"

	"rtpsgo/rtps/types"
)

// FromKeyBytes derives an InstanceHandle from the serialized key of a user
// type. Identical key bytes always produce identical handles.
func FromKeyBytes(key []byte) types.InstanceHandle {
	var h types.InstanceHandle
	if len(key) > 16 {
		sum := md5.Sum(key)
		copy(h[:], sum[:])
		return h
	}
	copy(h[:], key)
	return h
}
