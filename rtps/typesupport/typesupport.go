// Package typesupport defines the seam between the RTPS/DDS core and
// generated or hand-written user-data types (spec.md §6): the interface an
// IDL-to-native code generator would implement against, were one in scope
// (it isn't, per §1's Non-goals).
package typesupport

import "rtpsgo/rtps/types"

// TypeSupport serializes/deserializes one user data type and, for keyed
// types, extracts the key used to derive an InstanceHandle.
type TypeSupport interface {
	// TypeName is the name advertised in SEDP publication/subscription data.
	TypeName() string

	// IsKeyed reports whether samples of this type carry a key.
	IsKeyed() bool

	// Serialize encodes sample (a pointer to the concrete Go type) into its
	// wire payload, including the CDR encapsulation header.
	Serialize(sample any) ([]byte, error)

	// Deserialize decodes payload into a new instance of the concrete type.
	Deserialize(payload []byte) (any, error)

	// SerializeKey extracts and encodes just the key fields of sample, for
	// dispose/unregister DATA submessages that carry Key=true.
	SerializeKey(sample any) ([]byte, error)

	// InstanceHandle derives the InstanceHandle for sample directly,
	// without a serialize/deserialize round trip.
	InstanceHandle(sample any) types.InstanceHandle
}
