// Package transport abstracts the datagram path RTPS messages travel over
// (spec.md §6), so the protocol engine never touches a net.UDPConn
// directly: a reference UDPv4Transport is provided, wrapping net.PacketConn
// with a dedicated read loop; Send writes directly on the caller's goroutine.
package transport

import (
	"context"

	"rtpsgo/rtps/types"
)

// Datagram is one received packet plus the locator it arrived from.
type Datagram struct {
	Payload []byte
	From    types.Locator
}

// Transport sends and receives RTPS datagrams over locators of one
// LocatorKind. Implementations must be safe for concurrent use.
type Transport interface {
	// Send transmits payload to dst.
	Send(ctx context.Context, dst types.Locator, payload []byte) error

	// Receive blocks until a datagram arrives or ctx is done.
	Receive(ctx context.Context) (Datagram, error)

	// JoinMulticast starts receiving datagrams sent to group.
	JoinMulticast(group types.Locator) error

	// LeaveMulticast stops receiving datagrams sent to group.
	LeaveMulticast(group types.Locator) error

	// UnicastLocator returns the locator this transport listens on.
	UnicastLocator() types.Locator

	Close() error
}
