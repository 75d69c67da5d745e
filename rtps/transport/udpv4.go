package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"rtpsgo/rtps/types"
)

const rxQueueSize = 1024

// UDPv4Transport sends and receives RTPS datagrams over a UDPv4 socket: a
// dedicated receive loop feeds a buffered channel, with multicast
// membership layered on top for the SPDP well-known group.
type UDPv4Transport struct {
	conn  *net.UDPConn
	local types.Locator

	rxQueue chan Datagram
	mcast   []*net.UDPConn

	closeOnce sync.Once
	done      chan struct{}
}

// NewUDPv4Transport opens a UDP socket on the given port (0 picks an
// ephemeral one) and starts its receive loop.
func NewUDPv4Transport(port uint32) (*UDPv4Transport, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: int(port)}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp4: %w", err)
	}

	localPort := conn.LocalAddr().(*net.UDPAddr).Port
	t := &UDPv4Transport{
		conn:    conn,
		local:   types.LocatorFromUDPv4(localIPv4(), uint32(localPort)),
		rxQueue: make(chan Datagram, rxQueueSize),
		done:    make(chan struct{}),
	}
	go t.recvLoop(conn)
	return t, nil
}

func localIPv4() [4]byte {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if v4 := ipnet.IP.To4(); v4 != nil {
				return [4]byte{v4[0], v4[1], v4[2], v4[3]}
			}
		}
	}
	return [4]byte{127, 0, 0, 1}
}

func (t *UDPv4Transport) recvLoop(conn *net.UDPConn) {
	buf := make([]byte, 64*1024)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.done:
				return
			default:
				log.Debug().Err(err).Msg("rtps transport: read error")
				continue
			}
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		fromLocator := types.LocatorFromUDPv4(ipv4Bytes(from.IP), uint32(from.Port))
		select {
		case t.rxQueue <- Datagram{Payload: payload, From: fromLocator}:
		default:
			log.Warn().Msg("rtps transport: rx queue full, dropping datagram")
		}
	}
}

func ipv4Bytes(ip net.IP) [4]byte {
	v4 := ip.To4()
	var out [4]byte
	copy(out[:], v4)
	return out
}

func (t *UDPv4Transport) Send(ctx context.Context, dst types.Locator, payload []byte) error {
	addr := &net.UDPAddr{IP: net.IP(dst.Address[12:16]), Port: int(dst.Port)}
	_, err := t.conn.WriteToUDP(payload, addr)
	return err
}

func (t *UDPv4Transport) Receive(ctx context.Context) (Datagram, error) {
	select {
	case d := <-t.rxQueue:
		return d, nil
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case <-t.done:
		return Datagram{}, net.ErrClosed
	}
}

// JoinMulticast opens a second socket bound to group's port with multicast
// group membership, feeding the same rxQueue as the unicast socket.
func (t *UDPv4Transport) JoinMulticast(group types.Locator) error {
	ip := net.IPv4(group.Address[12], group.Address[13], group.Address[14], group.Address[15])
	addr := &net.UDPAddr{IP: ip, Port: int(group.Port)}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("transport: join multicast %s: %w", ip, err)
	}
	conn.SetReadBuffer(1024 * 1024)
	t.mcast = append(t.mcast, conn)
	go t.recvLoop(conn)
	return nil
}

// LeaveMulticast closes every multicast socket joined for group's port.
func (t *UDPv4Transport) LeaveMulticast(group types.Locator) error {
	var first error
	var remaining []*net.UDPConn
	for _, c := range t.mcast {
		if uint32(c.LocalAddr().(*net.UDPAddr).Port) == group.Port {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
			continue
		}
		remaining = append(remaining, c)
	}
	t.mcast = remaining
	return first
}

func (t *UDPv4Transport) UnicastLocator() types.Locator { return t.local }

func (t *UDPv4Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.Close()
		for _, c := range t.mcast {
			c.Close()
		}
	})
	return nil
}
