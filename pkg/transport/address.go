package transport

import (
	"fmt"
	"net"
)

// PeerAddress is where a message came from: the datagram source on the
// multicast group or the remote end of a TCP session.
type PeerAddress struct {
	Addr          net.Addr
	TransportType TransportType
}

func (p PeerAddress) String() string {
	addr := "<nil>"
	if p.Addr != nil {
		addr = p.Addr.String()
	}
	return fmt.Sprintf("%s:%s", p.TransportType, addr)
}

// IsValid reports whether both the address and the transport are set.
func (p PeerAddress) IsValid() bool {
	return p.TransportType.IsValid() && p.Addr != nil
}

// IP returns the peer's IP address, or nil when the address carries none
// (for example an in-memory pipe endpoint).
func (p PeerAddress) IP() net.IP {
	switch a := p.Addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	default:
		return nil
	}
}

func NewMulticastPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{Addr: addr, TransportType: TransportTypeMulticast}
}

func NewTCPPeerAddress(addr net.Addr) PeerAddress {
	return PeerAddress{Addr: addr, TransportType: TransportTypeTCP}
}
