// Package citp ties the CITP layers together: a registry with every layer
// registered, and the well-known discovery addresses.
package citp

import (
	"net"

	"github.com/backkem/citp/pkg/caex"
	"github.com/backkem/citp/pkg/finf"
	"github.com/backkem/citp/pkg/fptc"
	"github.com/backkem/citp/pkg/fsel"
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/msex"
	"github.com/backkem/citp/pkg/pinf"
	"github.com/backkem/citp/pkg/sdmx"
)

// Discovery transport constants.
const (
	// MulticastPort is the UDP port of the discovery and streaming group.
	MulticastPort = 4809

	// BroadcastPort is the port older peers used for broadcast discovery.
	BroadcastPort = 4810
)

var (
	// MulticastGroup is the discovery group.
	MulticastGroup = net.IPv4(239, 224, 0, 180)

	// LegacyMulticastGroup is accepted for compatibility with older peers.
	LegacyMulticastGroup = net.IPv4(224, 0, 0, 180)
)

// MulticastAddr returns the discovery group address.
func MulticastAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: MulticastGroup, Port: MulticastPort}
}

// Registerers lists the registration function of every layer.
var Registerers = []func(*message.Registry){
	pinf.Register,
	sdmx.Register,
	fptc.Register,
	fsel.Register,
	finf.Register,
	msex.Register,
	caex.Register,
}

// Register adds every layer to reg.
func Register(reg *message.Registry) {
	for _, r := range Registerers {
		r(reg)
	}
}

// NewRegistry returns a registry with every layer registered.
func NewRegistry() *message.Registry {
	reg := message.NewRegistry()
	Register(reg)
	return reg
}
