//go:build !unix

package transport

import "net"

func listenReusable(addr string) (net.PacketConn, error) {
	return net.ListenPacket("udp4", addr)
}
