//go:build unix

package transport

import (
	"context"
	"net"
	"syscall"
)

// listenReusable binds a UDP socket with SO_REUSEADDR so several CITP
// processes on one host can share the group port.
func listenReusable(addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}
	return lc.ListenPacket(context.Background(), "udp4", addr)
}
