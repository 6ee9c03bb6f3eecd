package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/backkem/citp/pkg/citp"
	"github.com/pion/logging"
	"golang.org/x/net/ipv4"
)

// MaxDatagramSize is the largest UDP payload over IPv4.
const MaxDatagramSize = 65507

// Multicast owns a UDP socket bound to the CITP port and joined to the
// discovery group. Received datagrams are passed to the configured handler;
// Send writes to the group.
type Multicast struct {
	conn    net.PacketConn
	group   net.UDPAddr
	config  MulticastConfig
	handler MessageHandler
	log     logging.LeveledLogger

	mu      sync.Mutex
	joined  bool
	started bool
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// MulticastConfig configures a Multicast transport.
type MulticastConfig struct {
	// Conn is an optional pre-created packet connection, typically a
	// PipePacketConn in tests. If nil, a UDP socket is bound to Port on
	// all interfaces with address reuse enabled.
	Conn net.PacketConn

	// Group is the multicast group. Defaults to 239.224.0.180.
	Group net.IP

	// Port is the group port. Defaults to 4809.
	Port int

	// Interface selects the interface for joining and sending.
	// Nil lets the system choose.
	Interface *net.Interface

	// JoinLegacyGroup additionally joins 224.0.0.180 for peers that still
	// announce on the pre-1.1 address.
	JoinLegacyGroup bool

	// DisableLoopback stops this host's own datagrams from being delivered
	// to local sockets.
	DisableLoopback bool

	// TTL is the multicast hop limit. Zero keeps the system default.
	TTL int

	// MessageHandler is called for each received datagram. Required.
	MessageHandler MessageHandler

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewMulticast creates a multicast transport. The group is not joined
// until JoinGroup is called.
func NewMulticast(config MulticastConfig) (*Multicast, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}
	if config.Group == nil {
		config.Group = citp.MulticastGroup
	}
	if config.Port == 0 {
		config.Port = citp.MulticastPort
	}
	if config.Group.To4() == nil || !config.Group.IsMulticast() {
		return nil, fmt.Errorf("%w: %s is not an IPv4 multicast group", ErrInvalidAddress, config.Group)
	}

	conn := config.Conn
	if conn == nil {
		var err error
		conn, err = listenReusable(fmt.Sprintf("0.0.0.0:%d", config.Port))
		if err != nil {
			return nil, err
		}
	}

	m := &Multicast{
		conn:    conn,
		group:   net.UDPAddr{IP: config.Group, Port: config.Port},
		config:  config,
		handler: config.MessageHandler,
		closeCh: make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("citp-multicast")
	}
	return m, nil
}

// JoinGroup subscribes the socket to the group and applies the loopback
// and TTL options. It is idempotent once it has succeeded. Connections that
// are not UDP sockets are treated as already joined.
func (m *Multicast) JoinGroup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.joined {
		return nil
	}

	udp, ok := m.conn.(*net.UDPConn)
	if !ok {
		m.joined = true
		return nil
	}

	p := ipv4.NewPacketConn(udp)
	if err := p.JoinGroup(m.config.Interface, &net.UDPAddr{IP: m.group.IP}); err != nil {
		return fmt.Errorf("transport: join %s: %w", m.group.IP, err)
	}
	if m.config.JoinLegacyGroup {
		if err := p.JoinGroup(m.config.Interface, &net.UDPAddr{IP: citp.LegacyMulticastGroup}); err != nil && m.log != nil {
			m.log.Warnf("join legacy group %s: %v", citp.LegacyMulticastGroup, err)
		}
	}
	if m.config.Interface != nil {
		if err := p.SetMulticastInterface(m.config.Interface); err != nil {
			return fmt.Errorf("transport: set multicast interface: %w", err)
		}
	}
	if err := p.SetMulticastLoopback(!m.config.DisableLoopback); err != nil && m.log != nil {
		m.log.Warnf("set multicast loopback: %v", err)
	}
	if m.config.TTL > 0 {
		if err := p.SetMulticastTTL(m.config.TTL); err != nil && m.log != nil {
			m.log.Warnf("set multicast TTL: %v", err)
		}
	}

	m.joined = true
	if m.log != nil {
		m.log.Infof("joined %s on %s", m.group.String(), m.conn.LocalAddr())
	}
	return nil
}

// Start begins reading datagrams in a background goroutine.
func (m *Multicast) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	m.wg.Add(1)
	go m.readLoop()
	return nil
}

// Stop closes the socket and waits for the read loop to exit.
func (m *Multicast) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	close(m.closeCh)
	m.mu.Unlock()

	err := m.conn.Close()
	m.wg.Wait()
	return err
}

// Send writes one datagram to the group.
func (m *Multicast) Send(data []byte) error {
	return m.SendTo(data, &m.group)
}

// SendTo writes one datagram to addr.
func (m *Multicast) SendTo(data []byte, addr net.Addr) error {
	if addr == nil {
		return ErrInvalidAddress
	}
	if len(data) > MaxDatagramSize {
		return ErrMessageTooLarge
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	_, err := m.conn.WriteTo(data, addr)
	return err
}

// LocalAddr returns the bound socket address.
func (m *Multicast) LocalAddr() net.Addr {
	return m.conn.LocalAddr()
}

// GroupAddr returns the destination used by Send.
func (m *Multicast) GroupAddr() net.Addr {
	addr := m.group
	return &addr
}

func (m *Multicast) readLoop() {
	defer m.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := m.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-m.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if m.log != nil {
				m.log.Warnf("read error: %v", err)
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		m.handler(&ReceivedMessage{
			Data:     data,
			PeerAddr: NewMulticastPeerAddress(addr),
		})
	}
}
