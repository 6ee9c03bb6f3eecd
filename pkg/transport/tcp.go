package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/backkem/citp/pkg/message"
	"github.com/pion/logging"
)

// ConnConfig configures a framed CITP connection.
type ConnConfig struct {
	// MessageHandler is called with each complete message. Required.
	MessageHandler MessageHandler

	// MaxMessageSize bounds the message_size field accepted from the peer.
	// Zero means message.DefaultMaxMessageSize.
	MaxMessageSize uint32

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Conn is a TCP connection carrying CITP messages. A read goroutine splits
// the byte stream into messages; writes are serialized so each message is
// sent contiguously.
//
// The connection is finished once Done is closed. Err then reports why:
// ErrClosed after Close, ErrConnectionLost when the peer went away, or the
// framing violation that made the stream unrecoverable.
type Conn struct {
	conn    net.Conn
	reader  *message.StreamReader
	writer  *message.StreamWriter
	handler MessageHandler
	peer    PeerAddress
	log     logging.LeveledLogger

	mu      sync.Mutex
	started bool
	closed  bool
	err     error
	doneCh  chan struct{}
}

// Dial connects to address and returns a Conn that has not been started.
func Dial(ctx context.Context, address string, config ConnConfig) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	c, err := NewConn(nc, config)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, config ConnConfig) (*Conn, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}
	reader := message.NewStreamReader(conn)
	if config.MaxMessageSize != 0 {
		reader.SetMaxMessageSize(config.MaxMessageSize)
	}
	c := &Conn{
		conn:    conn,
		reader:  reader,
		writer:  message.NewStreamWriter(conn),
		handler: config.MessageHandler,
		peer:    NewTCPPeerAddress(conn.RemoteAddr()),
		doneCh:  make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("citp-tcp")
	}
	return c, nil
}

// Start begins reading messages in a background goroutine.
func (c *Conn) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	go c.readLoop()
	return nil
}

// Close closes the connection. Bytes buffered for a partial message are
// discarded.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	started := c.started
	c.mu.Unlock()

	err := c.conn.Close()
	if !started {
		c.finish(ErrClosed)
	}
	return err
}

// Send writes one encoded message.
func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	_, err := c.writer.Write(frame)
	return err
}

// SendMessage encodes and writes m.
func (c *Conn) SendMessage(m *message.Message) error {
	frame, err := m.Encode()
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// Done is closed when the connection has finished.
func (c *Conn) Done() <-chan struct{} {
	return c.doneCh
}

// Err returns the reason the connection finished, or nil while it is open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// PeerAddr returns the remote peer address.
func (c *Conn) PeerAddr() PeerAddress {
	return c.peer
}

// LocalAddr returns the local socket address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.doneCh)
}

func (c *Conn) readLoop() {
	dispatch := func(frame []byte) {
		c.handler(&ReceivedMessage{Data: frame, PeerAddr: c.peer})
	}

	for {
		err := c.reader.ReadStep(dispatch)
		if err == nil {
			continue
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()

		switch {
		case closed:
			err = ErrClosed
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			err = ErrConnectionLost
		case errors.Is(err, message.ErrMessageSizeTooSmall), errors.Is(err, message.ErrMessageTooLong):
			if c.log != nil {
				c.log.Errorf("framing violation from %s: %v", c.peer, err)
			}
		default:
			err = fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		if !closed {
			c.conn.Close()
		}
		if c.log != nil && !errors.Is(err, ErrClosed) {
			c.log.Debugf("connection %s finished: %v", c.peer, err)
		}
		c.finish(err)
		return
	}
}

// TCPConfig configures a TCP listener.
type TCPConfig struct {
	// Listener is an optional pre-created listener. If nil, one is created
	// on ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on, e.g. ":0" for any free port.
	ListenAddr string

	// MessageHandler is called for each message on any accepted connection.
	// Required.
	MessageHandler MessageHandler

	// ConnHandler is called when a connection has been accepted and its
	// read loop started. Optional.
	ConnHandler func(c *Conn)

	// CloseHandler is called when an accepted connection finishes. Optional.
	CloseHandler func(peer PeerAddress, err error)

	// MaxMessageSize is passed to every accepted connection.
	MaxMessageSize uint32

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// TCP accepts CITP connections and tracks them by peer address.
type TCP struct {
	listener net.Listener
	config   TCPConfig
	log      logging.LeveledLogger

	mu      sync.Mutex
	conns   map[string]*Conn
	started bool
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewTCP creates a TCP listener transport.
func NewTCP(config TCPConfig) (*TCP, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}

	listener := config.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", config.ListenAddr)
		if err != nil {
			return nil, err
		}
	}

	t := &TCP{
		listener: listener,
		config:   config,
		conns:    make(map[string]*Conn),
		closeCh:  make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("citp-tcp")
	}
	return t, nil
}

// Start begins accepting connections.
func (t *TCP) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

// Stop closes the listener and every accepted connection.
func (t *TCP) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	close(t.closeCh)
	conns := make([]*Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	err := t.listener.Close()
	for _, c := range conns {
		c.Close()
	}
	t.wg.Wait()
	return err
}

// Send writes one message to the connection from addr.
func (t *TCP) Send(frame []byte, addr net.Addr) error {
	if addr == nil {
		return ErrInvalidAddress
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	c, ok := t.conns[addr.String()]
	t.mu.Unlock()
	if !ok {
		return ErrConnectionNotFound
	}
	return c.Send(frame)
}

// Conn returns the connection whose remote address formats as address,
// if any.
func (t *TCP) Conn(address string) *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[address]
}

// LocalAddr returns the listener address.
func (t *TCP) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// Port returns the listening port, or 0 if the listener has none.
func (t *TCP) Port() int {
	switch a := t.listener.Addr().(type) {
	case *net.TCPAddr:
		return a.Port
	case PipeAddr:
		return a.Port
	default:
		return 0
	}
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()

	for {
		nc, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if t.log != nil {
				t.log.Warnf("accept error: %v", err)
			}
			continue
		}

		c, err := NewConn(nc, ConnConfig{
			MessageHandler: t.config.MessageHandler,
			MaxMessageSize: t.config.MaxMessageSize,
			LoggerFactory:  t.config.LoggerFactory,
		})
		if err != nil {
			nc.Close()
			continue
		}

		key := nc.RemoteAddr().String()
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			nc.Close()
			return
		}
		t.conns[key] = c
		t.mu.Unlock()

		if t.log != nil {
			t.log.Debugf("accepted %s", key)
		}

		c.Start()
		if t.config.ConnHandler != nil {
			t.config.ConnHandler(c)
		}

		t.wg.Add(1)
		go t.watch(key, c)
	}
}

func (t *TCP) watch(key string, c *Conn) {
	defer t.wg.Done()
	<-c.Done()

	t.mu.Lock()
	if t.conns[key] == c {
		delete(t.conns, key)
	}
	t.mu.Unlock()

	if t.config.CloseHandler != nil {
		t.config.CloseHandler(c.PeerAddr(), c.Err())
	}
}
