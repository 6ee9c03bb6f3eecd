package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures loss and latency on a Pipe. It applies to
// datagrams only; stream endpoints are always reliable.
type NetworkCondition struct {
	// DropRate is the probability of dropping a datagram (0.0 - 1.0).
	DropRate float64

	// DelayMin and DelayMax bound a uniformly distributed send delay.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Pipe is a bidirectional in-memory packet link between two endpoints,
// backed by pion's test.Bridge. Packets are delivered by a background
// goroutine every interval.
type Pipe struct {
	bridge *test.Bridge

	mu        sync.RWMutex
	condition NetworkCondition
	rng       *rand.Rand
	closed    bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewPipe creates a pipe that delivers queued packets every millisecond.
func NewPipe() *Pipe {
	return NewPipeWithInterval(time.Millisecond)
}

// NewPipeWithInterval creates a pipe with the given delivery interval.
func NewPipeWithInterval(interval time.Duration) *Pipe {
	if interval <= 0 {
		interval = time.Millisecond
	}
	p := &Pipe{
		bridge: test.NewBridge(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		stopCh: make(chan struct{}),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				for p.bridge.Tick() > 0 {
				}
			}
		}
	}()
	return p
}

// SetCondition configures loss and delay for subsequent datagrams.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Close stops delivery and closes both endpoints.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

func (p *Pipe) conn(id int) net.Conn {
	if id == 0 {
		return p.bridge.GetConn0()
	}
	return p.bridge.GetConn1()
}

// shouldDrop applies the configured condition to one datagram, sleeping
// for any configured delay. It reports whether the datagram is lost.
func (p *Pipe) shouldDrop() bool {
	p.mu.RLock()
	cond := p.condition
	p.mu.RUnlock()

	if cond.DropRate <= 0 && cond.DelayMax <= 0 {
		return false
	}

	p.mu.Lock()
	drop := cond.DropRate > 0 && p.rng.Float64() < cond.DropRate
	delay := cond.DelayMin
	if cond.DelayMax > cond.DelayMin {
		delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
	}
	p.mu.Unlock()

	if drop {
		return true
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return false
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID   int // Endpoint ID (0 or 1)
	Port int // Logical port number
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d:%d", a.ID, a.Port) }

// PipePacketConn exposes one end of a Pipe as a net.PacketConn, standing
// in for a multicast socket. Every datagram written reaches the other end,
// whatever the destination address.
type PipePacketConn struct {
	conn  net.Conn
	pipe  *Pipe
	local PipeAddr
	peer  PipeAddr
}

// ReadFrom reads one datagram. The source is always the other endpoint.
func (c *PipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peer, err
}

// WriteTo sends one datagram, subject to the pipe's network condition.
func (c *PipePacketConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	if c.pipe.shouldDrop() {
		return len(b), nil
	}
	return c.conn.Write(b)
}

func (c *PipePacketConn) Close() error                       { return c.conn.Close() }
func (c *PipePacketConn) LocalAddr() net.Addr                { return c.local }
func (c *PipePacketConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *PipePacketConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *PipePacketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*PipePacketConn)(nil)

// PipeConn exposes one end of a Pipe as a stream connection. The bridge
// carries whole packets, so bytes of a packet that do not fit the caller's
// buffer are held for the next Read.
type PipeConn struct {
	conn    net.Conn
	local   PipeAddr
	remote  PipeAddr
	mu      sync.Mutex
	pending []byte
}

// Read reads buffered bytes first, then the next packet.
func (c *PipeConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		buf := make([]byte, 1<<16)
		n, err := c.conn.Read(buf)
		if err != nil {
			return 0, err
		}
		c.pending = buf[:n]
	}
	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *PipeConn) Write(b []byte) (int, error)        { return c.conn.Write(b) }
func (c *PipeConn) Close() error                       { return c.conn.Close() }
func (c *PipeConn) LocalAddr() net.Addr                { return c.local }
func (c *PipeConn) RemoteAddr() net.Addr               { return c.remote }
func (c *PipeConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *PipeConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *PipeConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.Conn = (*PipeConn)(nil)

// PipeListener is a net.Listener that hands out a single PipeConn, then
// blocks until closed.
type PipeListener struct {
	addr    PipeAddr
	conn    net.Conn
	closeCh chan struct{}

	mu       sync.Mutex
	accepted bool
	closed   bool
}

// Accept returns the pipe endpoint on the first call.
func (l *PipeListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.addr, Err: net.ErrClosed}
	}
	if !l.accepted {
		l.accepted = true
		l.mu.Unlock()
		return l.conn, nil
	}
	l.mu.Unlock()

	<-l.closeCh
	return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.addr, Err: net.ErrClosed}
}

// Close unblocks pending Accept calls.
func (l *PipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.closeCh)
	}
	return nil
}

// Addr returns the listener's address.
func (l *PipeListener) Addr() net.Addr { return l.addr }

var _ net.Listener = (*PipeListener)(nil)

// PipeNetwork connects two CITP peers in memory: one pipe stands in for
// the multicast group and a second one for a single TCP connection.
// Endpoint 0 is the listening side of the TCP link, endpoint 1 dials.
type PipeNetwork struct {
	group  *Pipe
	stream *Pipe
	port   int

	mu       sync.Mutex
	listener *PipeListener
}

// NewPipeNetwork creates a pipe network whose TCP listener reports port.
func NewPipeNetwork(port int) *PipeNetwork {
	return &PipeNetwork{
		group:  NewPipe(),
		stream: NewPipe(),
		port:   port,
	}
}

// Group returns the multicast pipe, for setting network conditions.
func (n *PipeNetwork) Group() *Pipe { return n.group }

// PacketConn returns endpoint id's side of the multicast pipe.
func (n *PipeNetwork) PacketConn(id int) net.PacketConn {
	return &PipePacketConn{
		conn:  n.group.conn(id),
		pipe:  n.group,
		local: PipeAddr{ID: id, Port: n.port},
		peer:  PipeAddr{ID: 1 - id, Port: n.port},
	}
}

// Listener returns endpoint 0's TCP listener.
func (n *PipeNetwork) Listener() net.Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		n.listener = &PipeListener{
			addr: PipeAddr{ID: 0, Port: n.port},
			conn: &PipeConn{
				conn:   n.stream.conn(0),
				local:  PipeAddr{ID: 0, Port: n.port},
				remote: PipeAddr{ID: 1, Port: n.port},
			},
			closeCh: make(chan struct{}),
		}
	}
	return n.listener
}

// Dial returns endpoint 1's side of the TCP pipe. The address is ignored.
func (n *PipeNetwork) Dial(_ context.Context, _ string) (net.Conn, error) {
	return &PipeConn{
		conn:   n.stream.conn(1),
		local:  PipeAddr{ID: 1, Port: n.port},
		remote: PipeAddr{ID: 0, Port: n.port},
	}, nil
}

// Close closes both pipes.
func (n *PipeNetwork) Close() error {
	n.mu.Lock()
	if n.listener != nil {
		n.listener.Close()
	}
	n.mu.Unlock()
	err := n.group.Close()
	if err2 := n.stream.Close(); err == nil {
		err = err2
	}
	return err
}
