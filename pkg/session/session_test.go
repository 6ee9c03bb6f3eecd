package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/backkem/citp/pkg/caex"
	"github.com/backkem/citp/pkg/citp"
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/pinf"
	"github.com/backkem/citp/pkg/transport"
	"github.com/backkem/citp/pkg/wire"
	"github.com/maxatome/go-testdeep/td"
)

const testSourceKey = 0xC0FFEE

func newTestSession(t *testing.T, network *transport.PipeNetwork, mutate func(*Config)) *Session {
	t.Helper()
	cfg := Config{
		Name:             "Laser",
		ShowName:         "Show",
		Feeds:            []Feed{&SquareFeed{}, &SquareFeed{Label: "beam", Index: 1}},
		SourceKey:        testSourceKey,
		FrameInterval:    5 * time.Millisecond,
		AnnounceInterval: 20 * time.Millisecond,
		PacketConn:       network.PacketConn(1),
		Dial: func(context.Context, string) (net.Conn, error) {
			return nil, errors.New("no peer")
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

// runSession runs s until the test ends and returns the channel Run's
// result is delivered on.
func runSession(t *testing.T, s *Session) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- s.Run(ctx)
		close(finished)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	})
	return cancel, done
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %v, want %v", s.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitRunError(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for Run() to return")
		return nil
	}
}

// multicastPeer reads and decodes everything the session multicasts.
func multicastPeer(t *testing.T, conn net.PacketConn) <-chan *message.Message {
	t.Helper()
	reg := citp.NewRegistry()
	out := make(chan *message.Message, 1024)
	go func() {
		buf := make([]byte, transport.MaxDatagramSize)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			m, err := reg.Decode(buf[:n])
			if err != nil {
				continue
			}
			select {
			case out <- m:
			default:
			}
		}
	}()
	return out
}

func sendPLoc(t *testing.T, conn net.PacketConn, port uint16, name string) {
	t.Helper()
	data, err := message.New(&pinf.PLoc{
		ListeningTCPPort: port,
		Type:             pinf.TypeVisualiser,
		Name:             name,
	}).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := conn.WriteTo(data, citp.MulticastAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
}

// tcpPeer is the far end of a session's TCP connection.
type tcpPeer struct {
	t      *testing.T
	conn   net.Conn
	reader *message.StreamReader
	writer *message.StreamWriter
	reg    *message.Registry
}

func newTCPPeer(t *testing.T, conn net.Conn) *tcpPeer {
	return &tcpPeer{
		t:      t,
		conn:   conn,
		reader: message.NewStreamReader(conn),
		writer: message.NewStreamWriter(conn),
		reg:    citp.NewRegistry(),
	}
}

func (p *tcpPeer) read() *message.Message {
	p.t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := p.reader.Read()
	if err != nil {
		p.t.Fatalf("Read() error = %v", err)
	}
	m, err := p.reg.Decode(frame)
	if err != nil {
		p.t.Fatalf("Decode() error = %v", err)
	}
	return m
}

func (p *tcpPeer) request(idx uint16, payload message.Payload) *message.Message {
	p.t.Helper()
	m := message.New(payload)
	m.Header.SetRequestIndex(idx)
	if err := p.writer.WriteMessage(m); err != nil {
		p.t.Fatalf("WriteMessage() error = %v", err)
	}
	return m
}

// connectSession runs a session and connects it to a tcpPeer over net.Pipe.
func connectSession(t *testing.T, mutate func(*Config)) (*Session, *tcpPeer, <-chan *message.Message, <-chan error) {
	t.Helper()
	network := transport.NewPipeNetwork(citp.MulticastPort)
	t.Cleanup(func() { network.Close() })

	local, remote := net.Pipe()
	t.Cleanup(func() { remote.Close() })

	var dialed atomic.Bool
	s := newTestSession(t, network, func(c *Config) {
		c.Dial = func(context.Context, string) (net.Conn, error) {
			if dialed.Swap(true) {
				return nil, errors.New("already connected")
			}
			return local, nil
		}
		if mutate != nil {
			mutate(c)
		}
	})
	_, done := runSession(t, s)

	datagrams := multicastPeer(t, network.PacketConn(0))
	waitState(t, s, StateDiscover)
	sendPLoc(t, network.PacketConn(0), 6000, "Capture (127.0.0.1)")

	peer := newTCPPeer(t, remote)
	td.Cmp(t, peer.read().Payload, &pinf.PNam{Name: "Laser"})
	waitState(t, s, StateRequest)
	return s, peer, datagrams, done
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   error
	}{
		{"missing name", Config{}, ErrInvalidConfig},
		{"too many feeds", Config{Name: "x", Feeds: make([]Feed, 256)}, ErrTooManyFeeds},
		{"negative interval", Config{Name: "x", FrameInterval: -1}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			cfg.applyDefaults()
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}

	var cfg Config
	cfg.Name = "x"
	cfg.applyDefaults()
	if cfg.SourceKey == 0 {
		t.Error("applyDefaults() left SourceKey zero")
	}
	if cfg.FrameInterval != DefaultFrameInterval || cfg.AnnounceInterval != DefaultAnnounceInterval {
		t.Errorf("intervals = %v/%v", cfg.FrameInterval, cfg.AnnounceInterval)
	}
	if cfg.Type != pinf.TypeLightingConsole || len(cfg.Feeds) != 1 {
		t.Errorf("Type = %q, %d feeds", cfg.Type, len(cfg.Feeds))
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateInit:     "Init",
		StateDiscover: "Discover",
		StateRequest:  "Request",
		StateStream:   "Stream",
		State(9):      "Unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestPeerIP(t *testing.T) {
	source := transport.NewMulticastPeerAddress(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 4809})
	tests := []struct {
		name string
		from transport.PeerAddress
		want net.IP
	}{
		{"Capture (192.168.1.20)", source, net.IPv4(192, 168, 1, 20)},
		{"Capture ( 192.168.1.20 )", source, net.IPv4(192, 168, 1, 20)},
		{"Capture", source, net.IPv4(10, 0, 0, 9)},
		{"Capture (studio)", source, net.IPv4(10, 0, 0, 9)},
		{"Capture (192.168.1.20", source, net.IPv4(10, 0, 0, 9)},
		{"Capture", transport.NewMulticastPeerAddress(transport.PipeAddr{}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := peerIP(tt.name, tt.from); !got.Equal(tt.want) {
				t.Errorf("peerIP() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitRetriesJoin(t *testing.T) {
	network := transport.NewPipeNetwork(citp.MulticastPort)
	defer network.Close()

	s := newTestSession(t, network, nil)
	var attempts atomic.Int32
	s.join = func() error {
		if attempts.Add(1) < 3 {
			return errors.New("no route")
		}
		return nil
	}
	runSession(t, s)

	waitState(t, s, StateDiscover)
	if got := attempts.Load(); got != 3 {
		t.Errorf("join attempts = %d, want 3", got)
	}
}

func TestDiscoverIgnoresNonListeningPeer(t *testing.T) {
	network := transport.NewPipeNetwork(citp.MulticastPort)
	defer network.Close()

	dials := make(chan string, 8)
	s := newTestSession(t, network, func(c *Config) {
		c.Dial = func(_ context.Context, address string) (net.Conn, error) {
			dials <- address
			return nil, errors.New("connection refused")
		}
	})
	runSession(t, s)
	far := network.PacketConn(0)
	multicastPeer(t, far)
	waitState(t, s, StateDiscover)

	for range 5 {
		sendPLoc(t, far, 0, "Console (10.0.0.1)")
	}
	select {
	case address := <-dials:
		t.Fatalf("dialed %s after PLoc with port 0", address)
	case <-time.After(100 * time.Millisecond):
	}

	sendPLoc(t, far, 6000, "Capture (10.0.0.7)")
	select {
	case address := <-dials:
		if address != "10.0.0.7:6000" {
			t.Errorf("dialed %s, want 10.0.0.7:6000", address)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dial after PLoc with a port")
	}

	// A failed dial leaves the session discovering.
	time.Sleep(20 * time.Millisecond)
	if got := s.State(); got != StateDiscover {
		t.Errorf("State() = %v, want %v", got, StateDiscover)
	}
}

func TestRequestPhase(t *testing.T) {
	s, peer, _, _ := connectSession(t, nil)

	enter := peer.request(1, &caex.EnterShow{Name: wire.NewUcs2("Main Show")})
	resp := peer.read()
	td.Cmp(t, resp.Payload, &caex.EnterShow{Name: wire.NewUcs2("Show")})
	if !resp.Header.Answers(&enter.Header) {
		t.Errorf("EnterShow reply InResponseTo = %d, want 1", resp.Header.InResponseTo())
	}

	peer.request(2, &caex.GetLaserFeedList{})
	resp = peer.read()
	td.Cmp(t, resp.Payload, &caex.LaserFeedList{
		SourceKey: testSourceKey,
		Names:     []wire.Ucs2{wire.NewUcs2("square 0"), wire.NewUcs2("beam")},
	})
	if resp.Header.InResponseTo() != 2 {
		t.Errorf("LaserFeedList InResponseTo = %d, want 2", resp.Header.InResponseTo())
	}

	// Unknown messages are ignored without a reply or a transition.
	peer.request(3, &message.Unknown{LayerID: caex.Layer, Tag: 0x00090000, Data: []byte{1, 2}})
	peer.request(4, &caex.LeaveShow{})
	if got := s.State(); got != StateRequest {
		t.Errorf("State() = %v after unknown message, want %v", got, StateRequest)
	}

	fixtures := peer.request(5, &caex.FixtureListRequest{})
	resp = peer.read()
	td.Cmp(t, resp.Payload, &caex.FixtureList{Type: caex.FixtureListExistingPatch})
	if !resp.Header.Answers(&fixtures.Header) {
		t.Errorf("FixtureList InResponseTo = %d, want 5", resp.Header.InResponseTo())
	}
	waitState(t, s, StateStream)

	// Exactly one reply: nothing else arrives over TCP.
	peer.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if frame, err := peer.reader.Read(); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("unexpected TCP traffic after FixtureList: %x, %v", frame, err)
	}
}

func TestZeroCorrelationIsNotAnswered(t *testing.T) {
	_, peer, _, _ := connectSession(t, nil)

	req := peer.request(0, &caex.EnterShow{})
	resp := peer.read()
	if resp.Header.InResponseTo() != 0 {
		t.Errorf("InResponseTo = %d, want 0", resp.Header.InResponseTo())
	}
	if resp.Header.Answers(&req.Header) {
		t.Error("Answers() = true for correlation 0")
	}
}

func TestStreamFrames(t *testing.T) {
	s, peer, datagrams, _ := connectSession(t, nil)
	peer.request(1, &caex.FixtureListRequest{})
	peer.read()
	waitState(t, s, StateStream)

	next := map[uint8]uint32{}
	var announced bool
	deadline := time.After(2 * time.Second)
	for next[0] < 5 || next[1] < 5 || !announced {
		select {
		case m := <-datagrams:
			switch p := m.Payload.(type) {
			case *caex.LaserFeedFrame:
				if p.SourceKey != testSourceKey {
					t.Fatalf("SourceKey = %#x, want %#x", p.SourceKey, testSourceKey)
				}
				if next[p.Feed] != 0 && p.Sequence != next[p.Feed] {
					t.Fatalf("feed %d sequence = %d, want %d", p.Feed, p.Sequence, next[p.Feed])
				}
				if len(p.Points) != len(squareCorners) {
					t.Fatalf("feed %d has %d points", p.Feed, len(p.Points))
				}
				next[p.Feed] = p.Sequence + 1
			case *pinf.PLoc:
				td.Cmp(t, p, &pinf.PLoc{Type: pinf.TypeLightingConsole, Name: "Laser"})
				announced = true
			}
		case <-deadline:
			t.Fatalf("frames per feed = %v, announced = %v", next, announced)
		}
	}

	// Stopping feed 1 leaves feed 0 running.
	peer.request(2, &caex.LaserFeedControl{Feed: 1, FrameRate: 0})
	deadline = time.After(2 * time.Second)
	for {
		st := s.Status()
		if !st.Feeds[1].Active {
			break
		}
		select {
		case <-deadline:
			t.Fatal("feed 1 still active")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	for len(datagrams) > 0 {
		<-datagrams
	}

	var feed0 int
	timeout := time.After(100 * time.Millisecond)
collect:
	for {
		select {
		case m := <-datagrams:
			if p, ok := m.Payload.(*caex.LaserFeedFrame); ok {
				if p.Feed == 1 {
					t.Fatal("received a frame for a stopped feed")
				}
				feed0++
			}
		case <-timeout:
			break collect
		}
	}
	if feed0 == 0 {
		t.Error("feed 0 stopped streaming")
	}

	st := s.Status()
	td.Cmp(t, st, td.Struct(Status{
		State:     "Stream",
		SourceKey: testSourceKey,
	}, td.StructFields{
		"Peer":  td.Contains("Capture"),
		"Feeds": td.Len(2),
	}))
}

func TestFatalErrors(t *testing.T) {
	t.Run("connection lost", func(t *testing.T) {
		_, peer, _, done := connectSession(t, nil)
		peer.conn.Close()
		if err := waitRunError(t, done); !errors.Is(err, transport.ErrConnectionLost) {
			t.Errorf("Run() error = %v, want %v", err, transport.ErrConnectionLost)
		}
	})

	t.Run("message size below header", func(t *testing.T) {
		_, peer, _, done := connectSession(t, nil)
		frame, err := message.New(&caex.GetLaserFeedList{}).Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		frame[8] = 12
		go peer.conn.Write(frame)
		if err := waitRunError(t, done); !errors.Is(err, message.ErrMessageSizeTooSmall) {
			t.Errorf("Run() error = %v, want %v", err, message.ErrMessageSizeTooSmall)
		}
	})

	t.Run("undecodable message is not fatal", func(t *testing.T) {
		s, peer, _, done := connectSession(t, nil)
		frame, err := message.New(&caex.LaserFeedControl{Feed: 0, FrameRate: 1}).Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		// Declare one byte less, cutting the payload short.
		frame[8]--
		if _, err := peer.conn.Write(frame[:len(frame)-1]); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		peer.request(1, &caex.FixtureListRequest{})
		peer.read()
		waitState(t, s, StateStream)
		select {
		case err := <-done:
			t.Fatalf("Run() returned %v", err)
		default:
		}
	})
}

func TestRunCancel(t *testing.T) {
	network := transport.NewPipeNetwork(citp.MulticastPort)
	defer network.Close()

	s := newTestSession(t, network, nil)
	multicastPeer(t, network.PacketConn(0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	waitState(t, s, StateDiscover)

	if err := s.Run(ctx); err != transport.ErrAlreadyStarted {
		t.Errorf("second Run() error = %v, want %v", err, transport.ErrAlreadyStarted)
	}

	cancel()
	if err := waitRunError(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestRunStartFailureClosesSockets(t *testing.T) {
	network := transport.NewPipeNetwork(citp.MulticastPort)
	defer network.Close()

	s := newTestSession(t, network, nil)
	if err := s.multicast.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if err := s.Run(context.Background()); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Run() error = %v, want %v", err, transport.ErrClosed)
	}
	select {
	case <-s.closeCh:
	default:
		t.Error("Run() returned without tearing down")
	}
	if err := s.multicast.Send([]byte("CITP")); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send() after Run() error = %v, want %v", err, transport.ErrClosed)
	}
	if err := s.Run(context.Background()); err != transport.ErrAlreadyStarted {
		t.Errorf("second Run() error = %v, want %v", err, transport.ErrAlreadyStarted)
	}
}

func TestSquareFeed(t *testing.T) {
	f := &SquareFeed{Index: 3}
	if f.Name() != "square 3" {
		t.Errorf("Name() = %q", f.Name())
	}
	for seq := range uint32(2000) {
		pts := f.Points(seq)
		if pts[0] != pts[len(pts)-1] {
			t.Fatalf("seq %d: square is not closed", seq)
		}
		for _, p := range pts {
			if x, y := p.XY(); x > caex.MaxCoordinate || y > caex.MaxCoordinate {
				t.Fatalf("seq %d: point (%d, %d) out of range", seq, x, y)
			}
		}
	}
}

func ExampleState() {
	fmt.Println(StateInit, StateStream)
	// Output: Init Stream
}
