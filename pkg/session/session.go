package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/backkem/citp/pkg/caex"
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/pinf"
	"github.com/backkem/citp/pkg/transport"
	"github.com/backkem/citp/pkg/wire"
	"github.com/pion/logging"
)

// Session is the streaming side of a CITP link.
//
// All protocol state is owned by the goroutine running Run. The multicast
// and TCP read loops only hand received messages over channels, so TCP
// messages are processed one at a time in arrival order.
type Session struct {
	config    Config
	multicast *transport.Multicast
	log       logging.LeveledLogger
	metrics   *Metrics

	// join subscribes to the discovery group. Replaced in tests.
	join func() error

	datagrams chan *transport.ReceivedMessage
	stream    chan *transport.ReceivedMessage
	closeCh   chan struct{}

	// Owned by the run loop.
	conn         *transport.Conn
	lastAnnounce time.Time
	feedNames    []wire.Ucs2

	mu       sync.Mutex
	state    State
	peer     string
	running  bool
	active   []bool
	sequence []uint32
}

// Status is a snapshot of a running Session.
type Status struct {
	State     string       `json:"state"`
	Peer      string       `json:"peer,omitempty"`
	SourceKey uint32       `json:"source_key"`
	Feeds     []FeedStatus `json:"feeds"`
}

// FeedStatus describes one feed in a Status.
type FeedStatus struct {
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Sequence uint32 `json:"sequence"`
}

// New creates a Session. The discovery socket is opened immediately;
// nothing is sent until Run is called.
func New(config Config) (*Session, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		config:    config,
		metrics:   config.Metrics,
		datagrams: make(chan *transport.ReceivedMessage, 64),
		stream:    make(chan *transport.ReceivedMessage),
		closeCh:   make(chan struct{}),
		active:    make([]bool, len(config.Feeds)),
		sequence:  make([]uint32, len(config.Feeds)),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}
	for i, f := range config.Feeds {
		s.active[i] = true
		s.feedNames = append(s.feedNames, wire.NewUcs2(f.Name()))
	}

	mc, err := transport.NewMulticast(transport.MulticastConfig{
		Conn:            config.PacketConn,
		Interface:       config.Interface,
		JoinLegacyGroup: config.JoinLegacyGroup,
		MessageHandler:  s.onDatagram,
		LoggerFactory:   config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	s.multicast = mc
	s.join = mc.JoinGroup
	return s, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SourceKey returns the key carried in this session's laser messages.
func (s *Session) SourceKey() uint32 {
	return s.config.SourceKey
}

// Status returns a snapshot for reporting.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state.String(),
		Peer:      s.peer,
		SourceKey: s.config.SourceKey,
	}
	for i, f := range s.config.Feeds {
		st.Feeds = append(st.Feeds, FeedStatus{
			Name:     f.Name(),
			Active:   s.active[i],
			Sequence: s.sequence[i],
		})
	}
	return st
}

// Run drives the session until ctx is cancelled or the TCP connection
// fails. Cancellation closes both sockets and returns ctx.Err(); a lost
// connection or a framing violation is returned as is. A Session runs once;
// its sockets are closed when Run returns, whatever the outcome.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return transport.ErrAlreadyStarted
	}
	s.running = true
	s.mu.Unlock()

	defer s.teardown()
	if err := s.multicast.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.config.FrameInterval)
	defer ticker.Stop()

	s.tryJoin()
	for {
		var connDone <-chan struct{}
		if s.conn != nil {
			connDone = s.conn.Done()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-s.datagrams:
			s.handleDatagram(ctx, msg)

		case msg := <-s.stream:
			if err := s.handleStream(msg); err != nil {
				return err
			}

		case <-connDone:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := s.conn.Err()
			if s.log != nil {
				s.log.Errorf("connection to %s finished: %v", s.conn.PeerAddr(), err)
			}
			return err

		case now := <-ticker.C:
			if err := s.tick(now); err != nil {
				return err
			}
		}
	}
}

func (s *Session) teardown() {
	close(s.closeCh)
	if s.conn != nil {
		s.conn.Close()
	}
	s.multicast.Stop()
	s.metrics.setPeers(0)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	s.metrics.setState(st)
	if s.log != nil && prev != st {
		s.log.Infof("state %s -> %s", prev, st)
	}
}

// onDatagram runs on the multicast read goroutine. Datagrams are dropped
// when the loop falls behind; multicast delivery is best effort anyway.
func (s *Session) onDatagram(msg *transport.ReceivedMessage) {
	select {
	case s.datagrams <- msg:
	case <-s.closeCh:
	default:
		if s.log != nil {
			s.log.Debugf("dropping datagram from %s", msg.PeerAddr)
		}
	}
}

// onStream runs on the TCP read goroutine and blocks until the loop takes
// the message, preserving arrival order.
func (s *Session) onStream(msg *transport.ReceivedMessage) {
	select {
	case s.stream <- msg:
	case <-s.closeCh:
	}
}

func (s *Session) tryJoin() {
	if err := s.join(); err != nil {
		if s.log != nil {
			s.log.Warnf("join discovery group: %v (retrying)", err)
		}
		return
	}
	s.setState(StateDiscover)
}

func (s *Session) tick(now time.Time) error {
	state := s.State()
	if state == StateInit {
		s.tryJoin()
		return nil
	}

	if now.Sub(s.lastAnnounce) >= s.config.AnnounceInterval {
		s.lastAnnounce = now
		s.announce()
	}

	if state == StateStream {
		s.sendFrames()
	}
	return nil
}

func (s *Session) announce() {
	s.sendMulticast(&pinf.PLoc{
		Type:  s.config.Type,
		Name:  s.config.Name,
		State: s.config.State,
	})
}

func (s *Session) sendFrames() {
	for i, f := range s.config.Feeds {
		s.mu.Lock()
		active := s.active[i]
		seq := s.sequence[i]
		if active {
			s.sequence[i]++
		}
		s.mu.Unlock()
		if !active {
			continue
		}

		s.sendMulticast(&caex.LaserFeedFrame{
			SourceKey: s.config.SourceKey,
			Feed:      uint8(i),
			Sequence:  seq,
			Points:    f.Points(seq),
		})
		s.metrics.frame(f.Name())
	}
}

func (s *Session) sendMulticast(p message.Payload) {
	data, err := message.New(p).Encode()
	if err == nil {
		err = s.multicast.Send(data)
	}
	if err != nil {
		if s.log != nil {
			s.log.Warnf("send %s/%s: %v", p.Layer().Cookie, p.ContentType(), err)
		}
		return
	}
	s.metrics.messageSent("multicast", p)
}

func (s *Session) handleDatagram(ctx context.Context, msg *transport.ReceivedMessage) {
	m, err := s.config.Registry.Decode(msg.Data)
	if err != nil {
		s.metrics.decodeError("multicast")
		if s.log != nil {
			s.log.Debugf("decode datagram from %s: %v", msg.PeerAddr, err)
		}
		return
	}
	s.metrics.messageReceived("multicast", m)

	ploc, ok := m.Payload.(*pinf.PLoc)
	if !ok || s.State() != StateDiscover {
		return
	}
	if !ploc.Listening() {
		if s.log != nil {
			s.log.Tracef("ignoring %q: not accepting connections", ploc.Name)
		}
		return
	}

	ip := peerIP(ploc.Name, msg.PeerAddr)
	if ip == nil {
		if s.log != nil {
			s.log.Warnf("no address for peer %q", ploc.Name)
		}
		return
	}
	s.connect(ctx, ploc.Name, net.JoinHostPort(ip.String(), strconv.Itoa(int(ploc.ListeningTCPPort))))
}

// peerIP returns the IP written in parentheses in a PLoc name, for example
// "Capture (192.168.1.20)", falling back to the datagram source address.
func peerIP(name string, from transport.PeerAddress) net.IP {
	if open := strings.IndexByte(name, '('); open >= 0 {
		if end := strings.IndexByte(name[open:], ')'); end > 0 {
			if ip := net.ParseIP(strings.TrimSpace(name[open+1 : open+end])); ip != nil {
				return ip
			}
		}
	}
	return from.IP()
}

func (s *Session) connect(ctx context.Context, name, address string) {
	dialCtx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
	nc, err := s.config.Dial(dialCtx, address)
	cancel()
	s.metrics.dial(err)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("connect to %q at %s: %v", name, address, err)
		}
		return
	}

	conn, err := transport.NewConn(nc, transport.ConnConfig{
		MessageHandler: s.onStream,
		MaxMessageSize: s.config.MaxMessageSize,
		LoggerFactory:  s.config.LoggerFactory,
	})
	if err != nil {
		nc.Close()
		return
	}

	pnam := &pinf.PNam{Name: s.config.Name}
	if err := conn.SendMessage(message.New(pnam)); err != nil {
		if s.log != nil {
			s.log.Warnf("identify to %q: %v", name, err)
		}
		conn.Close()
		return
	}
	s.metrics.messageSent("tcp", pnam)

	if err := conn.Start(); err != nil {
		conn.Close()
		return
	}

	s.conn = conn
	s.mu.Lock()
	s.peer = fmt.Sprintf("%s (%s)", name, address)
	s.mu.Unlock()
	s.metrics.setPeers(1)
	if s.log != nil {
		s.log.Infof("connected to %q at %s", name, address)
	}
	s.setState(StateRequest)
}

func (s *Session) handleStream(msg *transport.ReceivedMessage) error {
	m, err := s.config.Registry.Decode(msg.Data)
	if err != nil {
		s.metrics.decodeError("tcp")
		if s.log != nil {
			s.log.Warnf("decode from %s: %v", msg.PeerAddr, err)
		}
		return nil
	}
	s.metrics.messageReceived("tcp", m)

	switch p := m.Payload.(type) {
	case *caex.EnterShow:
		if s.log != nil {
			s.log.Infof("peer entered show %q", p.Name.String())
		}
		return s.reply(m, &caex.EnterShow{Name: wire.NewUcs2(s.config.ShowName)})

	case *caex.GetLaserFeedList:
		return s.reply(m, &caex.LaserFeedList{SourceKey: s.config.SourceKey, Names: s.feedNames})

	case *caex.FixtureListRequest:
		if err := s.reply(m, &caex.FixtureList{Type: caex.FixtureListExistingPatch}); err != nil {
			return err
		}
		if s.State() == StateRequest {
			s.setState(StateStream)
		}

	case *caex.LaserFeedControl:
		s.controlFeed(p)

	case *caex.LeaveShow:
		if s.log != nil {
			s.log.Info("peer left show")
		}

	case *caex.Nack:
		if s.log != nil {
			s.log.Warnf("peer rejected a message: %s", p.Reason)
		}

	case *pinf.PNam:
		if s.log != nil {
			s.log.Infof("peer name %q", p.Name)
		}

	default:
		if s.log != nil {
			s.log.Tracef("ignoring %s/%s", m.Payload.Layer().Cookie, m.Payload.ContentType())
		}
	}
	return nil
}

// reply sends p over TCP, answering req.
func (s *Session) reply(req *message.Message, p message.Payload) error {
	resp := message.New(p)
	resp.Header.SetInResponseTo(req.Header.RequestIndex())
	if err := s.conn.SendMessage(resp); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrConnectionLost, err)
	}
	s.metrics.messageSent("tcp", p)
	return nil
}

func (s *Session) controlFeed(p *caex.LaserFeedControl) {
	if int(p.Feed) >= len(s.config.Feeds) {
		if s.log != nil {
			s.log.Warnf("feed control: %v", fmt.Errorf("%w: %d", ErrUnknownFeed, p.Feed))
		}
		return
	}
	s.mu.Lock()
	s.active[p.Feed] = p.FrameRate != 0
	s.mu.Unlock()
	if s.log != nil {
		s.log.Infof("feed %d %s (rate %d)", p.Feed, onOff(p.FrameRate != 0), p.FrameRate)
	}
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
