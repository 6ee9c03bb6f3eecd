package session

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/backkem/citp/pkg/caex"
	"github.com/backkem/citp/pkg/citp"
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/pinf"
	"github.com/backkem/citp/pkg/transport"
	"github.com/backkem/citp/pkg/wire"
	"github.com/pion/logging"
)

// HostConfig configures a Host.
type HostConfig struct {
	// Name identifies this peer in PLoc.
	Name string

	// Type is the PLoc peer type. Defaults to pinf.TypeVisualiser.
	Type string

	// State is the PLoc state text.
	State string

	// ShowName is sent in EnterShow to every peer that identifies itself.
	ShowName string

	// AdvertiseIP, if set, is appended to the PLoc name in parentheses so
	// peers connect to it rather than to the datagram source.
	AdvertiseIP net.IP

	// Listener is an optional pre-created TCP listener. If nil one is
	// opened on ListenAddr.
	Listener net.Listener

	// ListenAddr defaults to ":0".
	ListenAddr string

	// PacketConn, Interface and JoinLegacyGroup configure the discovery
	// socket as in Config.
	PacketConn      net.PacketConn
	Interface       *net.Interface
	JoinLegacyGroup bool

	// AnnounceInterval defaults to DefaultAnnounceInterval.
	AnnounceInterval time.Duration

	// MaxMessageSize bounds messages accepted over TCP.
	MaxMessageSize uint32

	// Registry defaults to citp.NewRegistry().
	Registry *message.Registry

	// OnFrame is called from the run loop for every laser frame received
	// on the multicast group.
	OnFrame func(from transport.PeerAddress, frame *caex.LaserFeedFrame)

	// OnMessage is called from the run loop for every message received
	// over TCP.
	OnMessage func(from transport.PeerAddress, msg *message.Message)

	// Metrics records host activity. Optional.
	Metrics *Metrics

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *HostConfig) applyDefaults() {
	if c.Type == "" {
		c.Type = pinf.TypeVisualiser
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":0"
	}
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = DefaultAnnounceInterval
	}
	if c.Registry == nil {
		c.Registry = citp.NewRegistry()
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *HostConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.AnnounceInterval < 0 {
		return fmt.Errorf("%w: announce interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// PeerInfo describes a peer connected to a Host.
type PeerInfo struct {
	Address   string   `json:"address"`
	Name      string   `json:"name,omitempty"`
	Show      string   `json:"show,omitempty"`
	SourceKey uint32   `json:"source_key,omitempty"`
	Feeds     []string `json:"feeds,omitempty"`
	Fixtures  int      `json:"fixtures"`
	Frames    uint64   `json:"frames"`
}

// Host is the listening side of a CITP link. It announces its TCP port,
// accepts streaming peers, asks each for its show, feeds and fixtures, and
// reports the laser frames they multicast.
type Host struct {
	config    HostConfig
	tcp       *transport.TCP
	multicast *transport.Multicast
	log       logging.LeveledLogger
	metrics   *Metrics
	requests  *message.RequestCounter

	events  chan hostEvent
	closeCh chan struct{}

	mu      sync.Mutex
	peers   map[string]*PeerInfo
	running bool
}

// hostEvent is either a received message or the address of a peer whose
// connection finished.
type hostEvent struct {
	msg  *transport.ReceivedMessage
	gone string
}

// NewHost creates a Host and opens its sockets.
func NewHost(config HostConfig) (*Host, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		config:   config,
		metrics:  config.Metrics,
		requests: message.NewRequestCounter(),
		events:   make(chan hostEvent, 64),
		closeCh:  make(chan struct{}),
		peers:    make(map[string]*PeerInfo),
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("host")
	}

	tcp, err := transport.NewTCP(transport.TCPConfig{
		Listener:       config.Listener,
		ListenAddr:     config.ListenAddr,
		MessageHandler: h.onMessage,
		CloseHandler:   h.onClose,
		MaxMessageSize: config.MaxMessageSize,
		LoggerFactory:  config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	mc, err := transport.NewMulticast(transport.MulticastConfig{
		Conn:            config.PacketConn,
		Interface:       config.Interface,
		JoinLegacyGroup: config.JoinLegacyGroup,
		MessageHandler:  h.onMessage,
		LoggerFactory:   config.LoggerFactory,
	})
	if err != nil {
		tcp.Stop()
		return nil, err
	}
	h.tcp = tcp
	h.multicast = mc
	return h, nil
}

// Port returns the TCP port announced in PLoc.
func (h *Host) Port() int {
	return h.tcp.Port()
}

// Peers returns the connected peers sorted by address.
func (h *Host) Peers() []PeerInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]PeerInfo, 0, len(h.peers))
	for _, p := range h.peers {
		info := *p
		info.Feeds = append([]string(nil), p.Feeds...)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// SetFeed asks the peer at address to start (rate > 0) or stop a feed.
func (h *Host) SetFeed(address string, feed, rate uint8) error {
	h.mu.Lock()
	_, ok := h.peers[address]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, address)
	}
	return h.send(address, &caex.LaserFeedControl{Feed: feed, FrameRate: rate})
}

// Run accepts peers and processes messages until ctx is cancelled.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return transport.ErrAlreadyStarted
	}
	h.running = true
	h.mu.Unlock()

	defer func() {
		close(h.closeCh)
		h.tcp.Stop()
		h.multicast.Stop()
	}()

	if err := h.multicast.JoinGroup(); err != nil {
		return err
	}
	if err := h.tcp.Start(); err != nil {
		return err
	}
	if err := h.multicast.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(h.config.AnnounceInterval)
	defer ticker.Stop()

	h.announce()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.announce()
		case ev := <-h.events:
			if ev.msg != nil {
				h.handle(ev.msg)
			} else {
				h.dropPeer(ev.gone)
			}
		}
	}
}

func (h *Host) onMessage(msg *transport.ReceivedMessage) {
	select {
	case h.events <- hostEvent{msg: msg}:
	case <-h.closeCh:
	}
}

func (h *Host) onClose(peer transport.PeerAddress, err error) {
	if h.log != nil {
		h.log.Infof("peer %s disconnected: %v", peer, err)
	}
	select {
	case h.events <- hostEvent{gone: peer.Addr.String()}:
	case <-h.closeCh:
	}
}

func (h *Host) dropPeer(address string) {
	h.mu.Lock()
	delete(h.peers, address)
	n := len(h.peers)
	h.mu.Unlock()
	h.metrics.setPeers(n)
}

func (h *Host) announce() {
	name := h.config.Name
	if h.config.AdvertiseIP != nil {
		name = fmt.Sprintf("%s (%s)", name, h.config.AdvertiseIP)
	}
	ploc := &pinf.PLoc{
		ListeningTCPPort: uint16(h.tcp.Port()),
		Type:             h.config.Type,
		Name:             name,
		State:            h.config.State,
	}
	data, err := message.New(ploc).Encode()
	if err == nil {
		err = h.multicast.Send(data)
	}
	if err != nil {
		if h.log != nil {
			h.log.Warnf("announce: %v", err)
		}
		return
	}
	h.metrics.messageSent("multicast", ploc)
}

func (h *Host) handle(msg *transport.ReceivedMessage) {
	kind := "tcp"
	if msg.PeerAddr.TransportType == transport.TransportTypeMulticast {
		kind = "multicast"
	}

	m, err := h.config.Registry.Decode(msg.Data)
	if err != nil {
		h.metrics.decodeError(kind)
		if h.log != nil {
			h.log.Debugf("decode from %s: %v", msg.PeerAddr, err)
		}
		return
	}
	h.metrics.messageReceived(kind, m)

	if kind == "multicast" {
		if frame, ok := m.Payload.(*caex.LaserFeedFrame); ok {
			h.frameReceived(msg.PeerAddr, frame)
		}
		return
	}

	if h.config.OnMessage != nil {
		h.config.OnMessage(msg.PeerAddr, m)
	}

	address := msg.PeerAddr.Addr.String()
	switch p := m.Payload.(type) {
	case *pinf.PNam:
		h.identified(address, p.Name)
	case *caex.EnterShow:
		h.updatePeer(address, func(info *PeerInfo) { info.Show = p.Name.String() })
	case *caex.LaserFeedList:
		h.updatePeer(address, func(info *PeerInfo) {
			info.SourceKey = p.SourceKey
			info.Feeds = info.Feeds[:0]
			for _, n := range p.Names {
				info.Feeds = append(info.Feeds, n.String())
			}
		})
	case *caex.FixtureList:
		h.updatePeer(address, func(info *PeerInfo) { info.Fixtures = len(p.Fixtures) })
	case *caex.Nack:
		if h.log != nil {
			h.log.Warnf("%s rejected request %d: %s", address, m.Header.InResponseTo(), p.Reason)
		}
	}
}

// identified starts the request phase with a peer that sent PNam.
func (h *Host) identified(address, name string) {
	h.mu.Lock()
	h.peers[address] = &PeerInfo{Address: address, Name: name}
	n := len(h.peers)
	h.mu.Unlock()
	h.metrics.setPeers(n)

	if h.log != nil {
		h.log.Infof("peer %q connected from %s", name, address)
	}

	for _, p := range []message.Payload{
		&caex.EnterShow{Name: wire.NewUcs2(h.config.ShowName)},
		&caex.GetLaserFeedList{},
		&caex.FixtureListRequest{},
	} {
		if err := h.send(address, p); err != nil {
			if h.log != nil {
				h.log.Warnf("request %s from %s: %v", p.ContentType(), address, err)
			}
			return
		}
	}
}

func (h *Host) updatePeer(address string, update func(*PeerInfo)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if info, ok := h.peers[address]; ok {
		update(info)
	}
}

func (h *Host) frameReceived(from transport.PeerAddress, frame *caex.LaserFeedFrame) {
	label := frameLabelUnidentified
	h.mu.Lock()
	for _, info := range h.peers {
		if info.SourceKey != 0 && info.SourceKey == frame.SourceKey {
			info.Frames++
			label = fmt.Sprintf("%08x/%d", frame.SourceKey, frame.Feed)
		}
	}
	h.mu.Unlock()

	h.metrics.frame(label)
	if h.config.OnFrame != nil {
		h.config.OnFrame(from, frame)
	}
}

// send writes a request to a connected peer with a fresh request index.
func (h *Host) send(address string, p message.Payload) error {
	conn := h.tcp.Conn(address)
	if conn == nil {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, address)
	}
	m := message.New(p)
	m.Header.SetRequestIndex(h.requests.Next())
	if err := conn.SendMessage(m); err != nil {
		return err
	}
	h.metrics.messageSent("tcp", p)
	return nil
}
