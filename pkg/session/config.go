package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/backkem/citp/pkg/citp"
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/pinf"
	"github.com/pion/logging"
)

// Default timings.
const (
	// DefaultFrameInterval is the frame cadence, about 60 frames per second.
	DefaultFrameInterval = 16 * time.Millisecond

	// DefaultAnnounceInterval is the PLoc cadence, every 100 frames.
	DefaultAnnounceInterval = 100 * DefaultFrameInterval

	// DefaultDialTimeout bounds a single TCP connection attempt.
	DefaultDialTimeout = 5 * time.Second
)

// DialFunc opens a TCP connection to address ("host:port").
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// Config configures a Session.
type Config struct {
	// Name identifies this peer in PLoc and PNam.
	Name string

	// Type is the PLoc peer type. Defaults to pinf.TypeLightingConsole.
	Type string

	// State is the PLoc state text.
	State string

	// ShowName is sent in reply to EnterShow.
	ShowName string

	// Feeds are the laser outputs offered to the peer. Defaults to one
	// SquareFeed.
	Feeds []Feed

	// SourceKey identifies this process in laser messages. Zero picks a
	// random key.
	SourceKey uint32

	// FrameInterval is the tick of the session loop. Defaults to
	// DefaultFrameInterval.
	FrameInterval time.Duration

	// AnnounceInterval is the PLoc cadence. Defaults to
	// DefaultAnnounceInterval.
	AnnounceInterval time.Duration

	// DialTimeout bounds each connection attempt. Defaults to
	// DefaultDialTimeout.
	DialTimeout time.Duration

	// MaxMessageSize bounds messages accepted over TCP.
	MaxMessageSize uint32

	// Registry decodes received messages. Defaults to citp.NewRegistry().
	Registry *message.Registry

	// PacketConn is an optional pre-created discovery socket, usually a
	// transport pipe in tests. If nil the multicast socket is opened on
	// citp.MulticastPort.
	PacketConn net.PacketConn

	// Interface selects the multicast interface. Nil lets the system choose.
	Interface *net.Interface

	// JoinLegacyGroup also joins the pre-1.1 multicast group.
	JoinLegacyGroup bool

	// Dial opens TCP connections. Defaults to a net.Dialer.
	Dial DialFunc

	// Metrics records session activity. Optional.
	Metrics *Metrics

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Type == "" {
		c.Type = pinf.TypeLightingConsole
	}
	if len(c.Feeds) == 0 {
		c.Feeds = []Feed{&SquareFeed{}}
	}
	if c.SourceKey == 0 {
		c.SourceKey = rand.Uint32() | 1
	}
	if c.FrameInterval == 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.AnnounceInterval == 0 {
		c.AnnounceInterval = DefaultAnnounceInterval
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Registry == nil {
		c.Registry = citp.NewRegistry()
	}
	if c.Dial == nil {
		var d net.Dialer
		c.Dial = func(ctx context.Context, address string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", address)
		}
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.FrameInterval < 0 || c.AnnounceInterval < 0 || c.DialTimeout < 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if len(c.Feeds) > 0xFF {
		return fmt.Errorf("%w: %d > 255", ErrTooManyFeeds, len(c.Feeds))
	}
	return nil
}
