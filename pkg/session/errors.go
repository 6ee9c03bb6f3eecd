package session

import "errors"

// Session package errors.
var (
	// ErrInvalidConfig is returned when a Config or HostConfig fails validation.
	ErrInvalidConfig = errors.New("session: invalid config")

	// ErrTooManyFeeds is returned when more feeds are configured than a
	// LaserFeedList can carry.
	ErrTooManyFeeds = errors.New("session: too many feeds")

	// ErrPeerNotFound is returned when a Host has no connection for a peer.
	ErrPeerNotFound = errors.New("session: peer not found")

	// ErrUnknownFeed is returned when a feed index is out of range.
	ErrUnknownFeed = errors.New("session: unknown feed")

	// ErrNotRunning is returned when an operation needs the run loop.
	ErrNotRunning = errors.New("session: not running")
)
