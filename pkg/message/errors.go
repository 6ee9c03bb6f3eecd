package message

import (
	"errors"
	"fmt"

	"github.com/backkem/citp/pkg/wire"
)

// Message layer errors.
var (
	// Envelope errors
	ErrBadCookie           = fmt.Errorf("%w: bad envelope cookie", wire.ErrMalformed)
	ErrMessageSizeTooSmall = errors.New("message: message_size smaller than envelope header")

	// Stream errors
	ErrMessageTooLong = errors.New("message: message_size exceeds maximum")
)

// Message format constants.
const (
	// VersionMajor and VersionMinor are the envelope version written by encoders.
	VersionMajor uint8 = 1
	VersionMinor uint8 = 0

	// HeaderSize is the fixed envelope header size in bytes.
	// Cookie (4) + Version (2) + Correlation (2) + Size (4) + Parts (4) + ContentType (4) = 20
	HeaderSize = 20

	// DefaultMaxMessageSize bounds the message_size accepted by StreamReader.
	DefaultMaxMessageSize = 16 << 20
)
