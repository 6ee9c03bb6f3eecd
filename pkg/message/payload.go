package message

import (
	"fmt"
	"math"

	"github.com/backkem/citp/pkg/wire"
)

// Payload is implemented by every layer message.
// Size must always equal the number of bytes Encode writes.
type Payload interface {
	// Layer returns the layer the message belongs to.
	Layer() Layer

	// ContentType returns the message tag within the layer.
	ContentType() ContentType

	// Size returns the encoded payload size, excluding headers.
	Size() int

	// Encode writes the payload fields in wire order.
	Encode(w *wire.Writer) error

	// Decode reads the payload fields in wire order.
	Decode(r *wire.Reader) error
}

// Versioned is implemented by payloads of versioned layers. Message.Encode
// uses it to fill an unset layer header version.
type Versioned interface {
	Version() (major, minor uint8)
}

// Message pairs the envelope and layer headers with a decoded payload.
type Message struct {
	Header      Header
	LayerHeader LayerHeader
	Payload     Payload
}

// New creates a message carrying p. The envelope and layer header are
// completed by Encode.
func New(p Payload) *Message {
	return &Message{Payload: p}
}

// Size returns the total encoded size including both headers.
func (m *Message) Size() int {
	size := HeaderSize + m.Payload.Size()
	if u, ok := m.Payload.(*Unknown); ok && u.Bare {
		return size
	}
	return size + m.Payload.Layer().Format.Size()
}

// Encode serializes the message. It fills the cookie, version, part fields,
// both content types and MessageSize from the payload before writing, so the
// caller only sets Correlation (and the layer hint or version if needed).
func (m *Message) Encode() ([]byte, error) {
	if m.Payload == nil {
		return nil, fmt.Errorf("message: encode: nil payload")
	}

	layer := m.Payload.Layer()
	size := m.Size()
	if uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: message of %d bytes", wire.ErrOversize, size)
	}

	m.Header.Cookie = CookieCITP
	m.Header.VersionMajor = VersionMajor
	m.Header.VersionMinor = VersionMinor
	m.Header.MessageSize = uint32(size)
	if m.Header.PartCount == 0 {
		m.Header.PartCount = 1
	}
	m.Header.ContentType = layer.Cookie
	m.LayerHeader.ContentType = m.Payload.ContentType()
	if v, ok := m.Payload.(Versioned); ok && m.LayerHeader.VersionMajor == 0 && m.LayerHeader.VersionMinor == 0 {
		m.LayerHeader.VersionMajor, m.LayerHeader.VersionMinor = v.Version()
	}

	w := wire.NewWriter(make([]byte, 0, size))
	m.Header.Encode(w)
	if u, ok := m.Payload.(*Unknown); !ok || !u.Bare {
		m.LayerHeader.Encode(w, layer.Format)
	}
	if err := m.Payload.Encode(w); err != nil {
		return nil, fmt.Errorf("message: encode %s/%s: %w", layer, m.Payload.ContentType(), err)
	}
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("message: encode %s/%s: %w", layer, m.Payload.ContentType(), err)
	}
	if w.Len() != size {
		return nil, fmt.Errorf("message: encode %s/%s: wrote %d bytes, size %d",
			layer, m.Payload.ContentType(), w.Len(), size)
	}
	return w.Bytes(), nil
}

// Unknown holds a message whose layer or message tag is not registered.
// Receiving one is not an error; callers skip or forward it.
type Unknown struct {
	// LayerID is the layer the message was sent on.
	LayerID Layer

	// Tag is the message tag. It is zero when Bare is set.
	Tag ContentType

	// Bare is set when the layer itself is unknown: Data then holds every
	// byte after the envelope, including the unparsed layer header.
	Bare bool

	// Data holds the undecoded payload bytes.
	Data []byte
}

// Layer returns the layer the message arrived on.
func (u *Unknown) Layer() Layer { return u.LayerID }

// ContentType returns the unrecognized message tag.
func (u *Unknown) ContentType() ContentType { return u.Tag }

// Size returns len(Data).
func (u *Unknown) Size() int { return len(u.Data) }

// Encode writes Data verbatim.
func (u *Unknown) Encode(w *wire.Writer) error {
	w.PutBytes(u.Data)
	return w.Err()
}

// Decode takes every remaining byte.
func (u *Unknown) Decode(r *wire.Reader) error {
	u.Data = r.Rest()
	return r.Err()
}
