package message

import (
	"fmt"

	"github.com/backkem/citp/pkg/wire"
)

// Header is the 20-byte envelope that prefixes every CITP message.
// All multi-byte fields are little-endian on the wire.
type Header struct {
	// Cookie is always CookieCITP on the wire.
	Cookie ContentType

	VersionMajor uint8
	VersionMinor uint8

	// Correlation is one opaque 16-bit value. A request carries its
	// request index here; a response carries the index copied from the
	// request it answers. 0 means unset. See RequestIndex and InResponseTo.
	Correlation uint16

	// MessageSize is the total size of the message including this header.
	MessageSize uint32

	// PartCount and PartIndex describe fragmentation. Unfragmented
	// messages use PartCount 1, PartIndex 0.
	PartCount uint16
	PartIndex uint16

	// ContentType names the layer that follows.
	ContentType ContentType
}

// RequestIndex reads Correlation as the index of an outgoing request.
func (h *Header) RequestIndex() uint16 {
	return h.Correlation
}

// SetRequestIndex stores idx as the request index.
func (h *Header) SetRequestIndex(idx uint16) {
	h.Correlation = idx
}

// InResponseTo reads Correlation as the index of the request being answered.
func (h *Header) InResponseTo() uint16 {
	return h.Correlation
}

// SetInResponseTo stores the request index this message answers.
func (h *Header) SetInResponseTo(idx uint16) {
	h.Correlation = idx
}

// Answers reports whether h is a response to request. A zero correlation on
// either side never matches.
func (h *Header) Answers(request *Header) bool {
	if h.Correlation == 0 || request.Correlation == 0 {
		return false
	}
	return h.Correlation == request.Correlation
}

// Size returns the encoded size of the envelope header.
func (h *Header) Size() int {
	return HeaderSize
}

// Encode writes the header fields in wire order.
func (h *Header) Encode(w *wire.Writer) {
	w.PutU32(uint32(h.Cookie))
	w.PutU8(h.VersionMajor)
	w.PutU8(h.VersionMinor)
	w.PutU16(h.Correlation)
	w.PutU32(h.MessageSize)
	w.PutU16(h.PartCount)
	w.PutU16(h.PartIndex)
	w.PutU32(uint32(h.ContentType))
}

// Decode reads the header fields in wire order. The cookie is not validated
// here; see Validate.
func (h *Header) Decode(r *wire.Reader) error {
	h.Cookie = ContentType(r.U32())
	h.VersionMajor = r.U8()
	h.VersionMinor = r.U8()
	h.Correlation = r.U16()
	h.MessageSize = r.U32()
	h.PartCount = r.U16()
	h.PartIndex = r.U16()
	h.ContentType = ContentType(r.U32())
	return r.Err()
}

// Validate checks the cookie and the declared message size.
func (h *Header) Validate() error {
	if h.Cookie != CookieCITP {
		return fmt.Errorf("%w: got %s", ErrBadCookie, h.Cookie)
	}
	if h.MessageSize < HeaderSize {
		return fmt.Errorf("%w: %d", ErrMessageSizeTooSmall, h.MessageSize)
	}
	return nil
}

// PeekMessageSize returns the message_size field of an envelope at the start
// of data. ok is false when data is shorter than an envelope header.
func PeekMessageSize(data []byte) (size uint32, ok bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	r := wire.NewReader(data[8:12])
	return r.U32(), true
}

// LayerHeader is the secondary header following the envelope. Which fields
// are present on the wire depends on the layer's LayerFormat.
type LayerHeader struct {
	// ContentType names the message within the layer.
	ContentType ContentType

	// Hint is present for LayerHinted layers.
	Hint uint32

	// VersionMajor and VersionMinor are present for LayerVersioned layers.
	VersionMajor uint8
	VersionMinor uint8
}

// Encode writes the secondary header in the given format.
func (lh *LayerHeader) Encode(w *wire.Writer, format LayerFormat) {
	switch format {
	case LayerHinted:
		w.PutU32(uint32(lh.ContentType))
		w.PutU32(lh.Hint)
	case LayerVersioned:
		w.PutU8(lh.VersionMajor)
		w.PutU8(lh.VersionMinor)
		w.PutU32(uint32(lh.ContentType))
	default:
		w.PutU32(uint32(lh.ContentType))
	}
}

// Decode reads the secondary header in the given format.
func (lh *LayerHeader) Decode(r *wire.Reader, format LayerFormat) error {
	switch format {
	case LayerHinted:
		lh.ContentType = ContentType(r.U32())
		lh.Hint = r.U32()
	case LayerVersioned:
		lh.VersionMajor = r.U8()
		lh.VersionMinor = r.U8()
		lh.ContentType = ContentType(r.U32())
	default:
		lh.ContentType = ContentType(r.U32())
	}
	return r.Err()
}
