// Package message implements the CITP envelope: the 20-byte header carried by
// every message, the per-layer secondary headers, content-type dispatch and
// TCP stream framing.
//
// The package provides:
//   - Envelope and layer header encoding/decoding
//   - The Payload interface implemented by every layer message
//   - A Registry that resolves (layer, message) tags to payload decoders
//   - Request correlation counters
//   - StreamReader/StreamWriter for message_size delimited TCP streams
package message

import "fmt"

// ContentType is a 4-byte tag read as a little-endian u32.
// Most tags are four ASCII characters ("PINF", "PNam"); CAEX uses numeric tags.
type ContentType uint32

// Cookie builds a ContentType from a 4-character ASCII tag.
// Shorter tags are zero padded, longer tags are truncated.
func Cookie(tag string) ContentType {
	var b [4]byte
	copy(b[:], tag)
	return ContentType(b[0]) | ContentType(b[1])<<8 | ContentType(b[2])<<16 | ContentType(b[3])<<24
}

// Bytes returns the tag in wire order.
func (c ContentType) Bytes() [4]byte {
	return [4]byte{byte(c), byte(c >> 8), byte(c >> 16), byte(c >> 24)}
}

// String returns the ASCII tag when every byte is printable, hex otherwise.
func (c ContentType) String() string {
	b := c.Bytes()
	for _, ch := range b {
		if ch < 0x20 || ch > 0x7e {
			return fmt.Sprintf("0x%08X", uint32(c))
		}
	}
	return string(b[:])
}

// CookieCITP is the envelope cookie, the literal ASCII "CITP".
const CookieCITP ContentType = 'C' | 'I'<<8 | 'T'<<16 | 'P'<<24

// LayerFormat selects the shape of a layer's secondary header.
type LayerFormat uint8

const (
	// LayerPlain is a single content_type u32 (PINF, SDMX, FSEL, FINF, CAEX).
	LayerPlain LayerFormat = iota

	// LayerHinted is content_type u32 followed by content_hint u32 (FPTC).
	LayerHinted

	// LayerVersioned is version_major u8, version_minor u8, content_type u32 (MSEX).
	LayerVersioned
)

// String returns a human-readable name for the layer format.
func (f LayerFormat) String() string {
	switch f {
	case LayerPlain:
		return "Plain"
	case LayerHinted:
		return "Hinted"
	case LayerVersioned:
		return "Versioned"
	default:
		return "Unknown"
	}
}

// Size returns the encoded size of a secondary header in this format.
func (f LayerFormat) Size() int {
	switch f {
	case LayerHinted:
		return 8
	case LayerVersioned:
		return 6
	default:
		return 4
	}
}

// Layer identifies a sub-protocol by its envelope content type and
// the format of its secondary header.
type Layer struct {
	Cookie ContentType
	Format LayerFormat
}

// String returns the layer cookie.
func (l Layer) String() string {
	return l.Cookie.String()
}

// Content hint bits carried by hinted layer headers.
const (
	// HintPartOfSequence marks a message as one of a sequence.
	HintPartOfSequence uint32 = 0x00000001

	// HintEndOfSequence marks the last message of a sequence.
	HintEndOfSequence uint32 = 0x00000002
)
