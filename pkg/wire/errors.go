package wire

import "errors"

// Codec errors.
var (
	// ErrTruncated is returned when fewer bytes are available than the
	// structure being decoded requires.
	ErrTruncated = errors.New("wire: truncated")

	// ErrMalformed is returned when the data is structurally invalid, for
	// example a count field that claims more records than the buffer holds,
	// or a string that cannot be represented on the wire.
	ErrMalformed = errors.New("wire: malformed")

	// ErrOversize is returned on encode when a collection has more elements
	// than its count prefix can represent.
	ErrOversize = errors.New("wire: count exceeds prefix range")
)
