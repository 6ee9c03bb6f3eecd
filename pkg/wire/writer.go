package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Writer appends little-endian encoded values to a byte slice.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a Writer that appends to buf.
// Pass a slice with enough capacity (usually from a Size method) to avoid
// reallocation.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the encoded bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first error encountered by the writer.
func (w *Writer) Err() error {
	return w.err
}

// Fail records err if no error has been recorded yet.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// PutU8 writes a single byte.
func (w *Writer) PutU8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

// PutU16 writes a 16-bit little-endian integer.
func (w *Writer) PutU16(v uint16) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// PutU32 writes a 32-bit little-endian integer.
func (w *Writer) PutU32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// PutU64 writes a 64-bit little-endian integer.
func (w *Writer) PutU64(v uint64) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// PutF32 writes an IEEE 754 single precision float.
func (w *Writer) PutF32(v float32) {
	w.PutU32(math.Float32bits(v))
}

// PutBytes writes b verbatim.
func (w *Writer) PutBytes(b []byte) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, b...)
}

// PutCString writes s followed by a 0x00 terminator.
// Strings containing 0x00 cannot be represented and fail with ErrMalformed.
func (w *Writer) PutCString(s string) {
	if w.err != nil {
		return
	}
	if strings.IndexByte(s, 0) >= 0 {
		w.err = fmt.Errorf("%w: string contains a null byte", ErrMalformed)
		return
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// PutCount8 writes n as an 8-bit element count.
// Counts above 255 fail with ErrOversize before anything is written.
func (w *Writer) PutCount8(n int) {
	if w.err != nil {
		return
	}
	if n < 0 || n > math.MaxUint8 {
		w.err = fmt.Errorf("%w: %d elements for an 8-bit count", ErrOversize, n)
		return
	}
	w.buf = append(w.buf, uint8(n))
}

// PutCount16 writes n as a 16-bit element count.
// Counts above 65535 fail with ErrOversize before anything is written.
func (w *Writer) PutCount16(n int) {
	if w.err != nil {
		return
	}
	if n < 0 || n > math.MaxUint16 {
		w.err = fmt.Errorf("%w: %d elements for a 16-bit count", ErrOversize, n)
		return
	}
	w.PutU16(uint16(n))
}

// PutUcs2 writes a count-prefixed UCS-2 string.
func (w *Writer) PutUcs2(s Ucs2) {
	w.PutCount16(len(s))
	for _, u := range s {
		w.PutU16(u)
	}
}

// PutU16s writes a 16-bit count followed by the values.
func (w *Writer) PutU16s(vs []uint16) {
	w.PutCount16(len(vs))
	for _, v := range vs {
		w.PutU16(v)
	}
}
