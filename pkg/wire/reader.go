package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Reader decodes little-endian values from a byte slice.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader creates a Reader over data. The reader never modifies data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered by the reader.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Fail records err if no error has been recorded yet.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// take returns the next n bytes, or nil after recording ErrTruncated.
func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncated, n, r.off, r.Remaining())
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// U8 reads a single byte.
func (r *Reader) U8() uint8 {
	b := r.take(SizeU8)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a 16-bit little-endian integer.
func (r *Reader) U16() uint16 {
	b := r.take(SizeU16)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a 32-bit little-endian integer.
func (r *Reader) U32() uint32 {
	b := r.take(SizeU32)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a 64-bit little-endian integer.
func (r *Reader) U64() uint64 {
	b := r.take(SizeU64)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// F32 reads an IEEE 754 single precision float.
func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

// Bytes reads n bytes into a new slice owned by the caller.
// Reading zero bytes returns nil.
func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Rest reads every remaining byte into a new slice.
func (r *Reader) Rest() []byte {
	return r.Bytes(r.Remaining())
}

// CString reads bytes up to and including the next 0x00 terminator and
// returns them without the terminator.
func (r *Reader) CString() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.data[r.off:], 0)
	if end < 0 {
		r.err = fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, r.off)
		return ""
	}
	s := string(r.data[r.off : r.off+end])
	r.off += end + 1
	return s
}

// Count8 reads an 8-bit element count for records of at least minElem bytes.
// A count that cannot fit in the remaining data fails with ErrMalformed.
func (r *Reader) Count8(minElem int) int {
	return r.checkCount(int(r.U8()), minElem)
}

// Count16 reads a 16-bit element count for records of at least minElem bytes.
// A count that cannot fit in the remaining data fails with ErrMalformed.
func (r *Reader) Count16(minElem int) int {
	return r.checkCount(int(r.U16()), minElem)
}

func (r *Reader) checkCount(n, minElem int) int {
	if r.err != nil {
		return 0
	}
	if n*minElem > r.Remaining() {
		r.err = fmt.Errorf("%w: count %d of %d-byte records exceeds %d remaining bytes",
			ErrMalformed, n, minElem, r.Remaining())
		return 0
	}
	return n
}

// Ucs2 reads a count-prefixed UCS-2 string. An empty string decodes as nil.
func (r *Reader) Ucs2() Ucs2 {
	n := r.Count16(SizeU16)
	if r.err != nil || n == 0 {
		return nil
	}
	s := make(Ucs2, n)
	for i := range s {
		s[i] = r.U16()
	}
	return s
}

// U16s reads a 16-bit count followed by that many 16-bit values.
// A zero count decodes as nil.
func (r *Reader) U16s() []uint16 {
	n := r.Count16(SizeU16)
	if r.err != nil || n == 0 {
		return nil
	}
	vs := make([]uint16, n)
	for i := range vs {
		vs[i] = r.U16()
	}
	return vs
}
