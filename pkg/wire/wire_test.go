package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func TestWriterPrimitives(t *testing.T) {
	w := NewWriter(nil)
	w.PutU8(0x01)
	w.PutU16(0x0302)
	w.PutU32(0x07060504)
	w.PutU64(0x0f0e0d0c0b0a0908)
	w.PutF32(1.0)
	if err := w.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0x00, 0x00, 0x80, 0x3f,
	}
	td.Cmp(t, w.Bytes(), want)
	td.Cmp(t, w.Len(), SizeU8+SizeU16+SizeU32+SizeU64+SizeF32)
}

func TestReaderPrimitives(t *testing.T) {
	r := NewReader([]byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0x00, 0x00, 0x80, 0x3f,
	})

	td.Cmp(t, r.U8(), uint8(0x01))
	td.Cmp(t, r.U16(), uint16(0x0302))
	td.Cmp(t, r.U32(), uint32(0x07060504))
	td.Cmp(t, r.U64(), uint64(0x0f0e0d0c0b0a0908))
	td.Cmp(t, r.F32(), float32(1.0))
	td.CmpNoError(t, r.Err())
	td.Cmp(t, r.Remaining(), 0)
}

func TestCString(t *testing.T) {
	tests := []string{"", "a", "CITP Console", "Ünïcödé"}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			w := NewWriter(nil)
			w.PutCString(s)
			if err := w.Err(); err != nil {
				t.Fatalf("PutCString() error = %v", err)
			}
			if w.Len() != CStringSize(s) {
				t.Errorf("Len() = %d, want %d", w.Len(), CStringSize(s))
			}

			r := NewReader(w.Bytes())
			got := r.CString()
			if err := r.Err(); err != nil {
				t.Fatalf("CString() error = %v", err)
			}
			if got != s {
				t.Errorf("CString() = %q, want %q", got, s)
			}
		})
	}
}

func TestCStringRejectsNull(t *testing.T) {
	w := NewWriter(nil)
	w.PutCString("bad\x00name")
	if !errors.Is(w.Err(), ErrMalformed) {
		t.Fatalf("Err() = %v, want ErrMalformed", w.Err())
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}

	// Sticky: later writes are ignored.
	w.PutU8(1)
	if w.Len() != 0 {
		t.Errorf("Len() after failed write = %d, want 0", w.Len())
	}
}

func TestCStringUnterminated(t *testing.T) {
	r := NewReader([]byte("no terminator"))
	if got := r.CString(); got != "" {
		t.Errorf("CString() = %q, want empty", got)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Errorf("Err() = %v, want ErrTruncated", r.Err())
	}
}

func TestReaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader)
	}{
		{"u16", []byte{0x01}, func(r *Reader) { r.U16() }},
		{"u32", []byte{0x01, 0x02, 0x03}, func(r *Reader) { r.U32() }},
		{"u64", make([]byte, 7), func(r *Reader) { r.U64() }},
		{"bytes", []byte{0x01}, func(r *Reader) { r.Bytes(2) }},
		{"empty", nil, func(r *Reader) { r.U8() }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.data)
			tc.read(r)
			if !errors.Is(r.Err(), ErrTruncated) {
				t.Errorf("Err() = %v, want ErrTruncated", r.Err())
			}
			// Values after an error are zero.
			if v := r.U8(); v != 0 {
				t.Errorf("U8() after error = %d, want 0", v)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	t.Run("oversize 8-bit", func(t *testing.T) {
		w := NewWriter(nil)
		w.PutCount8(256)
		if !errors.Is(w.Err(), ErrOversize) {
			t.Fatalf("Err() = %v, want ErrOversize", w.Err())
		}
		td.Cmp(t, w.Len(), 0)
	})

	t.Run("oversize 16-bit", func(t *testing.T) {
		w := NewWriter(nil)
		w.PutU8(7)
		w.PutU16s(make([]uint16, 0x10000))
		if !errors.Is(w.Err(), ErrOversize) {
			t.Fatalf("Err() = %v, want ErrOversize", w.Err())
		}
		td.Cmp(t, w.Len(), 1)
	})

	t.Run("max 16-bit", func(t *testing.T) {
		w := NewWriter(nil)
		w.PutCount16(0xFFFF)
		td.CmpNoError(t, w.Err())
		td.Cmp(t, w.Bytes(), []byte{0xff, 0xff})
	})

	t.Run("count past end", func(t *testing.T) {
		// Claims 3 u16 values but only carries 2.
		r := NewReader([]byte{0x03, 0x00, 0x01, 0x00, 0x02, 0x00})
		vs := r.U16s()
		td.CmpNil(t, vs)
		if !errors.Is(r.Err(), ErrMalformed) {
			t.Errorf("Err() = %v, want ErrMalformed", r.Err())
		}
	})

	t.Run("count8 fits", func(t *testing.T) {
		r := NewReader([]byte{0x02, 0xaa, 0xbb, 0xcc, 0xdd})
		td.Cmp(t, r.Count8(2), 2)
		td.CmpNoError(t, r.Err())
	})

	t.Run("u16s round trip", func(t *testing.T) {
		w := NewWriter(nil)
		w.PutU16s([]uint16{1, 0x1234, 0xffff})
		r := NewReader(w.Bytes())
		td.Cmp(t, r.U16s(), []uint16{1, 0x1234, 0xffff})
		td.CmpNoError(t, r.Err())
	})
}

func TestUcs2(t *testing.T) {
	tests := []string{"", "Show", "Éclairage", "laser 🎆"}

	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			u := NewUcs2(s)
			if u.String() != s {
				t.Errorf("String() = %q, want %q", u.String(), s)
			}

			w := NewWriter(nil)
			w.PutUcs2(u)
			td.CmpNoError(t, w.Err())
			td.Cmp(t, w.Len(), u.Size())

			r := NewReader(w.Bytes())
			got := r.Ucs2()
			td.CmpNoError(t, r.Err())
			td.Cmp(t, got.String(), s)
			td.Cmp(t, r.Remaining(), 0)
		})
	}
}

func TestUcs2WireLayout(t *testing.T) {
	w := NewWriter(nil)
	w.PutUcs2(NewUcs2("AB"))
	td.Cmp(t, w.Bytes(), []byte{0x02, 0x00, 'A', 0x00, 'B', 0x00})
}

func TestUcs2Oversize(t *testing.T) {
	w := NewWriter(nil)
	w.PutUcs2(NewUcs2(strings.Repeat("x", 0x10000)))
	if !errors.Is(w.Err(), ErrOversize) {
		t.Fatalf("Err() = %v, want ErrOversize", w.Err())
	}
}

func TestReaderBytesOwned(t *testing.T) {
	data := []byte{1, 2, 3}
	r := NewReader(data)
	b := r.Bytes(3)
	data[0] = 9
	td.Cmp(t, b, []byte{1, 2, 3})
	td.Cmp(t, r.Offset(), 3)
}
