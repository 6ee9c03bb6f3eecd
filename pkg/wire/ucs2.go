package wire

import "unicode/utf16"

// Ucs2 is a wide string made of 16-bit code units. On the wire it is a
// 16-bit element count followed by the code units, with no terminator.
type Ucs2 []uint16

// NewUcs2 converts s to 16-bit code units. Characters outside the basic
// multilingual plane become surrogate pairs. The empty string gives nil.
func NewUcs2(s string) Ucs2 {
	if s == "" {
		return nil
	}
	return Ucs2(utf16.Encode([]rune(s)))
}

// String decodes the code units back to a Go string.
func (u Ucs2) String() string {
	return string(utf16.Decode(u))
}

// Size returns the encoded size including the count prefix.
func (u Ucs2) Size() int {
	return SizeU16 + len(u)*SizeU16
}
