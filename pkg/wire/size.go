package wire

// Encoded sizes of the fixed-width primitives.
const (
	SizeU8  = 1
	SizeU16 = 2
	SizeU32 = 4
	SizeU64 = 8
	SizeF32 = 4
	SizeTag = 4
)

// CStringSize returns the encoded size of s including its terminator.
func CStringSize(s string) int {
	return len(s) + 1
}
