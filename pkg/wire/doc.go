// Package wire implements the primitive little-endian codec shared by every
// CITP layer: fixed-width integers and floats, null-terminated strings,
// count-prefixed UCS-2 strings and count prefixes for repeated records.
//
// Writer and Reader keep a sticky error. Once an operation fails every later
// call is a no-op (Writer) or returns the zero value (Reader), so a message
// codec can issue its field operations in wire order and check Err once.
//
//	w := wire.NewWriter(make([]byte, 0, p.Size()))
//	w.PutU16(p.Port)
//	w.PutCString(p.Name)
//	if err := w.Err(); err != nil { ... }
//
// Size helpers mirror the encoders so a message size can be computed before
// anything is written.
package wire
