// Package msex implements the CITP Media Server Extensions layer. MSEX uses
// the versioned layer header; messages here follow the 1.2 layouts.
//
// Messages implement message.Payload and message.Versioned. Version
// reports the layout a type encodes, which Message.Encode copies into an
// unset layer header; Size is always the number of bytes Encode writes.
package msex

import (
	"strings"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
	"github.com/google/uuid"
)

// Layer is the MSEX layer.
var Layer = message.Layer{Cookie: message.Cookie("MSEX"), Format: message.LayerVersioned}

// Layer header version written by this package.
const (
	VersionMajor uint8 = 1
	VersionMinor uint8 = 2
)

// Message tags.
var (
	TypeCInf = message.Cookie("CInf")
	TypeSInf = message.Cookie("SInf")
	TypeNack = message.Cookie("Nack")
	TypeRqSt = message.Cookie("RqSt")
	TypeStFr = message.Cookie("StFr")
)

// Image and stream formats.
var (
	FormatRGB8 = message.Cookie("RGB8")
	FormatJPEG = message.Cookie("JPEG")
	FormatPNG  = message.Cookie("PNG ")
	FormatFJPG = message.Cookie("fJPG")
	FormatFPNG = message.Cookie("fPNG")
)

// Register adds every MSEX message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	reg.Register(Layer, TypeCInf, func() message.Payload { return &CInf{} })
	reg.Register(Layer, TypeSInf, func() message.Payload { return &SInf{} })
	reg.Register(Layer, TypeNack, func() message.Payload { return &Nack{} })
	reg.Register(Layer, TypeRqSt, func() message.Payload { return &RqSt{} })
	reg.Register(Layer, TypeStFr, func() message.Payload { return &StFr{} })
}

// Version is an MSEX version pair. On the wire it is a u16 with the major
// version in the high byte.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) u16() uint16 { return uint16(v.Major)<<8 | uint16(v.Minor) }

func versionFromU16(u uint16) Version { return Version{Major: uint8(u >> 8), Minor: uint8(u)} }

func putVersions(w *wire.Writer, vs []Version) {
	w.PutCount8(len(vs))
	for _, v := range vs {
		w.PutU16(v.u16())
	}
}

func readVersions(r *wire.Reader) []Version {
	n := r.Count8(wire.SizeU16)
	var vs []Version
	for range n {
		vs = append(vs, versionFromU16(r.U16()))
	}
	return vs
}

// UUID is a 36 character textual UUID carried as raw ASCII.
type UUID [36]byte

// NewUUID copies s into a UUID, truncating or zero padding as needed.
func NewUUID(s string) UUID {
	var u UUID
	copy(u[:], s)
	return u
}

// RandomUUID returns a new random (version 4) UUID, suitable for
// identifying a media server in SInf and StFr.
func RandomUUID() UUID {
	return NewUUID(uuid.NewString())
}

// Valid reports whether u holds a well formed UUID.
func (u UUID) Valid() bool {
	_, err := uuid.Parse(u.String())
	return err == nil
}

// String returns the UUID text without zero padding.
func (u UUID) String() string {
	return strings.TrimRight(string(u[:]), "\x00")
}

type versioned struct{}

func (versioned) Layer() message.Layer    { return Layer }
func (versioned) Version() (uint8, uint8) { return VersionMajor, VersionMinor }

// CInf advertises the MSEX versions a client supports. It must be sent right
// after connecting to a media server. FutureData holds any trailing bytes
// added by later versions.
type CInf struct {
	versioned
	Versions   []Version
	FutureData []byte
}

func (p *CInf) ContentType() message.ContentType { return TypeCInf }

func (p *CInf) Size() int {
	return wire.SizeU8 + len(p.Versions)*wire.SizeU16 + len(p.FutureData)
}

func (p *CInf) Encode(w *wire.Writer) error {
	putVersions(w, p.Versions)
	w.PutBytes(p.FutureData)
	return w.Err()
}

// Decode keeps every byte after the version list in FutureData.
func (p *CInf) Decode(r *wire.Reader) error {
	p.Versions = readVersions(r)
	p.FutureData = r.Rest()
	return r.Err()
}

// SInf describes a media server.
type SInf struct {
	versioned
	UUID           UUID
	ProductName    wire.Ucs2
	ProductMajor   uint8
	ProductMinor   uint8
	ProductBugfix  uint8
	Versions       []Version
	LibraryTypes   uint16 // bitmask
	ThumbnailTypes []message.ContentType
	StreamTypes    []message.ContentType
	// LayerDMXSources holds one DMX connection string per layer.
	LayerDMXSources []wire.Ucs2
}

func (p *SInf) ContentType() message.ContentType { return TypeSInf }

func (p *SInf) Size() int {
	size := len(p.UUID) + p.ProductName.Size() + 3*wire.SizeU8 +
		wire.SizeU8 + len(p.Versions)*wire.SizeU16 +
		wire.SizeU16 +
		wire.SizeU8 + len(p.ThumbnailTypes)*wire.SizeTag +
		wire.SizeU8 + len(p.StreamTypes)*wire.SizeTag +
		wire.SizeU8
	for _, s := range p.LayerDMXSources {
		size += s.Size()
	}
	return size
}

func (p *SInf) Encode(w *wire.Writer) error {
	w.PutBytes(p.UUID[:])
	w.PutUcs2(p.ProductName)
	w.PutU8(p.ProductMajor)
	w.PutU8(p.ProductMinor)
	w.PutU8(p.ProductBugfix)
	putVersions(w, p.Versions)
	w.PutU16(p.LibraryTypes)
	putTags(w, p.ThumbnailTypes)
	putTags(w, p.StreamTypes)
	w.PutCount8(len(p.LayerDMXSources))
	for _, s := range p.LayerDMXSources {
		w.PutUcs2(s)
	}
	return w.Err()
}

func (p *SInf) Decode(r *wire.Reader) error {
	copy(p.UUID[:], r.Bytes(len(p.UUID)))
	p.ProductName = r.Ucs2()
	p.ProductMajor = r.U8()
	p.ProductMinor = r.U8()
	p.ProductBugfix = r.U8()
	p.Versions = readVersions(r)
	p.LibraryTypes = r.U16()
	p.ThumbnailTypes = readTags(r)
	p.StreamTypes = readTags(r)
	n := r.Count8(wire.SizeU16)
	p.LayerDMXSources = nil
	for range n {
		p.LayerDMXSources = append(p.LayerDMXSources, r.Ucs2())
	}
	return r.Err()
}

func putTags(w *wire.Writer, tags []message.ContentType) {
	w.PutCount8(len(tags))
	for _, t := range tags {
		w.PutU32(uint32(t))
	}
}

func readTags(r *wire.Reader) []message.ContentType {
	n := r.Count8(wire.SizeTag)
	var tags []message.ContentType
	for range n {
		tags = append(tags, message.ContentType(r.U32()))
	}
	return tags
}

// Nack rejects a message the media server cannot handle.
type Nack struct {
	versioned
	Received message.ContentType
}

func (p *Nack) ContentType() message.ContentType { return TypeNack }
func (p *Nack) Size() int                        { return wire.SizeTag }

func (p *Nack) Encode(w *wire.Writer) error {
	w.PutU32(uint32(p.Received))
	return w.Err()
}

func (p *Nack) Decode(r *wire.Reader) error {
	p.Received = message.ContentType(r.U32())
	return r.Err()
}

// RqSt requests a video stream from a source.
type RqSt struct {
	versioned
	Source  uint16
	Format  message.ContentType
	Width   uint16
	Height  uint16
	FPS     uint8
	Timeout uint8 // seconds
}

func (p *RqSt) ContentType() message.ContentType { return TypeRqSt }

func (p *RqSt) Size() int {
	return wire.SizeU16 + wire.SizeTag + 2*wire.SizeU16 + 2*wire.SizeU8
}

func (p *RqSt) Encode(w *wire.Writer) error {
	w.PutU16(p.Source)
	w.PutU32(uint32(p.Format))
	w.PutU16(p.Width)
	w.PutU16(p.Height)
	w.PutU8(p.FPS)
	w.PutU8(p.Timeout)
	return w.Err()
}

func (p *RqSt) Decode(r *wire.Reader) error {
	p.Source = r.U16()
	p.Format = message.ContentType(r.U32())
	p.Width = r.U16()
	p.Height = r.U16()
	p.FPS = r.U8()
	p.Timeout = r.U8()
	return r.Err()
}

// StFr carries one video frame of a requested stream.
type StFr struct {
	versioned
	UUID   UUID
	Source uint16
	Format message.ContentType
	Width  uint16
	Height uint16
	Buffer []byte
}

func (p *StFr) ContentType() message.ContentType { return TypeStFr }

func (p *StFr) Size() int {
	return len(p.UUID) + wire.SizeU16 + wire.SizeTag + 2*wire.SizeU16 + wire.SizeU16 + len(p.Buffer)
}

// Encode fails with wire.ErrOversize when Buffer exceeds 65535 bytes.
func (p *StFr) Encode(w *wire.Writer) error {
	w.PutBytes(p.UUID[:])
	w.PutU16(p.Source)
	w.PutU32(uint32(p.Format))
	w.PutU16(p.Width)
	w.PutU16(p.Height)
	w.PutCount16(len(p.Buffer))
	w.PutBytes(p.Buffer)
	return w.Err()
}

func (p *StFr) Decode(r *wire.Reader) error {
	copy(p.UUID[:], r.Bytes(len(p.UUID)))
	p.Source = r.U16()
	p.Format = message.ContentType(r.U32())
	p.Width = r.U16()
	p.Height = r.U16()
	p.Buffer = r.Bytes(r.Count16(wire.SizeU8))
	return r.Err()
}
