// Package sdmx implements the CITP SDMX layer: DMX capabilities, universe
// names, channel level blocks and external DMX source selection.
//
// The message types implement message.Payload. Size always matches what
// Encode writes; Decode reads the same layout and reports short input
// through the reader's sticky error.
package sdmx

import (
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// Layer is the SDMX layer.
var Layer = message.Layer{Cookie: message.Cookie("SDMX"), Format: message.LayerPlain}

// Message tags.
var (
	TypeCapa = message.Cookie("Capa")
	TypeUNam = message.Cookie("UNam")
	TypeEnId = message.Cookie("EnId")
	TypeChBk = message.Cookie("ChBk")
	TypeChLs = message.Cookie("ChLs")
	TypeSXSr = message.Cookie("SXSr")
	TypeSXUS = message.Cookie("SXUS")
)

// Capabilities listed in Capa.
const (
	CapChannelList                uint16 = 1
	CapExternalSource             uint16 = 2
	CapPerUniverseExternalSources uint16 = 3
	CapArtNetExternalSources      uint16 = 101
	CapBSRE131ExternalSources     uint16 = 102
	CapETCNet2ExternalSources     uint16 = 103
	CapMANetExternalSources       uint16 = 104
)

// Register adds every SDMX message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	reg.Register(Layer, TypeCapa, func() message.Payload { return &Capa{} })
	reg.Register(Layer, TypeUNam, func() message.Payload { return &UNam{} })
	reg.Register(Layer, TypeEnId, func() message.Payload { return &EnId{} })
	reg.Register(Layer, TypeChBk, func() message.Payload { return &ChBk{} })
	reg.Register(Layer, TypeChLs, func() message.Payload { return &ChLs{} })
	reg.Register(Layer, TypeSXSr, func() message.Payload { return &SXSr{} })
	reg.Register(Layer, TypeSXUS, func() message.Payload { return &SXUS{} })
}

// Capa lists the DMX capabilities of a peer.
type Capa struct {
	Capabilities []uint16
}

func (p *Capa) Layer() message.Layer             { return Layer }
func (p *Capa) ContentType() message.ContentType { return TypeCapa }
func (p *Capa) Size() int                        { return wire.SizeU16 + len(p.Capabilities)*wire.SizeU16 }

func (p *Capa) Encode(w *wire.Writer) error {
	w.PutU16s(p.Capabilities)
	return w.Err()
}

func (p *Capa) Decode(r *wire.Reader) error {
	p.Capabilities = r.U16s()
	return r.Err()
}

// Has reports whether capability c is listed.
func (p *Capa) Has(c uint16) bool {
	for _, v := range p.Capabilities {
		if v == c {
			return true
		}
	}
	return false
}

// UNam names a universe.
type UNam struct {
	Universe uint8
	Name     string
}

func (p *UNam) Layer() message.Layer             { return Layer }
func (p *UNam) ContentType() message.ContentType { return TypeUNam }
func (p *UNam) Size() int                        { return wire.SizeU8 + wire.CStringSize(p.Name) }

func (p *UNam) Encode(w *wire.Writer) error {
	w.PutU8(p.Universe)
	w.PutCString(p.Name)
	return w.Err()
}

func (p *UNam) Decode(r *wire.Reader) error {
	p.Universe = r.U8()
	p.Name = r.CString()
	return r.Err()
}

// EnId carries an encryption identifier.
type EnId struct {
	Identifier string
}

func (p *EnId) Layer() message.Layer             { return Layer }
func (p *EnId) ContentType() message.ContentType { return TypeEnId }
func (p *EnId) Size() int                        { return wire.CStringSize(p.Identifier) }

func (p *EnId) Encode(w *wire.Writer) error {
	w.PutCString(p.Identifier)
	return w.Err()
}

func (p *EnId) Decode(r *wire.Reader) error {
	p.Identifier = r.CString()
	return r.Err()
}

// ChBk is a block of consecutive channel levels in one universe.
type ChBk struct {
	// Blind is non-zero for blind (preview) levels.
	Blind        uint8
	Universe     uint8
	FirstChannel uint16
	Levels       []byte
}

func (p *ChBk) Layer() message.Layer             { return Layer }
func (p *ChBk) ContentType() message.ContentType { return TypeChBk }

func (p *ChBk) Size() int {
	return wire.SizeU8 + wire.SizeU8 + wire.SizeU16 + wire.SizeU16 + len(p.Levels)
}

func (p *ChBk) Encode(w *wire.Writer) error {
	w.PutU8(p.Blind)
	w.PutU8(p.Universe)
	w.PutU16(p.FirstChannel)
	w.PutCount16(len(p.Levels))
	w.PutBytes(p.Levels)
	return w.Err()
}

func (p *ChBk) Decode(r *wire.Reader) error {
	p.Blind = r.U8()
	p.Universe = r.U8()
	p.FirstChannel = r.U16()
	p.Levels = r.Bytes(r.Count16(wire.SizeU8))
	return r.Err()
}

// ChannelLevel is one entry of ChLs.
type ChannelLevel struct {
	Universe uint8
	Channel  uint16
	Level    uint8
}

// channelLevelSize is the encoded size of a ChannelLevel.
const channelLevelSize = wire.SizeU8 + wire.SizeU16 + wire.SizeU8

// ChLs is a list of individual channel levels.
type ChLs struct {
	Levels []ChannelLevel
}

func (p *ChLs) Layer() message.Layer             { return Layer }
func (p *ChLs) ContentType() message.ContentType { return TypeChLs }
func (p *ChLs) Size() int                        { return wire.SizeU16 + len(p.Levels)*channelLevelSize }

func (p *ChLs) Encode(w *wire.Writer) error {
	w.PutCount16(len(p.Levels))
	for _, l := range p.Levels {
		w.PutU8(l.Universe)
		w.PutU16(l.Channel)
		w.PutU8(l.Level)
	}
	return w.Err()
}

func (p *ChLs) Decode(r *wire.Reader) error {
	n := r.Count16(channelLevelSize)
	p.Levels = nil
	for range n {
		p.Levels = append(p.Levels, ChannelLevel{
			Universe: r.U8(),
			Channel:  r.U16(),
			Level:    r.U8(),
		})
	}
	return r.Err()
}

// SXSr selects an external DMX source for the whole peer.
type SXSr struct {
	ConnectionString string
}

func (p *SXSr) Layer() message.Layer             { return Layer }
func (p *SXSr) ContentType() message.ContentType { return TypeSXSr }
func (p *SXSr) Size() int                        { return wire.CStringSize(p.ConnectionString) }

func (p *SXSr) Encode(w *wire.Writer) error {
	w.PutCString(p.ConnectionString)
	return w.Err()
}

func (p *SXSr) Decode(r *wire.Reader) error {
	p.ConnectionString = r.CString()
	return r.Err()
}

// SXUS selects an external DMX source for one universe.
type SXUS struct {
	Universe         uint8
	ConnectionString string
}

func (p *SXUS) Layer() message.Layer             { return Layer }
func (p *SXUS) ContentType() message.ContentType { return TypeSXUS }
func (p *SXUS) Size() int                        { return wire.SizeU8 + wire.CStringSize(p.ConnectionString) }

func (p *SXUS) Encode(w *wire.Writer) error {
	w.PutU8(p.Universe)
	w.PutCString(p.ConnectionString)
	return w.Err()
}

func (p *SXUS) Decode(r *wire.Reader) error {
	p.Universe = r.U8()
	p.ConnectionString = r.CString()
	return r.Err()
}
