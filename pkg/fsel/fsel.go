// Package fsel implements the CITP Fixture Selection layer.
//
// Sele and DeSe implement message.Payload; Size equals the bytes Encode
// writes and Decode reads the same layout back.
package fsel

import (
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// Layer is the FSEL layer.
var Layer = message.Layer{Cookie: message.Cookie("FSEL"), Format: message.LayerPlain}

// Message tags.
var (
	TypeSele = message.Cookie("Sele")
	TypeDeSe = message.Cookie("DeSe")
)

// Register adds every FSEL message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	reg.Register(Layer, TypeSele, func() message.Payload { return &Sele{} })
	reg.Register(Layer, TypeDeSe, func() message.Payload { return &DeSe{} })
}

// Sele selects fixtures. When Complete is non-zero every fixture not listed
// is deselected.
type Sele struct {
	Complete uint8
	Reserved uint8
	Fixtures []uint16
}

func (p *Sele) Layer() message.Layer             { return Layer }
func (p *Sele) ContentType() message.ContentType { return TypeSele }

func (p *Sele) Size() int {
	return wire.SizeU8 + wire.SizeU8 + wire.SizeU16 + len(p.Fixtures)*wire.SizeU16
}

func (p *Sele) Encode(w *wire.Writer) error {
	w.PutU8(p.Complete)
	w.PutU8(p.Reserved)
	w.PutU16s(p.Fixtures)
	return w.Err()
}

func (p *Sele) Decode(r *wire.Reader) error {
	p.Complete = r.U8()
	p.Reserved = r.U8()
	p.Fixtures = r.U16s()
	return r.Err()
}

// DeSe deselects fixtures. An empty list deselects everything.
type DeSe struct {
	Fixtures []uint16
}

func (p *DeSe) Layer() message.Layer             { return Layer }
func (p *DeSe) ContentType() message.ContentType { return TypeDeSe }
func (p *DeSe) Size() int                        { return wire.SizeU16 + len(p.Fixtures)*wire.SizeU16 }

func (p *DeSe) Encode(w *wire.Writer) error {
	w.PutU16s(p.Fixtures)
	return w.Err()
}

func (p *DeSe) Decode(r *wire.Reader) error {
	p.Fixtures = r.U16s()
	return r.Err()
}
