// Package fptc implements the CITP Fixture Patch layer. FPTC messages use the
// hinted layer header, whose content hint marks sequences of messages.
//
// Messages implement message.Payload. The hint lives in the layer header,
// not in the payload, so Encode and Decode only cover the fields below it.
package fptc

import (
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// Layer is the FPTC layer.
var Layer = message.Layer{Cookie: message.Cookie("FPTC"), Format: message.LayerHinted}

// Message tags.
var (
	TypePtch = message.Cookie("Ptch")
	TypeUPtc = message.Cookie("UPtc")
	TypeSPtc = message.Cookie("SPtc")
)

// Register adds every FPTC message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	reg.Register(Layer, TypePtch, func() message.Payload { return &Ptch{} })
	reg.Register(Layer, TypeUPtc, func() message.Payload { return &UPtc{} })
	reg.Register(Layer, TypeSPtc, func() message.Payload { return &SPtc{} })
}

// Ptch announces a patched or repatched fixture.
type Ptch struct {
	Fixture      uint16
	Universe     uint8 // 0-based
	Reserved     uint8
	Channel      uint16 // 0-based
	ChannelCount uint16
	Make         string // empty if omitted
	Name         string
}

func (p *Ptch) Layer() message.Layer             { return Layer }
func (p *Ptch) ContentType() message.ContentType { return TypePtch }

func (p *Ptch) Size() int {
	return wire.SizeU16 + wire.SizeU8 + wire.SizeU8 + wire.SizeU16 + wire.SizeU16 +
		wire.CStringSize(p.Make) + wire.CStringSize(p.Name)
}

func (p *Ptch) Encode(w *wire.Writer) error {
	w.PutU16(p.Fixture)
	w.PutU8(p.Universe)
	w.PutU8(p.Reserved)
	w.PutU16(p.Channel)
	w.PutU16(p.ChannelCount)
	w.PutCString(p.Make)
	w.PutCString(p.Name)
	return w.Err()
}

func (p *Ptch) Decode(r *wire.Reader) error {
	p.Fixture = r.U16()
	p.Universe = r.U8()
	p.Reserved = r.U8()
	p.Channel = r.U16()
	p.ChannelCount = r.U16()
	p.Make = r.CString()
	p.Name = r.CString()
	return r.Err()
}

// UPtc unpatches fixtures. An empty list unpatches everything.
type UPtc struct {
	Fixtures []uint16
}

func (p *UPtc) Layer() message.Layer             { return Layer }
func (p *UPtc) ContentType() message.ContentType { return TypeUPtc }

// Size includes the 16-bit fixture count.
func (p *UPtc) Size() int { return idListSize(p.Fixtures) }

func (p *UPtc) Encode(w *wire.Writer) error {
	w.PutU16s(p.Fixtures)
	return w.Err()
}

func (p *UPtc) Decode(r *wire.Reader) error {
	p.Fixtures = r.U16s()
	return r.Err()
}

// SPtc asks the receiver to answer with one Ptch per listed fixture, or for
// the whole patch when the list is empty.
type SPtc struct {
	Fixtures []uint16
}

func (p *SPtc) Layer() message.Layer             { return Layer }
func (p *SPtc) ContentType() message.ContentType { return TypeSPtc }

// Size includes the 16-bit fixture count.
func (p *SPtc) Size() int { return idListSize(p.Fixtures) }

func (p *SPtc) Encode(w *wire.Writer) error {
	w.PutU16s(p.Fixtures)
	return w.Err()
}

func (p *SPtc) Decode(r *wire.Reader) error {
	p.Fixtures = r.U16s()
	return r.Err()
}

func idListSize(ids []uint16) int {
	return wire.SizeU16 + len(ids)*wire.SizeU16
}

// Sequence wraps patches as messages whose layer headers carry the
// sequence hints: every message is marked part of a sequence and the last
// one also ends it.
func Sequence(patches []*Ptch) []*message.Message {
	msgs := make([]*message.Message, len(patches))
	for i, p := range patches {
		m := message.New(p)
		m.LayerHeader.Hint = message.HintPartOfSequence
		if i == len(patches)-1 {
			m.LayerHeader.Hint |= message.HintEndOfSequence
		}
		msgs[i] = m
	}
	return msgs
}
