// Package finf implements the CITP Fixture Information layer.
//
// SFra and Fram implement message.Payload; Size equals the bytes Encode
// writes and Decode reads the same layout back.
package finf

import (
	"strings"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// Layer is the FINF layer.
var Layer = message.Layer{Cookie: message.Cookie("FINF"), Format: message.LayerPlain}

// Message tags.
var (
	TypeSFra = message.Cookie("SFra")
	TypeFram = message.Cookie("Fram")
)

// Register adds every FINF message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	reg.Register(Layer, TypeSFra, func() message.Payload { return &SFra{} })
	reg.Register(Layer, TypeFram, func() message.Payload { return &Fram{} })
}

// SFra asks the receiver to send Fram messages for the listed fixtures.
type SFra struct {
	Fixtures []uint16
}

func (p *SFra) Layer() message.Layer             { return Layer }
func (p *SFra) ContentType() message.ContentType { return TypeSFra }
func (p *SFra) Size() int                        { return wire.SizeU16 + len(p.Fixtures)*wire.SizeU16 }

func (p *SFra) Encode(w *wire.Writer) error {
	w.PutU16s(p.Fixtures)
	return w.Err()
}

func (p *SFra) Decode(r *wire.Reader) error {
	p.Fixtures = r.U16s()
	return r.Err()
}

// Fram describes the filters and gobos of a fixture. FrameNames lists the
// filters first and then the gobos, separated by newlines.
type Fram struct {
	Fixture     uint16
	FilterCount uint8
	GoboCount   uint8
	FrameNames  string
}

// NewFram builds a Fram from filter and gobo names.
func NewFram(fixture uint16, filters, gobos []string) *Fram {
	return &Fram{
		Fixture:     fixture,
		FilterCount: uint8(len(filters)),
		GoboCount:   uint8(len(gobos)),
		FrameNames:  strings.Join(append(append([]string(nil), filters...), gobos...), "\n"),
	}
}

// Names splits FrameNames back into filters and gobos. Counts larger than
// the number of names present are clamped.
func (p *Fram) Names() (filters, gobos []string) {
	if p.FrameNames == "" {
		return nil, nil
	}
	all := strings.Split(p.FrameNames, "\n")
	nf := min(int(p.FilterCount), len(all))
	ng := min(int(p.GoboCount), len(all)-nf)
	if nf > 0 {
		filters = all[:nf]
	}
	if ng > 0 {
		gobos = all[nf : nf+ng]
	}
	return filters, gobos
}

func (p *Fram) Layer() message.Layer             { return Layer }
func (p *Fram) ContentType() message.ContentType { return TypeFram }

func (p *Fram) Size() int {
	return wire.SizeU16 + wire.SizeU8 + wire.SizeU8 + wire.CStringSize(p.FrameNames)
}

// Encode writes FrameNames as a single C string; it must not contain NUL.
func (p *Fram) Encode(w *wire.Writer) error {
	w.PutU16(p.Fixture)
	w.PutU8(p.FilterCount)
	w.PutU8(p.GoboCount)
	w.PutCString(p.FrameNames)
	return w.Err()
}

func (p *Fram) Decode(r *wire.Reader) error {
	p.Fixture = r.U16()
	p.FilterCount = r.U8()
	p.GoboCount = r.U8()
	p.FrameNames = r.CString()
	return r.Err()
}
