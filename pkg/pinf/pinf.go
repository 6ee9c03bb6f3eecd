// Package pinf implements the CITP Peer Information layer, used for
// discovery over multicast and peer identification over TCP.
//
// PNam and PLoc implement message.Payload. Size is the exact number of
// bytes Encode writes; Decode is its inverse.
package pinf

import (
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// Layer is the PINF layer.
var Layer = message.Layer{Cookie: message.Cookie("PINF"), Format: message.LayerPlain}

// Message tags.
var (
	TypePNam = message.Cookie("PNam")
	TypePLoc = message.Cookie("PLoc")
)

// Peer types carried in PLoc.
const (
	TypeLightingConsole = "LightingConsole"
	TypeMediaServer     = "MediaServer"
	TypeVisualiser      = "Visualiser"
)

// Register adds every PINF message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	reg.Register(Layer, TypePNam, func() message.Payload { return &PNam{} })
	reg.Register(Layer, TypePLoc, func() message.Payload { return &PLoc{} })
}

// PNam identifies a peer. It is the first message sent after opening a TCP
// connection.
type PNam struct {
	Name string
}

func (p *PNam) Layer() message.Layer             { return Layer }
func (p *PNam) ContentType() message.ContentType { return TypePNam }
func (p *PNam) Size() int                        { return wire.CStringSize(p.Name) }

func (p *PNam) Encode(w *wire.Writer) error {
	w.PutCString(p.Name)
	return w.Err()
}

func (p *PNam) Decode(r *wire.Reader) error {
	p.Name = r.CString()
	return r.Err()
}

// PLoc announces a peer on the multicast discovery group.
type PLoc struct {
	// ListeningTCPPort is 0 when the peer does not accept connections.
	ListeningTCPPort uint16
	Type             string
	Name             string
	State            string
}

func (p *PLoc) Layer() message.Layer             { return Layer }
func (p *PLoc) ContentType() message.ContentType { return TypePLoc }

func (p *PLoc) Size() int {
	return wire.SizeU16 + wire.CStringSize(p.Type) + wire.CStringSize(p.Name) + wire.CStringSize(p.State)
}

func (p *PLoc) Encode(w *wire.Writer) error {
	w.PutU16(p.ListeningTCPPort)
	w.PutCString(p.Type)
	w.PutCString(p.Name)
	w.PutCString(p.State)
	return w.Err()
}

func (p *PLoc) Decode(r *wire.Reader) error {
	p.ListeningTCPPort = r.U16()
	p.Type = r.CString()
	p.Name = r.CString()
	p.State = r.CString()
	return r.Err()
}

// Listening reports whether the peer accepts TCP connections.
func (p *PLoc) Listening() bool {
	return p.ListeningTCPPort != 0
}
