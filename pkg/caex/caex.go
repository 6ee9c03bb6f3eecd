// Package caex implements the CAEX layer, the Capture extension used for
// show synchronisation, fixture lists and laser feed streaming. Unlike the
// other layers its message tags are numeric rather than ASCII.
//
// Every message embeds the CAEX layer and implements message.Payload, with
// ContentType returning the numeric tag. Decode reads what Encode writes.
package caex

import (
	"fmt"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// Layer is the CAEX layer.
var Layer = message.Layer{Cookie: message.Cookie("CAEX"), Format: message.LayerPlain}

// Message tags.
const (
	TypeNack message.ContentType = 0xFFFFFFFF

	TypeEnterShow            message.ContentType = 0x00020100
	TypeLeaveShow            message.ContentType = 0x00020101
	TypeFixtureListRequest   message.ContentType = 0x00020200
	TypeFixtureList          message.ContentType = 0x00020201
	TypeFixtureRemove        message.ContentType = 0x00020203
	TypeFixtureConsoleStatus message.ContentType = 0x00020400

	TypeGetLaserFeedList message.ContentType = 0x00030100
	TypeLaserFeedList    message.ContentType = 0x00030101
	TypeLaserFeedControl message.ContentType = 0x00030102
	TypeLaserFeedFrame   message.ContentType = 0x00030200
)

// Register adds every CAEX message to reg.
func Register(reg *message.Registry) {
	reg.RegisterLayer(Layer)
	for ct, f := range map[message.ContentType]message.Factory{
		TypeNack:                 func() message.Payload { return &Nack{} },
		TypeEnterShow:            func() message.Payload { return &EnterShow{} },
		TypeLeaveShow:            func() message.Payload { return &LeaveShow{} },
		TypeFixtureListRequest:   func() message.Payload { return &FixtureListRequest{} },
		TypeFixtureList:          func() message.Payload { return &FixtureList{} },
		TypeFixtureRemove:        func() message.Payload { return &FixtureRemove{} },
		TypeFixtureConsoleStatus: func() message.Payload { return &FixtureConsoleStatus{} },
		TypeGetLaserFeedList:     func() message.Payload { return &GetLaserFeedList{} },
		TypeLaserFeedList:        func() message.Payload { return &LaserFeedList{} },
		TypeLaserFeedControl:     func() message.Payload { return &LaserFeedControl{} },
		TypeLaserFeedFrame:       func() message.Payload { return &LaserFeedFrame{} },
	} {
		reg.Register(Layer, ct, f)
	}
}

// layered supplies the Layer method shared by every CAEX payload.
type layered struct{}

func (layered) Layer() message.Layer { return Layer }

// empty is embedded by messages without fields.
type empty struct{ layered }

func (empty) Size() int                   { return 0 }
func (empty) Encode(w *wire.Writer) error { return w.Err() }
func (empty) Decode(r *wire.Reader) error { return r.Err() }

// NackReason explains a Nack. Values not listed are kept verbatim.
type NackReason uint8

const (
	NackUnknownRequest   NackReason = 0x00
	NackIncorrectRequest NackReason = 0x01
	NackInternalError    NackReason = 0x02
	NackRequestRefused   NackReason = 0x03
)

// String returns a human-readable name for the reason.
func (n NackReason) String() string {
	switch n {
	case NackUnknownRequest:
		return "UnknownRequest"
	case NackIncorrectRequest:
		return "IncorrectRequest"
	case NackInternalError:
		return "InternalError"
	case NackRequestRefused:
		return "RequestRefused"
	default:
		return fmt.Sprintf("NackReason(%d)", uint8(n))
	}
}

// Nack rejects a request. It is sent with the request's correlation value.
type Nack struct {
	layered
	Reason NackReason
}

func (p *Nack) ContentType() message.ContentType { return TypeNack }
func (p *Nack) Size() int                        { return wire.SizeU8 }

func (p *Nack) Encode(w *wire.Writer) error {
	w.PutU8(uint8(p.Reason))
	return w.Err()
}

// Decode keeps reasons it does not know; NackReason.String reports them
// numerically.
func (p *Nack) Decode(r *wire.Reader) error {
	p.Reason = NackReason(r.U8())
	return r.Err()
}

// EnterShow is sent when a show (project) is opened. The receiver answers
// with its own EnterShow.
type EnterShow struct {
	layered
	Name wire.Ucs2
}

func (p *EnterShow) ContentType() message.ContentType { return TypeEnterShow }
func (p *EnterShow) Size() int                        { return p.Name.Size() }

func (p *EnterShow) Encode(w *wire.Writer) error {
	w.PutUcs2(p.Name)
	return w.Err()
}

func (p *EnterShow) Decode(r *wire.Reader) error {
	p.Name = r.Ucs2()
	return r.Err()
}

// LeaveShow is sent when the show is closed.
type LeaveShow struct{ empty }

func (p *LeaveShow) ContentType() message.ContentType { return TypeLeaveShow }

// FixtureListRequest asks for the current patch. The answer is a
// FixtureList of type FixtureListExistingPatch.
type FixtureListRequest struct{ empty }

func (p *FixtureListRequest) ContentType() message.ContentType { return TypeFixtureListRequest }

// GetLaserFeedList asks for the available laser feeds.
type GetLaserFeedList struct{ empty }

func (p *GetLaserFeedList) ContentType() message.ContentType { return TypeGetLaserFeedList }
