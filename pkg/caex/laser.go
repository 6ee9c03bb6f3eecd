package caex

import (
	"math/bits"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// LaserFeedList lists the laser feeds offered by a source.
type LaserFeedList struct {
	layered
	// SourceKey identifies the sending process; it is repeated in every
	// LaserFeedFrame.
	SourceKey uint32
	Names     []wire.Ucs2
}

func (p *LaserFeedList) ContentType() message.ContentType { return TypeLaserFeedList }

func (p *LaserFeedList) Size() int {
	size := wire.SizeU32 + wire.SizeU8
	for _, n := range p.Names {
		size += n.Size()
	}
	return size
}

func (p *LaserFeedList) Encode(w *wire.Writer) error {
	w.PutU32(p.SourceKey)
	w.PutCount8(len(p.Names))
	for _, n := range p.Names {
		w.PutUcs2(n)
	}
	return w.Err()
}

func (p *LaserFeedList) Decode(r *wire.Reader) error {
	p.SourceKey = r.U32()
	n := r.Count8(wire.SizeU16)
	p.Names = nil
	for range n {
		p.Names = append(p.Names, r.Ucs2())
	}
	return r.Err()
}

// LaserFeedControl starts or stops a feed. A FrameRate of 0 stops it.
type LaserFeedControl struct {
	layered
	Feed      uint8
	FrameRate uint8
}

func (p *LaserFeedControl) ContentType() message.ContentType { return TypeLaserFeedControl }
func (p *LaserFeedControl) Size() int                        { return 2 * wire.SizeU8 }

func (p *LaserFeedControl) Encode(w *wire.Writer) error {
	w.PutU8(p.Feed)
	w.PutU8(p.FrameRate)
	return w.Err()
}

func (p *LaserFeedControl) Decode(r *wire.Reader) error {
	p.Feed = r.U8()
	p.FrameRate = r.U8()
	return r.Err()
}

// LaserFeedFrame carries one frame of points for a feed. It is sent over
// the multicast group.
type LaserFeedFrame struct {
	layered
	SourceKey uint32
	Feed      uint8
	Sequence  uint32
	Points    []LaserPoint
}

func (p *LaserFeedFrame) ContentType() message.ContentType { return TypeLaserFeedFrame }

func (p *LaserFeedFrame) Size() int {
	return wire.SizeU32 + wire.SizeU8 + wire.SizeU32 + wire.SizeU16 + len(p.Points)*LaserPointSize
}

func (p *LaserFeedFrame) Encode(w *wire.Writer) error {
	w.PutU32(p.SourceKey)
	w.PutU8(p.Feed)
	w.PutU32(p.Sequence)
	w.PutCount16(len(p.Points))
	for _, pt := range p.Points {
		w.PutU8(pt.XLow)
		w.PutU8(pt.YLow)
		w.PutU8(pt.XYHigh)
		w.PutU16(pt.Color)
	}
	return w.Err()
}

// Decode rejects a point count the remaining bytes cannot hold before
// allocating.
func (p *LaserFeedFrame) Decode(r *wire.Reader) error {
	p.SourceKey = r.U32()
	p.Feed = r.U8()
	p.Sequence = r.U32()
	n := r.Count16(LaserPointSize)
	p.Points = nil
	if n > 0 {
		p.Points = make([]LaserPoint, n)
	}
	for i := range p.Points {
		p.Points[i] = LaserPoint{XLow: r.U8(), YLow: r.U8(), XYHigh: r.U8(), Color: r.U16()}
	}
	return r.Err()
}

// Laser point ranges.
const (
	LaserPointSize = 5

	// MaxCoordinate is the largest coordinate carried by a LaserPoint.
	MaxCoordinate = 4093

	MaxRed   = 0x1f
	MaxGreen = 0x3f
	MaxBlue  = 0x1f
)

// Colour field masks. Red occupies the low five bits, green is rotated
// left by five and blue by eleven.
const (
	redMask   uint16 = 0x001f
	greenMask uint16 = 0x07e0
	blueMask  uint16 = 0xf800
)

// LaserPoint is a packed point: 12-bit x and y split into low bytes and a
// shared nibble byte, plus a 5/6/5 RGB colour.
type LaserPoint struct {
	XLow   uint8
	YLow   uint8
	XYHigh uint8 // y nibble in the high four bits, x nibble in the low four
	Color  uint16
}

// NewLaserPoint packs a point. Coordinates are taken modulo 4096 and colour
// components are masked to their bit depth.
func NewLaserPoint(x, y uint16, r, g, b uint8) LaserPoint {
	return LaserPoint{
		XLow:   uint8(x % 256),
		YLow:   uint8(y % 256),
		XYHigh: uint8(((y/256)%16)*16 + (x/256)%16),
		Color:  PackColor(r, g, b),
	}
}

// XY unpacks the coordinates.
func (p LaserPoint) XY() (x, y uint16) {
	x = uint16(p.XLow) + uint16(p.XYHigh&0x0f)<<8
	y = uint16(p.YLow) + uint16(p.XYHigh&0xf0)<<4
	return x, y
}

// RGB unpacks the colour components.
func (p LaserPoint) RGB() (r, g, b uint8) {
	return UnpackColor(p.Color)
}

// PackColor packs 5-bit red, 6-bit green and 5-bit blue into 16 bits.
func PackColor(r, g, b uint8) uint16 {
	return uint16(r)&redMask |
		bits.RotateLeft16(uint16(g)&MaxGreen, 5) |
		bits.RotateLeft16(uint16(b)&MaxBlue, 11)
}

// UnpackColor is the inverse of PackColor.
func UnpackColor(c uint16) (r, g, b uint8) {
	r = uint8(c & redMask)
	g = uint8(bits.RotateLeft16(c&greenMask, -5))
	b = uint8(bits.RotateLeft16(c&blueMask, -11))
	return r, g, b
}
