package session

import (
	"fmt"
	"math"

	"github.com/backkem/citp/pkg/caex"
)

// Feed produces the points of one laser output, one frame at a time.
// Points is called from the session loop with the frame's sequence number.
type Feed interface {
	Name() string
	Points(seq uint32) []caex.LaserPoint
}

// SquareFeed draws a closed square that breathes around the centre of the
// coordinate space, with colours cycling at different rates per channel.
// Index offsets the phase so several feeds are distinguishable.
type SquareFeed struct {
	Label string
	Index int
}

// Name returns the label, or a name derived from the index.
func (f *SquareFeed) Name() string {
	if f.Label != "" {
		return f.Label
	}
	return fmt.Sprintf("square %d", f.Index)
}

var squareCorners = [...][2]float64{{-1, 1}, {1, 1}, {1, -1}, {-1, -1}, {-1, 1}}

// Points returns the square for frame seq.
func (f *SquareFeed) Points(seq uint32) []caex.LaserPoint {
	phase := float64(f.Index)
	t := float64(seq)

	scale := math.Sin(phase + t*0.002)
	r := uint8(mapRange(math.Abs(math.Sin(phase+t*0.04)), 0, 1, 0, caex.MaxRed))
	g := uint8(mapRange(math.Abs(math.Sin(phase+t*0.015)), 0, 1, 0, caex.MaxGreen))
	b := uint8(mapRange(math.Abs(math.Cos(phase+t*0.02)), 0, 1, 0, caex.MaxBlue))

	points := make([]caex.LaserPoint, len(squareCorners))
	for i, c := range squareCorners {
		x := mapRange(c[0]*scale, -1, 1, 0, caex.MaxCoordinate)
		y := mapRange(c[1]*scale, -1, 1, 0, caex.MaxCoordinate)
		points[i] = caex.NewLaserPoint(uint16(x), uint16(y), r, g, b)
	}
	return points
}

func mapRange(v, inMin, inMax, outMin, outMax float64) float64 {
	return (v-inMin)/(inMax-inMin)*(outMax-outMin) + outMin
}
