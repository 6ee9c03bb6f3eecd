package caex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/maxatome/go-testdeep/td"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/message/messagetest"
	"github.com/backkem/citp/pkg/wire"
)

func testFixture() Fixture {
	return Fixture{
		ID:           42,
		Manufacturer: wire.NewUcs2("Clay Paky"),
		Name:         wire.NewUcs2("Sharpy"),
		Mode:         wire.NewUcs2("Standard 16ch"),
		ChannelCount: 16,
		Identifiers: []Identifier{
			NewRDMU16(IdentifierRDMManufacturerID, 0x0801),
			NewRDMPersonalityID(3),
			{Type: IdentifierCaptureInstanceID, Data: bytes.Repeat([]byte{0xC1}, 16)},
		},
		Data: FixtureData{
			Patched:         1,
			Universe:        2,
			UniverseChannel: 101,
			Unit:            wire.NewUcs2("7"),
			Channel:         301,
			Circuit:         wire.NewUcs2("C12"),
			Note:            wire.NewUcs2("Downstage truss"),
			Position:        [3]float32{1.5, -2.25, 6},
			Angles:          [3]float32{0, 90, -45.5},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload message.Payload
	}{
		{"Nack", &Nack{Reason: NackRequestRefused}},
		{"Nack unknown reason", &Nack{Reason: 0x7F}},
		{"EnterShow", &EnterShow{Name: wire.NewUcs2("Summer Tour")}},
		{"EnterShow empty", &EnterShow{}},
		{"EnterShow long", &EnterShow{Name: wire.NewUcs2(strings.Repeat("ш", 2000))}},
		{"LeaveShow", &LeaveShow{}},
		{"FixtureListRequest", &FixtureListRequest{}},
		{"FixtureList empty", &FixtureList{Type: FixtureListExistingPatch}},
		{"FixtureList", &FixtureList{Type: FixtureListNewFixture, Fixtures: []Fixture{testFixture(), {ID: UnknownFixtureID}}}},
		{"FixtureRemove empty", &FixtureRemove{}},
		{"FixtureRemove", &FixtureRemove{Fixtures: []uint32{1, UnknownFixtureID}}},
		{"FixtureConsoleStatus", &FixtureConsoleStatus{States: []FixtureState{{ID: 1, Locked: 1}, {ID: 2, Clearable: 1}}}},
		{"GetLaserFeedList", &GetLaserFeedList{}},
		{"LaserFeedList empty", &LaserFeedList{SourceKey: 7}},
		{"LaserFeedList", &LaserFeedList{SourceKey: 0xDEADBEEF, Names: []wire.Ucs2{wire.NewUcs2("laser 0"), wire.NewUcs2("laser 1")}}},
		{"LaserFeedControl", &LaserFeedControl{Feed: 1, FrameRate: 60}},
		{"LaserFeedFrame empty", &LaserFeedFrame{SourceKey: 1, Feed: 0, Sequence: 0}},
		{"LaserFeedFrame", &LaserFeedFrame{SourceKey: 1, Feed: 2, Sequence: 99, Points: []LaserPoint{
			NewLaserPoint(0, 0, 0, 0, 0),
			NewLaserPoint(4093, 4093, 31, 63, 31),
			NewLaserPoint(300, 2000, 10, 20, 30),
		}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, _ := messagetest.RoundTrip(t, Register, tc.payload)
			messagetest.Truncations(t, Register, data)
		})
	}
}

func TestNumericTags(t *testing.T) {
	data, _ := messagetest.RoundTrip(t, Register, &FixtureList{})
	// Layer header is the little-endian u32 0x00020201.
	td.Cmp(t, data[20:24], []byte{0x01, 0x02, 0x02, 0x00})
	td.Cmp(t, data[16:20], []byte("CAEX"))
}

func TestRDMPersonalityIDWidth(t *testing.T) {
	id := NewRDMPersonalityID(0x1234)
	td.Cmp(t, id.Data, []byte{0x34, 0x12, 0, 0, 0, 0, 0, 0})
	v, ok := id.U16()
	td.CmpTrue(t, ok)
	td.Cmp(t, v, uint16(0x1234))

	short := Identifier{Data: []byte{1}}
	_, ok = short.U16()
	td.CmpFalse(t, ok)
}

func TestLaserPointCoordinates(t *testing.T) {
	for x := uint16(0); x <= MaxCoordinate; x++ {
		for y := uint16(0); y <= MaxCoordinate; y++ {
			p := NewLaserPoint(x, y, 0, 0, 0)
			gx, gy := p.XY()
			if gx != x || gy != y {
				t.Fatalf("XY() of (%d, %d) = (%d, %d)", x, y, gx, gy)
			}
		}
	}
}

func TestLaserPointColors(t *testing.T) {
	for r := uint8(0); r <= MaxRed; r++ {
		for g := uint8(0); g <= MaxGreen; g++ {
			for b := uint8(0); b <= MaxBlue; b++ {
				gr, gg, gb := UnpackColor(PackColor(r, g, b))
				if gr != r || gg != g || gb != b {
					t.Fatalf("UnpackColor(PackColor(%d, %d, %d)) = (%d, %d, %d)", r, g, b, gr, gg, gb)
				}
			}
		}
	}
}

func TestLaserPointWireLayout(t *testing.T) {
	p := NewLaserPoint(0x123, 0x456, 1, 2, 3)
	td.Cmp(t, p, LaserPoint{
		XLow:   0x23,
		YLow:   0x56,
		XYHigh: 0x41,
		Color:  1 | 2<<5 | 3<<11,
	})

	r, g, b := p.RGB()
	td.Cmp(t, []uint8{r, g, b}, []uint8{1, 2, 3})
}

func TestNackReasonString(t *testing.T) {
	td.Cmp(t, NackRequestRefused.String(), "RequestRefused")
	td.Cmp(t, NackReason(9).String(), "NackReason(9)")
}
