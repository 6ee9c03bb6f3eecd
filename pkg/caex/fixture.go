package caex

import (
	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/wire"
)

// UnknownFixtureID marks a fixture whose identifier is not known.
const UnknownFixtureID uint32 = 0xFFFFFFFF

// FixtureListType says why a FixtureList was sent.
type FixtureListType uint8

const (
	FixtureListExistingPatch FixtureListType = 0x00
	FixtureListNewFixture    FixtureListType = 0x01
	FixtureListExchange      FixtureListType = 0x02
)

// IdentifierType selects the meaning of an Identifier's data.
type IdentifierType uint8

const (
	IdentifierRDMDeviceModelID  IdentifierType = 0x00 // u16
	IdentifierRDMPersonalityID  IdentifierType = 0x01 // u64, only the low 16 bits are used
	IdentifierAtlaBaseFixtureID IdentifierType = 0x02 // GUID
	IdentifierAtlaBaseModeID    IdentifierType = 0x03 // GUID
	IdentifierCaptureInstanceID IdentifierType = 0x04 // GUID
	IdentifierRDMManufacturerID IdentifierType = 0x05 // u16
)

// Identifier is a typed blob attached to a fixture.
type Identifier struct {
	Type IdentifierType
	Data []byte
}

// NewRDMPersonalityID builds an RDM personality identifier. The wire field
// is 8 bytes wide; the id occupies the low two bytes and the rest is zero.
func NewRDMPersonalityID(id uint16) Identifier {
	w := wire.NewWriter(make([]byte, 0, wire.SizeU64))
	w.PutU64(uint64(id))
	return Identifier{Type: IdentifierRDMPersonalityID, Data: w.Bytes()}
}

// NewRDMU16 builds a 2-byte RDM identifier such as a device model or
// manufacturer id.
func NewRDMU16(t IdentifierType, id uint16) Identifier {
	w := wire.NewWriter(make([]byte, 0, wire.SizeU16))
	w.PutU16(id)
	return Identifier{Type: t, Data: w.Bytes()}
}

// U16 returns the 16-bit value of an RDM identifier. ok is false when Data
// is too short. For personality ids the upper six bytes are ignored.
func (id Identifier) U16() (v uint16, ok bool) {
	r := wire.NewReader(id.Data)
	v = r.U16()
	return v, r.Err() == nil
}

func (id Identifier) size() int {
	return wire.SizeU8 + wire.SizeU16 + len(id.Data)
}

func (id Identifier) encode(w *wire.Writer) {
	w.PutU8(uint8(id.Type))
	w.PutCount16(len(id.Data))
	w.PutBytes(id.Data)
}

func (id *Identifier) decode(r *wire.Reader) {
	id.Type = IdentifierType(r.U8())
	id.Data = r.Bytes(r.Count16(wire.SizeU8))
}

// FixtureData holds patch and placement details of a fixture.
type FixtureData struct {
	Patched         uint8
	Universe        uint8
	UniverseChannel uint16
	Unit            wire.Ucs2
	Channel         uint16
	Circuit         wire.Ucs2
	Note            wire.Ucs2
	Position        [3]float32
	Angles          [3]float32
}

// fixtureDataMinSize is the encoded size of FixtureData with empty strings.
const fixtureDataMinSize = 2*wire.SizeU8 + wire.SizeU16 + wire.SizeU16 + wire.SizeU16 +
	2*wire.SizeU16 + 6*wire.SizeF32

func (d *FixtureData) size() int {
	return 2*wire.SizeU8 + wire.SizeU16 + d.Unit.Size() + wire.SizeU16 +
		d.Circuit.Size() + d.Note.Size() + 6*wire.SizeF32
}

func (d *FixtureData) encode(w *wire.Writer) {
	w.PutU8(d.Patched)
	w.PutU8(d.Universe)
	w.PutU16(d.UniverseChannel)
	w.PutUcs2(d.Unit)
	w.PutU16(d.Channel)
	w.PutUcs2(d.Circuit)
	w.PutUcs2(d.Note)
	for _, v := range d.Position {
		w.PutF32(v)
	}
	for _, v := range d.Angles {
		w.PutF32(v)
	}
}

func (d *FixtureData) decode(r *wire.Reader) {
	d.Patched = r.U8()
	d.Universe = r.U8()
	d.UniverseChannel = r.U16()
	d.Unit = r.Ucs2()
	d.Channel = r.U16()
	d.Circuit = r.Ucs2()
	d.Note = r.Ucs2()
	for i := range d.Position {
		d.Position[i] = r.F32()
	}
	for i := range d.Angles {
		d.Angles[i] = r.F32()
	}
}

// Fixture describes one fixture in a FixtureList.
type Fixture struct {
	ID           uint32
	Manufacturer wire.Ucs2
	Name         wire.Ucs2
	Mode         wire.Ucs2
	ChannelCount uint16
	IsDimmer     uint8
	Identifiers  []Identifier
	Data         FixtureData
}

// fixtureMinSize is the encoded size of a Fixture with empty fields.
const fixtureMinSize = wire.SizeU32 + 3*wire.SizeU16 + wire.SizeU16 + wire.SizeU8 + wire.SizeU8 + fixtureDataMinSize

func (f *Fixture) size() int {
	size := wire.SizeU32 + f.Manufacturer.Size() + f.Name.Size() + f.Mode.Size() +
		wire.SizeU16 + wire.SizeU8 + wire.SizeU8 + f.Data.size()
	for _, id := range f.Identifiers {
		size += id.size()
	}
	return size
}

func (f *Fixture) encode(w *wire.Writer) {
	w.PutU32(f.ID)
	w.PutUcs2(f.Manufacturer)
	w.PutUcs2(f.Name)
	w.PutUcs2(f.Mode)
	w.PutU16(f.ChannelCount)
	w.PutU8(f.IsDimmer)
	w.PutCount8(len(f.Identifiers))
	for _, id := range f.Identifiers {
		id.encode(w)
	}
	f.Data.encode(w)
}

func (f *Fixture) decode(r *wire.Reader) {
	f.ID = r.U32()
	f.Manufacturer = r.Ucs2()
	f.Name = r.Ucs2()
	f.Mode = r.Ucs2()
	f.ChannelCount = r.U16()
	f.IsDimmer = r.U8()
	n := r.Count8(wire.SizeU8 + wire.SizeU16)
	f.Identifiers = nil
	for range n {
		var id Identifier
		id.decode(r)
		f.Identifiers = append(f.Identifiers, id)
	}
	f.Data.decode(r)
}

// FixtureList carries fixtures, either the full patch or changes to it.
type FixtureList struct {
	layered
	Type     FixtureListType
	Fixtures []Fixture
}

func (p *FixtureList) ContentType() message.ContentType { return TypeFixtureList }

func (p *FixtureList) Size() int {
	size := wire.SizeU8 + wire.SizeU16
	for i := range p.Fixtures {
		size += p.Fixtures[i].size()
	}
	return size
}

func (p *FixtureList) Encode(w *wire.Writer) error {
	w.PutU8(uint8(p.Type))
	w.PutCount16(len(p.Fixtures))
	for i := range p.Fixtures {
		p.Fixtures[i].encode(w)
	}
	return w.Err()
}

func (p *FixtureList) Decode(r *wire.Reader) error {
	p.Type = FixtureListType(r.U8())
	n := r.Count16(fixtureMinSize)
	p.Fixtures = nil
	for range n {
		var f Fixture
		f.decode(r)
		if r.Err() != nil {
			break
		}
		p.Fixtures = append(p.Fixtures, f)
	}
	return r.Err()
}

// FixtureRemove removes fixtures by id.
type FixtureRemove struct {
	layered
	Fixtures []uint32
}

func (p *FixtureRemove) ContentType() message.ContentType { return TypeFixtureRemove }
func (p *FixtureRemove) Size() int                        { return wire.SizeU16 + len(p.Fixtures)*wire.SizeU32 }

func (p *FixtureRemove) Encode(w *wire.Writer) error {
	w.PutCount16(len(p.Fixtures))
	for _, id := range p.Fixtures {
		w.PutU32(id)
	}
	return w.Err()
}

func (p *FixtureRemove) Decode(r *wire.Reader) error {
	n := r.Count16(wire.SizeU32)
	p.Fixtures = nil
	for range n {
		p.Fixtures = append(p.Fixtures, r.U32())
	}
	return r.Err()
}

// FixtureState is the console lock state of one fixture.
type FixtureState struct {
	ID        uint32
	Locked    uint8
	Clearable uint8
}

const fixtureStateSize = wire.SizeU32 + 2*wire.SizeU8

// FixtureConsoleStatus reports lock state for fixtures.
type FixtureConsoleStatus struct {
	layered
	States []FixtureState
}

func (p *FixtureConsoleStatus) ContentType() message.ContentType { return TypeFixtureConsoleStatus }
func (p *FixtureConsoleStatus) Size() int                        { return wire.SizeU16 + len(p.States)*fixtureStateSize }

func (p *FixtureConsoleStatus) Encode(w *wire.Writer) error {
	w.PutCount16(len(p.States))
	for _, s := range p.States {
		w.PutU32(s.ID)
		w.PutU8(s.Locked)
		w.PutU8(s.Clearable)
	}
	return w.Err()
}

func (p *FixtureConsoleStatus) Decode(r *wire.Reader) error {
	n := r.Count16(fixtureStateSize)
	p.States = nil
	for range n {
		p.States = append(p.States, FixtureState{ID: r.U32(), Locked: r.U8(), Clearable: r.U8()})
	}
	return r.Err()
}
