package sdmx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/message/messagetest"
	"github.com/backkem/citp/pkg/wire"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload message.Payload
	}{
		{"Capa empty", &Capa{}},
		{"Capa", &Capa{Capabilities: []uint16{CapChannelList, CapArtNetExternalSources, CapMANetExternalSources}}},
		{"UNam", &UNam{Universe: 3, Name: "Stage Left"}},
		{"EnId", &EnId{Identifier: "key-1"}},
		{"ChBk empty", &ChBk{Universe: 1, FirstChannel: 1}},
		{"ChBk", &ChBk{Blind: 1, Universe: 2, FirstChannel: 100, Levels: []byte{0, 127, 255}}},
		{"ChBk full universe", &ChBk{Universe: 1, FirstChannel: 1, Levels: bytes.Repeat([]byte{0x80}, 512)}},
		{"ChLs empty", &ChLs{}},
		{"ChLs", &ChLs{Levels: []ChannelLevel{{1, 1, 255}, {2, 512, 0}}}},
		{"SXSr", &SXSr{ConnectionString: "ArtNet/0/0/1"}},
		{"SXUS", &SXUS{Universe: 4, ConnectionString: "BSRE1.31/2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, _ := messagetest.RoundTrip(t, Register, tc.payload)
			messagetest.Truncations(t, Register, data)
		})
	}
}

func TestChLsWireLayout(t *testing.T) {
	p := &ChLs{Levels: []ChannelLevel{{Universe: 1, Channel: 0x0203, Level: 4}}}
	w := wire.NewWriter(nil)
	if err := p.Encode(w); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []byte{0x01, 0x00, 0x01, 0x03, 0x02, 0x04}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Encode() = %x, want %x", w.Bytes(), want)
	}
}

func TestChBkOversize(t *testing.T) {
	p := &ChBk{Levels: make([]byte, 0x10000)}
	w := wire.NewWriter(nil)
	if err := p.Encode(w); !errors.Is(err, wire.ErrOversize) {
		t.Errorf("Encode() error = %v, want wire.ErrOversize", err)
	}
}

func TestCapaHas(t *testing.T) {
	p := &Capa{Capabilities: []uint16{CapChannelList, CapETCNet2ExternalSources}}
	if !p.Has(CapETCNet2ExternalSources) {
		t.Error("Has(ETCNet2) = false")
	}
	if p.Has(CapExternalSource) {
		t.Error("Has(ExternalSource) = true")
	}
}
