package fsel

import (
	"testing"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/message/messagetest"
)

func TestRoundTrip(t *testing.T) {
	ids := make([]uint16, 1000)
	for i := range ids {
		ids[i] = uint16(i * 7)
	}

	tests := []struct {
		name    string
		payload message.Payload
	}{
		{"Sele empty", &Sele{}},
		{"Sele complete", &Sele{Complete: 1, Fixtures: []uint16{4, 8, 15}}},
		{"Sele many", &Sele{Fixtures: ids}},
		{"DeSe all", &DeSe{}},
		{"DeSe", &DeSe{Fixtures: []uint16{16, 23, 42}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, _ := messagetest.RoundTrip(t, Register, tc.payload)
			messagetest.Truncations(t, Register, data)
		})
	}
}
