package finf

import (
	"testing"

	"github.com/maxatome/go-testdeep/td"

	"github.com/backkem/citp/pkg/message"
	"github.com/backkem/citp/pkg/message/messagetest"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload message.Payload
	}{
		{"SFra empty", &SFra{}},
		{"SFra", &SFra{Fixtures: []uint16{1, 2}}},
		{"Fram empty", &Fram{Fixture: 9}},
		{"Fram", NewFram(3, []string{"Red", "Blue"}, []string{"Breakup", "Dots", "Stars"})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, _ := messagetest.RoundTrip(t, Register, tc.payload)
			messagetest.Truncations(t, Register, data)
		})
	}
}

func TestFramNames(t *testing.T) {
	f := NewFram(1, []string{"Red", "Blue"}, []string{"Dots"})
	td.Cmp(t, f.FrameNames, "Red\nBlue\nDots")
	td.Cmp(t, f.FilterCount, uint8(2))
	td.Cmp(t, f.GoboCount, uint8(1))

	filters, gobos := f.Names()
	td.Cmp(t, filters, []string{"Red", "Blue"})
	td.Cmp(t, gobos, []string{"Dots"})

	t.Run("counts exceed names", func(t *testing.T) {
		f := &Fram{FilterCount: 5, GoboCount: 5, FrameNames: "A\nB"}
		filters, gobos := f.Names()
		td.Cmp(t, filters, []string{"A", "B"})
		td.CmpNil(t, gobos)
	})

	t.Run("no names", func(t *testing.T) {
		filters, gobos := (&Fram{}).Names()
		td.CmpNil(t, filters)
		td.CmpNil(t, gobos)
	})
}
