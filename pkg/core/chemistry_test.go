package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeutralMass(t *testing.T) {
	cases := map[string]struct {
		seq  string
		mods []Modification
		want float64
	}{
		"tripeptide":        {seq: "AAA", want: 231.1219},
		"carbamidomethyl":   {seq: "AAA", mods: []Modification{{Mass: 57.021464}}, want: 288.1434},
		"unknown skipped":   {seq: "AXA", want: 160.0848},
		"two shifts summed": {seq: "GG", mods: []Modification{{Mass: 1}, {Mass: 2, Position: 1}}, want: 135.0535},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, c.want, CalculateNeutralMass(c.seq, c.mods), 1e-3)
		})
	}
}

func TestResidueMass(t *testing.T) {
	g, ok := ResidueMass('G')
	assert.True(t, ok)
	assert.InDelta(t, 57.02146, g, 1e-4)

	_, ok = ResidueMass('B')
	assert.False(t, ok)
}

func TestPrecursorConversions(t *testing.T) {
	assert.InDelta(t, 1000.0, NeutralMassFromMZ(500.0+ProtonMass, 2), 1e-9)
	for z := 1; z <= 4; z++ {
		assert.InDelta(t, 1234.5, NeutralMassFromMZ(MZFromNeutralMass(1234.5, z), z), 1e-9)
	}
	assert.InDelta(t, 232.1292, MZFromNeutralMass(CalculateNeutralMass("AAA", nil), 1), 1e-3)
}

func TestMassBinner(t *testing.T) {
	b := DefaultBinner()

	tests := []struct {
		name string
		mass float64
		want int
	}{
		{"zero", 0, 0},
		{"water", MassH2O, 18},
		{"ammonia", MassNH3, 17},
		{"thousand", 1000.0, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Bin(tt.mass))
		})
	}

	t.Run("round trip lower edge", func(t *testing.T) {
		for bin := 1; bin < 3000; bin += 97 {
			assert.Equal(t, bin, b.Bin(b.Mass(bin)+1e-6))
		}
	})

	t.Run("doubly charged", func(t *testing.T) {
		singly := 1001.0
		assert.Equal(t, b.Bin((singly+ProtonMass)/2), b.BinCharged(singly, 2))
		assert.Equal(t, b.Bin(singly), b.BinCharged(singly, 1))
	})

	assert.True(t, b.IsDefault())
	assert.False(t, MassBinner{Width: 0.02, Offset: 0}.IsDefault())
}
