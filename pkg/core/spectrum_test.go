package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpectrumValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Spectrum
		wantErr bool
	}{
		{
			name: "valid spectrum",
			spec: &Spectrum{
				ScanNumber:  1,
				PrecursorMZ: 400.5,
				Charges:     []int{2},
				Peaks: []Peak{
					{MZ: 100.0, Intensity: 1000.0},
					{MZ: 200.0, Intensity: 2000.0},
				},
			},
		},
		{
			name: "no peaks is still searchable",
			spec: &Spectrum{PrecursorMZ: 400.5, Peaks: []Peak{}},
		},
		{
			name:    "missing precursor",
			spec:    &Spectrum{Peaks: []Peak{{MZ: 100.0, Intensity: 1000.0}}},
			wantErr: true,
		},
		{
			name:    "zero charge",
			spec:    &Spectrum{PrecursorMZ: 400.5, Charges: []int{0}},
			wantErr: true,
		},
		{
			name: "unsorted peaks",
			spec: &Spectrum{
				PrecursorMZ: 400.5,
				Peaks: []Peak{
					{MZ: 200.0, Intensity: 2000.0},
					{MZ: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
		{
			name: "NaN m/z",
			spec: &Spectrum{
				PrecursorMZ: 400.5,
				Peaks:       []Peak{{MZ: math.NaN(), Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "negative intensity",
			spec: &Spectrum{
				PrecursorMZ: 400.5,
				Peaks:       []Peak{{MZ: 100, Intensity: -1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSortPeaks(t *testing.T) {
	spec := &Spectrum{
		Peaks: []Peak{
			{MZ: 300.0, Intensity: 100.0},
			{MZ: 100.0, Intensity: 200.0},
			{MZ: 200.0, Intensity: 150.0},
		},
	}

	spec.SortPeaks()

	require.Len(t, spec.Peaks, 3)
	for i, want := range []float64{100.0, 200.0, 300.0} {
		assert.Equal(t, want, spec.Peaks[i].MZ)
	}
	assert.True(t, spec.ArePeaksSorted())
	assert.Equal(t, 300.0, spec.MaxMZ())
}

func TestMaxPeakInRange(t *testing.T) {
	spec := &Spectrum{Peaks: []Peak{
		{MZ: 100, Intensity: 5},
		{MZ: 100.5, Intensity: 9},
		{MZ: 101, Intensity: 7},
		{MZ: 150, Intensity: 100},
	}}

	assert.Equal(t, 9.0, spec.MaxPeakInRange(100, 101))
	assert.Equal(t, 7.0, spec.MaxPeakInRange(100.6, 120))
	assert.Equal(t, 0.0, spec.MaxPeakInRange(200, 300))
}

func TestMaxCharge(t *testing.T) {
	assert.Equal(t, 1, (&Spectrum{}).MaxCharge())
	assert.Equal(t, 4, (&Spectrum{Charges: []int{2, 4, 3}}).MaxCharge())
}

func TestSpecCharges(t *testing.T) {
	known := &Spectrum{ScanNumber: 1, PrecursorMZ: 500 + ProtonMass, Charges: []int{2}}
	low := &Spectrum{ScanNumber: 2, PrecursorMZ: 600, Peaks: []Peak{{MZ: 300, Intensity: 1}}}
	high := &Spectrum{ScanNumber: 3, PrecursorMZ: 400, Peaks: []Peak{{MZ: 700, Intensity: 1}}}

	scs := SpecCharges([]*Spectrum{known, low, high})
	require.Len(t, scs, 4)

	assert.Equal(t, 2, scs[0].Charge)
	assert.InDelta(t, 1000.0, scs[0].NeutralMass, 1e-9)
	assert.Equal(t, 1, scs[1].Charge)
	assert.Equal(t, 2, scs[2].Charge)
	assert.Equal(t, 3, scs[3].Charge)

	assert.Equal(t, []int{1}, low.Charges)
	assert.Equal(t, []int{2, 3}, high.Charges)
	assert.Equal(t, 3, high.MaxCharge())
	assert.Len(t, SpecCharges([]*Spectrum{high}), 2)

	SortByNeutralMass(scs)
	for i := 1; i < len(scs); i++ {
		assert.LessOrEqual(t, scs[i-1].NeutralMass, scs[i].NeutralMass)
	}
}

func TestSortByMZWindow(t *testing.T) {
	a := &Spectrum{PrecursorMZ: 500}
	b := &Spectrum{PrecursorMZ: 400}
	scs := []SpecCharge{{Spectrum: a, Charge: 2}, {Spectrum: b, Charge: 3}, {Spectrum: b, Charge: 2}}

	SortByMZWindow(scs, 0.5)

	assert.Same(t, b, scs[0].Spectrum)
	assert.Equal(t, 2, scs[0].Charge)
	assert.Same(t, a, scs[1].Spectrum)
	assert.Equal(t, 3, scs[2].Charge)
}

func TestSpectrumName(t *testing.T) {
	spec := &Spectrum{ScanNumber: 12, PrecursorMZ: 445.12}
	assert.Equal(t, "12/445.1200", spec.Name())
}
