package preprocess

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

func randomSpectrum(rng *rand.Rand, precursor float64, n int) *core.Spectrum {
	spec := &core.Spectrum{ScanNumber: 1, PrecursorMZ: precursor, Charges: []int{2}}
	for i := 0; i < n; i++ {
		spec.Peaks = append(spec.Peaks, core.Peak{
			MZ:        50 + rng.Float64()*2*precursor,
			Intensity: rng.Float64() * 1e5,
		})
	}
	spec.SortPeaks()
	return spec
}

func TestExperimentalCutoff(t *testing.T) {
	got := ExperimentalCutoff(500.0, 2)
	want := (500.0-core.ProtonMass)*2 + core.ProtonMass + 50
	assert.InDelta(t, want, got, 1e-12)
}

// Background subtraction divides by a fixed 2*MaxXCorrOffset, so bins next
// to peaks go negative; only NaN is ruled out. Retained peaks lie below the
// cut-off in m/z, which puts their bin at or below the cut-off bin.
func TestProcessCacheBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := New(Options{FlankingPeaks: true, NeutralLosses: true})
	binner := core.DefaultBinner()

	negative := 0
	for trial := 0; trial < 20; trial++ {
		spec := randomSpectrum(rng, 300+rng.Float64()*700, 200)
		charge := 1 + trial%3
		cache := p.Process(spec, charge)

		require.Equal(t, cache.bins*NumPeakTypes, cache.End())
		for _, v := range p.peaks {
			require.False(t, math.IsNaN(v))
			if v < 0 {
				negative++
			}
		}

		cutoff := ExperimentalCutoff(spec.PrecursorMZ, charge)
		for _, peak := range spec.Peaks {
			if peak.MZ >= cutoff {
				continue
			}
			bin := binner.Bin(peak.MZ)
			assert.LessOrEqual(t, bin, binner.Bin(cutoff))
			assert.Less(t, bin, cache.bins)
		}
	}
	assert.Positive(t, negative)

	c := p.Counters()
	assert.Positive(t, c.Retained)
	assert.Positive(t, c.RangeSkipped)
}

func TestProcessKeepsPeakInCutoffBin(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 200,
		Peaks:       []core.Peak{{MZ: 249.9, Intensity: 100}},
	}
	binner := core.DefaultBinner()
	cutoff := ExperimentalCutoff(spec.PrecursorMZ, 1)
	require.Equal(t, binner.Bin(cutoff), binner.Bin(249.9))

	p := New(Options{})
	cache := p.Process(spec, 1)
	assert.Equal(t, 1, p.Counters().Retained)
	assert.Positive(t, cache.Peak(PeakMain, binner.Bin(249.9)))
}

func TestProcessDropsPeaksAboveCutoff(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 200,
		Peaks: []core.Peak{
			{MZ: 150, Intensity: 100},
			{MZ: 300, Intensity: 100},
			{MZ: 500, Intensity: 100},
		},
	}
	p := New(Options{})
	cache := p.Process(spec, 1)

	// cutoff is 250 Th at charge 1
	assert.Equal(t, 2, p.Counters().RangeSkipped)
	assert.Equal(t, 1, p.Counters().Retained)
	assert.Equal(t, core.DefaultBinner().Bin(250)+MaxXCorrOffset+1, cache.bins)
	assert.Positive(t, cache.Peak(PeakMain, core.DefaultBinner().Bin(150)))
}

func TestProcessRemovesPrecursor(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 400,
		Peaks: []core.Peak{
			{MZ: 200, Intensity: 10},
			{MZ: 399.5, Intensity: 1000},
			{MZ: 401.2, Intensity: 1000},
		},
	}
	p := New(Options{RemovePrecursor: true, PrecursorTolerance: 1.5})
	cache := p.Process(spec, 2)

	assert.Equal(t, 2, p.Counters().PrecursorSkipped)
	assert.Zero(t, cache.Peak(PeakMain, core.DefaultBinner().Bin(399.5)))
}

func TestDeisotoping(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 600,
		Charges:     []int{3},
		Peaks: []core.Peak{
			{MZ: 300.0, Intensity: 1000},
			{MZ: 300.0 + IsotopeSpacing, Intensity: 400},
			{MZ: 300.0 + IsotopeSpacing/2, Intensity: 200},
			{MZ: 450.0, Intensity: 50},
		},
	}
	spec.SortPeaks()

	p := New(Options{DeisotopeThreshold: 10})
	p.Process(spec, 3)
	assert.Equal(t, 2, p.Counters().IsotopeSkipped)
	assert.Equal(t, 2, p.Counters().Retained)

	off := New(Options{})
	off.Process(spec, 3)
	assert.Zero(t, off.Counters().IsotopeSkipped)
}

func TestDeisotopingInferredCharges(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 600,
		Peaks: []core.Peak{
			{MZ: 300.0, Intensity: 1000},
			{MZ: 300.0 + IsotopeSpacing, Intensity: 400},
			{MZ: 450.0, Intensity: 50},
			{MZ: 700.0, Intensity: 50},
		},
	}

	scs := core.SpecCharges([]*core.Spectrum{spec})
	require.Len(t, scs, 2)
	assert.Equal(t, 3, spec.MaxCharge())

	p := New(Options{DeisotopeThreshold: 10})
	p.Process(spec, scs[1].Charge)
	assert.Equal(t, 1, p.Counters().IsotopeSkipped)
	assert.Equal(t, 3, p.Counters().Retained)
}

func TestNormalizeRegionsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	peaks := make([]float64, 400)
	for i := 0; i < 300; i++ {
		if rng.Intn(3) == 0 {
			peaks[i] = rng.Float64() * 100
		}
	}
	peaks[299] = 42

	NormalizeRegions(peaks, 299)
	for _, v := range peaks {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, RegionMax+1e-9)
	}

	again := append([]float64(nil), peaks...)
	NormalizeRegions(again, 299)
	assert.InDeltaSlice(t, peaks, again, 1e-9)
}

func TestNormalizeRegionsZeroesSmallPeaks(t *testing.T) {
	peaks := make([]float64, 20)
	peaks[0] = 100
	peaks[1] = 4
	peaks[2] = 6

	NormalizeRegions(peaks, 9) // one bin per region
	assert.Equal(t, RegionMax, peaks[0])
	assert.Equal(t, RegionMax, peaks[1], "each bin is its own region")

	peaks = []float64{100, 4, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	NormalizeRegions(peaks, 10) // two bins per region
	assert.Equal(t, RegionMax, peaks[0])
	assert.Zero(t, peaks[1])
}

// A flat array subtracts to zero only where the full window fits; near the
// ends fewer neighbours are summed against the fixed denominator.
func TestSubtractBackgroundFlat(t *testing.T) {
	for _, n := range []int{200, 500, 2000} {
		peaks := make([]float64, n)
		for i := range peaks {
			peaks[i] = 7.5
		}
		SubtractBackground(peaks, n)
		for i := MaxXCorrOffset; i < n-MaxXCorrOffset; i++ {
			require.InDelta(t, 0.0, peaks[i], 1e-9, "n=%d i=%d", n, i)
		}
		assert.InDelta(t, 3.75, peaks[0], 1e-9)
	}

	short := make([]float64, 100)
	for i := range short {
		short[i] = 7.5
	}
	SubtractBackground(short, len(short))
	assert.InDelta(t, 3.75, short[0], 1e-9)
	assert.InDelta(t, 2.55, short[50], 1e-9)
}

func TestSubtractBackgroundMatchesDirectSum(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	peaks := make([]float64, 300)
	for i := range peaks {
		peaks[i] = rng.Float64() * 50
	}
	orig := append([]float64(nil), peaks...)

	SubtractBackground(peaks, len(peaks))
	for i := range peaks {
		sum := 0.0
		for j := i - MaxXCorrOffset; j <= i+MaxXCorrOffset; j++ {
			if j >= 0 && j < len(orig) && j != i {
				sum += orig[j]
			}
		}
		assert.InDelta(t, orig[i]-sum/(2*MaxXCorrOffset), peaks[i], 1e-9)
	}
}

func TestSkipPreprocessingKeepsRawMaxima(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 500,
		Peaks: []core.Peak{
			{MZ: 200.1, Intensity: 3},
			{MZ: 200.2, Intensity: 5},
			{MZ: 300, Intensity: 2},
		},
	}
	p := New(Options{SkipPreprocessing: true})
	cache := p.Process(spec, 1)

	binner := core.DefaultBinner()
	assert.Equal(t, 5*IntegerScale, cache.Peak(PeakMain, binner.Bin(200.2)))
	assert.Equal(t, 2*IntegerScale, cache.Peak(PeakMain, binner.Bin(300)))
}

func TestCombinedPeaks(t *testing.T) {
	spec := &core.Spectrum{
		PrecursorMZ: 500,
		Peaks:       []core.Peak{{MZ: 300, Intensity: 1}},
	}
	binner := core.DefaultBinner()
	bin := binner.Bin(300)

	plain := New(Options{SkipPreprocessing: true}).Process(spec, 1)
	x := plain.Peak(PeakMain, bin)
	assert.Equal(t, 2*x, plain.Peak(LossPeak, bin))
	assert.Equal(t, 5*x, plain.Peak(FlankingPeak, bin))
	assert.Equal(t, 10*x, plain.Peak(PrimaryPeak, bin))
	assert.Equal(t, 10*x, plain.Peak(CombinedY1, bin))
	assert.Zero(t, plain.Peak(CombinedY1, bin+1))

	p := New(Options{SkipPreprocessing: true, FlankingPeaks: true, NeutralLosses: true})
	full := p.Process(spec, 1)
	assert.Equal(t, 5*x, full.Peak(CombinedB2, bin+1))
	assert.Equal(t, 5*x, full.Peak(CombinedY2, bin-1))
	assert.Equal(t, 2*x, full.Peak(CombinedY1, bin+p.binNH3))
	assert.Equal(t, 2*x, full.Peak(CombinedB1, bin+p.binH2O))
}

func TestEmptySpectrumLeavesZeroCache(t *testing.T) {
	spec := &core.Spectrum{PrecursorMZ: 400}
	cache := New(Options{}).Process(spec, 2)
	for _, v := range cache.Values() {
		require.Zero(t, v)
	}
}

func TestAtPastEnd(t *testing.T) {
	spec := &core.Spectrum{PrecursorMZ: 400, Peaks: []core.Peak{{MZ: 100, Intensity: 1}}}
	cache := New(Options{}).Process(spec, 1)
	assert.Zero(t, cache.At(cache.End()+10))
	assert.Zero(t, cache.At(-1))
}
