package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

func specCharge(neutralMass float64, charge int) core.SpecCharge {
	mz := neutralMass/float64(charge) + core.ProtonMass
	return core.SpecCharge{
		Spectrum:    &core.Spectrum{ScanNumber: 1, PrecursorMZ: mz},
		Charge:      charge,
		NeutralMass: neutralMass,
	}
}

func TestComputeWindowMass(t *testing.T) {
	sc := specCharge(1500, 2)
	w, err := ComputeWindow(sc, WindowMass, 3, 5, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1500 - 3}, w.Min)
	assert.Equal(t, []float64{1500 + 3}, w.Max)
	assert.Equal(t, 1500.0-3, w.MinRange)
	assert.Equal(t, 1500.0+3, w.MaxRange)
}

func TestComputeWindowIsotopeErrors(t *testing.T) {
	sc := specCharge(1500, 2)
	w, err := ComputeWindow(sc, WindowMass, 0.05, 5, []int{-2, -1, 0})
	require.NoError(t, err)
	require.Len(t, w.Min, 3)
	assert.InDelta(t, 1500-2*core.DefaultBinWidth-0.05, w.Min[0], 1e-9)
	assert.InDelta(t, 1500-core.DefaultBinWidth+0.05, w.Max[1], 1e-9)
	assert.InDelta(t, w.Min[0], w.MinRange, 1e-12)
	assert.InDelta(t, w.Max[2], w.MaxRange, 1e-12)

	assert.True(t, w.contains(1500-core.DefaultBinWidth))
	assert.False(t, w.contains(1500-0.5))
}

func TestComputeWindowPPM(t *testing.T) {
	sc := specCharge(1000.0, 2)
	w, err := ComputeWindow(sc, WindowPPM, 10, 5, []int{0})
	require.NoError(t, err)

	assert.InDelta(t, 999.99, w.Min[0], 1e-9)
	assert.InDelta(t, 1000.01, w.Max[0], 1e-9)
	assert.True(t, w.contains(1000.005))
	assert.False(t, w.contains(999.5))
	assert.Equal(t, "[999.9900, 1000.0100]", w.String())
}

func TestComputeWindowMZ(t *testing.T) {
	sc := specCharge(1000.0, 2)
	w, err := ComputeWindow(sc, WindowMZ, 0.5, 4, []int{-1, 0})
	require.NoError(t, err)

	mz := sc.Spectrum.PrecursorMZ - core.ProtonMass
	assert.InDelta(t, (mz-0.5)*2-core.DefaultBinWidth, w.Min[0], 1e-9)
	assert.InDelta(t, (mz+0.5)*2, w.Max[1], 1e-9)
	assert.InDelta(t, mz*2-core.DefaultBinWidth-0.5*4, w.MinRange, 1e-9)
	assert.InDelta(t, mz*2+0.5*4, w.MaxRange, 1e-9)
	for i := range w.Min {
		assert.GreaterOrEqual(t, w.Min[i], w.MinRange)
		assert.LessOrEqual(t, w.Max[i], w.MaxRange)
	}
}

func TestComputeWindowInvalidType(t *testing.T) {
	_, err := ComputeWindow(specCharge(1000, 2), WindowType("bad"), 1, 5, []int{0})
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

// Two spectra one averagine isotope apart at charge 2 differ in neutral
// mass by the isotope spacing; a ppm window around one excludes the other.
func TestWindowSeparatesIsotopicNeighbours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinMZ = 400
	cfg.MaxMZ = 1200
	cfg.MinPeaks = 0
	st, err := cfg.resolve()
	require.NoError(t, err)

	a := &core.Spectrum{ScanNumber: 1, PrecursorMZ: 500.0}
	b := &core.Spectrum{ScanNumber: 2, PrecursorMZ: 500.0 + core.AveragineSeparation/2}
	scA := core.SpecCharge{Spectrum: a, Charge: 2, NeutralMass: core.NeutralMassFromMZ(a.PrecursorMZ, 2)}
	scB := core.SpecCharge{Spectrum: b, Charge: 2, NeutralMass: core.NeutralMassFromMZ(b.PrecursorMZ, 2)}
	require.True(t, st.eligible(scA))
	require.True(t, st.eligible(scB))
	assert.InDelta(t, core.AveragineSeparation, scB.NeutralMass-scA.NeutralMass, 1e-9)

	wA, err := ComputeWindow(scA, WindowPPM, 10, 5, []int{0})
	require.NoError(t, err)
	wB, err := ComputeWindow(scB, WindowPPM, 10, 5, []int{0})
	require.NoError(t, err)

	assert.True(t, wA.contains(scA.NeutralMass))
	assert.False(t, wA.contains(scB.NeutralMass))
	assert.True(t, wB.contains(scB.NeutralMass))
	assert.False(t, wB.contains(scA.NeutralMass))

	tooHigh := &core.Spectrum{ScanNumber: 3, PrecursorMZ: 1200.5}
	assert.False(t, st.eligible(core.SpecCharge{Spectrum: tooHigh, Charge: 2}))
}

func TestShardCoversEveryIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 1001} {
		for _, threads := range []int{1, 2, 3, 8, 64} {
			seen := make([]int, n)
			for thread := 0; thread < threads; thread++ {
				for _, i := range Shard(n, threads, thread) {
					seen[i]++
				}
			}
			for i, c := range seen {
				require.Equal(t, 1, c, "n=%d threads=%d index=%d", n, threads, i)
			}
		}
	}
	assert.Equal(t, []int{1, 4, 7}, Shard(9, 3, 1))
	assert.Nil(t, Shard(9, 3, 3))
}
