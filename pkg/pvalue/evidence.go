package pvalue

import (
	"math"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/preprocess"
)

const (
	// EvidenceScale converts evidence to integers. Refactored scores are
	// divided by xcorr.RescaleFactor, which equals this scale.
	EvidenceScale = 20.0
	// PrecursorExclusion removes peaks this close to the precursor m/z (Th).
	PrecursorExclusion = 15.0

	ionHeight  = 1.0
	lossHeight = 0.2
)

// PeptideMassMean returns the mean neutral mass of peptides whose mass falls
// in the given integer bin.
func PeptideMassMean(massBin int, binner core.MassBinner) float64 {
	return (float64(massBin) - 0.5 + binner.Offset) * binner.Width
}

// ObservedIntensities bins, normalizes and background-subtracts a spectrum
// for evidence computation. Values are scaled so a region maximum is 1.
func ObservedIntensities(spec *core.Spectrum, charge, size int, binner core.MassBinner) []float64 {
	obs := make([]float64, size)
	cutoff := preprocess.ExperimentalCutoff(spec.PrecursorMZ, charge)

	largest := 0
	for _, p := range spec.Peaks {
		if p.MZ >= cutoff || p.Intensity <= 0 {
			continue
		}
		if math.Abs(p.MZ-spec.PrecursorMZ) < PrecursorExclusion {
			continue
		}
		bin := binner.Bin(p.MZ)
		if bin < 0 || bin >= size {
			continue
		}
		v := math.Sqrt(p.Intensity)
		if v > obs[bin] {
			obs[bin] = v
		}
		largest = max(largest, bin)
	}

	preprocess.NormalizeRegions(obs, largest)
	preprocess.SubtractBackground(obs, size)
	for i := range obs {
		obs[i] /= preprocess.RegionMax
	}
	return obs
}

// EvidenceVector computes the integer evidence that a peptide of the given
// mean neutral mass has a cleavage at each b-ion mass bin. Evidence at bin
// ma sums the observed intensity at the b ion and its complementary y ion
// for every fragment charge below the precursor charge, plus a smaller
// contribution from their ammonia, water and CO losses.
func EvidenceVector(obs []float64, charge int, pepMassMean float64, binner core.MassBinner) []int {
	size := len(obs)
	evidence := make([]int, size)
	maxFrag := max(1, charge-1)

	at := func(mz float64) float64 {
		bin := binner.Bin(mz)
		if bin < 0 || bin >= size {
			return 0
		}
		return obs[bin]
	}

	for ma := 0; ma < size; ma++ {
		bMass := (float64(ma) - 0.5 + binner.Offset) * binner.Width
		yMass := pepMassMean + 2*core.ProtonMass - bMass

		sum := 0.0
		for z := 1; z <= maxFrag; z++ {
			fz := float64(z)
			shift := float64(z-1) * core.ProtonMass
			b := (bMass + shift) / fz
			y := (yMass + shift) / fz

			sum += ionHeight * (at(b) + at(y))
			sum += lossHeight * (at(b-core.MassNH3/fz) + at(b-core.MassH2O/fz) + at(b-core.MassCO/fz))
			sum += lossHeight * (at(y-core.MassNH3/fz) + at(y-core.MassH2O/fz))
		}
		evidence[ma] = roundHalfAway(sum * EvidenceScale)
	}
	return evidence
}

// Score sums the evidence at the given b-ion bins, ignoring bins outside the
// vector and repeated bins.
func Score(evidence []int, bIonBins []int) int {
	score := 0
	last := -1
	for _, bin := range bIonBins {
		if bin < 0 || bin >= len(evidence) || bin == last {
			continue
		}
		score += evidence[bin]
		last = bin
	}
	return score
}

func roundHalfAway(x float64) int {
	if x >= 0 {
		return int(x + 0.5)
	}
	return int(x - 0.5)
}
