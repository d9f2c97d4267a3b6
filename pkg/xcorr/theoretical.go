// Package xcorr computes XCorr scores as sparse dot products between a
// preprocessed spectrum cache and theoretical fragment-ion patterns, plus the
// SEQUEST preliminary score Sp.
package xcorr

import (
	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/preprocess"
)

const (
	// XCorrScaling converts dot products to XCorr values.
	XCorrScaling = 1e8
	// RescaleFactor converts exact p-value refactored scores to XCorr values.
	RescaleFactor = 20.0
)

// Program is the precomputed list of cache codes for one peptide. A program
// has two variants: singly charged fragments for precursor charges up to 2,
// and singly plus doubly charged fragments for higher charges.
type Program struct {
	single []int
	multi  []int
}

// Compile builds the theoretical peak program of a peptide.
func Compile(residueMasses []float64, binner core.MassBinner) *Program {
	n := len(residueMasses)
	if n < 2 {
		return &Program{}
	}

	single := make([]int, 0, 2*(n-1))
	double := make([]int, 0, 2*(n-1))

	total := 0.0
	for _, m := range residueMasses {
		total += m
	}

	prefix := 0.0
	for i := 0; i < n-1; i++ {
		prefix += residueMasses[i]
		b := prefix + core.ProtonMass
		y := total - prefix + core.MassH2O + core.ProtonMass

		single = append(single,
			preprocess.Code(binner.Bin(b), preprocess.CombinedB1),
			preprocess.Code(binner.Bin(y), preprocess.CombinedY1),
		)
		double = append(double,
			preprocess.Code(binner.BinCharged(b, 2), preprocess.CombinedB2),
			preprocess.Code(binner.BinCharged(y, 2), preprocess.CombinedY2),
		)
	}

	multi := make([]int, 0, len(single)+len(double))
	multi = append(multi, single...)
	multi = append(multi, double...)
	return &Program{single: single, multi: multi}
}

// Codes returns the cache codes scored for a precursor charge.
func (p *Program) Codes(charge int) []int {
	if charge <= 2 {
		return p.single
	}
	return p.multi
}

// Score returns the dot product of the program with a cache. Codes past the
// end of the cache contribute nothing.
func (p *Program) Score(cache *preprocess.PeakCache, charge int) int {
	values := cache.Values()
	end := len(values)
	total := 0
	for _, code := range p.Codes(charge) {
		if code < end {
			total += values[code]
		}
	}
	return total
}

// BIonBins returns the integer mass bins of the singly charged b ions of a
// peptide, used by exact p-value scoring.
func BIonBins(residueMasses []float64, binner core.MassBinner) []int {
	if len(residueMasses) < 2 {
		return nil
	}
	bins := make([]int, 0, len(residueMasses)-1)
	prefix := 0.0
	for i := 0; i < len(residueMasses)-1; i++ {
		prefix += residueMasses[i]
		bins = append(bins, binner.Bin(prefix+core.ProtonMass))
	}
	return bins
}

// XCorr converts a dot product to an XCorr value.
func XCorr(score int) float64 {
	return float64(score) / XCorrScaling
}
