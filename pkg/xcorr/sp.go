package xcorr

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/filter"
)

const (
	// SpTopPeaks is the number of most intense peaks used by Sp.
	SpTopPeaks = 200
	// SpTolerance is the fragment match tolerance in Th.
	SpTolerance = 0.5
	// SpConsecutiveBonus rewards runs of consecutive matched ions.
	SpConsecutiveBonus = 0.075
)

const spMaxIntensity = 100.0

// SpResult is the preliminary score of one peptide.
type SpResult struct {
	Sp          float64
	MatchedIons int
	TotalIons   int
}

// SpScorer computes SEQUEST Sp against one spectrum. Build one per spectrum
// and reuse it for all of its candidates.
type SpScorer struct {
	mz        []float64
	intensity []float64
}

// NewSpScorer keeps the top peaks of spec below the precursor cut-off and
// scales square-rooted intensities so the largest is 100.
func NewSpScorer(spec *core.Spectrum, charge int) *SpScorer {
	cutoff := (spec.PrecursorMZ-core.ProtonMass)*float64(charge) + core.ProtonMass + 50
	var peaks []core.Peak
	for _, p := range spec.Peaks {
		if p.MZ < cutoff && p.Intensity > 0 {
			peaks = append(peaks, p)
		}
	}
	peaks = filter.TopN(peaks, SpTopPeaks)

	s := &SpScorer{
		mz:        make([]float64, len(peaks)),
		intensity: make([]float64, len(peaks)),
	}
	highest := 0.0
	for i, p := range peaks {
		s.mz[i] = p.MZ
		s.intensity[i] = math.Sqrt(p.Intensity)
		highest = math.Max(highest, s.intensity[i])
	}
	if highest > 0 {
		for i := range s.intensity {
			s.intensity[i] *= spMaxIntensity / highest
		}
	}
	return s
}

// Score computes Sp for a peptide at a precursor charge. b and y ions are
// singly charged, plus doubly charged for precursor charges above 2.
func (s *SpScorer) Score(residueMasses []float64, charge int) SpResult {
	n := len(residueMasses)
	if n < 2 || len(s.mz) == 0 {
		return SpResult{TotalIons: max(0, 2*(n-1))}
	}

	total := 0.0
	for _, m := range residueMasses {
		total += m
	}

	fragCharges := 1
	if charge > 2 {
		fragCharges = 2
	}

	var res SpResult
	sum := 0.0
	consecutive := 0
	for z := 1; z <= fragCharges; z++ {
		prevB, prevY := false, false
		prefix := 0.0
		for i := 0; i < n-1; i++ {
			prefix += residueMasses[i]
			b := (prefix + float64(z)*core.ProtonMass) / float64(z)
			y := (total - prefix + core.MassH2O + float64(z)*core.ProtonMass) / float64(z)

			res.TotalIons += 2
			if v, ok := s.match(b); ok {
				sum += v
				res.MatchedIons++
				if prevB {
					consecutive++
				}
				prevB = true
			} else {
				prevB = false
			}
			if v, ok := s.match(y); ok {
				sum += v
				res.MatchedIons++
				if prevY {
					consecutive++
				}
				prevY = true
			} else {
				prevY = false
			}
		}
	}

	if res.TotalIons > 0 {
		res.Sp = sum * float64(res.MatchedIons) * (1 + SpConsecutiveBonus*float64(consecutive)) / float64(res.TotalIons)
	}
	return res
}

// match returns the most intense peak within SpTolerance of mz.
func (s *SpScorer) match(mz float64) (float64, bool) {
	i := sort.SearchFloat64s(s.mz, mz-SpTolerance)
	best, found := 0.0, false
	for ; i < len(s.mz) && s.mz[i] <= mz+SpTolerance; i++ {
		if s.intensity[i] > best {
			best = s.intensity[i]
			found = true
		}
	}
	return best, found
}
