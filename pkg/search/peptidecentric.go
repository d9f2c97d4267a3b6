package search

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/index"
	"github.com/ChrisMcGann/tidesearch/pkg/xcorr"
)

// reportPeptide writes the best spectra matched to a peptide leaving the
// queue. Each reported spectrum gets its own report holding the peptide.
func (s *Searcher) reportPeptide(e *index.Entry, file string, sh *shared) error {
	if len(e.Hits) == 0 {
		return nil
	}
	hits := append([]index.Hit(nil), e.Hits...)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Spectrum.ScanNumber != hits[j].Spectrum.ScanNumber {
			return hits[i].Spectrum.ScanNumber < hits[j].Spectrum.ScanNumber
		}
		return hits[i].Charge < hits[j].Charge
	})
	SmoothHits(hits, s.cfg.elutionWindow(), s.cfg.ExactPValue)

	byPValue := s.cfg.ExactPValue
	sort.SliceStable(hits, func(i, j int) bool {
		if byPValue && hits[i].PValue != hits[j].PValue {
			return hits[i].PValue < hits[j].PValue
		}
		return hits[i].XCorr > hits[j].XCorr
	})

	lowest := hits[len(hits)-1].XCorr
	for _, h := range hits {
		lowest = min(lowest, h.XCorr)
	}

	top := hits[:min(len(hits), s.cfg.TopMatches)]
	for i, h := range top {
		m := Match{
			Peptide:  e.Peptide,
			XCorr:    h.XCorr,
			PValue:   h.PValue,
			Rank:     i + 1,
			DeltaLCn: deltaCn(h.XCorr, lowest),
		}
		if i+1 < len(top) {
			m.DeltaCn = deltaCn(h.XCorr, top[i+1].XCorr)
		}
		if s.cfg.ComputeSp {
			m.Sp = xcorr.NewSpScorer(h.Spectrum, h.Charge).Score(e.Peptide.ResidueMasses(), h.Charge)
			m.SpRank = 1
		}

		r := &Report{
			File:        file,
			Spectrum:    h.Spectrum,
			Charge:      h.Charge,
			NeutralMass: core.NeutralMassFromMZ(h.Spectrum.PrecursorMZ, h.Charge),
		}
		if e.Peptide.Decoy && !s.cfg.Concat {
			r.Decoys = []Match{m}
			r.DecoyCandidates = len(hits)
		} else {
			r.Targets = []Match{m}
			r.TargetCandidates = len(hits)
		}
		if err := sh.write(r); err != nil {
			return err
		}
	}
	return nil
}

// SmoothHits replaces each hit's score by the mean over the hits within
// window/2 positions of it. hits must be in elution order. XCorr values are
// averaged arithmetically; p-values, when present, geometrically. A window
// below 2 leaves the hits unchanged.
func SmoothHits(hits []index.Hit, window int, pvalues bool) {
	half := window / 2
	if half == 0 || len(hits) < 2 {
		return
	}

	xcorrs := make([]float64, len(hits))
	logs := make([]float64, len(hits))
	for i, h := range hits {
		xcorrs[i] = h.XCorr
		if pvalues {
			logs[i] = math.Log(max(h.PValue, math.SmallestNonzeroFloat64))
		}
	}

	for i := range hits {
		lo, hi := max(0, i-half), min(len(hits)-1, i+half)
		n := float64(hi - lo + 1)
		sumX, sumL := 0.0, 0.0
		for j := lo; j <= hi; j++ {
			sumX += xcorrs[j]
			sumL += logs[j]
		}
		hits[i].XCorr = sumX / n
		if pvalues {
			hits[i].PValue = math.Exp(sumL / n)
		}
	}
}
