package search

import (
	"container/heap"
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/xcorr"
)

// Match is one reported peptide-spectrum match.
type Match struct {
	Peptide  *core.Peptide
	XCorr    float64
	PValue   float64 // exact p-value searches only
	Rank     int     // 1-based, by XCorr or by p-value
	DeltaCn  float64
	DeltaLCn float64
	Sp       xcorr.SpResult
	SpRank   int // 1-based among reported matches; 0 without Sp
}

// Report holds the matches of one spectrum-charge pair. With concatenated
// output every match is in Targets.
type Report struct {
	File             string
	Spectrum         *core.Spectrum
	Charge           int
	NeutralMass      float64
	Targets          []Match
	Decoys           []Match
	TargetCandidates int
	DecoyCandidates  int
}

// Reporter receives reports. Calls are serialised by the search.
type Reporter interface {
	WriteReport(r *Report) error
}

// candidate is a scored peptide before ranking.
type candidate struct {
	peptide *core.Peptide
	xcorr   float64
	pvalue  float64
}

// better orders candidates from best to worst: lowest p-value first in
// p-value searches, highest XCorr otherwise. Ties fall back to XCorr and
// then to peptide id so ranks are deterministic.
func better(a, b candidate, byPValue bool) bool {
	if byPValue && a.pvalue != b.pvalue {
		return a.pvalue < b.pvalue
	}
	if a.xcorr != b.xcorr {
		return a.xcorr > b.xcorr
	}
	return a.peptide.ID < b.peptide.ID
}

// topHeap keeps the N best candidates with the worst at the root.
type topHeap struct {
	items    []candidate
	byPValue bool
}

func (h *topHeap) Len() int           { return len(h.items) }
func (h *topHeap) Less(i, j int) bool { return better(h.items[j], h.items[i], h.byPValue) }
func (h *topHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topHeap) Push(x any)         { h.items = append(h.items, x.(candidate)) }
func (h *topHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

// MatchSet collects the scored candidates of one spectrum-charge pair.
type MatchSet struct {
	byPValue bool
	concat   bool
	targets  []candidate
	decoys   []candidate
}

// NewMatchSet creates an empty set. byPValue ranks by exact p-value;
// concat ranks targets and decoys together.
func NewMatchSet(byPValue, concat bool) *MatchSet {
	return &MatchSet{byPValue: byPValue, concat: concat}
}

// Add records a scored candidate.
func (m *MatchSet) Add(p *core.Peptide, xc, pvalue float64) {
	c := candidate{peptide: p, xcorr: xc, pvalue: pvalue}
	if p.Decoy && !m.concat {
		m.decoys = append(m.decoys, c)
		return
	}
	m.targets = append(m.targets, c)
}

// Len returns the number of candidates added.
func (m *MatchSet) Len() int {
	return len(m.targets) + len(m.decoys)
}

// Report ranks the candidates and keeps the best topN of each group. When
// sp is non-nil, Sp is computed for the reported matches.
func (m *MatchSet) Report(sc core.SpecCharge, topN int, sp *xcorr.SpScorer) *Report {
	r := &Report{
		Spectrum:         sc.Spectrum,
		Charge:           sc.Charge,
		NeutralMass:      sc.NeutralMass,
		TargetCandidates: len(m.targets),
		DecoyCandidates:  len(m.decoys),
	}
	r.Targets = m.rank(m.targets, topN, sc.Charge, sp)
	r.Decoys = m.rank(m.decoys, topN, sc.Charge, sp)
	return r
}

func (m *MatchSet) rank(cands []candidate, topN int, charge int, sp *xcorr.SpScorer) []Match {
	if len(cands) == 0 {
		return nil
	}

	h := &topHeap{byPValue: m.byPValue}
	for _, c := range cands {
		if h.Len() < topN {
			heap.Push(h, c)
		} else if better(c, h.items[0], m.byPValue) {
			h.items[0] = c
			heap.Fix(h, 0)
		}
	}
	top := h.items
	sort.Slice(top, func(i, j int) bool { return better(top[i], top[j], m.byPValue) })

	lowest := cands[0].xcorr
	for _, c := range cands[1:] {
		lowest = min(lowest, c.xcorr)
	}

	matches := make([]Match, len(top))
	for i, c := range top {
		matches[i] = Match{Peptide: c.peptide, XCorr: c.xcorr, PValue: c.pvalue, Rank: i + 1}
		if i+1 < len(top) {
			matches[i].DeltaCn = deltaCn(c.xcorr, top[i+1].xcorr)
		}
		matches[i].DeltaLCn = deltaCn(c.xcorr, lowest)
	}

	if sp != nil {
		for i := range matches {
			matches[i].Sp = sp.Score(matches[i].Peptide.ResidueMasses(), charge)
		}
		order := make([]int, len(matches))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return matches[order[a]].Sp.Sp > matches[order[b]].Sp.Sp })
		for rank, i := range order {
			matches[i].SpRank = rank + 1
		}
	}
	return matches
}

// deltaCn is the XCorr drop from score to other relative to score.
func deltaCn(score, other float64) float64 {
	if score <= 0 {
		return 0
	}
	return (score - other) / score
}
