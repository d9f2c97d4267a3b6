package search

import (
	"errors"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ChrisMcGann/tidesearch/pkg/qvalue"
)

// Assigned records spectrum-charge pairs confidently identified by an
// earlier pass of a cascade search, per spectrum file. Safe for concurrent
// use.
type Assigned struct {
	mu    sync.Mutex
	files map[string]*roaring.Bitmap
}

// NewAssigned creates an empty set.
func NewAssigned() *Assigned {
	return &Assigned{files: map[string]*roaring.Bitmap{}}
}

func assignedKey(scan, charge int) uint32 {
	return uint32(scan*10 + charge)
}

// Add marks a pair as assigned.
func (a *Assigned) Add(file string, scan, charge int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	bm, ok := a.files[file]
	if !ok {
		bm = roaring.New()
		a.files[file] = bm
	}
	bm.Add(assignedKey(scan, charge))
}

// Contains reports whether a pair was assigned.
func (a *Assigned) Contains(file string, scan, charge int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	bm, ok := a.files[file]
	return ok && bm.Contains(assignedKey(scan, charge))
}

// Len returns the number of assigned pairs in a file.
func (a *Assigned) Len(file string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bm, ok := a.files[file]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

type topPSM struct {
	file   string
	scan   int
	charge int
	score  float64 // XCorr, or p-value in exact searches
}

// Recorder passes reports through to another Reporter while remembering the
// top-ranked target and decoy of each pair for the cascade q-value filter.
// Reports reach it under the search's results lock.
type Recorder struct {
	next     Reporter
	byPValue bool
	targets  []topPSM
	decoys   []topPSM
}

// NewRecorder wraps next. byPValue selects Benjamini-Hochberg q-values from
// exact p-values instead of target-decoy competition on XCorr.
func NewRecorder(next Reporter, byPValue bool) *Recorder {
	return &Recorder{next: next, byPValue: byPValue}
}

// WriteReport records the top matches of r and forwards it.
func (c *Recorder) WriteReport(r *Report) error {
	for _, m := range r.Targets {
		if m.Rank != 1 {
			continue
		}
		psm := topPSM{file: r.File, scan: r.Spectrum.ScanNumber, charge: r.Charge, score: m.XCorr}
		if c.byPValue {
			psm.score = m.PValue
		}
		if m.Peptide.Decoy {
			c.decoys = append(c.decoys, psm)
		} else {
			c.targets = append(c.targets, psm)
		}
	}
	for _, m := range r.Decoys {
		if m.Rank == 1 {
			c.decoys = append(c.decoys, topPSM{file: r.File, scan: r.Spectrum.ScanNumber, charge: r.Charge, score: m.XCorr})
		}
	}
	return c.next.WriteReport(r)
}

// Assign marks every recorded target pair with a q-value at or below
// threshold as assigned and returns how many were marked. The recorder is
// reset for the next pass.
func (c *Recorder) Assign(a *Assigned, threshold float64) (int, error) {
	defer func() { c.targets, c.decoys = nil, nil }()
	if len(c.targets) == 0 {
		return 0, nil
	}

	scores := make([]float64, len(c.targets))
	for i, t := range c.targets {
		scores[i] = t.score
	}

	var q []float64
	if c.byPValue {
		q = qvalue.BHQValues(scores, 1)
	} else {
		decoys := make([]float64, len(c.decoys))
		for i, d := range c.decoys {
			decoys[i] = d.score
		}
		var err error
		q, err = qvalue.DecoyQValues(scores, decoys, 1)
		if errors.Is(err, qvalue.ErrNoScores) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}

	marked := 0
	for i, t := range c.targets {
		if q[i] <= threshold {
			a.Add(t.file, t.scan, t.charge)
			marked++
		}
	}
	return marked, nil
}
