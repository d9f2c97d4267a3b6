package index

import (
	"context"
	"fmt"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/xcorr"
)

// Mode selects what the queue precomputes for each peptide.
type Mode int

const (
	// XCorr compiles theoretical peak programs for dot-product scoring.
	XCorr Mode = iota
	// BIons computes b-ion mass bins for exact p-value scoring.
	BIons
)

// Hit is a spectrum matched to a peptide in peptide-centric searches.
type Hit struct {
	Spectrum *core.Spectrum
	Charge   int
	XCorr    float64
	PValue   float64 // 0 unless exact p-values are computed
}

// Entry is one peptide held by the queue.
type Entry struct {
	Peptide *core.Peptide
	Program *xcorr.Program // XCorr mode
	BIons   []int          // BIons mode
	Hits    []Hit
}

// AddHit records a peptide-centric match.
func (e *Entry) AddHit(h Hit) {
	e.Hits = append(e.Hits, h)
}

// ActivePeptideQueue is a worker's sliding window over an index. Peptides
// enter in mass order as the window advances and leave once they fall below
// it. A queue is owned by a single worker.
type ActivePeptideQueue struct {
	ctx    context.Context
	idx    Index
	mode   Mode
	binner core.MassBinner

	src       Source
	pending   *core.Peptide
	exhausted bool

	entries []*Entry
	end     int     // entries[:end] are in the current window
	floor   float64 // lowest minRange since the last rewind
	started bool

	onEvict  func(*Entry)
	rewinds  int
	programs []*xcorr.Program
}

// NewActivePeptideQueue creates a queue over idx.
func NewActivePeptideQueue(ctx context.Context, idx Index, mode Mode, binner core.MassBinner) *ActivePeptideQueue {
	return &ActivePeptideQueue{ctx: ctx, idx: idx, mode: mode, binner: binner}
}

// OnEvict registers a function called with every entry that leaves the
// queue, including those removed by Drain.
func (q *ActivePeptideQueue) OnEvict(fn func(*Entry)) {
	q.onEvict = fn
}

// Rewinds returns how many times the queue restarted its cursor.
func (q *ActivePeptideQueue) Rewinds() int {
	return q.rewinds
}

// SetActiveRange moves the window to [minRange, maxRange] and returns the
// number of candidates together with one status flag per entry in the
// window: true when the peptide's mass falls in some [minMass[i], maxMass[i]].
func (q *ActivePeptideQueue) SetActiveRange(minMass, maxMass []float64, minRange, maxRange float64) (int, []bool, error) {
	if len(minMass) != len(maxMass) {
		return 0, nil, fmt.Errorf("mismatched window bounds: %d minimums, %d maximums", len(minMass), len(maxMass))
	}

	if q.src == nil || (q.started && minRange < q.floor) {
		if err := q.rewind(); err != nil {
			return 0, nil, err
		}
	}
	q.started = true
	if minRange > q.floor {
		q.floor = minRange
	}

	// drop peptides below the window
	drop := 0
	for drop < len(q.entries) && q.entries[drop].Peptide.Mass < minRange {
		q.evict(q.entries[drop])
		drop++
	}
	if drop > 0 {
		clear(q.entries[:drop])
		q.entries = q.entries[drop:]
	}

	// pull peptides up to the top of the window
	for !q.exhausted {
		if q.pending == nil {
			if !q.src.Next() {
				if err := q.src.Err(); err != nil {
					return 0, nil, fmt.Errorf("failed to read peptides: %w", err)
				}
				q.exhausted = true
				break
			}
			q.pending = q.src.Peptide()
		}
		if q.pending.Mass > maxRange {
			break
		}
		if q.pending.Mass >= minRange {
			q.entries = append(q.entries, q.newEntry(q.pending))
		}
		q.pending = nil
	}

	q.end = 0
	for q.end < len(q.entries) && q.entries[q.end].Peptide.Mass <= maxRange {
		q.end++
	}

	status := make([]bool, q.end)
	count := 0
	for i, e := range q.entries[:q.end] {
		for k := range minMass {
			if e.Peptide.Mass >= minMass[k] && e.Peptide.Mass <= maxMass[k] {
				status[i] = true
				count++
				break
			}
		}
	}
	return count, status, nil
}

// Entries returns the entries of the current window in mass order.
func (q *ActivePeptideQueue) Entries() []*Entry {
	return q.entries[:q.end]
}

// Programs returns the XCorr programs of the current window in mass order.
// The slice is reused by the next call.
func (q *ActivePeptideQueue) Programs() []*xcorr.Program {
	q.programs = q.programs[:0]
	for _, e := range q.entries[:q.end] {
		q.programs = append(q.programs, e.Program)
	}
	return q.programs
}

// Drain evicts every entry.
func (q *ActivePeptideQueue) Drain() {
	for _, e := range q.entries {
		q.evict(e)
	}
	q.entries = nil
	q.end = 0
}

// Close drains the queue and closes its cursor.
func (q *ActivePeptideQueue) Close() error {
	q.Drain()
	if q.src == nil {
		return nil
	}
	err := q.src.Close()
	q.src = nil
	return err
}

func (q *ActivePeptideQueue) rewind() error {
	if q.src != nil {
		q.Drain()
		if err := q.src.Close(); err != nil {
			return err
		}
		q.rewinds++
	}
	src, err := q.idx.Peptides(q.ctx)
	if err != nil {
		return fmt.Errorf("failed to open peptide cursor: %w", err)
	}
	q.src = src
	q.pending = nil
	q.exhausted = false
	q.floor = 0
	return nil
}

func (q *ActivePeptideQueue) newEntry(p *core.Peptide) *Entry {
	e := &Entry{Peptide: p}
	switch q.mode {
	case XCorr:
		e.Program = xcorr.Compile(p.ResidueMasses(), q.binner)
	case BIons:
		e.BIons = xcorr.BIonBins(p.ResidueMasses(), q.binner)
	}
	return e
}

func (q *ActivePeptideQueue) evict(e *Entry) {
	if q.onEvict != nil {
		q.onEvict(e)
	}
}
