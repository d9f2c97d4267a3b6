// Package index provides peptide indexes and the per-worker active peptide
// queue that slides a precursor mass window over them.
package index

import (
	"context"
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/pvalue"
)

// Decoy generation methods recorded in index headers.
const (
	DecoyNone           = "none"
	DecoyPeptideReverse = "peptide-reverse"
)

// Header describes an index.
type Header struct {
	DecoyType     string
	Modifications []string
	PeptideCount  int
	ProteinCount  int
}

// Index is a read-only peptide index. Indexes are shared by all workers;
// each worker opens its own Source.
type Index interface {
	Header() Header
	// Peptides returns a cursor over all peptides in ascending mass order.
	Peptides(ctx context.Context) (Source, error)
}

// Source is a mass-ordered peptide cursor.
type Source interface {
	Next() bool
	Peptide() *core.Peptide
	Err() error
	Close() error
}

// Memory is an index held in memory.
type Memory struct {
	header   Header
	peptides []*core.Peptide
}

// NewMemory builds an in-memory index. Peptides are sorted by mass.
func NewMemory(peptides []*core.Peptide, header Header) *Memory {
	sorted := append([]*core.Peptide(nil), peptides...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Mass < sorted[j].Mass })
	header.PeptideCount = len(sorted)
	if header.DecoyType == "" {
		header.DecoyType = DecoyNone
	}
	return &Memory{header: header, peptides: sorted}
}

// Header returns the index header.
func (m *Memory) Header() Header {
	return m.header
}

// Peptides returns a cursor over the in-memory peptides.
func (m *Memory) Peptides(ctx context.Context) (Source, error) {
	return &sliceSource{ctx: ctx, peptides: m.peptides, pos: -1}, nil
}

type sliceSource struct {
	ctx      context.Context
	peptides []*core.Peptide
	pos      int
	err      error
}

func (s *sliceSource) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.pos++
	return s.pos < len(s.peptides)
}

func (s *sliceSource) Peptide() *core.Peptide {
	if s.pos < 0 || s.pos >= len(s.peptides) {
		return nil
	}
	return s.peptides[s.pos]
}

func (s *sliceSource) Err() error   { return s.err }
func (s *sliceSource) Close() error { return nil }

// CountAAFrequency reads every peptide of an index and returns the
// positional amino acid frequencies used by exact p-value scoring.
func CountAAFrequency(ctx context.Context, idx Index, binner core.MassBinner) (*pvalue.AminoAcidTable, error) {
	src, err := idx.Peptides(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	counter := pvalue.NewFrequencyCounter(binner)
	for src.Next() {
		counter.Add(src.Peptide().ResidueMasses())
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return counter.Table()
}
