// Package pvalue computes exact p-values of XCorr scores by counting, with
// dynamic programming, how many peptides of a given integer mass achieve
// each score against a spectrum's discretized evidence vector.
package pvalue

import (
	"errors"
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// ErrNoResidues is returned when a table is built from no peptides.
var ErrNoResidues = errors.New("no residues counted")

// AminoAcidTable holds the distinct integer residue masses seen in the index
// with their frequencies at N-terminal, internal and C-terminal positions.
// Masses are sorted ascending; each frequency slice sums to 1 (or is all
// zero when no residue was seen at that position). Read-only once built.
type AminoAcidTable struct {
	Masses []int
	FreqN  []float64
	FreqI  []float64
	FreqC  []float64
}

// Len returns the number of distinct residue masses.
func (t *AminoAcidTable) Len() int {
	return len(t.Masses)
}

// MinMass returns the smallest residue mass.
func (t *AminoAcidTable) MinMass() int {
	return t.Masses[0]
}

// MaxMass returns the largest residue mass.
func (t *AminoAcidTable) MaxMass() int {
	return t.Masses[len(t.Masses)-1]
}

// FrequencyCounter accumulates residue mass counts by position.
type FrequencyCounter struct {
	binner core.MassBinner
	nterm  map[int]float64
	inner  map[int]float64
	cterm  map[int]float64
}

// NewFrequencyCounter creates an empty counter.
func NewFrequencyCounter(binner core.MassBinner) *FrequencyCounter {
	return &FrequencyCounter{
		binner: binner,
		nterm:  map[int]float64{},
		inner:  map[int]float64{},
		cterm:  map[int]float64{},
	}
}

// Add counts the residues of one peptide, modifications included.
func (c *FrequencyCounter) Add(residueMasses []float64) {
	n := len(residueMasses)
	for i, m := range residueMasses {
		bin := c.binner.Bin(m)
		switch {
		case i == 0:
			c.nterm[bin]++
		case i == n-1:
			c.cterm[bin]++
		default:
			c.inner[bin]++
		}
	}
}

// Table normalizes the counts into an AminoAcidTable.
func (c *FrequencyCounter) Table() (*AminoAcidTable, error) {
	seen := map[int]struct{}{}
	for _, counts := range []map[int]float64{c.nterm, c.inner, c.cterm} {
		for m := range counts {
			seen[m] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, ErrNoResidues
	}

	t := &AminoAcidTable{}
	for m := range seen {
		t.Masses = append(t.Masses, m)
	}
	sort.Ints(t.Masses)

	t.FreqN = normalize(t.Masses, c.nterm)
	t.FreqI = normalize(t.Masses, c.inner)
	t.FreqC = normalize(t.Masses, c.cterm)
	return t, nil
}

func normalize(masses []int, counts map[int]float64) []float64 {
	total := 0.0
	for _, v := range counts {
		total += v
	}
	out := make([]float64, len(masses))
	if total == 0 {
		return out
	}
	for i, m := range masses {
		out[i] = counts[m] / total
	}
	return out
}
