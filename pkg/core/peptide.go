package core

import (
	"fmt"
	"strings"
)

// Peptide is a candidate peptide materialized from the peptide index.
// Peptides are read-only once built.
type Peptide struct {
	ID            int64
	Sequence      string
	Modifications []Modification
	Mass          float64 // neutral monoisotopic mass
	Decoy         bool
	Proteins      []string
}

// NewPeptide builds a peptide and computes its neutral mass.
func NewPeptide(id int64, sequence string, mods []Modification, decoy bool, proteins []string) (*Peptide, error) {
	for i, aa := range sequence {
		if _, ok := AminoAcidMasses[aa]; !ok {
			return nil, fmt.Errorf("unknown residue %q at position %d of %s", aa, i+1, sequence)
		}
	}
	return &Peptide{
		ID:            id,
		Sequence:      sequence,
		Modifications: mods,
		Mass:          CalculateNeutralMass(sequence, mods),
		Decoy:         decoy,
		Proteins:      proteins,
	}, nil
}

// Len returns the number of residues.
func (p *Peptide) Len() int {
	return len(p.Sequence)
}

// ResidueMasses returns the per-residue masses with modification shifts
// folded in. N-terminal shifts are added to the first residue.
func (p *Peptide) ResidueMasses() []float64 {
	masses := make([]float64, len(p.Sequence))
	for i, aa := range p.Sequence {
		masses[i], _ = ResidueMass(aa)
	}
	for _, mod := range p.Modifications {
		pos := mod.Position
		if pos < 0 {
			pos = 0
		}
		if pos < len(masses) {
			masses[pos] += mod.Mass
		}
	}
	return masses
}

// ModifiedSequence returns the sequence with bracketed modification masses.
func (p *Peptide) ModifiedSequence() string {
	return ModifiedSequence(p.Sequence, p.Modifications)
}

// ProteinString returns the protein accessions joined by commas.
func (p *Peptide) ProteinString() string {
	return strings.Join(p.Proteins, ",")
}

// Reversed returns the peptide-reverse decoy of p: all residues except the
// C-terminal one are reversed, and modifications move with their residues.
func (p *Peptide) Reversed() *Peptide {
	n := len(p.Sequence)
	if n < 2 {
		cp := *p
		cp.Decoy = true
		return &cp
	}
	seq := []byte(p.Sequence)
	for i, j := 0, n-2; i < j; i, j = i+1, j-1 {
		seq[i], seq[j] = seq[j], seq[i]
	}
	mods := make([]Modification, len(p.Modifications))
	for i, mod := range p.Modifications {
		mods[i] = mod
		if mod.Position >= 0 && mod.Position < n-1 {
			mods[i].Position = n - 2 - mod.Position
		}
	}
	return &Peptide{
		ID:            p.ID,
		Sequence:      string(seq),
		Modifications: mods,
		Mass:          p.Mass,
		Decoy:         true,
		Proteins:      p.Proteins,
	}
}
