package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based residue index; -1 for peptide N-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// ModDatabase maps modification names to mass shifts.
type ModDatabase struct {
	mods map[string]float64
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{mods: map[string]float64{}}
}

// LoadFromCSV adds name,mass[,residues] records to the database. The first
// record is a header.
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading modification table: %w", err)
		}
		if header {
			header = false
			continue
		}

		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return fmt.Errorf("line %d: want name,mass, got %d field(s)", line, len(rec))
		}
		mass, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return fmt.Errorf("line %d: mass of %s: %w", line, rec[0], err)
		}
		db.Add(strings.TrimSpace(rec[0]), mass)
	}
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	m, ok := db.mods[name]
	return m, ok
}

// Add registers name, replacing any earlier mass.
func (db *ModDatabase) Add(name string, mass float64) { db.mods[name] = mass }

// Len returns the number of known modifications.
func (db *ModDatabase) Len() int { return len(db.mods) }

// ParseModString reads ';'-separated "shift@position" entries, where shift
// is a mass or a known name and position is 1-based, optionally prefixed
// with the expected residue ("Oxidation@M8"). "N-term" and 0 denote the
// peptide N-terminus. The result is 0-based and ordered by position.
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	var mods []Modification
	for _, entry := range strings.Split(modStr, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		shift, at, ok := strings.Cut(entry, "@")
		if !ok {
			return nil, fmt.Errorf("modification %q has no @position", entry)
		}
		shift = strings.TrimSpace(shift)

		mod := Modification{Name: shift}
		if m, err := strconv.ParseFloat(shift, 64); err == nil {
			mod.Mass = m
		} else if m, known := db.GetMass(shift); known {
			mod.Mass = m
		} else {
			return nil, fmt.Errorf("unknown modification %q", shift)
		}

		pos, err := residueIndex(strings.TrimSpace(at), sequence)
		if err != nil {
			return nil, fmt.Errorf("modification %q: %w", entry, err)
		}
		mod.Position = pos
		mods = append(mods, mod)
	}

	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Position < mods[j].Position })
	return mods, nil
}

// FormatModString renders modifications in the "mass@position" form read
// by ParseModString, with 1-based positions.
func FormatModString(mods []Modification) string {
	parts := make([]string, len(mods))
	for i, mod := range mods {
		pos := "N-term"
		if mod.Position >= 0 {
			pos = strconv.Itoa(mod.Position + 1)
		}
		parts[i] = strconv.FormatFloat(mod.Mass, 'f', -1, 64) + "@" + pos
	}
	return strings.Join(parts, ";")
}

// residueIndex converts a 1-based site such as "2" or "C2" to a residue
// index, -1 for the N-terminus.
func residueIndex(site string, sequence string) (int, error) {
	if strings.EqualFold(site, "N-term") || site == "-1" {
		return -1, nil
	}

	var want byte
	if site != "" && site[0] >= 'A' && site[0] <= 'Z' {
		want, site = site[0], site[1:]
	}
	n, err := strconv.Atoi(site)
	switch {
	case err != nil:
		return 0, fmt.Errorf("bad position: %w", err)
	case n == 0:
		return -1, nil
	case n < 0 || n > len(sequence):
		return 0, fmt.Errorf("position %d outside peptide of length %d", n, len(sequence))
	case want != 0 && sequence[n-1] != want:
		return 0, fmt.Errorf("expected %c at position %d, found %c", want, n, sequence[n-1])
	}
	return n - 1, nil
}

// ModifiedSequence renders a sequence with bracketed mass shifts, e.g.
// "PEPC[57.02]TIDE". N-terminal shifts are placed before the first residue.
func ModifiedSequence(sequence string, mods []Modification) string {
	if len(mods) == 0 {
		return sequence
	}

	shifts := make(map[int]float64, len(mods))
	for _, mod := range mods {
		shifts[mod.Position] += mod.Mass
	}

	var b strings.Builder
	if shift, ok := shifts[-1]; ok {
		fmt.Fprintf(&b, "[%.2f]-", shift)
	}
	for i, aa := range sequence {
		b.WriteRune(aa)
		if shift, ok := shifts[i]; ok {
			fmt.Fprintf(&b, "[%.2f]", shift)
		}
	}
	return b.String()
}

// unimodShifts holds monoisotopic shifts of common Unimod entries.
var unimodShifts = map[string]float64{
	"Acetyl":          42.010565,
	"Amidated":        -0.984016,
	"Biotin":          226.077598,
	"Carbamidomethyl": 57.021464,
	"Carbamyl":        43.005814,
	"Carboxymethyl":   58.005479,
	"Deamidated":      0.984016,
	"Dehydrated":      -18.010565,
	"Dimethyl":        28.0313,
	"Gln->pyro-Glu":   -17.026549,
	"Glu->pyro-Glu":   -18.010565,
	"GlyGly":          114.042927,
	"HexNAc":          203.079373,
	"iTRAQ4plex":      144.102063,
	"iTRAQ8plex":      304.205360,
	"Methyl":          14.01565,
	"Oxidation":       15.994915,
	"Phospho":         79.966331,
	"Propionamide":    71.037114,
	"Sulfo":           79.956815,
	"TMT6plex":        229.162932,
	"TMTPro":          304.207146,
	"Trimethyl":       42.04695,
}

// DefaultModDatabase returns a database holding the common Unimod shifts.
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	for name, mass := range unimodShifts {
		db.Add(name, mass)
	}
	return db
}
