// Package core provides the data model shared by the spectrum readers, the
// peptide index and the search engine.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Spectrum represents a single observed tandem mass spectrum. Spectra are
// immutable once loaded; the search references them by pointer.
type Spectrum struct {
	ScanNumber    int
	PrecursorMZ   float64
	Charges       []int // candidate precursor charges; empty when unknown
	Peaks         []Peak
	RetentionTime *float64

	// Internal tracking
	SourceFile   string
	SourceFormat string // ms2, mgf, records
}

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// ValidationError represents an error found during spectrum validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum meets all requirements for searching.
func (s *Spectrum) Validate() error {
	var errs []string

	if s.PrecursorMZ <= 0 || math.IsNaN(s.PrecursorMZ) {
		errs = append(errs, "precursor m/z must be positive")
	}
	for _, z := range s.Charges {
		if z <= 0 {
			errs = append(errs, fmt.Sprintf("charge %d must be positive", z))
		}
	}

	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.Slice(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// Size returns the number of peaks.
func (s *Spectrum) Size() int {
	return len(s.Peaks)
}

// MaxCharge returns the largest candidate charge, or 1 when none is known.
func (s *Spectrum) MaxCharge() int {
	max := 1
	for _, z := range s.Charges {
		if z > max {
			max = z
		}
	}
	return max
}

// MaxMZ returns the m/z of the last peak, or 0 for an empty spectrum.
func (s *Spectrum) MaxMZ() float64 {
	if len(s.Peaks) == 0 {
		return 0
	}
	return s.Peaks[len(s.Peaks)-1].MZ
}

// MaxPeakInRange returns the highest intensity among peaks with m/z in
// [lo, hi]. Peaks must be sorted.
func (s *Spectrum) MaxPeakInRange(lo, hi float64) float64 {
	i := sort.Search(len(s.Peaks), func(i int) bool { return s.Peaks[i].MZ >= lo })
	max := 0.0
	for ; i < len(s.Peaks) && s.Peaks[i].MZ <= hi; i++ {
		if s.Peaks[i].Intensity > max {
			max = s.Peaks[i].Intensity
		}
	}
	return max
}

// Name returns the spectrum name in format "scan/precursor"
func (s *Spectrum) Name() string {
	return fmt.Sprintf("%d/%.4f", s.ScanNumber, s.PrecursorMZ)
}

// SpecCharge is one spectrum searched under one assumed precursor charge.
type SpecCharge struct {
	Spectrum    *Spectrum
	Charge      int
	NeutralMass float64
}

// SpecCharges expands spectra into spectrum-charge pairs. A spectrum with
// no charge information is searched as 1+ when all of its peaks lie below
// the precursor m/z, and as 2+ and 3+ otherwise; the inferred charges are
// stored on the spectrum so MaxCharge reflects them.
func SpecCharges(spectra []*Spectrum) []SpecCharge {
	var out []SpecCharge
	for _, s := range spectra {
		if len(s.Charges) == 0 {
			if s.MaxMZ() <= s.PrecursorMZ {
				s.Charges = []int{1}
			} else {
				s.Charges = []int{2, 3}
			}
		}
		for _, z := range s.Charges {
			out = append(out, SpecCharge{
				Spectrum:    s,
				Charge:      z,
				NeutralMass: NeutralMassFromMZ(s.PrecursorMZ, z),
			})
		}
	}
	return out
}

// SortByNeutralMass orders pairs by ascending neutral mass.
func SortByNeutralMass(scs []SpecCharge) {
	sort.SliceStable(scs, func(i, j int) bool {
		return scs[i].NeutralMass < scs[j].NeutralMass
	})
}

// SortByMZWindow orders pairs by the lower edge of an m/z precursor
// window of the given half-width, so that windows advance monotonically.
func SortByMZWindow(scs []SpecCharge, window float64) {
	key := func(sc SpecCharge) float64 {
		return (sc.Spectrum.PrecursorMZ - ProtonMass - window) * float64(sc.Charge)
	}
	sort.SliceStable(scs, func(i, j int) bool {
		return key(scs[i]) < key(scs[j])
	})
}
