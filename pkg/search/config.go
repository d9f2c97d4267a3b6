// Package search runs peptide-spectrum searches: it schedules
// spectrum-charge pairs over worker goroutines, selects candidate peptides
// by precursor mass, scores them and reports the best matches.
package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/preprocess"
)

// MaxThreads is the largest supported worker count.
const MaxThreads = 64

var (
	// ErrDeisotopeWithPValue rejects deisotoping in exact p-value searches.
	ErrDeisotopeWithPValue = errors.New("deisotoping cannot be combined with exact p-values")
	// ErrTooManyThreads rejects worker counts above MaxThreads.
	ErrTooManyThreads = fmt.Errorf("more than %d threads", MaxThreads)
)

// ConfigError reports an invalid search parameter.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Param  string
	Value  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

func configError(param, value, reason string, cause error) *ConfigError {
	return &ConfigError{Param: param, Value: value, Reason: reason, cause: cause}
}

// WindowType selects how the precursor window is measured.
type WindowType string

const (
	WindowMass WindowType = "mass"
	WindowMZ   WindowType = "mz"
	WindowPPM  WindowType = "ppm"
)

// Config holds every search parameter.
type Config struct {
	WindowType      WindowType
	PrecursorWindow float64
	IsotopeErrors   string // comma-separated non-negative integers

	Threads        int // 0 = one per CPU
	TopMatches     int
	ComputeSp      bool
	ExactPValue    bool
	PeptideCentric bool
	ElutionWindow  int
	Concat         bool

	SpectrumCharge     string // "all" or 1..6
	ScanRange          string // "", "N" or "N-M"
	MinMZ              float64
	MaxMZ              float64
	MinPeaks           int
	MaxPrecursorCharge int

	DeisotopeThreshold float64 // ppm; 0 disables
	RemovePrecursor    bool
	PrecursorTolerance float64 // Th
	SkipPreprocessing  bool
	FlankingPeaks      bool
	NeutralLosses      bool
	BinWidth           float64
	BinOffset          float64

	ProgressInterval int // pairs between progress messages; 0 disables
	CascadeQ         float64
}

// DefaultConfig returns the standard search parameters.
func DefaultConfig() Config {
	return Config{
		WindowType:         WindowMass,
		PrecursorWindow:    3.0,
		TopMatches:         5,
		SpectrumCharge:     "all",
		MinMZ:              0,
		MaxMZ:              1e9,
		MinPeaks:           20,
		MaxPrecursorCharge: 5,
		PrecursorTolerance: 1.5,
		NeutralLosses:      true,
		BinWidth:           core.DefaultBinWidth,
		BinOffset:          core.DefaultBinOffset,
		ProgressInterval:   1000,
		CascadeQ:           0.01,
	}
}

// settings is a validated Config with its string parameters parsed.
type settings struct {
	Config
	isotopeErrors []int
	charge        int // 0 = all
	minScan       int
	maxScan       int
	binner        core.MassBinner
}

// Validate checks every parameter and reports the first problem.
func (c Config) Validate() error {
	_, err := c.resolve()
	return err
}

func (c Config) resolve() (*settings, error) {
	s := &settings{Config: c}

	switch c.WindowType {
	case WindowMass, WindowMZ, WindowPPM:
	default:
		return nil, configError("precursor-window-type", string(c.WindowType), "want mass, mz or ppm", nil)
	}
	if c.PrecursorWindow < 0 {
		return nil, configError("precursor-window", ftoa(c.PrecursorWindow), "must not be negative", nil)
	}

	if c.Threads > MaxThreads {
		return nil, configError("num-threads", strconv.Itoa(c.Threads), "too many threads", ErrTooManyThreads)
	}
	if c.Threads < 0 {
		return nil, configError("num-threads", strconv.Itoa(c.Threads), "must not be negative", nil)
	}
	if c.TopMatches < 1 {
		return nil, configError("top-match", strconv.Itoa(c.TopMatches), "must be at least 1", nil)
	}
	if c.ElutionWindow < 0 {
		return nil, configError("elution-window-size", strconv.Itoa(c.ElutionWindow), "must not be negative", nil)
	}

	if c.ExactPValue && c.DeisotopeThreshold != 0 {
		return nil, configError("deisotope", ftoa(c.DeisotopeThreshold), "not available with exact-p-value", ErrDeisotopeWithPValue)
	}
	if c.DeisotopeThreshold < 0 {
		return nil, configError("deisotope", ftoa(c.DeisotopeThreshold), "must not be negative", nil)
	}
	if c.BinWidth <= 0 {
		return nil, configError("mz-bin-width", ftoa(c.BinWidth), "must be positive", nil)
	}
	s.binner = core.MassBinner{Width: c.BinWidth, Offset: c.BinOffset}
	if c.ExactPValue && !s.binner.IsDefault() {
		return nil, configError("mz-bin-width", ftoa(c.BinWidth), "exact-p-value requires the default bin width", nil)
	}

	var err error
	if s.isotopeErrors, err = ParseIsotopeErrors(c.IsotopeErrors); err != nil {
		return nil, configError("isotope-error", c.IsotopeErrors, "malformed list", err)
	}

	switch strings.ToLower(strings.TrimSpace(c.SpectrumCharge)) {
	case "", "all":
		s.charge = 0
	default:
		z, err := strconv.Atoi(strings.TrimSpace(c.SpectrumCharge))
		if err != nil || z < 1 || z > 6 {
			return nil, configError("spectrum-charge", c.SpectrumCharge, "want all or 1 through 6", err)
		}
		s.charge = z
	}

	if s.minScan, s.maxScan, err = parseScanRange(c.ScanRange); err != nil {
		return nil, configError("scan-number", c.ScanRange, "want <first>-<last>", err)
	}
	if c.MaxPrecursorCharge < 1 {
		return nil, configError("max-precursor-charge", strconv.Itoa(c.MaxPrecursorCharge), "must be at least 1", nil)
	}
	return s, nil
}

// parseScanRange accepts "", a single scan "N", or "N-M".
func parseScanRange(r string) (int, int, error) {
	r = strings.TrimSpace(r)
	if r == "" {
		return 0, int(^uint(0) >> 1), nil
	}
	first, last, found := strings.Cut(r, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("first scan %d after last scan %d", lo, hi)
	}
	return lo, hi, nil
}

func (s *settings) preprocessOptions() preprocess.Options {
	return preprocess.Options{
		Binner:             s.binner,
		SkipPreprocessing:  s.SkipPreprocessing,
		RemovePrecursor:    s.RemovePrecursor,
		PrecursorTolerance: s.PrecursorTolerance,
		DeisotopeThreshold: s.DeisotopeThreshold,
		FlankingPeaks:      s.FlankingPeaks,
		NeutralLosses:      s.NeutralLosses,
	}
}

// elutionWindow returns the smoothing width used for peptide-centric
// reports: zero outside peptide-centric mode, otherwise the configured width
// bumped to the next odd number.
func (s *settings) elutionWindow() int {
	if !s.PeptideCentric || s.ElutionWindow == 0 {
		return 0
	}
	if s.ElutionWindow%2 == 0 {
		return s.ElutionWindow + 1
	}
	return s.ElutionWindow
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
