// Package preprocess turns observed spectra into binned intensity caches for
// XCorr scoring: cut-off and precursor filtering, optional deisotoping,
// regional normalization, background subtraction and fixed-point conversion.
package preprocess

import (
	"math"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

const (
	// NumRegions is the number of normalization regions per spectrum.
	NumRegions = 10
	// RegionMax is the intensity each region's maximum is scaled to.
	RegionMax = 50.0
	// RegionCutoff is the fraction of a region's maximum below which peaks are dropped.
	RegionCutoff = 0.05
	// MaxXCorrOffset is the half-width of the background window in bins.
	MaxXCorrOffset = 75
	// IntegerScale converts normalized intensities to fixed point.
	IntegerScale = 50000
	// IsotopeSpacing is the 13C-12C mass difference used for deisotoping.
	IsotopeSpacing = 1.00335
	// CutoffMargin is added to the precursor mass to get the highest usable m/z.
	CutoffMargin = 50.0
)

// Options controls preprocessing.
type Options struct {
	Binner             core.MassBinner
	SkipPreprocessing  bool
	RemovePrecursor    bool
	PrecursorTolerance float64 // Th
	DeisotopeThreshold float64 // ppm; 0 disables deisotoping
	FlankingPeaks      bool
	NeutralLosses      bool
}

// Counters accumulates per-peak outcomes across spectra.
type Counters struct {
	RangeSkipped     int
	PrecursorSkipped int
	IsotopeSkipped   int
	Retained         int
}

// Add merges other into c.
func (c *Counters) Add(other Counters) {
	c.RangeSkipped += other.RangeSkipped
	c.PrecursorSkipped += other.PrecursorSkipped
	c.IsotopeSkipped += other.IsotopeSkipped
	c.Retained += other.Retained
}

// Preprocessor builds PeakCaches. It reuses its buffers between calls and is
// not safe for concurrent use; each worker owns one.
type Preprocessor struct {
	opts     Options
	peaks    []float64
	cache    PeakCache
	counters Counters
	binNH3   int
	binH2O   int
}

// New creates a Preprocessor.
func New(opts Options) *Preprocessor {
	if opts.Binner.Width == 0 {
		opts.Binner = core.DefaultBinner()
	}
	return &Preprocessor{
		opts:   opts,
		binNH3: int(math.Round(core.MassNH3 / opts.Binner.Width)),
		binH2O: int(math.Round(core.MassH2O / opts.Binner.Width)),
	}
}

// Counters returns the peak counters accumulated so far.
func (p *Preprocessor) Counters() Counters {
	return p.counters
}

// ExperimentalCutoff returns the m/z at and above which peaks cannot be
// fragments of a precursor at the given m/z and charge.
func ExperimentalCutoff(precursorMZ float64, charge int) float64 {
	return (precursorMZ-core.ProtonMass)*float64(charge) + core.ProtonMass + CutoffMargin
}

// Process preprocesses spec under the given charge. The returned cache is
// owned by the Preprocessor and valid until the next call.
func (p *Preprocessor) Process(spec *core.Spectrum, charge int) *PeakCache {
	binner := p.opts.Binner
	cutoff := ExperimentalCutoff(spec.PrecursorMZ, charge)

	highest := cutoff
	if n := len(spec.Peaks); n > 0 && spec.Peaks[n-1].MZ < highest {
		highest = spec.Peaks[n-1].MZ
	}
	maxBin := binner.Bin(highest)
	if maxBin < 0 {
		maxBin = 0
	}
	bins := maxBin + MaxXCorrOffset + 1

	if cap(p.peaks) < bins {
		p.peaks = make([]float64, bins)
	} else {
		p.peaks = p.peaks[:bins]
		clear(p.peaks)
	}

	if p.opts.SkipPreprocessing {
		p.bucketRaw(spec, cutoff)
	} else {
		largest := p.fill(spec, charge, cutoff)
		NormalizeRegions(p.peaks, largest)
		SubtractBackground(p.peaks, bins)
	}

	c := &p.cache
	c.reset(bins)
	c.flanking = p.opts.FlankingPeaks
	c.losses = p.opts.NeutralLosses
	for i, v := range p.peaks {
		c.set(PeakMain, i, roundHalfAway(v*IntegerScale))
	}
	c.computeCombined(p.binNH3, p.binH2O)
	return c
}

// bucketRaw keeps the raw maximum per bin below the cut-off.
func (p *Preprocessor) bucketRaw(spec *core.Spectrum, cutoff float64) {
	for _, peak := range spec.Peaks {
		if peak.MZ >= cutoff {
			continue
		}
		bin := p.opts.Binner.Bin(peak.MZ)
		if bin >= 0 && bin < len(p.peaks) && peak.Intensity > p.peaks[bin] {
			p.peaks[bin] = peak.Intensity
		}
	}
}

// fill applies the peak filters, takes square roots and keeps the maximum per
// bin. It returns the largest bin holding a positive peak.
func (p *Preprocessor) fill(spec *core.Spectrum, charge int, cutoff float64) int {
	maxCharge := spec.MaxCharge()
	largest := 0

	for i := len(spec.Peaks) - 1; i >= 0; i-- {
		peak := spec.Peaks[i]

		if peak.MZ >= cutoff {
			p.counters.RangeSkipped++
			continue
		}
		if p.opts.RemovePrecursor && math.Abs(peak.MZ-spec.PrecursorMZ) <= p.opts.PrecursorTolerance {
			p.counters.PrecursorSkipped++
			continue
		}
		if p.opts.DeisotopeThreshold != 0 && p.isIsotope(spec, peak, maxCharge) {
			p.counters.IsotopeSkipped++
			continue
		}
		p.counters.Retained++

		bin := p.opts.Binner.Bin(peak.MZ)
		if bin < 0 || bin >= len(p.peaks) {
			continue
		}
		if bin > largest && peak.Intensity > 0 {
			largest = bin
		}
		intensity := math.Sqrt(peak.Intensity)
		if intensity > p.peaks[bin] {
			p.peaks[bin] = intensity
		}
	}
	return largest
}

// isIsotope reports whether a more intense peak sits one isotope spacing
// below peak for some fragment charge below the precursor's maximum charge.
func (p *Preprocessor) isIsotope(spec *core.Spectrum, peak core.Peak, maxCharge int) bool {
	tol := peak.MZ * p.opts.DeisotopeThreshold / 1e6
	for z := 1; z < maxCharge; z++ {
		partner := peak.MZ - IsotopeSpacing/float64(z)
		if peak.Intensity < spec.MaxPeakInRange(partner-tol, partner+tol) {
			return true
		}
	}
	return false
}

// NormalizeRegions splits bins [0, largestBin] into NumRegions contiguous
// regions. In each region, values below RegionCutoff of the region maximum
// are zeroed and the rest are scaled so the maximum becomes RegionMax.
func NormalizeRegions(peaks []float64, largestBin int) {
	regionSize := largestBin/NumRegions + 1
	for r := 0; r < NumRegions; r++ {
		start := r * regionSize
		if start >= len(peaks) {
			break
		}
		end := min(start+regionSize, len(peaks))
		region := peaks[start:end]

		highest := 0.0
		for _, v := range region {
			if v > highest {
				highest = v
			}
		}
		if highest == 0 {
			continue
		}

		threshold := highest * RegionCutoff
		scale := RegionMax / highest
		for j, v := range region {
			if v < threshold {
				region[j] = 0
			} else {
				region[j] = v * scale
			}
		}
	}
}

// SubtractBackground subtracts from each of the first end values the sum of
// its neighbours within MaxXCorrOffset bins divided by 2*MaxXCorrOffset. The
// denominator is fixed, as if the array extended without bound. Runs in
// linear time using prefix sums.
func SubtractBackground(peaks []float64, end int) {
	if end > len(peaks) {
		end = len(peaks)
	}
	if end <= 0 {
		return
	}
	const multiplier = 1.0 / (MaxXCorrOffset * 2)

	prefix := make([]float64, end+1)
	total := 0.0
	for i := 0; i < end; i++ {
		total += peaks[i]
		prefix[i+1] = total
	}

	for i := 0; i < end; i++ {
		right := min(end, i+MaxXCorrOffset+1)
		left := max(0, i-MaxXCorrOffset)
		window := prefix[right] - prefix[left] - peaks[i]
		peaks[i] -= multiplier * window
	}
}

func roundHalfAway(x float64) int {
	if x >= 0 {
		return int(x + 0.5)
	}
	return int(x - 0.5)
}
