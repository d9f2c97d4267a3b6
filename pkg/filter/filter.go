// Package filter provides peak filtering applied to spectra as they are loaded
// and to the peak lists used by the Sp scorer.
package filter

import (
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	MinMZ           float64 // Drop peaks below this m/z (0 = no limit)
	MaxMZ           float64 // Drop peaks above this m/z (0 = no limit)
}

// Apply applies all configured filters to a spectrum. It must only be
// called before the spectrum is shared with search workers.
func (c *Config) Apply(spec *core.Spectrum) {
	spec.Peaks = RemoveZeroIntensityPeaks(spec.Peaks)

	if c.MinMZ > 0 || c.MaxMZ > 0 {
		spec.Peaks = c.filterByMZ(spec.Peaks)
	}

	if c.IntensityCutoff > 0 {
		spec.Peaks = FilterByIntensity(spec.Peaks, c.IntensityCutoff)
	}

	if c.TopN > 0 {
		spec.Peaks = TopN(spec.Peaks, c.TopN)
	}

	// Ensure peaks are sorted after all filtering
	spec.SortPeaks()
}

func (c *Config) filterByMZ(peaks []core.Peak) []core.Peak {
	filtered := peaks[:0:0]
	for _, peak := range peaks {
		if c.MinMZ > 0 && peak.MZ < c.MinMZ {
			continue
		}
		if c.MaxMZ > 0 && peak.MZ > c.MaxMZ {
			continue
		}
		filtered = append(filtered, peak)
	}
	return filtered
}

// FilterByIntensity removes peaks below the given percentage of the base peak.
func FilterByIntensity(peaks []core.Peak, cutoffPercent float64) []core.Peak {
	if len(peaks) == 0 {
		return peaks
	}

	maxIntensity := 0.0
	for _, peak := range peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	threshold := (cutoffPercent / 100.0) * maxIntensity

	filtered := peaks[:0:0]
	for _, peak := range peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}

// TopN returns the n most intense peaks in m/z order. The input is not
// modified.
func TopN(peaks []core.Peak, n int) []core.Peak {
	out := make([]core.Peak, len(peaks))
	copy(out, peaks)
	if len(out) <= n {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Intensity > out[j].Intensity
	})
	out = out[:n]

	sort.Slice(out, func(i, j int) bool {
		return out[i].MZ < out[j].MZ
	})
	return out
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(peaks []core.Peak) []core.Peak {
	filtered := peaks[:0:0]
	for _, peak := range peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	return filtered
}
