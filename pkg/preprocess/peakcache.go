package preprocess

// PeakType selects one of the per-bin transformations stored in a PeakCache.
type PeakType int

const (
	PeakMain     PeakType = iota // fixed-point background-subtracted intensity
	LossPeak                     // 2x
	FlankingPeak                 // 5x
	PrimaryPeak                  // 10x
	CombinedB1
	CombinedY1
	CombinedB2
	CombinedY2

	NumPeakTypes = 8
)

// Code returns the cache index of a (bin, type) pair.
func Code(bin int, t PeakType) int {
	return bin*NumPeakTypes + int(t)
}

// PeakCache is the binned intensity cache of one preprocessed spectrum under
// one assumed charge. A cache is owned by one worker and rebuilt for every
// spectrum-charge pair.
type PeakCache struct {
	values   []int
	bins     int // bins covered by background subtraction
	flanking bool
	losses   bool
}

// At returns the cached value for a code, or 0 past the end of the cache.
func (c *PeakCache) At(code int) int {
	if code < 0 || code >= len(c.values) {
		return 0
	}
	return c.values[code]
}

// Peak returns the value of one peak type at a bin.
func (c *PeakCache) Peak(t PeakType, bin int) int {
	return c.At(Code(bin, t))
}

// Values exposes the raw cache for scorers. Callers must not modify it.
func (c *PeakCache) Values() []int {
	return c.values
}

// End is the first code past the cache.
func (c *PeakCache) End() int {
	return len(c.values)
}

func (c *PeakCache) reset(bins int) {
	n := bins * NumPeakTypes
	if cap(c.values) < n {
		c.values = make([]int, n)
	} else {
		c.values = c.values[:n]
		clear(c.values)
	}
	c.bins = bins
}

func (c *PeakCache) set(t PeakType, bin, v int) {
	c.values[Code(bin, t)] = v
}

// computeCombined fills the derived peak types from PeakMain. Loss, flanking
// and primary weights are 2, 5 and 10 so that combinations need only
// additions; reported scores are rescaled later.
func (c *PeakCache) computeCombined(binNH3, binH2O int) {
	for i := 0; i < c.bins; i++ {
		x := c.values[Code(i, PeakMain)]
		y := x + x
		c.set(LossPeak, i, y)
		z := y + y + x
		c.set(FlankingPeak, i, z)
		c.set(PrimaryPeak, i, z+z)
	}

	for i := 0; i < c.bins; i++ {
		flanks := c.values[Code(i, PrimaryPeak)]
		if c.flanking {
			if i > 0 {
				flanks += c.values[Code(i-1, FlankingPeak)]
			}
			if i < c.bins-1 {
				flanks += c.values[Code(i+1, FlankingPeak)]
			}
		}
		y1 := flanks
		if c.losses {
			if i > binNH3 {
				y1 += c.values[Code(i-binNH3, LossPeak)]
			}
			if i > binH2O {
				y1 += c.values[Code(i-binH2O, LossPeak)]
			}
		}
		c.set(CombinedY1, i, y1)
		c.set(CombinedB1, i, y1)
		c.set(CombinedY2, i, flanks)
		c.set(CombinedB2, i, flanks)
	}
}
