package search

import (
	"fmt"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// Window is the set of neutral mass intervals searched for one
// spectrum-charge pair, one per isotope error, plus their envelope.
type Window struct {
	Min      []float64
	Max      []float64
	MinRange float64
	MaxRange float64
}

// ComputeWindow derives the precursor mass window of sc. isotopeErrors must
// be sorted ascending, as returned by ParseIsotopeErrors. Isotope errors
// shift the mass by whole units of core.DefaultBinWidth.
func ComputeWindow(sc core.SpecCharge, typ WindowType, precursorWindow float64, maxCharge int, isotopeErrors []int) (Window, error) {
	if len(isotopeErrors) == 0 {
		isotopeErrors = []int{0}
	}
	const unit = core.DefaultBinWidth
	lowest := float64(isotopeErrors[0]) * unit
	highest := float64(isotopeErrors[len(isotopeErrors)-1]) * unit

	w := Window{
		Min: make([]float64, len(isotopeErrors)),
		Max: make([]float64, len(isotopeErrors)),
	}

	switch typ {
	case WindowMass:
		for i, ie := range isotopeErrors {
			shift := float64(ie) * unit
			w.Min[i] = sc.NeutralMass + shift - precursorWindow
			w.Max[i] = sc.NeutralMass + shift + precursorWindow
		}
		w.MinRange = sc.NeutralMass + lowest - precursorWindow
		w.MaxRange = sc.NeutralMass + highest + precursorWindow

	case WindowMZ:
		mz := sc.Spectrum.PrecursorMZ - core.ProtonMass
		z := float64(sc.Charge)
		for i, ie := range isotopeErrors {
			shift := float64(ie) * unit
			w.Min[i] = (mz-precursorWindow)*z + shift
			w.Max[i] = (mz+precursorWindow)*z + shift
		}
		w.MinRange = mz*z + lowest - precursorWindow*float64(maxCharge)
		w.MaxRange = mz*z + highest + precursorWindow*float64(maxCharge)

	case WindowPPM:
		tiny := precursorWindow * 1e-6
		for i, ie := range isotopeErrors {
			mass := sc.NeutralMass + float64(ie)*unit
			w.Min[i] = mass * (1 - tiny)
			w.Max[i] = mass * (1 + tiny)
		}
		w.MinRange = (sc.NeutralMass + lowest) * (1 - tiny)
		w.MaxRange = (sc.NeutralMass + highest) * (1 + tiny)

	default:
		return Window{}, configError("precursor-window-type", string(typ), "want mass, mz or ppm", nil)
	}
	return w, nil
}

// contains reports whether mass falls in one of the window's intervals.
func (w Window) contains(mass float64) bool {
	for i := range w.Min {
		if mass >= w.Min[i] && mass <= w.Max[i] {
			return true
		}
	}
	return false
}

func (w Window) String() string {
	return fmt.Sprintf("[%.4f, %.4f]", w.MinRange, w.MaxRange)
}
