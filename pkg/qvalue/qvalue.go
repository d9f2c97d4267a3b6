// Package qvalue converts PSM scores and p-values into q-values.
package qvalue

import (
	"errors"
	"sort"
)

// ErrNoScores is returned when target-decoy competition has no targets or
// no decoys to work with.
var ErrNoScores = errors.New("cannot compute q-values without both target and decoy scores")

// DecoyQValues estimates q-values for target scores using decoy scores as
// an empirical null. Higher scores are better. The FDR at a target score is
// piZero * (targets/decoys) * (decoys scoring higher) / (targets ranked so
// far), capped at 1. Results are returned in the order of targets.
func DecoyQValues(targets, decoys []float64, piZero float64) ([]float64, error) {
	if len(targets) == 0 || len(decoys) == 0 {
		return nil, ErrNoScores
	}

	order := descendingOrder(targets)
	sortedDecoys := append([]float64(nil), decoys...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sortedDecoys)))

	ratio := float64(len(targets)) / float64(len(decoys))
	fdr := make([]float64, len(targets))
	d := 0
	for rank, i := range order {
		for d < len(sortedDecoys) && sortedDecoys[d] > targets[i] {
			d++
		}
		fdr[rank] = min(1, piZero*ratio*float64(d)/float64(rank+1))
	}

	fdrToQ(fdr)
	return scatter(fdr, order), nil
}

// BHQValues converts p-values into q-values with the Benjamini-Hochberg
// procedure. Results are returned in the order of pvalues.
func BHQValues(pvalues []float64, piZero float64) []float64 {
	if len(pvalues) == 0 {
		return nil
	}

	order := make([]int, len(pvalues))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return pvalues[order[a]] < pvalues[order[b]] })

	n := float64(len(pvalues))
	fdr := make([]float64, len(pvalues))
	for rank, i := range order {
		fdr[rank] = min(1, pvalues[i]/float64(rank+1)*n*piZero)
	}

	fdrToQ(fdr)
	return scatter(fdr, order)
}

// fdrToQ turns FDRs sorted from best to worst score into q-values: each
// becomes the minimum FDR at its rank or any worse rank.
func fdrToQ(fdr []float64) {
	for i := len(fdr) - 2; i >= 0; i-- {
		if fdr[i+1] < fdr[i] {
			fdr[i] = fdr[i+1]
		}
	}
}

func descendingOrder(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	return order
}

func scatter(ranked []float64, order []int) []float64 {
	out := make([]float64, len(ranked))
	for rank, i := range order {
		out[i] = ranked[rank]
	}
	return out
}
