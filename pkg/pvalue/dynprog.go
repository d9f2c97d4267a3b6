package pvalue

import (
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// ScoreTable maps integer scores of peptides of one integer mass to
// p-values. Tables belong to one spectrum and are discarded with it.
type ScoreTable struct {
	offset  int
	pvalues []float64
}

// PValue returns the probability that a random peptide of the table's mass
// scores at least score. Scores outside the table clamp to its ends.
func (t *ScoreTable) PValue(score int) float64 {
	idx := score + t.offset
	if idx < 0 {
		return 1
	}
	if idx >= len(t.pvalues) {
		return t.pvalues[len(t.pvalues)-1]
	}
	return t.pvalues[idx]
}

// scoreBounds returns the lowest and highest achievable scores of a peptide
// with at most maxResidues cleavages: the sum of the most negative and most
// positive evidence values. minScore <= 0 <= maxScore.
func scoreBounds(evidence []int, maxResidues int) (minScore, maxScore int) {
	sorted := append([]int(nil), evidence...)
	sort.Ints(sorted)
	for i := 0; i < maxResidues && i < len(sorted) && sorted[i] < 0; i++ {
		minScore += sorted[i]
	}
	for i := len(sorted) - 1; i >= 0 && len(sorted)-1-i < maxResidues && sorted[i] > 0; i-- {
		maxScore += sorted[i]
	}
	return minScore, maxScore
}

// NewScoreTable counts, for every score, the residue sequences of integer
// mass pepMassBin whose b-ion evidence sums to that score, weighting each
// residue by its positional frequency, and converts the counts to p-values.
func NewScoreTable(evidence []int, pepMassBin int, aa *AminoAcidTable, binner core.MassBinner) (*ScoreTable, error) {
	if aa == nil || aa.Len() == 0 {
		return nil, ErrNoResidues
	}
	minDelta := aa.MinMass()
	maxDelta := aa.MaxMass()
	if minDelta <= 0 {
		return nil, fmt.Errorf("invalid residue mass %d", minDelta)
	}
	if len(evidence) < pepMassBin+maxDelta+1 {
		return nil, fmt.Errorf("evidence vector of %d bins too short for mass bin %d", len(evidence), pepMassBin)
	}

	maxEvidence, minEvidence := 0, 0
	for _, e := range evidence {
		maxEvidence = max(maxEvidence, e)
		minEvidence = min(minEvidence, e)
	}
	minScore, maxScore := scoreBounds(evidence, pepMassBin/minDelta)

	bottomRowBuffer := maxEvidence + 1
	topRowBuffer := -minEvidence
	colStart := binner.Bin(core.MassH)

	nRow := bottomRowBuffer - minScore + 1 + maxScore + topRowBuffer
	nCol := maxDelta + pepMassBin
	rowFirst := bottomRowBuffer
	rowLast := rowFirst - minScore + maxScore
	colFirst := colStart + binner.Bin(core.MassH)
	colLast := binner.Bin(binner.Mass(pepMassBin) - core.MassOH)
	initRow := bottomRowBuffer - minScore
	initCol := maxDelta + colStart

	if colLast <= colFirst || maxDelta+colLast >= nCol {
		return nil, fmt.Errorf("mass bin %d too small for exact p-values", pepMassBin)
	}

	dp := make([]float64, nRow*nCol)
	cell := func(row, col int) *float64 { return &dp[row*nCol+col] }

	// N-terminal residue
	for i, m := range aa.Masses {
		col := initCol + m
		if col > maxDelta+colLast {
			continue
		}
		row := initRow + evidence[m+colStart]
		*cell(row, col) += aa.FreqN[i]
	}

	// internal residues
	prevCols := make([]int, aa.Len())
	for ma := colFirst; ma < colLast; ma++ {
		col := maxDelta + ma
		e := evidence[ma]
		for i, m := range aa.Masses {
			prevCols[i] = col - m
		}
		for row := rowFirst; row <= rowLast; row++ {
			from := row - e
			sum := *cell(row, col)
			for i, pc := range prevCols {
				sum += dp[from*nCol+pc] * aa.FreqI[i]
			}
			*cell(row, col) = sum
		}
	}

	// C-terminal residue adds no evidence
	last := maxDelta + colLast
	for i, m := range aa.Masses {
		prevCols[i] = last - m
	}
	for row := rowFirst; row <= rowLast; row++ {
		sum := 0.0
		for i, pc := range prevCols {
			sum += dp[row*nCol+pc] * aa.FreqC[i]
		}
		*cell(row, last) = sum
	}

	return &ScoreTable{offset: initRow, pvalues: cumulativePValues(dp, nRow, nCol, last)}, nil
}

// cumulativePValues converts the counts in column col to the fraction of
// peptides scoring at least each row, measured from the centre of the bin.
func cumulativePValues(dp []float64, nRow, nCol, col int) []float64 {
	counts := make([]float64, nRow)
	total := 0.0
	for row := 0; row < nRow; row++ {
		counts[row] = dp[row*nCol+col]
		total += counts[row]
	}

	pvalues := make([]float64, nRow)
	if total <= 0 {
		for row := range pvalues {
			pvalues[row] = 1
		}
		return pvalues
	}

	cum := 0.0
	logTotal := math.Log(total)
	for row := nRow - 1; row >= 0; row-- {
		cum += counts[row]
		v := cum - counts[row]/2
		if v <= 0 {
			pvalues[row] = 0
			continue
		}
		pvalues[row] = math.Min(1, math.Exp(math.Log(v)-logTotal))
	}
	return pvalues
}
