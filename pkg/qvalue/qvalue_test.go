package qvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoyQValues(t *testing.T) {
	tests := []struct {
		name    string
		targets []float64
		decoys  []float64
		want    []float64
	}{
		{
			name:    "no decoy above any target",
			targets: []float64{5, 4, 3},
			decoys:  []float64{1, 1, 1},
			want:    []float64{0, 0, 0},
		},
		{
			name:    "interleaved",
			targets: []float64{10, 8, 6, 4},
			decoys:  []float64{9, 5, 3, 1},
			// fdr by rank: 0/1, 1/2, 1/3, 2/4 -> q: 0, 1/3, 1/3, 1/2
			want: []float64{0, 1.0 / 3, 1.0 / 3, 0.5},
		},
		{
			name:    "input order preserved",
			targets: []float64{4, 10, 6, 8},
			decoys:  []float64{9, 5, 3, 1},
			want:    []float64{0.5, 0, 1.0 / 3, 1.0 / 3},
		},
		{
			name:    "capped at one",
			targets: []float64{1},
			decoys:  []float64{5, 6},
			want:    []float64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecoyQValues(tt.targets, tt.decoys, 1)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestDecoyQValuesEmpty(t *testing.T) {
	_, err := DecoyQValues(nil, []float64{1}, 1)
	assert.ErrorIs(t, err, ErrNoScores)
	_, err = DecoyQValues([]float64{1}, nil, 1)
	assert.ErrorIs(t, err, ErrNoScores)
}

func TestBHQValues(t *testing.T) {
	p := []float64{0.04, 0.01, 0.03, 0.5}
	got := BHQValues(p, 1)
	// sorted: 0.01*4/1=0.04, 0.03*4/2=0.06, 0.04*4/3=0.0533, 0.5*4/4=0.5
	want := []float64{0.04 * 4 / 3, 0.04, 0.04 * 4 / 3, 0.5}
	assert.InDeltaSlice(t, want, got, 1e-12)

	for i := range got {
		assert.GreaterOrEqual(t, got[i], p[i]-1e-12)
	}
	assert.Nil(t, BHQValues(nil, 1))
}

func TestQValuesMonotoneInScore(t *testing.T) {
	targets := []float64{3.1, 2.7, 2.2, 1.9, 1.5, 1.2, 0.8}
	decoys := []float64{2.5, 1.7, 1.1, 0.9, 0.4}
	q, err := DecoyQValues(targets, decoys, 1)
	require.NoError(t, err)
	for i := 1; i < len(q); i++ {
		assert.GreaterOrEqual(t, q[i], q[i-1])
	}
}
