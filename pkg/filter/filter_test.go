package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

func peaks(pairs ...float64) []core.Peak {
	out := make([]core.Peak, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, core.Peak{MZ: pairs[i], Intensity: pairs[i+1]})
	}
	return out
}

func TestTopN(t *testing.T) {
	in := peaks(100, 5, 200, 50, 300, 10, 400, 40)

	got := TopN(in, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 200.0, got[0].MZ)
	assert.Equal(t, 400.0, got[1].MZ)

	// input untouched
	assert.Equal(t, 100.0, in[0].MZ)

	assert.Len(t, TopN(in, 10), 4)
}

func TestFilterByIntensity(t *testing.T) {
	got := FilterByIntensity(peaks(100, 1, 200, 100, 300, 10), 5)
	require.Len(t, got, 2)
	assert.Equal(t, 200.0, got[0].MZ)
	assert.Equal(t, 300.0, got[1].MZ)

	assert.Empty(t, FilterByIntensity(nil, 5))
}

func TestRemoveZeroIntensityPeaks(t *testing.T) {
	got := RemoveZeroIntensityPeaks(peaks(100, 0, 200, 3, 300, -1))
	require.Len(t, got, 1)
	assert.Equal(t, 200.0, got[0].MZ)
}

func TestConfigApply(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   []float64
	}{
		{"zero config drops only empty peaks", Config{}, []float64{100, 200, 300, 400}},
		{"mz bounds", Config{MinMZ: 150, MaxMZ: 350}, []float64{200, 300}},
		{"top two", Config{TopN: 2}, []float64{200, 400}},
		{"cutoff", Config{IntensityCutoff: 30}, []float64{200, 400}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &core.Spectrum{Peaks: peaks(400, 40, 100, 5, 300, 10, 50, 0, 200, 50)}
			tt.config.Apply(spec)

			var mzs []float64
			for _, p := range spec.Peaks {
				mzs = append(mzs, p.MZ)
			}
			assert.Equal(t, tt.want, mzs)
		})
	}
}
