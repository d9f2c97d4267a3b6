package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

func TestParseIsotopeErrors(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: []int{0}},
		{in: "1", want: []int{-1, 0}},
		{in: "1,2", want: []int{-2, -1, 0}},
		{in: "2,1", want: []int{-2, -1, 0}},
		{in: " 1, 3", want: []int{-3, -1, 0}},
		{in: ",1", wantErr: true},
		{in: "1,,2", wantErr: true},
		{in: "1,", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1,1", wantErr: true},
		{in: "0", wantErr: true},
		{in: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIsotopeErrors(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		param   string
		wantErr error
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "too many threads", modify: func(c *Config) { c.Threads = 65 }, param: "num-threads", wantErr: ErrTooManyThreads},
		{name: "max threads", modify: func(c *Config) { c.Threads = 64 }},
		{
			name:    "deisotope with p-values",
			modify:  func(c *Config) { c.ExactPValue = true; c.DeisotopeThreshold = 10 },
			param:   "deisotope",
			wantErr: ErrDeisotopeWithPValue,
		},
		{name: "bad isotope list", modify: func(c *Config) { c.IsotopeErrors = ",1" }, param: "isotope-error"},
		{name: "bad window type", modify: func(c *Config) { c.WindowType = "daltons" }, param: "precursor-window-type"},
		{name: "bad charge", modify: func(c *Config) { c.SpectrumCharge = "7" }, param: "spectrum-charge"},
		{name: "charge", modify: func(c *Config) { c.SpectrumCharge = "3" }},
		{name: "reversed scan range", modify: func(c *Config) { c.ScanRange = "10-5" }, param: "scan-number"},
		{name: "bad scan range", modify: func(c *Config) { c.ScanRange = "x-5" }, param: "scan-number"},
		{
			name:   "custom bin width with p-values",
			modify: func(c *Config) { c.ExactPValue = true; c.BinWidth = 0.02 },
			param:  "mz-bin-width",
		},
		{name: "custom bin width", modify: func(c *Config) { c.BinWidth = 0.02; c.BinOffset = 0 }},
		{name: "zero top match", modify: func(c *Config) { c.TopMatches = 0 }, param: "top-match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.param, cerr.Param)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParseScanRange(t *testing.T) {
	lo, hi, err := parseScanRange("42")
	require.NoError(t, err)
	assert.Equal(t, 42, lo)
	assert.Equal(t, 42, hi)

	lo, hi, err = parseScanRange("5-10")
	require.NoError(t, err)
	assert.Equal(t, 5, lo)
	assert.Equal(t, 10, hi)

	lo, _, err = parseScanRange("")
	require.NoError(t, err)
	assert.Zero(t, lo)
}

func TestElutionWindowIsOdd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeptideCentric = true
	for in, want := range map[int]int{0: 0, 3: 3, 4: 5, 10: 11} {
		cfg.ElutionWindow = in
		st, err := cfg.resolve()
		require.NoError(t, err)
		assert.Equal(t, want, st.elutionWindow(), "window %d", in)
	}

	cfg.PeptideCentric = false
	cfg.ElutionWindow = 5
	st, err := cfg.resolve()
	require.NoError(t, err)
	assert.Zero(t, st.elutionWindow())
}

func TestEligible(t *testing.T) {
	spec := &core.Spectrum{ScanNumber: 20, PrecursorMZ: 600, Peaks: make([]core.Peak, 25)}
	sc := core.SpecCharge{Spectrum: spec, Charge: 2, NeutralMass: core.NeutralMassFromMZ(600, 2)}

	tests := []struct {
		name   string
		modify func(*Config)
		want   bool
	}{
		{name: "defaults", modify: func(*Config) {}, want: true},
		{name: "mz below", modify: func(c *Config) { c.MinMZ = 700 }, want: false},
		{name: "mz above", modify: func(c *Config) { c.MaxMZ = 500 }, want: false},
		{name: "scan outside", modify: func(c *Config) { c.ScanRange = "1-10" }, want: false},
		{name: "scan inside", modify: func(c *Config) { c.ScanRange = "10-30" }, want: true},
		{name: "too few peaks", modify: func(c *Config) { c.MinPeaks = 30 }, want: false},
		{name: "other charge", modify: func(c *Config) { c.SpectrumCharge = "3" }, want: false},
		{name: "same charge", modify: func(c *Config) { c.SpectrumCharge = "2" }, want: true},
		{name: "charge above max", modify: func(c *Config) { c.MaxPrecursorCharge = 1 }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			st, err := cfg.resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.eligible(sc))
		})
	}
}
