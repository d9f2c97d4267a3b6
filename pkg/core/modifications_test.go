package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModString(t *testing.T) {
	db := DefaultModDatabase()

	tests := []struct {
		name     string
		modStr   string
		sequence string
		want     []Modification
		wantErr  bool
	}{
		{
			name:     "empty",
			modStr:   "",
			sequence: "PEPTIDE",
		},
		{
			name:     "mass at position",
			modStr:   "15.994915@2",
			sequence: "AMK",
			want:     []Modification{{Mass: 15.994915, Position: 1, Name: "15.994915"}},
		},
		{
			name:     "named with residue, sorted by position",
			modStr:   "Oxidation@M3;Carbamidomethyl@C1",
			sequence: "CKM",
			want: []Modification{
				{Mass: 57.021464, Position: 0, Name: "Carbamidomethyl"},
				{Mass: 15.994915, Position: 2, Name: "Oxidation"},
			},
		},
		{
			name:     "n-terminal",
			modStr:   "Acetyl@N-term",
			sequence: "PEPTIDE",
			want:     []Modification{{Mass: 42.010565, Position: -1, Name: "Acetyl"}},
		},
		{"unknown name", "Nope@1", "PEPTIDE", nil, true},
		{"missing at", "Oxidation", "PEPTIDE", nil, true},
		{"position past end", "Oxidation@9", "PEP", nil, true},
		{"residue mismatch", "Oxidation@M1", "PEP", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ParseModString(tt.modStr, tt.sequence)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFromCSV(t *testing.T) {
	db := NewModDatabase()
	err := db.LoadFromCSV(strings.NewReader("mod,massshift,aa\nFoo,12.5,K\n\nBar,-1,R\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, db.Len())

	mass, ok := db.GetMass("Foo")
	assert.True(t, ok)
	assert.Equal(t, 12.5, mass)

	err = db.LoadFromCSV(strings.NewReader("header\nBaz,notanumber\n"))
	assert.Error(t, err)
}

func TestModifiedSequence(t *testing.T) {
	mods := []Modification{
		{Mass: 42.010565, Position: -1},
		{Mass: 15.994915, Position: 1},
	}
	assert.Equal(t, "[42.01]-AM[15.99]K", ModifiedSequence("AMK", mods))
	assert.Equal(t, "AMK", ModifiedSequence("AMK", nil))
}

func TestFormatModStringRoundTrip(t *testing.T) {
	db := DefaultModDatabase()
	mods := []Modification{
		{Mass: 42.010565, Position: -1},
		{Mass: 15.994915, Position: 1},
	}

	s := FormatModString(mods)
	if s != "42.010565@N-term;15.994915@2" {
		t.Fatalf("FormatModString() = %q", s)
	}

	parsed, err := db.ParseModString(s, "AMK")
	if err != nil {
		t.Fatalf("ParseModString() error = %v", err)
	}
	for i := range mods {
		if parsed[i].Mass != mods[i].Mass || parsed[i].Position != mods[i].Position {
			t.Errorf("mod %d = %+v, want %+v", i, parsed[i], mods[i])
		}
	}

	if FormatModString(nil) != "" {
		t.Error("expected empty string for no modifications")
	}
}
