package core

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688
)

// Small molecule masses (monoisotopic)
const (
	MassH2O = 2*MassH + MassO
	MassNH3 = MassN + 3*MassH
	MassCO  = MassC + MassO
	MassOH  = MassO + MassH
)

// Binning defaults. DefaultBinWidth is also the "unit dalton" used to
// shift precursor windows by isotope errors.
const (
	DefaultBinWidth  = 1.0005079
	DefaultBinOffset = 0.40
)

// AveragineSeparation is the expected spacing of isotope peaks for an
// averagine peptide.
const AveragineSeparation = 1.000495

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// Mass returns the monoisotopic mass of the composition.
func (c AminoAcidComposition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// AminoAcidMasses maps amino acid one-letter codes to the elemental
// composition of the residue (amino acid minus water).
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// ResidueMass returns the monoisotopic residue mass of an amino acid.
func ResidueMass(aa rune) (float64, bool) {
	comp, ok := AminoAcidMasses[aa]
	if !ok {
		return 0, false
	}
	return comp.Mass(), true
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide
func CalculateNeutralMass(sequence string, modifications []Modification) float64 {
	comp := AminoAcidComposition{H: 2, O: 1} // water

	for _, aa := range sequence {
		if aaComp, ok := AminoAcidMasses[aa]; ok {
			comp.C += aaComp.C
			comp.H += aaComp.H
			comp.N += aaComp.N
			comp.O += aaComp.O
			comp.S += aaComp.S
		}
	}

	mass := comp.Mass()
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// NeutralMassFromMZ converts a precursor m/z at the given charge to a
// neutral mass.
func NeutralMassFromMZ(mz float64, charge int) float64 {
	return (mz - ProtonMass) * float64(charge)
}

// MZFromNeutralMass is the inverse of NeutralMassFromMZ.
func MZFromNeutralMass(mass float64, charge int) float64 {
	return mass/float64(charge) + ProtonMass
}

// MassBinner discretizes masses into fixed-width bins.
type MassBinner struct {
	Width  float64
	Offset float64
}

// DefaultBinner returns the binner with the standard fragment bin width.
func DefaultBinner() MassBinner {
	return MassBinner{Width: DefaultBinWidth, Offset: DefaultBinOffset}
}

// Bin returns the bin of a singly charged mass.
func (b MassBinner) Bin(mass float64) int {
	return int(mass/b.Width + 1.0 - b.Offset)
}

// BinCharged returns the bin of a fragment whose singly charged mass is
// given, observed at the given charge.
func (b MassBinner) BinCharged(mass float64, charge int) int {
	if charge <= 1 {
		return b.Bin(mass)
	}
	return int((mass+float64(charge-1)*ProtonMass)/(float64(charge)*b.Width) + 1.0 - b.Offset)
}

// Mass returns the lower-edge mass of a bin.
func (b MassBinner) Mass(bin int) float64 {
	return (float64(bin) - 1.0 + b.Offset) * b.Width
}

// IsDefault reports whether the binner uses the standard bin width.
func (b MassBinner) IsDefault() bool {
	return b.Width == DefaultBinWidth
}
