// Package ms2 provides a streaming reader for MS2 format spectrum files
package ms2

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// Reader provides streaming access to MS2 format files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	pending     string // S line that starts the next spectrum
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MS2 reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum reads lines until the next S line or end of input.
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum

	if r.pending != "" {
		s, err := r.parseScanLine(r.pending)
		r.pending = ""
		if err != nil {
			return nil, err
		}
		spec = s
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		switch line[0] {
		case 'H':
			// file header
		case 'S':
			if spec != nil {
				r.pending = line
				return spec, nil
			}
			s, err := r.parseScanLine(line)
			if err != nil {
				return nil, err
			}
			spec = s
		case 'Z':
			if spec == nil {
				return nil, fmt.Errorf("line %d: Z line before S line", r.lineNum)
			}
			if err := r.parseChargeLine(spec, line); err != nil {
				return nil, err
			}
		case 'I':
			if spec != nil {
				r.parseInfoLine(spec, line)
			}
		case 'D':
			// charge-dependent analysis lines are not used
		default:
			if spec == nil {
				return nil, fmt.Errorf("line %d: peak before S line", r.lineNum)
			}
			peak, err := r.parsePeak(line)
			if err != nil {
				return nil, err
			}
			spec.Peaks = append(spec.Peaks, peak)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if spec != nil {
		return spec, nil
	}
	return nil, io.EOF
}

// parseScanLine parses "S <first scan> <last scan> <precursor m/z>".
func (r *Reader) parseScanLine(line string) (*core.Spectrum, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("line %d: invalid S line, expected 4 fields", r.lineNum)
	}

	scan, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid scan number: %w", r.lineNum, err)
	}
	mz, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid precursor m/z: %w", r.lineNum, err)
	}

	return &core.Spectrum{
		ScanNumber:   scan,
		PrecursorMZ:  mz,
		Peaks:        []core.Peak{},
		SourceFormat: "ms2",
	}, nil
}

// parseChargeLine parses "Z <charge> <M+H>".
func (r *Reader) parseChargeLine(spec *core.Spectrum, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("line %d: invalid Z line", r.lineNum)
	}
	z, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("line %d: invalid charge: %w", r.lineNum, err)
	}
	for _, existing := range spec.Charges {
		if existing == z {
			return nil
		}
	}
	spec.Charges = append(spec.Charges, z)
	return nil
}

// parseInfoLine extracts retention time from "I RetTime <minutes>".
func (r *Reader) parseInfoLine(spec *core.Spectrum, line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return
	}
	if fields[1] == "RetTime" || fields[1] == "RTime" {
		if rt, err := strconv.ParseFloat(fields[2], 64); err == nil {
			spec.RetentionTime = &rt
		}
	}
}

// parsePeak parses a single peak line (format: "mz intensity")
func (r *Reader) parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("line %d: invalid peak format, expected at least 2 fields", r.lineNum)
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("line %d: invalid m/z value: %w", r.lineNum, err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("line %d: invalid intensity value: %w", r.lineNum, err)
	}

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
