// Package mgf provides a streaming reader for Mascot Generic Format spectrum files
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
)

// scanInTitle recovers a scan number from TITLE values such as
// "run.1234.1234.2" or "... scan=1234".
var scanInTitle = regexp.MustCompile(`(?:scan=|\.)(\d+)(?:\.\d+\.\d+)?(?:\s|"|$)`)

// Reader provides streaming access to MGF files
type Reader struct {
	scanner     *bufio.Scanner
	lineNum     int
	index       int // 1-based ordinal, used when no scan number is present
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MGF reader
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

// readSpectrum reads a single BEGIN IONS ... END IONS block
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum
	scanSet := false

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if line == "BEGIN IONS" {
			if spec != nil {
				return nil, fmt.Errorf("line %d: nested BEGIN IONS", r.lineNum)
			}
			r.index++
			spec = &core.Spectrum{
				ScanNumber:   r.index,
				Peaks:        []core.Peak{},
				SourceFormat: "mgf",
			}
			continue
		}

		if spec == nil {
			// global parameters outside of a block
			continue
		}

		if line == "END IONS" {
			return spec, nil
		}

		if key, value, ok := strings.Cut(line, "="); ok {
			if err := r.parseHeader(spec, strings.ToUpper(key), value, &scanSet); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			continue
		}

		peak, err := r.parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peaks = append(spec.Peaks, peak)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if spec != nil {
		return nil, fmt.Errorf("line %d: missing END IONS", r.lineNum)
	}
	return nil, io.EOF
}

func (r *Reader) parseHeader(spec *core.Spectrum, key, value string, scanSet *bool) error {
	switch key {
	case "PEPMASS":
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("invalid PEPMASS '%s': %w", value, err)
		}
		spec.PrecursorMZ = mz

	case "CHARGE":
		charges, err := parseCharges(value)
		if err != nil {
			return err
		}
		spec.Charges = charges

	case "SCANS":
		first, _, _ := strings.Cut(value, "-")
		scan, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil {
			return fmt.Errorf("invalid SCANS '%s': %w", value, err)
		}
		spec.ScanNumber = scan
		*scanSet = true

	case "TITLE":
		if *scanSet {
			return nil
		}
		if m := scanInTitle.FindStringSubmatch(value); m != nil {
			if scan, err := strconv.Atoi(m[1]); err == nil {
				spec.ScanNumber = scan
			}
		}

	case "RTINSECONDS":
		rt, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			minutes := rt / 60.0
			spec.RetentionTime = &minutes
		}
	}
	return nil
}

// parseCharges parses CHARGE values like "2+", "2+ and 3+" or "2+,3+".
func parseCharges(value string) ([]int, error) {
	value = strings.ReplaceAll(value, "and", ",")
	var charges []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.TrimSuffix(part, "+")
		z, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CHARGE '%s': %w", value, err)
		}
		charges = append(charges, z)
	}
	return charges, nil
}

// parsePeak parses a single peak line (format: "mz intensity [charge]")
func (r *Reader) parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
