// Package tsv writes search results as tab-delimited text, one file for
// target matches and one for decoys, or a single file with concatenated
// output.
package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/search"
)

// Output file names, relative to the output directory.
const (
	TargetFile = "tidesearch.target.txt"
	DecoyFile  = "tidesearch.decoy.txt"
	ConcatFile = "tidesearch.txt"
)

// DecoyPrefix marks decoy protein accessions.
const DecoyPrefix = "decoy_"

// Options selects the optional columns.
type Options struct {
	ComputeSp   bool
	ExactPValue bool
	Concat      bool
}

// Writer writes reports. It implements search.Reporter.
type Writer struct {
	opts    Options
	target  *csv.Writer
	decoy   *csv.Writer
	closers []io.Closer
	rows    int
}

// NewWriter writes the column headers to target and, unless opts.Concat is
// set, to decoy.
func NewWriter(target, decoy io.Writer, opts Options) (*Writer, error) {
	w := &Writer{opts: opts, target: newCSV(target)}
	if !opts.Concat {
		if decoy == nil {
			return nil, errors.New("decoy stream required without concatenated output")
		}
		w.decoy = newCSV(decoy)
	}

	header := w.header()
	if err := w.target.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if w.decoy != nil {
		if err := w.decoy.Write(header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return w, nil
}

// Create opens the output files in dir and returns a Writer that closes
// them on Close.
func Create(dir string, opts Options) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	open := func(name string) (*os.File, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		files = append(files, f)
		return f, nil
	}

	var target, decoy *os.File
	var err error
	if opts.Concat {
		target, err = open(ConcatFile)
	} else {
		if target, err = open(TargetFile); err == nil {
			decoy, err = open(DecoyFile)
		}
	}
	if err != nil {
		closeAll()
		return nil, err
	}

	var decoyW io.Writer
	if decoy != nil {
		decoyW = decoy
	}
	w, err := NewWriter(target, decoyW, opts)
	if err != nil {
		closeAll()
		return nil, err
	}
	for _, f := range files {
		w.closers = append(w.closers, f)
	}
	return w, nil
}

func newCSV(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

func (w *Writer) header() []string {
	cols := []string{
		"file",
		"scan",
		"charge",
		"spectrum precursor m/z",
		"spectrum neutral mass",
		"peptide mass",
		"delta_cn",
		"delta_lcn",
	}
	if w.opts.ComputeSp {
		cols = append(cols, "sp score", "sp rank")
	}
	cols = append(cols, "xcorr score", "xcorr rank")
	if w.opts.ExactPValue {
		cols = append(cols, "exact p-value")
	}
	if w.opts.ComputeSp {
		cols = append(cols, "b/y ions matched", "b/y ions total")
	}
	cols = append(cols, "distinct matches/spectrum", "sequence", "modifications", "protein id")
	if w.opts.Concat {
		cols = append(cols, "target/decoy")
	}
	return cols
}

// WriteReport writes one row per reported match.
func (w *Writer) WriteReport(r *search.Report) error {
	for _, m := range r.Targets {
		candidates := r.TargetCandidates
		if w.opts.Concat {
			candidates += r.DecoyCandidates
		}
		if err := w.target.Write(w.row(r, m, candidates)); err != nil {
			return fmt.Errorf("failed to write target match: %w", err)
		}
		w.rows++
	}
	for _, m := range r.Decoys {
		if w.decoy == nil {
			return errors.New("decoy match in concatenated output")
		}
		if err := w.decoy.Write(w.row(r, m, r.DecoyCandidates)); err != nil {
			return fmt.Errorf("failed to write decoy match: %w", err)
		}
		w.rows++
	}
	return nil
}

func (w *Writer) row(r *search.Report, m search.Match, candidates int) []string {
	spec := r.Spectrum
	row := []string{
		r.File,
		strconv.Itoa(spec.ScanNumber),
		strconv.Itoa(r.Charge),
		fixed(spec.PrecursorMZ, 4),
		fixed(r.NeutralMass, 4),
		fixed(m.Peptide.Mass, 4),
		fixed(m.DeltaCn, 4),
		fixed(m.DeltaLCn, 4),
	}
	if w.opts.ComputeSp {
		row = append(row, fixed(m.Sp.Sp, 4), strconv.Itoa(m.SpRank))
	}
	row = append(row, fixed(m.XCorr, 4), strconv.Itoa(m.Rank))
	if w.opts.ExactPValue {
		row = append(row, strconv.FormatFloat(m.PValue, 'g', 6, 64))
	}
	if w.opts.ComputeSp {
		row = append(row, strconv.Itoa(m.Sp.MatchedIons), strconv.Itoa(m.Sp.TotalIons))
	}
	row = append(row,
		strconv.Itoa(candidates),
		m.Peptide.Sequence,
		core.FormatModString(m.Peptide.Modifications),
		proteins(m.Peptide),
	)
	if w.opts.Concat {
		kind := "target"
		if m.Peptide.Decoy {
			kind = "decoy"
		}
		row = append(row, kind)
	}
	return row
}

func proteins(p *core.Peptide) string {
	if !p.Decoy {
		return p.ProteinString()
	}
	out := make([]string, len(p.Proteins))
	for i, acc := range p.Proteins {
		if strings.HasPrefix(acc, DecoyPrefix) {
			out[i] = acc
		} else {
			out[i] = DecoyPrefix + acc
		}
	}
	return strings.Join(out, ",")
}

func fixed(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// Rows returns the number of matches written.
func (w *Writer) Rows() int {
	return w.rows
}

// Flush writes buffered rows to the underlying streams.
func (w *Writer) Flush() error {
	w.target.Flush()
	if err := w.target.Error(); err != nil {
		return err
	}
	if w.decoy != nil {
		w.decoy.Flush()
		return w.decoy.Error()
	}
	return nil
}

// Close flushes and closes any files opened by Create.
func (w *Writer) Close() error {
	err := w.Flush()
	for _, c := range w.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	w.closers = nil
	return err
}
