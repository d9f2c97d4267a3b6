// Package reader opens spectrum files of any supported format and loads them
// into collections ready for searching.
package reader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/filter"
	"github.com/ChrisMcGann/tidesearch/pkg/reader/mgf"
	"github.com/ChrisMcGann/tidesearch/pkg/reader/ms2"
	"github.com/ChrisMcGann/tidesearch/pkg/reader/records"
)

// Format identifies a spectrum file format.
type Format string

const (
	FormatMS2     Format = "ms2"
	FormatMGF     Format = "mgf"
	FormatRecords Format = "records"
)

// RecordsExt is the extension of spectrum records files.
const RecordsExt = ".spectrumrecords"

// Source is a streaming spectrum reader.
type Source interface {
	Next() bool
	Spectrum() *core.Spectrum
	Err() error
}

// File is an open spectrum file.
type File struct {
	Source
	Path   string
	Format Format

	closers []io.Closer
}

// Close releases the decoder and the underlying file.
func (f *File) Close() error {
	var firstErr error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DetectFormat determines the format from the file name. A trailing .gz or
// .zst is ignored, as is the .tmp suffix of temporary records files.
func DetectFormat(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".zst")
	name = strings.TrimSuffix(name, ".tmp")

	switch filepath.Ext(name) {
	case ".ms2", ".cms2":
		return FormatMS2, nil
	case ".mgf":
		return FormatMGF, nil
	case RecordsExt:
		return FormatRecords, nil
	default:
		return "", fmt.Errorf("unsupported spectrum file format: %s", path)
	}
}

// Open opens a spectrum file for streaming.
func Open(path string) (*File, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectrum file: %w", err)
	}
	f := &File{Path: path, Format: format, closers: []io.Closer{fh}}

	var r io.Reader = fh
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".gz"):
		gz, err := gzip.NewReader(bufio.NewReader(fh))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		f.closers = append(f.closers, gz)
		r = gz
	case strings.HasSuffix(strings.ToLower(path), ".zst"):
		dec, err := zstd.NewReader(bufio.NewReader(fh))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		f.closers = append(f.closers, closerFunc(func() error { dec.Close(); return nil }))
		r = dec
	}

	switch format {
	case FormatMS2:
		f.Source = ms2.NewReader(r)
	case FormatMGF:
		f.Source = mgf.NewReader(r)
	case FormatRecords:
		rr, err := records.NewReader(r)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		f.Source = rr
	}
	return f, nil
}

type closerFunc func() error

func (fn closerFunc) Close() error { return fn() }

// Collection is the set of spectra loaded from one file together with their
// spectrum-charge pairs.
type Collection struct {
	Path        string
	Spectra     []*core.Spectrum
	SpecCharges []core.SpecCharge
	Skipped     int // spectra that failed validation
}

// Load reads every spectrum of a file, applies the peak filter and derives
// the spectrum-charge pairs. Spectra that fail validation are skipped and
// counted.
func Load(path string, filterCfg filter.Config) (*Collection, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &Collection{Path: path}
	for f.Next() {
		spec := f.Spectrum()
		spec.SourceFile = path
		if !spec.ArePeaksSorted() {
			spec.SortPeaks()
		}
		filterCfg.Apply(spec)
		if err := spec.Validate(); err != nil {
			c.Skipped++
			continue
		}
		c.Spectra = append(c.Spectra, spec)
	}
	if err := f.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	c.SpecCharges = core.SpecCharges(c.Spectra)
	return c, nil
}

// Convert writes every spectrum of src to a records file at dst and returns
// the number of spectra written.
func Convert(src, dst, runID string) (int, error) {
	in, err := Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create records file: %w", err)
	}

	w, err := records.NewWriter(out, records.Header{RunID: runID, Source: src})
	if err != nil {
		out.Close()
		return 0, err
	}

	count := 0
	for in.Next() {
		if err := w.WriteSpectrum(in.Spectrum()); err != nil {
			out.Close()
			return count, fmt.Errorf("failed to write spectrum %d: %w", in.Spectrum().ScanNumber, err)
		}
		count++
	}
	if err := in.Err(); err != nil {
		out.Close()
		return count, fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return count, err
	}
	return count, out.Close()
}

// Prepared is a spectrum input resolved to a records file.
type Prepared struct {
	Input   string // original path
	Records string // records file to search
	Temp    bool   // Records was created for this run
}

// Remove deletes a temporary records file. Kept and pre-existing records
// files are left alone.
func (p Prepared) Remove() error {
	if !p.Temp {
		return nil
	}
	if err := os.Remove(p.Records); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", p.Records, err)
	}
	return nil
}

// Prepare converts an input file to spectrum records unless it already is
// one. When store is non-empty the records are written there and kept;
// otherwise they go to a temporary file in outDir.
func Prepare(input, store, outDir, runID string) (Prepared, int, error) {
	format, err := DetectFormat(input)
	if err != nil {
		return Prepared{}, 0, err
	}
	if format == FormatRecords {
		return Prepared{Input: input, Records: input}, 0, nil
	}

	p := Prepared{Input: input, Records: store}
	if store == "" {
		base := filepath.Base(input)
		base = strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".zst")
		base = strings.TrimSuffix(base, filepath.Ext(base))
		p.Records = filepath.Join(outDir, base+RecordsExt+".tmp")
		p.Temp = true
	}

	n, err := Convert(input, p.Records, runID)
	if err != nil {
		if p.Temp {
			os.Remove(p.Records)
		}
		return Prepared{}, 0, err
	}
	return p, n, nil
}

// Cache memoises loaded collections by path. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *Collection]
	filter  filter.Config
	loads   int
}

// NewCache creates a cache holding up to size collections.
func NewCache(size int, filterCfg filter.Config) (*Cache, error) {
	entries, err := lru.New[string, *Collection](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrum cache: %w", err)
	}
	return &Cache{entries: entries, filter: filterCfg}, nil
}

// Get returns the collection for path, loading it on a miss.
func (c *Cache) Get(path string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if coll, ok := c.entries.Get(path); ok {
		return coll, nil
	}
	coll, err := Load(path, c.filter)
	if err != nil {
		return nil, err
	}
	c.loads++
	c.entries.Add(path, coll)
	return coll, nil
}

// Loads returns how many times a file was read from disk.
func (c *Cache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Forget drops a path from the cache once no later pass needs it.
func (c *Cache) Forget(path string) {
	c.entries.Remove(path)
}
