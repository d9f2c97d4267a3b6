package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tidesearch/pkg/filter"
	"github.com/ChrisMcGann/tidesearch/pkg/index/sqlite"
	"github.com/ChrisMcGann/tidesearch/pkg/logging"
	"github.com/ChrisMcGann/tidesearch/pkg/reader"
	"github.com/ChrisMcGann/tidesearch/pkg/search"
	"github.com/ChrisMcGann/tidesearch/pkg/writer/tsv"
)

var (
	// Flags for search command
	indexPaths      []string
	outputDir       string
	storeSpectra    string
	topPeaks        int
	windowType      string
	precursorWindow float64
	isotopeErrors   string
	numThreads      int
	topMatch        int
	computeSp       bool
	exactPValue     bool
	peptideCentric  bool
	elutionWindow   int
	concat          bool
	spectrumCharge  string
	scanNumbers     string
	minMZ           float64
	maxMZ           float64
	minPeaks        int
	maxCharge       int
	deisotope       float64
	removePrecursor bool
	precursorTol    float64
	skipPreprocess  bool
	flankingPeaks   bool
	neutralLosses   bool
	binWidth        float64
	binOffset       float64
	progressEvery   int
	cascadeQ        float64
)

func init() {
	d := search.DefaultConfig()
	f := searchCmd.Flags()

	f.StringSliceVar(&indexPaths, "index", nil, "Peptide index database; repeat for a cascade search (required)")
	f.StringVarP(&outputDir, "output-dir", "o", "tidesearch-output", "Directory for result files")
	f.StringVar(&storeSpectra, "store-spectra", "", "Keep the converted spectrum records at this path (single input only)")
	f.IntVar(&topPeaks, "top-peaks", 0, "Keep only the N most intense peaks of each spectrum (0 = no limit)")

	f.StringVar(&windowType, "precursor-window-type", string(d.WindowType), "Precursor window unit: mass, mz or ppm")
	f.Float64Var(&precursorWindow, "precursor-window", d.PrecursorWindow, "Precursor window half-width")
	f.StringVar(&isotopeErrors, "isotope-error", d.IsotopeErrors, "Comma-separated isotope errors to search, e.g. 1,2")
	f.IntVar(&numThreads, "num-threads", d.Threads, "Worker threads (0 = one per CPU, at most 64)")
	f.IntVar(&topMatch, "top-match", d.TopMatches, "Matches reported per spectrum")
	f.BoolVar(&computeSp, "compute-sp", d.ComputeSp, "Compute the preliminary Sp score")
	f.BoolVar(&exactPValue, "exact-p-value", d.ExactPValue, "Score with exact p-values")
	f.BoolVar(&peptideCentric, "peptide-centric-search", d.PeptideCentric, "Report the best spectra of each peptide")
	f.IntVar(&elutionWindow, "elution-window-size", d.ElutionWindow, "Scans averaged in peptide-centric reports (0 = none)")
	f.BoolVar(&concat, "concat", d.Concat, "Write targets and decoys to one ranked file")

	f.StringVar(&spectrumCharge, "spectrum-charge", d.SpectrumCharge, "Precursor charge to search: all or 1-6")
	f.StringVar(&scanNumbers, "scan-number", d.ScanRange, "Scan or scan range to search, e.g. 100-200")
	f.Float64Var(&minMZ, "spectrum-min-mz", d.MinMZ, "Lowest precursor m/z searched")
	f.Float64Var(&maxMZ, "spectrum-max-mz", d.MaxMZ, "Highest precursor m/z searched")
	f.IntVar(&minPeaks, "min-peaks", d.MinPeaks, "Fewest peaks a spectrum needs to be searched")
	f.IntVar(&maxCharge, "max-precursor-charge", d.MaxPrecursorCharge, "Highest precursor charge searched")

	f.Float64Var(&deisotope, "deisotope", d.DeisotopeThreshold, "Deisotoping tolerance in ppm (0 = off)")
	f.BoolVar(&removePrecursor, "remove-precursor-peak", d.RemovePrecursor, "Drop peaks near the precursor m/z")
	f.Float64Var(&precursorTol, "remove-precursor-tolerance", d.PrecursorTolerance, "Precursor peak removal tolerance in Th")
	f.BoolVar(&skipPreprocess, "skip-preprocessing", d.SkipPreprocessing, "Score raw binned intensities")
	f.BoolVar(&flankingPeaks, "use-flanking-peaks", d.FlankingPeaks, "Include flanking peaks in theoretical spectra")
	f.BoolVar(&neutralLosses, "use-neutral-loss-peaks", d.NeutralLosses, "Include neutral loss peaks in theoretical spectra")
	f.Float64Var(&binWidth, "mz-bin-width", d.BinWidth, "Fragment m/z bin width")
	f.Float64Var(&binOffset, "mz-bin-offset", d.BinOffset, "Fragment m/z bin offset")

	f.IntVar(&progressEvery, "print-search-progress", d.ProgressInterval, "Spectrum-charge pairs between progress messages (0 = quiet)")
	f.Float64Var(&cascadeQ, "cascade-q", d.CascadeQ, "q-value threshold for assigning spectra between cascade passes")

	searchCmd.MarkFlagRequired("index")
}

var searchCmd = &cobra.Command{
	Use:   "search [flags] <spectra>...",
	Short: "Search spectra against a peptide index",
	Long: `Search tandem mass spectra against one or more peptide indexes.

With several --index values the search runs as a cascade: spectra confidently
identified (q-value at or below --cascade-q) against one index are not searched
against the next.

Examples:
  # XCorr search with a 10 ppm window
  tidesearch search --index peptides.db --precursor-window 10 --precursor-window-type ppm run1.ms2

  # Exact p-values with Sp, two files
  tidesearch search --index peptides.db --exact-p-value --compute-sp run1.mgf run2.ms2.gz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func searchConfig() search.Config {
	return search.Config{
		WindowType:         search.WindowType(windowType),
		PrecursorWindow:    precursorWindow,
		IsotopeErrors:      isotopeErrors,
		Threads:            numThreads,
		TopMatches:         topMatch,
		ComputeSp:          computeSp,
		ExactPValue:        exactPValue,
		PeptideCentric:     peptideCentric,
		ElutionWindow:      elutionWindow,
		Concat:             concat,
		SpectrumCharge:     spectrumCharge,
		ScanRange:          scanNumbers,
		MinMZ:              minMZ,
		MaxMZ:              maxMZ,
		MinPeaks:           minPeaks,
		MaxPrecursorCharge: maxCharge,
		DeisotopeThreshold: deisotope,
		RemovePrecursor:    removePrecursor,
		PrecursorTolerance: precursorTol,
		SkipPreprocessing:  skipPreprocess,
		FlankingPeaks:      flankingPeaks,
		NeutralLosses:      neutralLosses,
		BinWidth:           binWidth,
		BinOffset:          binOffset,
		ProgressInterval:   progressEvery,
		CascadeQ:           cascadeQ,
	}
}

func runSearch(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	logger, err := newLogger()
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logger.WithRun(runID)

	cfg := searchConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if storeSpectra != "" && len(args) > 1 {
		return fmt.Errorf("--store-spectra can only be used with a single spectrum file, got %d", len(args))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Open indexes
	indexes := make([]*sqlite.Index, 0, len(indexPaths))
	defer func() {
		for _, idx := range indexes {
			idx.Close()
		}
	}()
	for _, path := range indexPaths {
		idx, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		indexes = append(indexes, idx)
	}

	// Convert inputs to spectrum records
	prepared := make([]reader.Prepared, 0, len(args))
	defer func() {
		for _, p := range prepared {
			if rerr := p.Remove(); rerr != nil {
				log.Warn("failed to remove temporary spectrum records", "path", p.Records, "error", rerr)
			}
		}
	}()
	for _, input := range args {
		p, n, err := reader.Prepare(input, storeSpectra, outputDir, runID)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", input, err)
		}
		prepared = append(prepared, p)
		if n > 0 {
			log.Debug("converted spectra", "input", input, "records", p.Records, "spectra", n)
		}
	}

	cache, err := reader.NewCache(len(prepared), filter.Config{TopN: topPeaks})
	if err != nil {
		return err
	}

	out, err := tsv.Create(outputDir, tsv.Options{
		ComputeSp:   cfg.ComputeSp,
		ExactPValue: cfg.ExactPValue,
		Concat:      cfg.Concat,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to write results: %w", cerr)
		}
	}()

	var assigned *search.Assigned
	if len(indexes) > 1 {
		assigned = search.NewAssigned()
	}

	for pass, idx := range indexes {
		opts := []search.Option{search.WithLogger(log)}
		if assigned != nil {
			opts = append(opts, search.WithAssigned(assigned))
		}
		searcher, err := search.New(ctx, cfg, idx, opts...)
		if err != nil {
			return fmt.Errorf("failed to prepare search against %s: %w", idx.Path(), err)
		}

		var reporter search.Reporter = out
		var rec *search.Recorder
		if assigned != nil {
			rec = search.NewRecorder(out, cfg.ExactPValue)
			reporter = rec
		}

		log.Info("searching",
			"index", idx.Path(),
			"peptides", idx.Header().PeptideCount,
			"threads", searcher.Threads(),
			"files", len(prepared),
		)
		for _, p := range prepared {
			coll, err := cache.Get(p.Records)
			if err != nil {
				return err
			}
			if coll.Skipped > 0 {
				log.Warn("skipped invalid spectra", "file", p.Input, "count", coll.Skipped)
			}

			stats, err := searcher.Search(ctx, p.Input, coll.SpecCharges, reporter)
			if err != nil {
				return fmt.Errorf("search of %s failed: %w", p.Input, err)
			}
			logStats(log, p.Input, stats)
			if pass == len(indexes)-1 {
				cache.Forget(p.Records)
			}
		}

		if rec != nil {
			n, err := rec.Assign(assigned, cfg.CascadeQ)
			if err != nil {
				return fmt.Errorf("failed to assign cascade pass %d: %w", pass+1, err)
			}
			log.Info("cascade pass complete", "pass", pass+1, "index", idx.Path(), "assigned", n)
		}
	}

	log.Info("search complete", "output_dir", outputDir, "matches", out.Rows(), "spectrum_files_loaded", cache.Loads())
	return nil
}

func logStats(log *logging.Logger, file string, stats search.Stats) {
	avg := 0.0
	if stats.Searched > 0 {
		avg = float64(stats.Candidates) / float64(stats.Searched)
	}
	log.Debug("file statistics",
		"file", file,
		"spectrum_charges", stats.SpecCharges,
		"searched", stats.Searched,
		"candidates", stats.Candidates,
		"avg_candidates", fmt.Sprintf("%.2f", avg),
		"retained_peaks", stats.Peaks.Retained,
		"elapsed", stats.Elapsed.Round(time.Millisecond).String(),
	)
}
