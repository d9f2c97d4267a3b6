package search

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ChrisMcGann/tidesearch/pkg/core"
	"github.com/ChrisMcGann/tidesearch/pkg/index"
	"github.com/ChrisMcGann/tidesearch/pkg/logging"
	"github.com/ChrisMcGann/tidesearch/pkg/preprocess"
	"github.com/ChrisMcGann/tidesearch/pkg/pvalue"
	"github.com/ChrisMcGann/tidesearch/pkg/xcorr"
)

// Stats summarises the search of one spectrum file.
type Stats struct {
	SpecCharges int   // pairs in the file
	Searched    int   // pairs that passed the spectrum filters
	Candidates  int64 // candidate peptides over all pairs
	Peaks       preprocess.Counters
	Threads     int
	Elapsed     time.Duration
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithScorer replaces the dot-product scorer.
func WithScorer(sc xcorr.Scorer) Option {
	return func(s *Searcher) { s.scorer = sc }
}

// WithAssigned skips pairs already assigned by an earlier cascade pass.
func WithAssigned(a *Assigned) Option {
	return func(s *Searcher) { s.assigned = a }
}

// WithAminoAcidTable supplies the residue frequencies for exact p-values
// instead of counting them from the index.
func WithAminoAcidTable(t *pvalue.AminoAcidTable) Option {
	return func(s *Searcher) { s.aa = t }
}

// Searcher searches spectrum files against one peptide index. The index
// and amino acid table are shared read-only by all workers.
type Searcher struct {
	cfg      *settings
	idx      index.Index
	logger   *logging.Logger
	scorer   xcorr.Scorer
	assigned *Assigned
	aa       *pvalue.AminoAcidTable
	threads  int
}

// New validates cfg and prepares a Searcher over idx. Exact p-value searches
// count amino acid frequencies from the index unless a table is supplied.
func New(ctx context.Context, cfg Config, idx index.Index, opts ...Option) (*Searcher, error) {
	st, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	s := &Searcher{
		cfg:    st,
		idx:    idx,
		logger: logging.Nop(),
		scorer: xcorr.DotProduct{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.threads = cfg.Threads
	if s.threads == 0 {
		s.threads = min(runtime.NumCPU(), MaxThreads)
	}
	if cfg.PeptideCentric && s.threads > 1 {
		s.logger.Info("peptide-centric search runs on a single thread", "requested", s.threads)
		s.threads = 1
	}

	if cfg.ExactPValue && s.aa == nil {
		s.aa, err = index.CountAAFrequency(ctx, idx, st.binner)
		if err != nil {
			return nil, fmt.Errorf("failed to count amino acid frequencies: %w", err)
		}
	}
	return s, nil
}

// Threads returns the number of workers used per file.
func (s *Searcher) Threads() int {
	return s.threads
}

// shared is the state workers share while searching one file. Each field
// group has its own lock.
type shared struct {
	total int

	reportMu sync.Mutex
	done     int
	progress *rate.Sometimes
	peaks    preprocess.Counters
	searched int

	candMu     sync.Mutex
	candidates int64

	resultsMu sync.Mutex
	out       Reporter
}

func (sh *shared) advance(ctx context.Context, log *logging.Logger) {
	sh.reportMu.Lock()
	defer sh.reportMu.Unlock()
	sh.done++
	if sh.progress != nil {
		sh.progress.Do(func() { log.LogProgress(ctx, sh.done, sh.total) })
	}
}

func (sh *shared) addCandidates(n int) {
	sh.candMu.Lock()
	sh.candidates += int64(n)
	sh.candMu.Unlock()
}

func (sh *shared) write(r *Report) error {
	sh.resultsMu.Lock()
	defer sh.resultsMu.Unlock()
	return sh.out.WriteReport(r)
}

func (sh *shared) finish(peaks preprocess.Counters, searched int) {
	sh.reportMu.Lock()
	sh.peaks.Add(peaks)
	sh.searched += searched
	sh.reportMu.Unlock()
}

// Search scores every eligible spectrum-charge pair of one file and sends
// the results to out. Pairs are sorted so windows advance monotonically and
// then split across workers by striding; the calling goroutine runs the
// first slice itself.
func (s *Searcher) Search(ctx context.Context, file string, scs []core.SpecCharge, out Reporter) (Stats, error) {
	start := time.Now()
	log := s.logger.WithFile(file)

	sorted := append([]core.SpecCharge(nil), scs...)
	if s.cfg.WindowType == WindowMZ {
		core.SortByMZWindow(sorted, s.cfg.PrecursorWindow)
	} else {
		core.SortByNeutralMass(sorted)
	}

	sh := &shared{total: len(sorted), out: out}
	if s.cfg.ProgressInterval > 0 {
		sh.progress = &rate.Sometimes{Every: s.cfg.ProgressInterval}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for t := 1; t < s.threads; t++ {
		t := t
		g.Go(func() error {
			return s.worker(gctx, t, file, sorted, sh, log)
		})
	}
	err := s.worker(gctx, 0, file, sorted, sh, log)
	if err != nil {
		cancel()
	}
	if werr := g.Wait(); err == nil {
		err = werr
	}

	stats := Stats{
		SpecCharges: len(sorted),
		Searched:    sh.searched,
		Candidates:  sh.candidates,
		Peaks:       sh.peaks,
		Threads:     s.threads,
		Elapsed:     time.Since(start),
	}
	if err != nil {
		return stats, err
	}
	log.LogFileDone(ctx, file, int64(stats.SpecCharges), stats.Candidates)
	return stats, nil
}

// worker is the scan loop of one thread.
func (s *Searcher) worker(ctx context.Context, thread int, file string, scs []core.SpecCharge, sh *shared, log *logging.Logger) (err error) {
	log = log.WithThread(thread)

	mode := index.XCorr
	if s.cfg.ExactPValue {
		mode = index.BIons
	}
	q := index.NewActivePeptideQueue(ctx, s.idx, mode, s.cfg.binner)

	var evictErr error
	if s.cfg.PeptideCentric {
		q.OnEvict(func(e *index.Entry) {
			if evictErr == nil {
				evictErr = s.reportPeptide(e, file, sh)
			}
		})
	}
	defer func() {
		if cerr := q.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = evictErr
		}
	}()

	w := &workerState{
		Searcher: s,
		file:     file,
		sh:       sh,
		log:      log,
		queue:    q,
		pre:      preprocess.New(s.cfg.preprocessOptions()),
	}

	searched := 0
	for _, i := range Shard(len(scs), s.threads, thread) {
		if err := ctx.Err(); err != nil {
			return err
		}
		sc := scs[i]
		sh.advance(ctx, log)

		if s.assigned != nil && s.assigned.Contains(file, sc.Spectrum.ScanNumber, sc.Charge) {
			continue
		}
		if !s.cfg.eligible(sc) {
			continue
		}
		searched++

		win, err := ComputeWindow(sc, s.cfg.WindowType, s.cfg.PrecursorWindow, s.cfg.MaxPrecursorCharge, s.cfg.isotopeErrors)
		if err != nil {
			return err
		}
		if s.cfg.ExactPValue {
			err = w.scoreExact(ctx, sc, win)
		} else {
			err = w.scoreXCorr(ctx, sc, win)
		}
		if err != nil {
			return fmt.Errorf("scan %d charge %d: %w", sc.Spectrum.ScanNumber, sc.Charge, err)
		}
		if evictErr != nil {
			return evictErr
		}
	}

	peaks := w.pre.Counters()
	sh.finish(peaks, searched)
	if !s.cfg.SkipPreprocessing {
		log.LogThreadPeaks(ctx, thread, peaks.Retained, peaks.RangeSkipped, peaks.PrecursorSkipped, peaks.IsotopeSkipped)
	}
	return nil
}

// eligible applies the spectrum filters.
func (s *settings) eligible(sc core.SpecCharge) bool {
	spec := sc.Spectrum
	switch {
	case spec.PrecursorMZ < s.MinMZ || spec.PrecursorMZ > s.MaxMZ:
		return false
	case spec.ScanNumber < s.minScan || spec.ScanNumber > s.maxScan:
		return false
	case spec.Size() < s.MinPeaks:
		return false
	case s.charge != 0 && sc.Charge != s.charge:
		return false
	case sc.Charge > s.MaxPrecursorCharge:
		return false
	}
	return true
}

// workerState is owned by one worker goroutine.
type workerState struct {
	*Searcher
	file    string
	sh      *shared
	log     *logging.Logger
	queue   *index.ActivePeptideQueue
	pre     *preprocess.Preprocessor
	results []xcorr.Result
}

func (w *workerState) scoreXCorr(ctx context.Context, sc core.SpecCharge, win Window) error {
	before := w.pre.Counters().Retained
	cache := w.pre.Process(sc.Spectrum, sc.Charge)
	if len(sc.Spectrum.Peaks) == 0 || (!w.cfg.SkipPreprocessing && w.pre.Counters().Retained == before) {
		w.log.LogEmptySpectrum(ctx, sc.Spectrum.ScanNumber, sc.Charge)
		return nil
	}

	n, status, err := w.queue.SetActiveRange(win.Min, win.Max, win.MinRange, win.MaxRange)
	if err != nil {
		return err
	}
	if n == 0 {
		w.log.LogNoCandidates(ctx, sc.Spectrum.ScanNumber, sc.Charge, win.String())
		return nil
	}
	w.sh.addCandidates(n)

	programs := w.queue.Programs()
	entries := w.queue.Entries()
	w.results = w.scorer.ScoreQueue(cache, programs, sc.Charge, w.results[:0])

	if w.cfg.PeptideCentric {
		for _, r := range w.results {
			i := r.Index(len(programs))
			if status[i] {
				entries[i].AddHit(index.Hit{Spectrum: sc.Spectrum, Charge: sc.Charge, XCorr: xcorr.XCorr(r.Score)})
			}
		}
		return nil
	}

	ms := NewMatchSet(false, w.cfg.Concat)
	for _, r := range w.results {
		i := r.Index(len(programs))
		if status[i] {
			ms.Add(entries[i].Peptide, xcorr.XCorr(r.Score), 0)
		}
	}
	return w.report(sc, ms)
}

func (w *workerState) scoreExact(ctx context.Context, sc core.SpecCharge, win Window) error {
	n, status, err := w.queue.SetActiveRange(win.Min, win.Max, win.MinRange, win.MaxRange)
	if err != nil {
		return err
	}
	w.sh.addCandidates(n)
	if n == 0 {
		w.log.LogNoCandidates(ctx, sc.Spectrum.ScanNumber, sc.Charge, win.String())
		return nil
	}
	entries := w.queue.Entries()

	binner := w.cfg.binner
	massBins := make([]int, len(entries))
	var unique []int
	seen := map[int]bool{}
	for i, e := range entries {
		if !status[i] {
			continue
		}
		b := binner.Bin(e.Peptide.Mass)
		massBins[i] = b
		if !seen[b] {
			seen[b] = true
			unique = append(unique, b)
		}
	}
	sort.Ints(unique)

	size := unique[len(unique)-1] + w.aa.MaxMass() + 1
	obs := pvalue.ObservedIntensities(sc.Spectrum, sc.Charge, size, binner)

	type cluster struct {
		evidence []int
		table    *pvalue.ScoreTable
	}
	clusters := make(map[int]cluster, len(unique))
	for _, b := range unique {
		ev := pvalue.EvidenceVector(obs, sc.Charge, pvalue.PeptideMassMean(b, binner), binner)
		table, err := pvalue.NewScoreTable(ev, b, w.aa, binner)
		if err != nil {
			return fmt.Errorf("mass bin %d: %w", b, err)
		}
		clusters[b] = cluster{evidence: ev, table: table}
	}

	ms := NewMatchSet(true, w.cfg.Concat)
	for i, e := range entries {
		if !status[i] {
			continue
		}
		c := clusters[massBins[i]]
		score := pvalue.Score(c.evidence, e.BIons)
		p := c.table.PValue(score)
		xc := float64(score) / xcorr.RescaleFactor
		if w.cfg.PeptideCentric {
			e.AddHit(index.Hit{Spectrum: sc.Spectrum, Charge: sc.Charge, XCorr: xc, PValue: p})
			continue
		}
		ms.Add(e.Peptide, xc, p)
	}
	if w.cfg.PeptideCentric {
		return nil
	}
	return w.report(sc, ms)
}

func (w *workerState) report(sc core.SpecCharge, ms *MatchSet) error {
	var sp *xcorr.SpScorer
	if w.cfg.ComputeSp {
		sp = xcorr.NewSpScorer(sc.Spectrum, sc.Charge)
	}
	r := ms.Report(sc, w.cfg.TopMatches, sp)
	r.File = w.file
	return w.sh.write(r)
}
