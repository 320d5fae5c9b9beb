// Package fetcher runs the daily cycle: it pulls history and fundamentals
// for every catalog instrument, computes the derived fields and persists one
// row per instrument.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/radar/internal/catalog"
	"github.com/newthinker/radar/internal/collector"
	"github.com/newthinker/radar/internal/collector/polymarket"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/signal"
	"github.com/newthinker/radar/internal/storage/archive"
	"github.com/newthinker/radar/internal/storage/quote"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Defaults
const (
	DefaultFXRate  = 6.20
	DefaultWorkers = 1

	FXTicker    = "USDBRL=X"
	IbovTicker  = "^BVSP"
	SP500Ticker = "^GSPC"
)

// ErrRunning is returned when Run is called during a cycle.
var ErrRunning = errors.New("fetch cycle already running")

// PredictionSource yields per keyword group prediction-market aggregates.
type PredictionSource interface {
	Sentiment(ctx context.Context) map[string]polymarket.Aggregate
}

// Metrics receives cycle outcomes.
type Metrics interface {
	RecordCycle(duration time.Duration, saved, failed int)
}

type nopMetrics struct{}

func (nopMetrics) RecordCycle(time.Duration, int, int) {}

// Report summarizes one cycle.
type Report struct {
	RunID    string        `json:"run_id"`
	Date     string        `json:"date"`
	Intended int           `json:"intended"`
	Saved    int           `json:"saved"`
	Errors   int           `json:"errors"`
	FXRate   float64       `json:"fx_rate"`
	Duration time.Duration `json:"duration"`
	Snapshot string        `json:"snapshot,omitempty"`
}

// Fetcher orchestrates a cycle.
type Fetcher struct {
	market      collector.MarketData
	store       quote.Store
	catalog     *catalog.Catalog
	news        collector.NewsSource
	predictions PredictionSource
	archiver    *archive.Archiver
	detector    *signal.Detector
	logger      *zap.Logger
	metrics     Metrics
	now         func() time.Time

	workers      int
	defaultFX    float64
	historyRange collector.Range

	mu      sync.Mutex
	running bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithNews enables the headline pass for equities.
func WithNews(n collector.NewsSource) Option {
	return func(f *Fetcher) { f.news = n }
}

// WithPredictions enables prediction-market enrichment.
func WithPredictions(p PredictionSource) Option {
	return func(f *Fetcher) { f.predictions = p }
}

// WithArchiver stores a snapshot of every cycle.
func WithArchiver(a *archive.Archiver) Option {
	return func(f *Fetcher) { f.archiver = a }
}

// WithDetector overrides the signal thresholds.
func WithDetector(d *signal.Detector) Option {
	return func(f *Fetcher) {
		if d != nil {
			f.detector = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(f *Fetcher) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithWorkers bounds the number of instruments processed at once.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithDefaultFX sets the USD/BRL rate used when the live rate is unavailable.
func WithDefaultFX(rate float64) Option {
	return func(f *Fetcher) {
		if rate > 0 {
			f.defaultFX = rate
		}
	}
}

// WithHistoryRange sets the per-instrument history window.
func WithHistoryRange(r collector.Range) Option {
	return func(f *Fetcher) {
		if r.Valid() {
			f.historyRange = r
		}
	}
}

// New creates a Fetcher.
func New(market collector.MarketData, store quote.Store, cat *catalog.Catalog, opts ...Option) *Fetcher {
	f := &Fetcher{
		market:       market,
		store:        store,
		catalog:      cat,
		detector:     signal.Default,
		logger:       zap.NewNop(),
		metrics:      nopMetrics{},
		now:          time.Now,
		workers:      DefaultWorkers,
		defaultFX:    DefaultFXRate,
		historyRange: collector.RangeMax,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Running reports whether a cycle is in progress.
func (f *Fetcher) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Run executes one cycle. Per-instrument failures are counted, never
// returned. A cancelled ctx stops dispatching and Run returns the partial
// report with ctx.Err(); rows already saved stay saved.
func (f *Fetcher) Run(ctx context.Context) (Report, error) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return Report{}, ErrRunning
	}
	f.running = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	start := f.now()
	instruments := f.catalog.All()
	report := Report{
		RunID:    uuid.NewString(),
		Date:     core.DateKey(start),
		Intended: len(instruments),
	}

	f.logger.Info("fetch cycle starting",
		zap.String("run_id", report.RunID),
		zap.Int("instruments", len(instruments)),
	)

	report.FXRate = f.fxRate(ctx)
	bench := f.benchmarks(ctx)

	var aggs map[string]polymarket.Aggregate
	if f.predictions != nil {
		aggs = f.predictions.Sentiment(ctx)
	}

	c := cycle{
		runID:     report.RunID,
		fetchedAt: start,
		fx:        report.FXRate,
		bench:     bench,
		aggs:      aggs,
	}

	var (
		mu    sync.Mutex
		saved []core.Row
	)
	p := pool.New().WithMaxGoroutines(f.workers)
	for _, inst := range instruments {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			// Queued behind a busy worker; skip once cancelled.
			if ctx.Err() != nil {
				return
			}
			row, err := f.process(ctx, inst, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors++
				f.logger.Error("instrument failed",
					zap.String("ticker", inst.Ticker),
					zap.Error(err),
				)
				return
			}
			saved = append(saved, row)
		})
	}
	p.Wait()

	report.Saved = len(saved)
	report.Duration = f.now().Sub(start)
	f.metrics.RecordCycle(report.Duration, report.Saved, report.Errors)

	if err := ctx.Err(); err != nil {
		f.logger.Warn("fetch cycle cancelled",
			zap.String("run_id", report.RunID),
			zap.Int("saved", report.Saved),
			zap.Int("errors", report.Errors),
		)
		return report, err
	}

	if f.archiver != nil && len(saved) > 0 {
		quote.SortBySector(saved)
		p, err := f.archiver.Save(ctx, archive.Snapshot{
			RunID:     report.RunID,
			Date:      report.Date,
			CreatedAt: start,
			FXRate:    report.FXRate,
			Rows:      saved,
		})
		if err != nil {
			f.logger.Warn("snapshot failed", zap.Error(err))
		}
		report.Snapshot = p
	}

	f.logger.Info("fetch cycle complete",
		zap.String("run_id", report.RunID),
		zap.Int("saved", report.Saved),
		zap.Int("intended", report.Intended),
		zap.Int("errors", report.Errors),
		zap.Float64("fx_rate", report.FXRate),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// cycle is the state computed once before fan-out and read-only after.
type cycle struct {
	runID     string
	fetchedAt time.Time
	fx        float64
	bench     Benchmarks
	aggs      map[string]polymarket.Aggregate
}

// process builds and saves the row of one instrument.
func (f *Fetcher) process(ctx context.Context, inst core.Instrument, c cycle) (row core.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	bars, err := f.market.History(ctx, inst.Ticker, f.historyRange, collector.Interval1D)
	if err != nil {
		return core.Row{}, err
	}
	if len(bars) == 0 {
		return core.Row{}, core.WrapError(core.ErrNoData, fmt.Errorf("no history for %s", inst.Ticker))
	}

	fund, err := f.market.Fundamentals(ctx, inst.Ticker)
	if err != nil {
		f.logger.Warn("fundamentals unavailable",
			zap.String("ticker", inst.Ticker),
			zap.Error(err),
		)
		fund = core.Fundamentals{}
	}

	row = buildBase(inst, bars, c.runID, c.fetchedAt)
	row = withFundamentals(row, fund)
	row = withTechnicals(row, bars)
	row = withChanges(row, bars)
	row = withBenchmarks(row, c.bench)
	row = withPrices(row, c.fx)
	if f.news != nil && inst.Category.IsEquity() {
		row = withNews(row, f.news.Sentiment(ctx, inst))
	}
	if c.aggs != nil {
		row = withPrediction(row, c.aggs)
	}
	row = withSignals(row, f.detector)

	if err := f.store.Upsert(ctx, row); err != nil {
		return core.Row{}, err
	}
	return row, nil
}

// fxRate returns the last USD/BRL close or the default rate.
func (f *Fetcher) fxRate(ctx context.Context) float64 {
	bars, err := f.market.History(ctx, FXTicker, collector.Range5D, collector.Interval1D)
	if err != nil || len(bars) == 0 || bars[len(bars)-1].Close <= 0 {
		f.logger.Warn("fx rate unavailable, using default",
			zap.Float64("rate", f.defaultFX),
			zap.Error(err),
		)
		return f.defaultFX
	}
	rate := bars[len(bars)-1].Close
	f.logger.Info("fx rate", zap.Float64("usd_brl", rate))
	return rate
}

// benchmarks fetches one year of each index. A failing index leaves its
// moves null.
func (f *Fetcher) benchmarks(ctx context.Context) Benchmarks {
	var b Benchmarks
	for ticker, dst := range map[string]*periodChanges{IbovTicker: &b.Ibov, SP500Ticker: &b.SP500} {
		bars, err := f.market.History(ctx, ticker, collector.Range1Y, collector.Interval1D)
		if err != nil {
			f.logger.Warn("benchmark unavailable", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		*dst = periodMoves(bars)
	}
	return b
}
