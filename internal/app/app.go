// Package app wires the pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/newthinker/radar/internal/api"
	"github.com/newthinker/radar/internal/brief"
	"github.com/newthinker/radar/internal/catalog"
	"github.com/newthinker/radar/internal/collector"
	"github.com/newthinker/radar/internal/collector/news"
	"github.com/newthinker/radar/internal/collector/polymarket"
	"github.com/newthinker/radar/internal/collector/yahoo"
	"github.com/newthinker/radar/internal/config"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/fetcher"
	"github.com/newthinker/radar/internal/llm/factory"
	"github.com/newthinker/radar/internal/metrics"
	"github.com/newthinker/radar/internal/notifier"
	"github.com/newthinker/radar/internal/notifier/email"
	"github.com/newthinker/radar/internal/notifier/telegram"
	"github.com/newthinker/radar/internal/notifier/webhook"
	"github.com/newthinker/radar/internal/report"
	"github.com/newthinker/radar/internal/scheduler"
	"github.com/newthinker/radar/internal/scoring"
	"github.com/newthinker/radar/internal/sentiment"
	"github.com/newthinker/radar/internal/storage/archive"
	"github.com/newthinker/radar/internal/storage/quote"
	"go.uber.org/zap"
)

// DailyTask is the scheduler name of the fetch-and-report cycle.
const DailyTask = "daily"

// cycleTimeout bounds one scheduled cycle.
const cycleTimeout = 2 * time.Hour

// App is the main application orchestrator
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Catalog    *catalog.Catalog
	Quotes     quote.Store
	Market     *yahoo.Yahoo
	News       *news.Client       // nil when disabled
	Polymarket *polymarket.Client // nil when disabled
	Archiver   *archive.Archiver  // nil when disabled
	Fetcher    *fetcher.Fetcher
	Reports    *report.Exporter
	Metrics    *metrics.Registry // nil when disabled
	Notifiers  *notifier.Registry

	mu        sync.Mutex
	scheduler *scheduler.Scheduler
}

// New builds every component named by cfg. The LLM brief is optional: a
// missing provider only disables it.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}

	var err error
	if a.Catalog, err = loadCatalog(cfg.CatalogPath); err != nil {
		return nil, err
	}

	var fetchMetrics collector.Metrics = collector.NopMetrics{}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewRegistry()
		fetchMetrics = a.Metrics
	}

	if a.Quotes, err = openQuotes(cfg.Storage.Quotes, logger); err != nil {
		return nil, err
	}

	md := cfg.MarketData
	yopts := []yahoo.Option{
		yahoo.WithHTTPClient(&http.Client{Timeout: md.Timeout}),
		yahoo.WithRetry(md.MaxRetries, md.BaseDelay, md.MaxJitter),
		yahoo.WithMinInterval(md.MinInterval),
		yahoo.WithLogger(logger.Named("yahoo")),
		yahoo.WithMetrics(fetchMetrics),
	}
	if md.BaseURL != "" {
		yopts = append(yopts, yahoo.WithBaseURL(md.BaseURL))
	}
	a.Market = yahoo.New(yopts...)

	fopts := []fetcher.Option{
		fetcher.WithLogger(logger.Named("fetcher")),
		fetcher.WithWorkers(cfg.Fetcher.Workers),
		fetcher.WithDefaultFX(cfg.Fetcher.DefaultFX),
		fetcher.WithHistoryRange(collector.Range(cfg.Fetcher.HistoryRange)),
	}
	if a.Metrics != nil {
		fopts = append(fopts, fetcher.WithMetrics(a.Metrics))
	}

	if cfg.News.Enabled {
		lex := sentiment.DefaultLexicon()
		if cfg.LexiconPath != "" {
			if lex, err = sentiment.LoadLexicon(cfg.LexiconPath); err != nil {
				a.Close()
				return nil, err
			}
		}
		nopts := []news.Option{
			news.WithHTTPClient(&http.Client{Timeout: cfg.News.Timeout}),
			news.WithMaxItems(cfg.News.MaxItems),
			news.WithAnalyzer(sentiment.NewAnalyzer(lex)),
			news.WithLogger(logger.Named("news")),
			news.WithMetrics(fetchMetrics),
		}
		if cfg.News.BaseURL != "" {
			nopts = append(nopts, news.WithBaseURL(cfg.News.BaseURL))
		}
		a.News = news.New(nopts...)
		fopts = append(fopts, fetcher.WithNews(a.News))
	}

	if cfg.Polymarket.Enabled {
		popts := []polymarket.Option{
			polymarket.WithHTTPClient(&http.Client{Timeout: cfg.Polymarket.Timeout}),
			polymarket.WithLogger(logger.Named("polymarket")),
			polymarket.WithMetrics(fetchMetrics),
		}
		if cfg.Polymarket.BaseURL != "" {
			popts = append(popts, polymarket.WithBaseURL(cfg.Polymarket.BaseURL))
		}
		a.Polymarket = polymarket.New(popts...)
		fopts = append(fopts, fetcher.WithPredictions(a.Polymarket))
	}

	if cfg.Storage.Archive.Enabled {
		store, err := openArchive(cfg.Storage.Archive)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Archiver = archive.NewArchiver(store, logger.Named("archive"))
		fopts = append(fopts, fetcher.WithArchiver(a.Archiver))
	}

	a.Fetcher = fetcher.New(a.Market, a.Quotes, a.Catalog, fopts...)

	out, err := archive.NewLocalFS(cfg.Fetcher.ReportDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("report dir: %w", err)
	}
	ropts := []report.Option{
		report.WithScoring(a.scoringOptions()),
		report.WithLogger(logger.Named("report")),
	}
	if a.Polymarket != nil {
		ropts = append(ropts, report.WithMarkets(a.Polymarket))
	}
	provider, err := factory.New(cfg.LLM)
	switch {
	case err == nil:
		ropts = append(ropts, report.WithBrief(brief.NewWriter(provider, brief.Config{
			Language:    cfg.LLM.Language,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, logger.Named("brief"))))
	case errors.Is(err, core.ErrConfigMissing):
		logger.Debug("llm brief disabled")
	default:
		a.Close()
		return nil, err
	}
	a.Reports = report.NewExporter(a.Quotes, out, ropts...)

	if a.Notifiers, err = buildNotifiers(cfg.Notifiers); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func buildNotifiers(cfgs []config.NotifierConfig) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for _, c := range cfgs {
		var n notifier.Notifier
		switch c.Type {
		case "telegram":
			n = telegram.New("", "")
		case "webhook":
			n = webhook.New("", nil)
		case "email":
			n = email.New("", 0, "", "", "", nil)
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", c.Type))
		}
		if err := n.Init(notifier.Config{Type: c.Type, Params: c.Params}); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return reg, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func openQuotes(cfg config.QuoteStorageConfig, logger *zap.Logger) (quote.Store, error) {
	switch cfg.Type {
	case "memory":
		return quote.NewMemoryStore(), nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, core.WrapError(core.ErrPersistence, err)
		}
		return quote.NewSQLiteStore(cfg.Path, logger.Named("sqlite"))
	}
}

func openArchive(cfg config.ArchiveStorageConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Path)
	}
}

func (a *App) scoringOptions() scoring.Options {
	return scoring.Options{
		MinScore:   a.cfg.Scoring.MinScore,
		AvoidScore: a.cfg.Scoring.AvoidScore,
		MaxItems:   a.cfg.Scoring.MaxItems,
	}
}

// RunCycle fetches every instrument, exports the day's reports, notifies
// subscribers and prunes expired snapshots. Only the fetch itself can fail
// the cycle.
func (a *App) RunCycle(ctx context.Context) (fetcher.Report, error) {
	rep, err := a.Fetcher.Run(ctx)
	if err != nil {
		return rep, err
	}
	if rep.Saved == 0 {
		a.logger.Warn("nothing saved, reports skipped", zap.String("run_id", rep.RunID))
		return rep, nil
	}

	d, err := a.Reports.Digest(ctx)
	if err != nil {
		a.logger.Error("digest failed", zap.String("run_id", rep.RunID), zap.Error(err))
	} else {
		files, err := a.Reports.Write(ctx, d)
		if err != nil {
			a.logger.Error("report export failed", zap.String("run_id", rep.RunID), zap.Error(err))
		}
		a.notify(ctx, notifier.Summary{
			RunID:     rep.RunID,
			Date:      rep.Date,
			Intended:  rep.Intended,
			Saved:     rep.Saved,
			Errors:    rep.Errors,
			FXRate:    rep.FXRate,
			Duration:  rep.Duration,
			Headline:  files.Headline,
			Watchlist: d.Insights.Watchlist,
			AvoidList: d.Insights.AvoidList,
			Report:    files.Markdown,
		})
	}

	if a.Archiver != nil && a.cfg.Storage.Archive.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -a.cfg.Storage.Archive.RetentionDays)
		if n, err := a.Archiver.Prune(ctx, cutoff); err != nil {
			a.logger.Warn("snapshot prune failed", zap.Error(err))
		} else if n > 0 {
			a.logger.Info("snapshots pruned", zap.Int("removed", n))
		}
	}
	return rep, nil
}

func (a *App) notify(ctx context.Context, s notifier.Summary) {
	if a.Notifiers == nil || a.Notifiers.Len() == 0 {
		return
	}
	for name, err := range a.Notifiers.NotifyAll(ctx, s) {
		a.logger.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
	}
}

// Start schedules the daily cycle. An empty schedule leaves the cycle to
// manual triggers.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scheduler != nil {
		return fmt.Errorf("app already running")
	}
	if a.cfg.Fetcher.Schedule == "" {
		a.logger.Info("no schedule configured")
		return nil
	}

	s := scheduler.New(a.logger.Named("scheduler"), cycleTimeout)
	err := s.Register(DailyTask, a.cfg.Fetcher.Schedule, func(ctx context.Context) error {
		_, err := a.RunCycle(ctx)
		return err
	})
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	s.Start()
	a.scheduler = s
	return nil
}

// Stop stops the scheduler, cancelling a running cycle.
func (a *App) Stop() {
	a.mu.Lock()
	s := a.scheduler
	a.scheduler = nil
	a.mu.Unlock()

	if s != nil {
		s.Stop()
	}
}

// APIDependencies exposes the components the HTTP handlers read from.
func (a *App) APIDependencies() api.Dependencies {
	deps := api.Dependencies{
		Quotes:  a.Quotes,
		Catalog: a.Catalog,
		Reports: a.Reports,
		Runner:  runner{a},
		Scoring: a.scoringOptions(),
		Metrics: a.Metrics,
	}
	if a.Polymarket != nil {
		deps.Predictions = a.Polymarket
	}
	return deps
}

// runner exposes the full cycle to the API.
type runner struct{ a *App }

func (r runner) Run(ctx context.Context) (fetcher.Report, error) { return r.a.RunCycle(ctx) }
func (r runner) Running() bool                                   { return r.a.Fetcher.Running() }

// Close releases the stores.
func (a *App) Close() error {
	a.Stop()
	if a.Quotes != nil {
		return a.Quotes.Close()
	}
	return nil
}
