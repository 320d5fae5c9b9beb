// Package report renders the latest rows into the daily files: the markdown
// report, the JSON digest and, when an LLM is configured, the brief.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/radar/internal/brief"
	"github.com/newthinker/radar/internal/collector/polymarket"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/digest"
	"github.com/newthinker/radar/internal/scoring"
	"github.com/newthinker/radar/internal/storage/archive"
	"github.com/newthinker/radar/internal/storage/quote"
	"go.uber.org/zap"
)

// MarketSource yields the matched prediction markets per keyword group.
type MarketSource interface {
	FetchSentiment(ctx context.Context) map[string][]polymarket.MarketSentiment
}

// Files are the paths written by Export. Brief is empty when no brief was
// produced.
type Files struct {
	Markdown string `json:"markdown"`
	Digest   string `json:"digest"`
	Brief    string `json:"brief,omitempty"`
	Headline string `json:"headline,omitempty"` // brief headline
}

// Exporter builds digests from the row store.
type Exporter struct {
	rows    quote.Store
	out     archive.Storage
	markets MarketSource
	writer  *brief.Writer
	scoring scoring.Options
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithMarkets adds the prediction-market section.
func WithMarkets(m MarketSource) Option {
	return func(e *Exporter) { e.markets = m }
}

// WithBrief writes a brief alongside the report.
func WithBrief(w *brief.Writer) Option {
	return func(e *Exporter) { e.writer = w }
}

func WithScoring(o scoring.Options) Option {
	return func(e *Exporter) { e.scoring = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// NewExporter creates an exporter reading rows and writing files to out.
func NewExporter(rows quote.Store, out archive.Storage, opts ...Option) *Exporter {
	e := &Exporter{
		rows:    rows,
		out:     out,
		scoring: scoring.DefaultOptions(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Digest summarizes the latest row of every instrument.
func (e *Exporter) Digest(ctx context.Context) (digest.Digest, error) {
	rows, err := e.rows.Latest(ctx)
	if err != nil {
		return digest.Digest{}, err
	}
	if len(rows) == 0 {
		return digest.Digest{}, core.WrapError(core.ErrNoData, fmt.Errorf("no rows stored"))
	}
	quote.SortBySector(rows)

	in := digest.Input{GeneratedAt: e.now(), Scoring: e.scoring}
	if e.markets != nil {
		in.Markets = e.markets.FetchSentiment(ctx)
	}
	return digest.Build(rows, in), nil
}

// Brief narrates the current digest.
func (e *Exporter) Brief(ctx context.Context) (*brief.Brief, error) {
	if e.writer == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no llm provider configured"))
	}
	d, err := e.Digest(ctx)
	if err != nil {
		return nil, err
	}
	return e.writer.Write(ctx, d)
}

// Export writes the day's files for the current digest.
func (e *Exporter) Export(ctx context.Context) (Files, error) {
	d, err := e.Digest(ctx)
	if err != nil {
		return Files{}, err
	}
	return e.Write(ctx, d)
}

// Write writes the files of d. A failed brief is logged and skipped.
func (e *Exporter) Write(ctx context.Context, d digest.Digest) (Files, error) {
	day := d.Metadata.GeneratedAt.Format("2006-01-02")

	md, err := digest.Markdown(d)
	if err != nil {
		return Files{}, err
	}
	files := Files{
		Markdown: fmt.Sprintf("report_%s.md", day),
		Digest:   fmt.Sprintf("ai_report_%s.json", day),
	}
	if err := e.out.Write(ctx, files.Markdown, []byte(md)); err != nil {
		return Files{}, core.WrapError(core.ErrPersistence, err)
	}
	if err := e.writeJSON(ctx, files.Digest, d); err != nil {
		return Files{}, err
	}

	if e.writer != nil {
		b, err := e.writer.Write(ctx, d)
		if err != nil {
			e.logger.Warn("brief skipped", zap.Error(err))
		} else {
			p := fmt.Sprintf("brief_%s.json", day)
			if err := e.writeJSON(ctx, p, b); err != nil {
				e.logger.Warn("brief not saved", zap.String("path", p), zap.Error(err))
			} else {
				files.Brief = p
				files.Headline = b.Headline
			}
		}
	}

	e.logger.Info("reports exported",
		zap.String("markdown", files.Markdown),
		zap.String("digest", files.Digest),
		zap.String("brief", files.Brief),
		zap.Int("assets", d.Metadata.TotalAssets),
	)
	return files, nil
}

func (e *Exporter) writeJSON(ctx context.Context, p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", p, err)
	}
	if err := e.out.Write(ctx, p, data); err != nil {
		return core.WrapError(core.ErrPersistence, err)
	}
	return nil
}
