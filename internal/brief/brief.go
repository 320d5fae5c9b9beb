// Package brief asks an LLM to narrate the daily digest.
package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/digest"
	"github.com/newthinker/radar/internal/llm"
	"go.uber.org/zap"
)

const systemPrompt = `You are a market analyst writing the end-of-day note for a
Brazilian investor who follows B3 equities, US equities, commodities and crypto.
Use only the figures given. Never invent prices or events. Do not give
personal financial advice.

Respond with a JSON object:
{"headline": "...", "summary": "...", "highlights": ["..."], "risks": ["..."]}`

// Config tunes the request.
type Config struct {
	Language    string
	MaxTokens   int
	Temperature float64
}

// Brief is the narrated digest.
type Brief struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	Highlights  []string  `json:"highlights"`
	Risks       []string  `json:"risks"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generated_at"`
	Usage       llm.Usage `json:"usage"`
}

// Writer produces briefs.
type Writer struct {
	llm    llm.Provider
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewWriter creates a writer.
func NewWriter(provider llm.Provider, cfg Config, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Language == "" {
		cfg.Language = "pt-BR"
	}
	return &Writer{llm: provider, cfg: cfg, logger: logger, now: time.Now}
}

// Write narrates d.
func (w *Writer) Write(ctx context.Context, d digest.Digest) (*Brief, error) {
	if d.Metadata.TotalAssets == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("digest is empty"))
	}

	resp, err := w.llm.Chat(ctx, llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: w.buildPrompt(d)},
		},
		MaxTokens:   w.cfg.MaxTokens,
		Temperature: w.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	b := &Brief{
		Provider:    w.llm.Name(),
		GeneratedAt: w.now(),
		Usage:       resp.Usage,
	}
	if err := json.Unmarshal([]byte(resp.Content), b); err != nil {
		// not JSON, keep the text as is
		w.logger.Warn("brief was not JSON", zap.String("provider", b.Provider), zap.Error(err))
		b.Summary = strings.TrimSpace(resp.Content)
	}
	// the response must not override these
	b.Provider = w.llm.Name()
	b.Usage = resp.Usage

	w.logger.Info("brief written",
		zap.String("provider", b.Provider),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return b, nil
}

func (w *Writer) buildPrompt(d digest.Digest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Write in %s.\n\n", w.cfg.Language))
	sb.WriteString(fmt.Sprintf("## Date: %s\n\n", d.Metadata.GeneratedAt.Format("2006-01-02")))

	mc := d.MarketContext
	sb.WriteString("## Market context\n")
	if mc.IbovYTD.Valid {
		sb.WriteString(fmt.Sprintf("- IBOV YTD: %+.2f%%\n", mc.IbovYTD.Float64))
	}
	if mc.SP500YTD.Valid {
		sb.WriteString(fmt.Sprintf("- S&P 500 YTD: %+.2f%%\n", mc.SP500YTD.Float64))
	}
	if mc.USDBRL.Valid {
		sb.WriteString(fmt.Sprintf("- USD/BRL: %.2f\n", mc.USDBRL.Float64))
	}
	c := mc.AssetCounts
	sb.WriteString(fmt.Sprintf("- Assets: %d Brazil, %d US, %d commodities, %d crypto\n\n",
		c.BrazilStocks, c.USStocks, c.Commodities, c.Crypto))

	writeMovers(&sb, "Top gainers (1D)", d.TopMovers.Gainers)
	writeMovers(&sb, "Top losers (1D)", d.TopMovers.Losers)

	s := d.Signals
	sb.WriteString("## Signals\n")
	sb.WriteString(fmt.Sprintf("- Bullish (%d): %s\n", s.BullishCount, strings.Join(s.BullishTickers, ", ")))
	sb.WriteString(fmt.Sprintf("- Bearish (%d): %s\n", s.BearishCount, strings.Join(s.BearishTickers, ", ")))
	sb.WriteString(fmt.Sprintf("- Near 52w low: %s\n", strings.Join(s.Near52wLow, ", ")))
	sb.WriteString(fmt.Sprintf("- Near 52w high: %s\n", strings.Join(s.Near52wHigh, ", ")))
	sb.WriteString(fmt.Sprintf("- Volume spikes: %s\n", strings.Join(s.VolumeSpike, ", ")))
	sb.WriteString(fmt.Sprintf("- Golden crosses: %d\n\n", s.GoldenCrossCount))

	if len(d.News.Positive)+len(d.News.Negative) > 0 {
		sb.WriteString("## News\n")
		for _, h := range d.News.Positive {
			sb.WriteString(fmt.Sprintf("- %s (+%.2f): %s\n", h.Ticker, h.Score, h.Headline))
		}
		for _, h := range d.News.Negative {
			sb.WriteString(fmt.Sprintf("- %s (%.2f): %s\n", h.Ticker, h.Score, h.Headline))
		}
		sb.WriteString("\n")
	}

	if len(d.Insights.Watchlist) > 0 {
		sb.WriteString("## Algorithmic watchlist\n")
		for _, e := range d.Insights.Watchlist {
			sb.WriteString(fmt.Sprintf("- %s score %.1f: %s\n",
				digest.DisplayTicker(e.Ticker), e.Score, strings.Join(e.Reasons, ", ")))
		}
		sb.WriteString("\n")
	}
	if len(d.Insights.AvoidList) > 0 {
		sb.WriteString("## Algorithmic avoid list\n")
		for _, e := range d.Insights.AvoidList {
			sb.WriteString(fmt.Sprintf("- %s score %.1f: %s\n",
				digest.DisplayTicker(e.Ticker), e.Score, strings.Join(e.RiskFlags, ", ")))
		}
		sb.WriteString("\n")
	}

	if len(d.Predictions) > 0 {
		sb.WriteString("## Prediction markets\n")
		for _, key := range sortedKeys(d.Predictions) {
			g := d.Predictions[key]
			if !g.Score.Valid {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: %s (score %+.2f, confidence %.2f, %d markets)\n",
				key, g.Label.String, g.Score.Float64, g.Confidence.Float64, g.MarketCount))
		}
	}

	return sb.String()
}

func writeMovers(sb *strings.Builder, title string, movers []digest.Mover) {
	if len(movers) == 0 {
		return
	}
	sb.WriteString("## " + title + "\n")
	for _, m := range movers {
		sb.WriteString(fmt.Sprintf("- %s (%s): %+.2f%%\n", m.Ticker, m.Name, m.Change1D))
	}
	sb.WriteString("\n")
}

func sortedKeys(m map[string]digest.PredictionGroup) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
