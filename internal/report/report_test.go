package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/brief"
	"github.com/newthinker/radar/internal/collector/polymarket"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/digest"
	"github.com/newthinker/radar/internal/llm"
	"github.com/newthinker/radar/internal/storage/archive"
	"github.com/newthinker/radar/internal/storage/quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)

type stubLLM struct {
	content string
	err     error
}

func (s stubLLM) Name() string { return "stub" }

func (s stubLLM) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

type stubMarkets map[string][]polymarket.MarketSentiment

func (s stubMarkets) FetchSentiment(context.Context) map[string][]polymarket.MarketSentiment {
	return s
}

func seeded(t *testing.T) quote.Store {
	t.Helper()
	store := quote.NewMemoryStore()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, r := range []core.Row{
		{Ticker: "VALE3.SA", Name: "Vale ON", Sector: "Mineração", Category: core.CategoryDomesticEquity,
			Date: day, Close: null.FloatFrom(60), Change1D: null.FloatFrom(-1.2)},
		{Ticker: "PETR4.SA", Name: "Petrobras PN", Sector: "Petróleo e Gás", Category: core.CategoryDomesticEquity,
			Date: day, Close: null.FloatFrom(38), Change1D: null.FloatFrom(2.1),
			RSIOversold: true, Summary: core.SummaryBullish},
		{Ticker: "BRL=X", Name: "Dólar", Sector: "Câmbio", Category: core.CategoryCurrency,
			Date: day, Close: null.FloatFrom(4.97), PriceBRL: null.FloatFrom(4.97)},
	} {
		require.NoError(t, store.Upsert(context.Background(), r))
	}
	return store
}

func localFS(t *testing.T) *archive.LocalFS {
	t.Helper()
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestDigest_SortedBySector(t *testing.T) {
	e := NewExporter(seeded(t), localFS(t), WithClock(func() time.Time { return now }))

	d, err := e.Digest(context.Background())
	require.NoError(t, err)
	require.Len(t, d.Rows, 3)
	assert.Equal(t, "BRL=X", d.Rows[0].Ticker)
	assert.Equal(t, "VALE3.SA", d.Rows[1].Ticker)
	assert.Equal(t, "PETR4.SA", d.Rows[2].Ticker)
	assert.Equal(t, now, d.Metadata.GeneratedAt)
	assert.Nil(t, d.Predictions)
}

func TestDigest_Empty(t *testing.T) {
	e := NewExporter(quote.NewMemoryStore(), localFS(t))
	_, err := e.Digest(context.Background())
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestDigest_WithMarkets(t *testing.T) {
	markets := stubMarkets{"BTC-USD": {{Question: "BTC above 100k?", YesProbability: null.FloatFrom(0.7), Volume24h: null.FloatFrom(100)}}}
	e := NewExporter(seeded(t), localFS(t), WithMarkets(markets))

	d, err := e.Digest(context.Background())
	require.NoError(t, err)
	assert.Contains(t, d.Predictions, "BTC-USD")
}

func TestExport_WritesFiles(t *testing.T) {
	out := localFS(t)
	w := brief.NewWriter(stubLLM{content: `{"headline":"Dia de alta"}`}, brief.Config{}, nil)
	e := NewExporter(seeded(t), out, WithBrief(w), WithClock(func() time.Time { return now }))

	files, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Files{
		Markdown: "report_2024-03-04.md",
		Digest:   "ai_report_2024-03-04.json",
		Brief:    "brief_2024-03-04.json",
	}, files)

	md, err := out.Read(context.Background(), files.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Market Report - 2024-03-04 21:00")

	raw, err := out.Read(context.Background(), files.Digest)
	require.NoError(t, err)
	var d digest.Digest
	require.NoError(t, json.Unmarshal(raw, &d))
	assert.Equal(t, 3, d.Metadata.TotalAssets)
	assert.Equal(t, 4.97, d.MarketContext.USDBRL.Float64)

	raw, err = out.Read(context.Background(), files.Brief)
	require.NoError(t, err)
	var b brief.Brief
	require.NoError(t, json.Unmarshal(raw, &b))
	assert.Equal(t, "Dia de alta", b.Headline)
}

func TestExport_BriefFailureIsNotFatal(t *testing.T) {
	w := brief.NewWriter(stubLLM{err: llm.Failed("stub", errors.New("down"))}, brief.Config{}, nil)
	e := NewExporter(seeded(t), localFS(t), WithBrief(w), WithClock(func() time.Time { return now }))

	files, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files.Brief)
	assert.NotEmpty(t, files.Markdown)
}

func TestBrief_NotConfigured(t *testing.T) {
	e := NewExporter(seeded(t), localFS(t))
	_, err := e.Brief(context.Background())
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}
