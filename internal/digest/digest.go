// Package digest condenses the latest computed rows into the daily market
// summary consumed by reports, the API and the narrative brief.
package digest

import (
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/collector/polymarket"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/scoring"
	"github.com/newthinker/radar/internal/sentiment"
	"github.com/shopspring/decimal"
)

const (
	ReportType    = "daily_market_summary"
	ReportVersion = "1.0"

	maxMovers      = 10
	maxNews        = 10
	maxTopMarkets  = 3
	headlineLength = 100
)

// Metadata identifies a digest.
type Metadata struct {
	ReportType  string    `json:"report_type"`
	GeneratedAt time.Time `json:"generated_at"`
	TotalAssets int       `json:"total_assets"`
	Version     string    `json:"version"`
}

// Counts break the rows down by category.
type Counts struct {
	BrazilStocks int `json:"brazil_stocks"`
	USStocks     int `json:"us_stocks"`
	Commodities  int `json:"commodities"`
	Crypto       int `json:"crypto"`
}

// MarketContext is the backdrop of the day.
type MarketContext struct {
	IbovYTD     null.Float `json:"ibov_ytd_pct"`
	SP500YTD    null.Float `json:"sp500_ytd_pct"`
	USDBRL      null.Float `json:"usd_brl"`
	AssetCounts Counts     `json:"asset_counts"`
}

// RSIReading pairs a ticker with its RSI.
type RSIReading struct {
	Ticker string     `json:"ticker"`
	RSI    null.Float `json:"rsi"`
}

// SignalsSummary groups equities by raised signal.
type SignalsSummary struct {
	BullishCount     int          `json:"bullish_count"`
	BearishCount     int          `json:"bearish_count"`
	BullishTickers   []string     `json:"bullish_tickers"`
	BearishTickers   []string     `json:"bearish_tickers"`
	RSIOversold      []RSIReading `json:"rsi_oversold"`
	RSIOverbought    []RSIReading `json:"rsi_overbought"`
	Near52wHigh      []string     `json:"near_52w_high"`
	Near52wLow       []string     `json:"near_52w_low"`
	VolumeSpike      []string     `json:"volume_spike"`
	GoldenCrossCount int          `json:"golden_cross_count"`
}

// Mover is an equity ranked by its daily change.
type Mover struct {
	Ticker   string  `json:"ticker"`
	Name     string  `json:"name"`
	Change1D float64 `json:"change_1d"`
}

// TopMovers are the best and worst daily changes.
type TopMovers struct {
	Gainers []Mover `json:"gainers_1d"`
	Losers  []Mover `json:"losers_1d"`
}

// Headline is an equity with labelled news sentiment.
type Headline struct {
	Ticker   string  `json:"ticker"`
	Score    float64 `json:"score"`
	Headline string  `json:"headline"`
}

// NewsSummary lists the equities with positive and negative news.
type NewsSummary struct {
	PositiveCount int        `json:"positive_count"`
	NegativeCount int        `json:"negative_count"`
	Positive      []Headline `json:"positive"`
	Negative      []Headline `json:"negative"`
}

// Insights are the ready-to-act lists.
type Insights struct {
	PotentialBuys  []string        `json:"potential_buys"`
	PotentialSells []string        `json:"potential_sells"`
	Watchlist      []scoring.Entry `json:"algorithmic_watchlist"`
	AvoidList      []scoring.Entry `json:"algorithmic_avoid_list"`
}

// MarketRef is one prediction market shown under a group.
type MarketRef struct {
	Question    string     `json:"question"`
	Probability null.Float `json:"probability"`
	Volume24h   null.Float `json:"volume_24h"`
}

// PredictionGroup is the prediction-market view of one keyword group.
type PredictionGroup struct {
	Score          null.Float  `json:"score"`
	Label          null.String `json:"label"`
	Confidence     null.Float  `json:"confidence"`
	MarketCount    int         `json:"market_count"`
	TotalVolume24h float64     `json:"total_volume_24h"`
	TopMarkets     []MarketRef `json:"top_markets"`
}

// Digest is the daily summary.
type Digest struct {
	Metadata      Metadata                   `json:"metadata"`
	MarketContext MarketContext              `json:"market_context"`
	Signals       SignalsSummary             `json:"signals_summary"`
	TopMovers     TopMovers                  `json:"top_movers"`
	News          NewsSummary                `json:"news_sentiment"`
	Insights      Insights                   `json:"actionable_insights"`
	Predictions   map[string]PredictionGroup `json:"polymarket_sentiment,omitempty"`
	Rows          []core.Row                 `json:"full_data"`
}

// Input carries what Build needs besides the rows.
type Input struct {
	GeneratedAt time.Time
	Scoring     scoring.Options
	// Markets are the matched markets per keyword group, volume-descending.
	Markets map[string][]polymarket.MarketSentiment
}

// Build summarizes rows. Rows are expected in presentation order; the
// market context takes the first row carrying each value.
func Build(rows []core.Row, in Input) Digest {
	d := Digest{
		Metadata: Metadata{
			ReportType:  ReportType,
			GeneratedAt: in.GeneratedAt,
			TotalAssets: len(rows),
			Version:     ReportVersion,
		},
		Rows: rows,
	}

	var equities []core.Row
	for _, r := range rows {
		switch r.Category {
		case core.CategoryDomesticEquity:
			d.MarketContext.AssetCounts.BrazilStocks++
		case core.CategoryForeignEquity:
			d.MarketContext.AssetCounts.USStocks++
		case core.CategoryCommodity:
			d.MarketContext.AssetCounts.Commodities++
		case core.CategoryCrypto:
			d.MarketContext.AssetCounts.Crypto++
		}
		if r.Category.IsEquity() {
			equities = append(equities, r)
		}

		if !d.MarketContext.IbovYTD.Valid && r.IbovChangeYTD.Valid {
			d.MarketContext.IbovYTD = round(r.IbovChangeYTD, 2)
		}
		if !d.MarketContext.SP500YTD.Valid && r.SP500ChangeYTD.Valid {
			d.MarketContext.SP500YTD = round(r.SP500ChangeYTD, 2)
		}
		if !d.MarketContext.USDBRL.Valid && r.Category == core.CategoryCurrency {
			d.MarketContext.USDBRL = round(r.PriceBRL, 2)
		}
	}

	d.Signals = SummarizeSignals(equities)
	d.TopMovers = movers(equities)
	d.News = news(equities)

	res := scoring.Build(equities, in.Scoring)
	d.Insights = Insights{
		PotentialBuys:  append(rsiTickers(d.Signals.RSIOversold), d.Signals.Near52wLow...),
		PotentialSells: rsiTickers(d.Signals.RSIOverbought),
		Watchlist:      res.Watchlist,
		AvoidList:      res.AvoidList,
	}

	if len(in.Markets) > 0 {
		d.Predictions = predictions(in.Markets)
	}
	return d
}

// DisplayTicker drops the B3 suffix.
func DisplayTicker(ticker string) string {
	return strings.TrimSuffix(ticker, ".SA")
}

// SummarizeSignals buckets rows by raised signal. Callers pass equities.
func SummarizeSignals(rows []core.Row) SignalsSummary {
	s := SignalsSummary{
		BullishTickers: []string{},
		BearishTickers: []string{},
		RSIOversold:    []RSIReading{},
		RSIOverbought:  []RSIReading{},
		Near52wHigh:    []string{},
		Near52wLow:     []string{},
		VolumeSpike:    []string{},
	}
	for _, r := range rows {
		t := DisplayTicker(r.Ticker)
		switch r.Summary {
		case core.SummaryBullish:
			s.BullishTickers = append(s.BullishTickers, t)
		case core.SummaryBearish:
			s.BearishTickers = append(s.BearishTickers, t)
		}
		if r.RSIOversold {
			s.RSIOversold = append(s.RSIOversold, RSIReading{Ticker: t, RSI: round(r.RSI14, 1)})
		}
		if r.RSIOverbought {
			s.RSIOverbought = append(s.RSIOverbought, RSIReading{Ticker: t, RSI: round(r.RSI14, 1)})
		}
		if r.Near52wHigh {
			s.Near52wHigh = append(s.Near52wHigh, t)
		}
		if r.Near52wLow {
			s.Near52wLow = append(s.Near52wLow, t)
		}
		if r.VolumeSpike {
			s.VolumeSpike = append(s.VolumeSpike, t)
		}
		if r.GoldenCross {
			s.GoldenCrossCount++
		}
	}
	s.BullishCount = len(s.BullishTickers)
	s.BearishCount = len(s.BearishTickers)
	return s
}

func movers(rows []core.Row) TopMovers {
	var with1D []Mover
	for _, r := range rows {
		if !r.Change1D.Valid {
			continue
		}
		with1D = append(with1D, Mover{
			Ticker:   DisplayTicker(r.Ticker),
			Name:     r.Name,
			Change1D: round(r.Change1D, 2).Float64,
		})
	}

	gainers := append([]Mover(nil), with1D...)
	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].Change1D > gainers[j].Change1D })
	losers := append([]Mover(nil), with1D...)
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].Change1D < losers[j].Change1D })

	return TopMovers{
		Gainers: head(gainers, maxMovers),
		Losers:  head(losers, maxMovers),
	}
}

func news(rows []core.Row) NewsSummary {
	positive, negative := []Headline{}, []Headline{}
	for _, r := range rows {
		if !r.NewsSentimentLabel.Valid {
			continue
		}
		h := Headline{
			Ticker:   DisplayTicker(r.Ticker),
			Score:    round(r.NewsSentimentCombined, 3).Float64,
			Headline: headline(r),
		}
		switch r.NewsSentimentLabel.String {
		case sentiment.LabelPositive:
			positive = append(positive, h)
		case sentiment.LabelNegative:
			negative = append(negative, h)
		}
	}

	sort.SliceStable(positive, func(i, j int) bool { return positive[i].Score > positive[j].Score })
	sort.SliceStable(negative, func(i, j int) bool { return negative[i].Score < negative[j].Score })

	return NewsSummary{
		PositiveCount: len(positive),
		NegativeCount: len(negative),
		Positive:      head(positive, maxNews),
		Negative:      head(negative, maxNews),
	}
}

// headline prefers the Portuguese one.
func headline(r core.Row) string {
	h := r.NewsHeadlineEN.String
	if r.NewsHeadlinePT.Valid {
		h = r.NewsHeadlinePT.String
	}
	runes := []rune(h)
	if len(runes) > headlineLength {
		return string(runes[:headlineLength])
	}
	return h
}

func predictions(markets map[string][]polymarket.MarketSentiment) map[string]PredictionGroup {
	out := make(map[string]PredictionGroup, len(markets))
	for key, ms := range markets {
		agg := polymarket.AggregateMarkets(ms)
		g := PredictionGroup{
			Score:          agg.Score,
			Label:          agg.Label,
			Confidence:     agg.Confidence,
			MarketCount:    agg.MarketCount,
			TotalVolume24h: agg.TotalVolume,
			TopMarkets:     []MarketRef{},
		}
		for _, m := range head(ms, maxTopMarkets) {
			g.TopMarkets = append(g.TopMarkets, MarketRef{
				Question:    m.Question,
				Probability: m.YesProbability,
				Volume24h:   m.Volume24h,
			})
		}
		out[key] = g
	}
	return out
}

func rsiTickers(readings []RSIReading) []string {
	out := make([]string, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.Ticker)
	}
	return out
}

func head[T any](s []T, n int) []T {
	if s == nil {
		return []T{}
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

func round(v null.Float, places int32) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(decimal.NewFromFloat(v.Float64).Round(places).InexactFloat64())
}
