// Package scoring ranks equities into an algorithmic watchlist and an avoid
// list from their computed rows.
package scoring

import (
	"math"
	"sort"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/core"
)

// Reason and risk tags
const (
	TagRSIExtremeOversold   = "rsi_extreme_oversold"
	TagRSIOversold          = "rsi_oversold"
	TagRSIExtremeOverbought = "rsi_extreme_overbought"
	TagRSIOverbought        = "rsi_overbought"
	TagBullishTrend         = "bullish_trend"
	TagBearishTrend         = "bearish_trend"
	TagGoldenCross          = "golden_cross"
	TagAboveMA50            = "above_ma50"
	TagAboveMA200           = "above_ma200"
	TagNear52wLow           = "near_52w_low"
	TagNear52wHigh          = "near_52w_high"
	TagVolumeSpike          = "volume_spike"
	TagNewsPositiveStrong   = "news_positive_strong"
	TagNewsPositive         = "news_positive"
	TagNewsNegativeStrong   = "news_negative_strong"
	TagNewsNegative         = "news_negative"
	TagYTDStrong            = "ytd_strong"
	TagYTDWeak              = "ytd_weak"
)

// Defaults
const (
	DefaultMinScore   = 3.0
	DefaultAvoidScore = -2.0
	DefaultMaxItems   = 12
)

// Options control partitioning and truncation.
type Options struct {
	MinScore   float64 `mapstructure:"min_score"`
	AvoidScore float64 `mapstructure:"avoid_score"`
	MaxItems   int     `mapstructure:"max_items"`
}

// DefaultOptions returns the standard cut-offs.
func DefaultOptions() Options {
	return Options{
		MinScore:   DefaultMinScore,
		AvoidScore: DefaultAvoidScore,
		MaxItems:   DefaultMaxItems,
	}
}

// Entry is one scored instrument.
type Entry struct {
	Ticker        string             `json:"ticker"`
	Name          string             `json:"name"`
	Score         float64            `json:"score"`
	RSI14         null.Float         `json:"rsi_14"`
	ChangeYTD     null.Float         `json:"var_ytd"`
	NewsSentiment null.Float         `json:"news_sentiment"`
	SignalSummary core.SignalSummary `json:"signal_summary"`
	Reasons       []string           `json:"reasons"`
	RiskFlags     []string           `json:"risk_flags"`
}

// Result holds both ranked lists.
type Result struct {
	Watchlist []Entry `json:"watchlist"`
	AvoidList []Entry `json:"avoid_list"`
}

// Score applies every rule to one row.
func Score(r core.Row) Entry {
	e := Entry{
		Ticker:        r.Ticker,
		Name:          r.Name,
		RSI14:         r.RSI14,
		ChangeYTD:     r.ChangeYTD,
		NewsSentiment: r.NewsSentimentCombined,
		SignalSummary: r.Summary,
		Reasons:       []string{},
		RiskFlags:     []string{},
	}

	var score float64
	add := func(points float64, tag string) {
		score += points
		if points > 0 {
			e.Reasons = append(e.Reasons, tag)
		} else {
			e.RiskFlags = append(e.RiskFlags, tag)
		}
	}

	if r.RSI14.Valid {
		switch rsi := r.RSI14.Float64; {
		case rsi < 25:
			add(3, TagRSIExtremeOversold)
		case rsi < 30:
			add(2, TagRSIOversold)
		case rsi > 80:
			add(-3, TagRSIExtremeOverbought)
		case rsi > 70:
			add(-2, TagRSIOverbought)
		}
	}

	switch r.Summary {
	case core.SummaryBullish:
		add(2, TagBullishTrend)
	case core.SummaryBearish:
		add(-2, TagBearishTrend)
	}

	if r.GoldenCross {
		add(1, TagGoldenCross)
	}
	if r.AboveMA50.Valid && r.AboveMA50.Bool {
		add(0.5, TagAboveMA50)
	}
	if r.AboveMA200.Valid && r.AboveMA200.Bool {
		add(0.5, TagAboveMA200)
	}
	if r.Near52wLow {
		add(1, TagNear52wLow)
	}
	if r.Near52wHigh {
		add(-1, TagNear52wHigh)
	}
	if r.VolumeSpike {
		add(0.5, TagVolumeSpike)
	}

	if news := r.NewsSentimentCombined; news.Valid {
		switch s := news.Float64; {
		case s >= 0.4:
			add(2, TagNewsPositiveStrong)
		case s >= 0.2:
			add(1, TagNewsPositive)
		case s <= -0.4:
			add(-2, TagNewsNegativeStrong)
		case s <= -0.2:
			add(-1, TagNewsNegative)
		}
	}

	if ytd := r.ChangeYTD; ytd.Valid {
		switch {
		case ytd.Float64 >= 20:
			add(1, TagYTDStrong)
		case ytd.Float64 <= -20:
			add(-1, TagYTDWeak)
		}
	}

	e.Score = math.Round(score*100) / 100
	return e
}

// Build scores every equity row and partitions the results. Rows of other
// categories are ignored.
func Build(rows []core.Row, opts Options) Result {
	res := Result{Watchlist: []Entry{}, AvoidList: []Entry{}}

	for _, r := range rows {
		if !r.Category.IsEquity() {
			continue
		}
		e := Score(r)
		switch {
		case e.Score >= opts.MinScore:
			res.Watchlist = append(res.Watchlist, e)
		case e.Score <= opts.AvoidScore:
			res.AvoidList = append(res.AvoidList, e)
		}
	}

	sort.SliceStable(res.Watchlist, func(i, j int) bool {
		a, b := res.Watchlist[i], res.Watchlist[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.RSI14.Float64 < b.RSI14.Float64
	})
	sort.SliceStable(res.AvoidList, func(i, j int) bool {
		return res.AvoidList[i].Score < res.AvoidList[j].Score
	})

	if opts.MaxItems > 0 {
		res.Watchlist = truncate(res.Watchlist, opts.MaxItems)
		res.AvoidList = truncate(res.AvoidList, opts.MaxItems)
	}
	return res
}

func truncate(entries []Entry, n int) []Entry {
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}
