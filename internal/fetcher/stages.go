package fetcher

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/collector/polymarket"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/indicator"
	"github.com/newthinker/radar/internal/signal"
)

// periodChanges are a benchmark's percentage moves.
type periodChanges struct {
	D1, W1, M1, YTD null.Float
}

// Benchmarks holds the index moves shared by every row of a cycle.
type Benchmarks struct {
	Ibov  periodChanges
	SP500 periodChanges
}

// day truncates t to its UTC calendar date.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// priceAt returns the last close dated on or before target.
func priceAt(bars []core.OHLCV, target time.Time) null.Float {
	var p null.Float
	for _, b := range bars {
		if day(b.Time).After(target) {
			break
		}
		p = null.FloatFrom(b.Close)
	}
	return p
}

// changePct is null unless the reference price is positive.
func changePct(current float64, prev null.Float) null.Float {
	if !prev.Valid || prev.Float64 <= 0 {
		return null.Float{}
	}
	return null.FloatFrom((current - prev.Float64) / prev.Float64 * 100)
}

// periodMoves computes the benchmark moves relative to the series' own last
// date.
func periodMoves(bars []core.OHLCV) periodChanges {
	if len(bars) == 0 {
		return periodChanges{}
	}
	last := bars[len(bars)-1]
	today := day(last.Time)
	return periodChanges{
		D1:  changePct(last.Close, priceAt(bars, today.AddDate(0, 0, -1))),
		W1:  changePct(last.Close, priceAt(bars, today.AddDate(0, 0, -7))),
		M1:  changePct(last.Close, priceAt(bars, today.AddDate(0, 0, -30))),
		YTD: changePct(last.Close, priceAt(bars, yearStart(today))),
	}
}

func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// buildBase starts a row from the instrument and its latest bar.
func buildBase(inst core.Instrument, bars []core.OHLCV, runID string, fetchedAt time.Time) core.Row {
	latest := bars[len(bars)-1]
	return core.Row{
		Ticker:    inst.Ticker,
		Name:      inst.Name,
		Sector:    inst.Sector,
		Category:  inst.Category,
		Unit:      inst.Unit,
		Date:      day(latest.Time),
		Open:      latest.Open,
		High:      latest.High,
		Low:       latest.Low,
		Close:     null.FloatFrom(latest.Close),
		Volume:    latest.Volume,
		FetchedAt: fetchedAt,
		RunID:     runID,
	}
}

func withFundamentals(row core.Row, f core.Fundamentals) core.Row {
	row.Fundamentals = f
	if f.Week52High.Valid && f.Week52High.Float64 > 0 {
		high := f.Week52High.Float64
		row.PctFrom52wHigh = null.FloatFrom((row.Close.Float64 - high) / high * 100)
	}
	return row
}

func withTechnicals(row core.Row, bars []core.OHLCV) core.Row {
	row.Technicals = indicator.Compute(bars)
	return row
}

// withChanges fills reference prices and the moves against them. Reference
// dates count back from the row date.
func withChanges(row core.Row, bars []core.OHLCV) core.Row {
	today := row.Date
	current := row.Close.Float64

	row.Price1D = priceAt(bars, today.AddDate(0, 0, -1))
	row.Price1W = priceAt(bars, today.AddDate(0, 0, -7))
	row.Price1M = priceAt(bars, today.AddDate(0, 0, -30))
	row.PriceYTD = priceAt(bars, yearStart(today))
	row.Price5Y = priceAt(bars, today.AddDate(0, 0, -5*365))
	row.PriceAll = null.FloatFrom(bars[0].Close)

	row.Change1D = changePct(current, row.Price1D)
	row.Change1W = changePct(current, row.Price1W)
	row.Change1M = changePct(current, row.Price1M)
	row.ChangeYTD = changePct(current, row.PriceYTD)
	row.Change5Y = changePct(current, row.Price5Y)
	row.ChangeAll = changePct(current, row.PriceAll)
	return row
}

// withBenchmarks copies the index moves and derives the relative deltas.
// There is no weekly delta.
func withBenchmarks(row core.Row, b Benchmarks) core.Row {
	row.IbovChange1D = b.Ibov.D1
	row.IbovChange1W = b.Ibov.W1
	row.IbovChange1M = b.Ibov.M1
	row.IbovChangeYTD = b.Ibov.YTD
	row.SP500Change1D = b.SP500.D1
	row.SP500Change1W = b.SP500.W1
	row.SP500Change1M = b.SP500.M1
	row.SP500ChangeYTD = b.SP500.YTD

	row.VsIbov1D = delta(row.Change1D, b.Ibov.D1)
	row.VsIbov1M = delta(row.Change1M, b.Ibov.M1)
	row.VsIbovYTD = delta(row.ChangeYTD, b.Ibov.YTD)
	row.VsSP5001D = delta(row.Change1D, b.SP500.D1)
	row.VsSP5001M = delta(row.Change1M, b.SP500.M1)
	row.VsSP500YTD = delta(row.ChangeYTD, b.SP500.YTD)
	return row
}

func delta(change, bench null.Float) null.Float {
	if !change.Valid || !bench.Valid {
		return null.Float{}
	}
	return null.FloatFrom(change.Float64 - bench.Float64)
}

// withPrices converts the close into both currencies.
func withPrices(row core.Row, fx float64) core.Row {
	c := row.Close.Float64
	if row.Category.QuotedInBRL() {
		row.PriceBRL = null.FloatFrom(c)
		row.PriceUSD = null.FloatFrom(c / fx)
	} else {
		row.PriceUSD = null.FloatFrom(c)
		row.PriceBRL = null.FloatFrom(c * fx)
	}
	return row
}

func withNews(row core.Row, news core.NewsSentiment) core.Row {
	row.NewsSentiment = news
	return row
}

// withPrediction attaches the aggregate of the keyword group named after the
// ticker, when one matched any market.
func withPrediction(row core.Row, aggs map[string]polymarket.Aggregate) core.Row {
	agg, ok := aggs[row.Ticker]
	if !ok || agg.MarketCount == 0 {
		return row
	}
	row.PredictionSentiment = agg.Prediction()
	return row
}

func withSignals(row core.Row, d *signal.Detector) core.Row {
	return d.Apply(row)
}
