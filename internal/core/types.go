package core

import (
	"time"

	"github.com/guregu/null/v6"
)

// Category classifies a tracked instrument
type Category string

const (
	CategoryDomesticEquity Category = "domestic_equity"
	CategoryForeignEquity  Category = "foreign_equity"
	CategoryCommodity      Category = "commodity"
	CategoryCrypto         Category = "crypto"
	CategoryCurrency       Category = "currency"
)

// IsEquity reports whether the category holds listed stocks.
func (c Category) IsEquity() bool {
	return c == CategoryDomesticEquity || c == CategoryForeignEquity
}

// QuotedInBRL reports whether closes for this category are already in reais.
func (c Category) QuotedInBRL() bool {
	return c == CategoryDomesticEquity || c == CategoryCurrency
}

// Instrument is a catalog entry
type Instrument struct {
	Ticker   string   `json:"ticker" yaml:"ticker"`
	Name     string   `json:"name" yaml:"name"`
	Sector   string   `json:"sector" yaml:"sector"`
	Category Category `json:"category" yaml:"category"`
	Unit     string   `json:"unit,omitempty" yaml:"unit"`
}

// Brazilian reports whether the instrument is listed on B3.
func (i Instrument) Brazilian() bool {
	return i.Category == CategoryDomesticEquity
}

// OHLCV is one daily bar. Close is always present; the client drops bars
// without one.
type OHLCV struct {
	Time   time.Time
	Open   null.Float
	High   null.Float
	Low    null.Float
	Close  float64
	Volume null.Float
}

// Fundamentals is a point-in-time snapshot. Invalid fields were not reported.
type Fundamentals struct {
	MarketCap     null.Float  `json:"market_cap"`
	PE            null.Float  `json:"pe_ratio"`
	ForwardPE     null.Float  `json:"forward_pe"`
	PB            null.Float  `json:"pb_ratio"`
	DividendYield null.Float  `json:"dividend_yield"`
	EPS           null.Float  `json:"eps"`
	Beta          null.Float  `json:"beta"`
	Week52High    null.Float  `json:"week_52_high"`
	Week52Low     null.Float  `json:"week_52_low"`
	ProfitMargin  null.Float  `json:"profit_margin"`
	ROE           null.Float  `json:"roe"`
	DebtToEquity  null.Float  `json:"debt_to_equity"`
	AnalystRating null.String `json:"analyst_rating"`
	TargetPrice   null.Float  `json:"target_price"`
	NumAnalysts   null.Float  `json:"num_analysts"`
}

// Technicals holds indicator values derived from a close series.
type Technicals struct {
	MA50          null.Float `json:"ma_50"`
	MA200         null.Float `json:"ma_200"`
	RSI14         null.Float `json:"rsi_14"`
	AboveMA50     null.Bool  `json:"above_ma_50"`
	AboveMA200    null.Bool  `json:"above_ma_200"`
	MA50Above200  null.Bool  `json:"ma_50_above_200"`
	Volatility30d null.Float `json:"volatility_30d"`
	AvgVolume20d  null.Float `json:"avg_volume_20d"`
	VolumeRatio   null.Float `json:"volume_ratio"`
}

// SignalSummary is the trend verdict derived from the signal flags
type SignalSummary string

const (
	SummaryBullish SignalSummary = "bullish"
	SummaryBearish SignalSummary = "bearish"
	SummaryNeutral SignalSummary = "neutral"
)

// Signals are the discrete flags classified from a row.
type Signals struct {
	RSIOversold   bool          `json:"signal_rsi_oversold"`
	RSIOverbought bool          `json:"signal_rsi_overbought"`
	Near52wHigh   bool          `json:"signal_near_52w_high"`
	Near52wLow    bool          `json:"signal_near_52w_low"`
	VolumeSpike   bool          `json:"signal_volume_spike"`
	GoldenCross   bool          `json:"signal_golden_cross"`
	DeathCross    bool          `json:"signal_death_cross"`
	BullishTrend  bool          `json:"signal_bullish_trend"`
	BearishTrend  bool          `json:"signal_bearish_trend"`
	PositiveNews  bool          `json:"signal_positive_news"`
	NegativeNews  bool          `json:"signal_negative_news"`
	Summary       SignalSummary `json:"signal_summary"`
}

// Labels returns upper-case tags for every raised flag, in a stable order.
func (s Signals) Labels() []string {
	var labels []string
	add := func(on bool, label string) {
		if on {
			labels = append(labels, label)
		}
	}
	add(s.RSIOversold, "RSI_OVERSOLD")
	add(s.RSIOverbought, "RSI_OVERBOUGHT")
	add(s.Near52wHigh, "NEAR_52W_HIGH")
	add(s.Near52wLow, "NEAR_52W_LOW")
	add(s.VolumeSpike, "VOLUME_SPIKE")
	add(s.GoldenCross, "GOLDEN_CROSS")
	add(s.DeathCross, "DEATH_CROSS")
	add(s.BullishTrend, "BULLISH_TREND")
	add(s.BearishTrend, "BEARISH_TREND")
	add(s.PositiveNews, "POSITIVE_NEWS")
	add(s.NegativeNews, "NEGATIVE_NEWS")
	return labels
}

// NewsSentiment is the per-instrument result of the headline passes.
type NewsSentiment struct {
	NewsSentimentPT       null.Float  `json:"news_sentiment_pt"`
	NewsSentimentEN       null.Float  `json:"news_sentiment_en"`
	NewsSentimentCombined null.Float  `json:"news_sentiment_combined"`
	NewsCountPT           int         `json:"news_count_pt"`
	NewsCountEN           int         `json:"news_count_en"`
	NewsHeadlinePT        null.String `json:"news_headline_pt"`
	NewsHeadlineEN        null.String `json:"news_headline_en"`
	NewsSentimentLabel    null.String `json:"news_sentiment_label"`
}

// PredictionSentiment summarizes prediction markets matched to an instrument.
type PredictionSentiment struct {
	PolymarketScore          null.Float  `json:"polymarket_score"`
	PolymarketLabel          null.String `json:"polymarket_label"`
	PolymarketConfidence     null.Float  `json:"polymarket_confidence"`
	PolymarketMarketCount    int         `json:"polymarket_market_count"`
	PolymarketVolume         null.Float  `json:"polymarket_volume"`
	PolymarketTopQuestion    null.String `json:"polymarket_top_question"`
	PolymarketTopProbability null.Float  `json:"polymarket_top_probability"`
}

// Row is the computed output for one instrument on one date. Stages build
// it by returning modified copies, never by sharing a pointer.
type Row struct {
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Sector   string    `json:"sector"`
	Category Category  `json:"category"`
	Unit     string    `json:"unit,omitempty"`
	Date     time.Time `json:"quote_date"`

	PriceBRL null.Float `json:"price_brl"`
	PriceUSD null.Float `json:"price_usd"`
	Open     null.Float `json:"open_price"`
	High     null.Float `json:"high_price"`
	Low      null.Float `json:"low_price"`
	Close    null.Float `json:"close_price"`
	Volume   null.Float `json:"volume"`

	Price1D   null.Float `json:"price_1d"`
	Price1W   null.Float `json:"price_1w"`
	Price1M   null.Float `json:"price_1m"`
	PriceYTD  null.Float `json:"price_ytd"`
	Price5Y   null.Float `json:"price_5y"`
	PriceAll  null.Float `json:"price_all"`
	Change1D  null.Float `json:"var_1d"`
	Change1W  null.Float `json:"var_1w"`
	Change1M  null.Float `json:"var_1m"`
	ChangeYTD null.Float `json:"var_ytd"`
	Change5Y  null.Float `json:"var_5y"`
	ChangeAll null.Float `json:"var_all"`

	Fundamentals
	PctFrom52wHigh null.Float `json:"pct_from_52w_high"`

	Technicals

	IbovChange1D   null.Float `json:"ibov_var_1d"`
	IbovChange1W   null.Float `json:"ibov_var_1w"`
	IbovChange1M   null.Float `json:"ibov_var_1m"`
	IbovChangeYTD  null.Float `json:"ibov_var_ytd"`
	SP500Change1D  null.Float `json:"sp500_var_1d"`
	SP500Change1W  null.Float `json:"sp500_var_1w"`
	SP500Change1M  null.Float `json:"sp500_var_1m"`
	SP500ChangeYTD null.Float `json:"sp500_var_ytd"`
	VsIbov1D       null.Float `json:"vs_ibov_1d"`
	VsIbov1M       null.Float `json:"vs_ibov_1m"`
	VsIbovYTD      null.Float `json:"vs_ibov_ytd"`
	VsSP5001D      null.Float `json:"vs_sp500_1d"`
	VsSP5001M      null.Float `json:"vs_sp500_1m"`
	VsSP500YTD     null.Float `json:"vs_sp500_ytd"`

	Signals
	NewsSentiment
	PredictionSentiment

	FetchedAt time.Time `json:"fetched_at"`
	RunID     string    `json:"run_id,omitempty"`
}

// DateKey formats the row date the way stores key it.
func (r Row) DateKey() string {
	return DateKey(r.Date)
}

// DateKey formats t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
