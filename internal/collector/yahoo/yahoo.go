package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/collector"
	"github.com/newthinker/radar/internal/core"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0"

	summaryModules = "summaryDetail,defaultKeyStatistics,financialData,recommendationTrend"
)

// Defaults for retry and pacing.
const (
	DefaultMaxRetries  = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = 250 * time.Millisecond
	DefaultMinInterval = 500 * time.Millisecond
	DefaultTimeout     = 15 * time.Second
)

// Yahoo is a Yahoo Finance chart and quoteSummary client. One instance is
// meant to be shared; its throttle paces every caller.
type Yahoo struct {
	client     *http.Client
	baseURL    string
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxJitter  time.Duration
	throttle   *throttle
	sleep      sleepFunc
	logger     *zap.Logger
	metrics    collector.Metrics
}

// Option configures a Yahoo client.
type Option func(*Yahoo)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(y *Yahoo) { y.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(y *Yahoo) { y.client = c }
}

// WithRetry sets the retry cap and backoff parameters.
func WithRetry(maxRetries int, baseDelay, maxJitter time.Duration) Option {
	return func(y *Yahoo) {
		y.maxRetries = maxRetries
		y.baseDelay = baseDelay
		y.maxJitter = maxJitter
	}
}

// WithMinInterval sets the minimum spacing between requests.
func WithMinInterval(d time.Duration) Option {
	return func(y *Yahoo) { y.throttle = newThrottle(d) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(y *Yahoo) {
		if l != nil {
			y.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m collector.Metrics) Option {
	return func(y *Yahoo) {
		if m != nil {
			y.metrics = m
		}
	}
}

func withSleep(fn sleepFunc) Option {
	return func(y *Yahoo) { y.sleep = fn }
}

// New creates a Yahoo client.
func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client:     &http.Client{Timeout: DefaultTimeout},
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxJitter:  DefaultMaxJitter,
		throttle:   newThrottle(DefaultMinInterval),
		sleep:      sleepContext,
		logger:     zap.NewNop(),
		metrics:    collector.NopMetrics{},
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the collector name.
func (y *Yahoo) Name() string {
	return "yahoo"
}

// History fetches daily (or weekly/monthly) bars for ticker.
func (y *Yahoo) History(ctx context.Context, ticker string, r collector.Range, i collector.Interval) ([]core.OHLCV, error) {
	if err := collector.ValidateRequest(ticker, r, i); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("range", string(r))
	q.Set("interval", string(i))
	q.Set("events", "history")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	body, err := y.get(ctx, "chart", u)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", ticker, err)
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, core.WrapError(core.ErrPermanentFetch, fmt.Errorf("decoding %s chart: %w", ticker, err))
	}
	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrPermanentFetch,
			fmt.Errorf("yahoo error for %s: %s", ticker, result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.WrapError(core.ErrPermanentFetch, fmt.Errorf("no data for %s", ticker))
	}

	return result.Chart.Result[0].bars(), nil
}

// Fundamentals fetches the quoteSummary modules and flattens them.
func (y *Yahoo) Fundamentals(ctx context.Context, ticker string) (core.Fundamentals, error) {
	if ticker == "" {
		return core.Fundamentals{}, core.WrapError(core.ErrPermanentFetch, fmt.Errorf("ticker cannot be empty"))
	}

	q := url.Values{}
	q.Set("modules", summaryModules)
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", y.baseURL, url.PathEscape(ticker), q.Encode())

	body, err := y.get(ctx, "quoteSummary", u)
	if err != nil {
		return core.Fundamentals{}, fmt.Errorf("fundamentals %s: %w", ticker, err)
	}

	var result summaryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return core.Fundamentals{}, core.WrapError(core.ErrPermanentFetch,
			fmt.Errorf("decoding %s summary: %w", ticker, err))
	}
	if len(result.QuoteSummary.Result) == 0 {
		return core.Fundamentals{}, nil
	}

	return result.QuoteSummary.Result[0].fundamentals(), nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

func (r chartResult) bars() []core.OHLCV {
	if len(r.Indicators.Quote) == 0 {
		return []core.OHLCV{}
	}
	q := r.Indicators.Quote[0]

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		c := at(q.Close, i)
		if !c.Valid {
			continue
		}
		data = append(data, core.OHLCV{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  c.Float64,
			Volume: at(q.Volume, i),
		})
	}
	return data
}

func at(values []*float64, i int) null.Float {
	if i >= len(values) {
		return null.Float{}
	}
	return null.FloatFromPtr(values[i])
}

type summaryResponse struct {
	QuoteSummary struct {
		Result []modules `json:"result"`
	} `json:"quoteSummary"`
}

// modules holds quoteSummary groups keyed by module then field. Values keep
// the provider's {"raw": ..., "fmt": ...} wrapping until read.
type modules map[string]map[string]json.RawMessage

// number is the single accessor for numeric fields. It accepts the wrapped
// form or a bare number and reports anything else as absent.
func (m modules) number(module, key string) null.Float {
	raw, ok := m[module][key]
	if !ok {
		return null.Float{}
	}
	var wrapped struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Raw != nil {
		return null.FloatFrom(*wrapped.Raw)
	}
	var bare float64
	if err := json.Unmarshal(raw, &bare); err == nil {
		return null.FloatFrom(bare)
	}
	return null.Float{}
}

// percent reads a field that may be a fraction and scales it to percent.
func (m modules) percent(module, key string) null.Float {
	v := m.number(module, key)
	if v.Valid && v.Float64 < 1 {
		v.Float64 *= 100
	}
	return v
}

func (m modules) text(module, key string) null.String {
	raw, ok := m[module][key]
	if !ok {
		return null.String{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return null.StringFrom(s)
	}
	return null.String{}
}

func (m modules) fundamentals() core.Fundamentals {
	const (
		summary    = "summaryDetail"
		stats      = "defaultKeyStatistics"
		financials = "financialData"
	)
	return core.Fundamentals{
		MarketCap:     m.number(summary, "marketCap"),
		PE:            m.number(summary, "trailingPE"),
		ForwardPE:     m.number(stats, "forwardPE"),
		PB:            m.number(summary, "priceToBook"),
		DividendYield: m.percent(summary, "dividendYield"),
		EPS:           m.number(stats, "trailingEps"),
		Beta:          m.number(stats, "beta"),
		Week52High:    m.number(summary, "fiftyTwoWeekHigh"),
		Week52Low:     m.number(summary, "fiftyTwoWeekLow"),
		ProfitMargin:  m.percent(financials, "profitMargins"),
		ROE:           m.percent(financials, "returnOnEquity"),
		DebtToEquity:  m.number(financials, "debtToEquity"),
		AnalystRating: m.text(financials, "recommendationKey"),
		TargetPrice:   m.number(financials, "targetMeanPrice"),
		NumAnalysts:   m.number(financials, "numberOfAnalystOpinions"),
	}
}
