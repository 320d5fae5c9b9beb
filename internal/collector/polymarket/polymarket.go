// Package polymarket reads open prediction markets from the Gamma API and
// turns their prices into per-asset sentiment.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/collector"
	"github.com/newthinker/radar/internal/core"
	"go.uber.org/zap"
)

const (
	defaultBaseURL     = "https://gamma-api.polymarket.com"
	defaultTimeout     = 15 * time.Second
	defaultPerCategory = 50
	defaultTopN        = 5
)

// Market is the subset of a Gamma market the sentiment reading needs.
type Market struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Description   string     `json:"description"`
	Outcomes      string     `json:"outcomes"`
	OutcomePrices string     `json:"outcomePrices"`
	Volume24hr    null.Float `json:"volume24hr"`
	VolumeNum     null.Float `json:"volumeNum"`
}

// Query selects open markets ordered by 24h volume.
type Query struct {
	Limit    int
	Category string
}

// Client is a Gamma API client.
type Client struct {
	client      *http.Client
	baseURL     string
	keywords    Keywords
	categories  []string
	perCategory int
	topN        int
	logger      *zap.Logger
	metrics     collector.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

// WithKeywords replaces the matching table.
func WithKeywords(k Keywords) Option {
	return func(c *Client) { c.keywords = k }
}

// WithCategories replaces the queried categories.
func WithCategories(cats []string) Option {
	return func(c *Client) { c.categories = cats }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m collector.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a Gamma client.
func New(opts ...Option) *Client {
	c := &Client{
		client:      &http.Client{Timeout: defaultTimeout},
		baseURL:     defaultBaseURL,
		keywords:    DefaultKeywords(),
		categories:  DefaultCategories(),
		perCategory: defaultPerCategory,
		topN:        defaultTopN,
		logger:      zap.NewNop(),
		metrics:     collector.NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collector name.
func (c *Client) Name() string {
	return "polymarket"
}

// Keywords returns the matching table in use.
func (c *Client) Keywords() Keywords {
	return c.keywords
}

// FetchMarkets lists active, open markets.
func (c *Client) FetchMarkets(ctx context.Context, q Query) ([]Market, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume24hr")
	params.Set("ascending", "false")
	if q.Category != "" {
		params.Set("category", q.Category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/markets?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordFetch("polymarket", "error")
		return nil, core.WrapError(core.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordFetch("polymarket", "rejected")
		return nil, core.WrapError(core.ErrPermanentFetch, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordFetch("polymarket", "error")
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		c.metrics.RecordFetch("polymarket", "error")
		return nil, core.WrapError(core.ErrPermanentFetch, fmt.Errorf("decoding markets: %w", err))
	}
	c.metrics.RecordFetch("polymarket", "ok")
	return markets, nil
}

// FetchSentiment reads the top markets of each category plus the unfiltered
// top list, matches them to keyword groups and keeps the highest-volume
// markets per group. Failed requests are logged and skipped.
func (c *Client) FetchSentiment(ctx context.Context) map[string][]MarketSentiment {
	queries := make([]Query, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		queries = append(queries, Query{Limit: c.perCategory, Category: cat})
	}
	queries = append(queries, Query{Limit: c.perCategory})

	var all []Market
	for _, q := range queries {
		markets, err := c.FetchMarkets(ctx, q)
		if err != nil {
			c.logger.Warn("polymarket fetch failed", zap.String("category", q.Category), zap.Error(err))
			continue
		}
		all = append(all, markets...)
	}

	seen := make(map[string]bool, len(all))
	groups := make(map[string][]MarketSentiment)
	for _, m := range all {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		keys := c.keywords.Match(m.Question, m.Description)
		if len(keys) == 0 {
			continue
		}
		ms, err := SentimentFromMarket(m)
		if err != nil {
			c.logger.Debug("unreadable market prices", zap.String("market", m.ID), zap.Error(err))
		}
		for _, k := range keys {
			groups[k] = append(groups[k], ms)
		}
	}

	for k, ms := range groups {
		sort.SliceStable(ms, func(i, j int) bool {
			return ms[i].Volume24h.Float64 > ms[j].Volume24h.Float64
		})
		if len(ms) > c.topN {
			ms = ms[:c.topN]
		}
		groups[k] = ms
	}
	return groups
}

// Sentiment aggregates every matched group.
func (c *Client) Sentiment(ctx context.Context) map[string]Aggregate {
	groups := c.FetchSentiment(ctx)
	out := make(map[string]Aggregate, len(groups))
	for k, ms := range groups {
		out[k] = AggregateMarkets(ms)
	}
	return out
}
