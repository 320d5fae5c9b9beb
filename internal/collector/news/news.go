// Package news reads Google News RSS search feeds and scores the headlines
// per instrument.
package news

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/collector"
	"github.com/newthinker/radar/internal/core"
	"github.com/newthinker/radar/internal/sentiment"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://news.google.com/rss/search"
	defaultSource   = "Google News"
	defaultTimeout  = 15 * time.Second
	maxHeadlineLen  = 500
	ptWeight        = 0.6
	enWeight        = 0.4
	DefaultMaxItems = 10
)

// Edition selects the feed language and region.
type Edition struct {
	HL   string
	GL   string
	CEID string
}

var (
	English    = Edition{HL: "en", GL: "US", CEID: "US:en"}
	Portuguese = Edition{HL: "pt-BR", GL: "BR", CEID: "BR:pt-419"}
)

// Client fetches RSS search results.
type Client struct {
	client   *http.Client
	baseURL  string
	maxItems int
	analyzer *sentiment.Analyzer
	logger   *zap.Logger
	metrics  collector.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another feed endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.client = h }
}

// WithMaxItems caps the articles read per feed.
func WithMaxItems(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxItems = n
		}
	}
}

// WithAnalyzer replaces the headline scorer.
func WithAnalyzer(a *sentiment.Analyzer) Option {
	return func(c *Client) {
		if a != nil {
			c.analyzer = a
		}
	}
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

// New creates a news client.
func New(opts ...Option) *Client {
	c := &Client{
		client:   &http.Client{Timeout: defaultTimeout},
		baseURL:  defaultBaseURL,
		maxItems: DefaultMaxItems,
		analyzer: sentiment.NewAnalyzer(sentiment.DefaultLexicon()),
		logger:   zap.NewNop(),
		metrics:  collector.NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collector name.
func (c *Client) Name() string {
	return "google_news"
}

// English searches the US edition for "<ticker> stock".
func (c *Client) English(ctx context.Context, ticker string) ([]sentiment.Item, error) {
	return c.Search(ctx, ticker+" stock", English)
}

// Portuguese searches the Brazilian edition by company name or bare ticker.
func (c *Client) Portuguese(ctx context.Context, name, ticker string) ([]sentiment.Item, error) {
	q := fmt.Sprintf("%s OR %s ações bolsa", name, strings.TrimSuffix(ticker, ".SA"))
	return c.Search(ctx, q, Portuguese)
}

// Search returns up to maxItems articles for query.
func (c *Client) Search(ctx context.Context, query string, ed Edition) ([]sentiment.Item, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", ed.HL)
	params.Set("gl", ed.GL)
	params.Set("ceid", ed.CEID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordFetch("news", "error")
		return nil, core.WrapError(core.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordFetch("news", "rejected")
		return nil, core.WrapError(core.ErrPermanentFetch, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordFetch("news", "error")
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	items, err := parseFeed(body, c.maxItems)
	if err != nil {
		c.metrics.RecordFetch("news", "error")
		return nil, core.WrapError(core.ErrPermanentFetch, err)
	}
	c.metrics.RecordFetch("news", "ok")
	return items, nil
}

func parseFeed(body []byte, max int) ([]sentiment.Item, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	nodes := xmlquery.Find(doc, "//item")
	if len(nodes) > max {
		nodes = nodes[:max]
	}

	items := make([]sentiment.Item, 0, len(nodes))
	for _, n := range nodes {
		title := childText(n, "title")
		desc := childText(n, "description")
		text := title
		if desc != "" {
			text = title + ". " + desc
		}
		source := childText(n, "source")
		if source == "" {
			source = defaultSource
		}
		items = append(items, sentiment.Item{Title: title, Text: text, Source: source})
	}
	return items, nil
}

func childText(n *xmlquery.Node, name string) string {
	if child := n.SelectElement(name); child != nil {
		return child.InnerText()
	}
	return ""
}

// Sentiment scores English coverage for every equity and Portuguese coverage
// for Brazilian ones. Feed failures leave the language empty.
func (c *Client) Sentiment(ctx context.Context, inst core.Instrument) core.NewsSentiment {
	var out core.NewsSentiment

	en, err := c.English(ctx, inst.Ticker)
	if err != nil {
		c.logger.Warn("english news unavailable", zap.String("ticker", inst.Ticker), zap.Error(err))
	}
	if len(en) > 0 {
		out.NewsCountEN = len(en)
		score, headline := c.analyzer.Analyze(en)
		out.NewsSentimentEN = score
		out.NewsHeadlineEN = truncate(headline)
	}

	if inst.Brazilian() {
		pt, err := c.Portuguese(ctx, inst.Name, inst.Ticker)
		if err != nil {
			c.logger.Warn("portuguese news unavailable", zap.String("ticker", inst.Ticker), zap.Error(err))
		}
		if len(pt) > 0 {
			out.NewsCountPT = len(pt)
			score, headline := c.analyzer.Analyze(pt)
			out.NewsSentimentPT = score
			out.NewsHeadlinePT = truncate(headline)
		}
	}

	out.NewsSentimentCombined = Combine(out.NewsSentimentPT, out.NewsSentimentEN)
	out.NewsSentimentLabel = sentiment.Label(out.NewsSentimentCombined)
	return out
}

// Combine weights Portuguese coverage 0.6 and English 0.4, or returns
// whichever side exists.
func Combine(pt, en null.Float) null.Float {
	switch {
	case pt.Valid && en.Valid:
		return null.FloatFrom(pt.Float64*ptWeight + en.Float64*enWeight)
	case pt.Valid:
		return pt
	default:
		return en
	}
}

func truncate(s null.String) null.String {
	if !s.Valid || utf8.RuneCountInString(s.String) <= maxHeadlineLen {
		return s
	}
	return null.StringFrom(string([]rune(s.String)[:maxHeadlineLen]))
}
