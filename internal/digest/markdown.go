package digest

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.md.tmpl").Funcs(template.FuncMap{
	"signed1": func(v float64) string { return fmt.Sprintf("%+.1f%%", v) },
	"signed2": func(v float64) string { return fmt.Sprintf("%+.2f%%", v) },
	"short":   func(s string) string { return cut(s, 20) },
	"join":    func(s []string) string { return strings.Join(s, ", ") },
}).ParseFS(templateFS, "templates/report.md.tmpl"))

const (
	reportMovers    = 5
	reportTickers   = 15
	reportWatchlist = 8
	reportReasons   = 4
)

type reportEntry struct {
	Ticker  string
	Name    string
	Score   float64
	Reasons []string
}

type reportView struct {
	GeneratedAt     string
	GeneratedAtFull string
	Total           int
	Counts          Counts
	Context         MarketContext
	Gainers         []Mover
	Losers          []Mover
	Bullish         []string
	BullishCount    int
	Bearish         []string
	BearishCount    int
	Watchlist       []reportEntry
}

// Markdown renders the human-readable report.
func Markdown(d Digest) (string, error) {
	v := reportView{
		GeneratedAt:     d.Metadata.GeneratedAt.Format("2006-01-02 15:04"),
		GeneratedAtFull: d.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"),
		Total:           d.Metadata.TotalAssets,
		Counts:          d.MarketContext.AssetCounts,
		Context:         d.MarketContext,
		Gainers:         head(d.TopMovers.Gainers, reportMovers),
		Losers:          head(d.TopMovers.Losers, reportMovers),
		Bullish:         head(d.Signals.BullishTickers, reportTickers),
		BullishCount:    d.Signals.BullishCount,
		Bearish:         head(d.Signals.BearishTickers, reportTickers),
		BearishCount:    d.Signals.BearishCount,
	}
	for _, e := range head(d.Insights.Watchlist, reportWatchlist) {
		v.Watchlist = append(v.Watchlist, reportEntry{
			Ticker:  DisplayTicker(e.Ticker),
			Name:    e.Name,
			Score:   e.Score,
			Reasons: head(e.Reasons, reportReasons),
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
