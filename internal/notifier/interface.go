package notifier

import (
	"context"
	"time"

	"github.com/newthinker/radar/internal/scoring"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Summary is what subscribers receive after a cycle.
type Summary struct {
	RunID     string          `json:"run_id"`
	Date      string          `json:"date"`
	Intended  int             `json:"intended"`
	Saved     int             `json:"saved"`
	Errors    int             `json:"errors"`
	FXRate    float64         `json:"fx_rate"`
	Duration  time.Duration   `json:"duration"`
	Headline  string          `json:"headline,omitempty"`
	Watchlist []scoring.Entry `json:"watchlist"`
	AvoidList []scoring.Entry `json:"avoid_list"`
	Report    string          `json:"report,omitempty"` // markdown file name
}

// Notifier pushes cycle summaries to one channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Notify delivers one summary
	Notify(ctx context.Context, s Summary) error
}

// Tickers lists the tickers of entries, at most n.
func Tickers(entries []scoring.Entry, n int) []string {
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]string, 0, n)
	for _, e := range entries[:n] {
		out = append(out, e.Ticker)
	}
	return out
}
