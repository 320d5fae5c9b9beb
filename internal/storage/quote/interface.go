// Package quote persists computed rows keyed by ticker and date.
package quote

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/radar/internal/core"
)

// Store defines the interface for row persistence.
type Store interface {
	// Upsert inserts the row or replaces the one with the same ticker and date.
	Upsert(ctx context.Context, row core.Row) error

	// Get retrieves one row.
	Get(ctx context.Context, ticker string, date time.Time) (core.Row, error)

	// Latest returns the most recent row of every ticker.
	Latest(ctx context.Context) ([]core.Row, error)

	// ByDate returns every row dated date.
	ByDate(ctx context.Context, date time.Time) ([]core.Row, error)

	// List retrieves rows matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]core.Row, error)

	// Count returns the number of rows matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// Close releases the store.
	Close() error
}

// ListFilter defines criteria for listing rows. From and To are inclusive
// dates.
type ListFilter struct {
	Ticker   string
	Category core.Category
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

func (f ListFilter) matches(r core.Row) bool {
	if f.Ticker != "" && r.Ticker != f.Ticker {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	key := r.DateKey()
	if !f.From.IsZero() && key < core.DateKey(f.From) {
		return false
	}
	if !f.To.IsZero() && key > core.DateKey(f.To) {
		return false
	}
	return true
}

func (f ListFilter) page(rows []core.Row) []core.Row {
	if f.Offset >= len(rows) {
		return []core.Row{}
	}
	if f.Offset > 0 {
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(rows) {
		rows = rows[:f.Limit]
	}
	return rows
}

// SortBySector orders rows by sector, then ticker.
func SortBySector(rows []core.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Sector != rows[j].Sector {
			return rows[i].Sector < rows[j].Sector
		}
		return rows[i].Ticker < rows[j].Ticker
	})
}

func sortNewestFirst(rows []core.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].DateKey(), rows[j].DateKey()
		if a != b {
			return a > b
		}
		return rows[i].Ticker < rows[j].Ticker
	})
}
