package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/radar/internal/core"
)

type rowKey struct {
	ticker string
	date   string
}

// MemoryStore is an in-memory row store.
type MemoryStore struct {
	rows map[rowKey]core.Row
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[rowKey]core.Row)}
}

// Upsert stores the row, replacing any row for the same ticker and date.
func (m *MemoryStore) Upsert(ctx context.Context, row core.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row.Ticker == "" || row.Date.IsZero() {
		return core.WrapError(core.ErrPersistence, fmt.Errorf("row needs a ticker and a date"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows[rowKey{row.Ticker, row.DateKey()}] = row
	return nil
}

// Get retrieves one row.
func (m *MemoryStore) Get(ctx context.Context, ticker string, date time.Time) (core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[rowKey{ticker, core.DateKey(date)}]
	if !ok {
		return core.Row{}, core.ErrNoData
	}
	return row, nil
}

// Latest returns the newest row per ticker, ordered by sector and ticker.
func (m *MemoryStore) Latest(ctx context.Context) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]core.Row)
	for k, row := range m.rows {
		if cur, ok := latest[k.ticker]; !ok || k.date > cur.DateKey() {
			latest[k.ticker] = row
		}
	}

	result := make([]core.Row, 0, len(latest))
	for _, row := range latest {
		result = append(result, row)
	}
	SortBySector(result)
	return result, nil
}

// ByDate returns the rows of one date, ordered by sector and ticker.
func (m *MemoryStore) ByDate(ctx context.Context, date time.Time) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := core.DateKey(date)
	result := []core.Row{}
	for k, row := range m.rows {
		if k.date == key {
			result = append(result, row)
		}
	}
	SortBySector(result)
	return result, nil
}

// List returns rows matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Row
	for _, row := range m.rows {
		if filter.matches(row) {
			result = append(result, row)
		}
	}
	sortNewestFirst(result)
	return filter.page(result), nil
}

// Count returns the count of matching rows.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, row := range m.rows {
		if filter.matches(row) {
			count++
		}
	}
	return count, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
