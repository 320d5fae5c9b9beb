package quote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/radar/internal/core"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists rows in a SQLite database. The row itself is stored
// as JSON next to the columns used for lookups.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, fmt.Errorf("open sqlite: %w", err))
	}
	// a single writer avoids SQLITE_BUSY from the worker pool
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrPersistence, fmt.Errorf("set WAL mode: %w", err))
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrPersistence, fmt.Errorf("migrate: %w", err))
	}

	logger.Info("sqlite store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			ticker     TEXT NOT NULL,
			quote_date TEXT NOT NULL,
			category   TEXT NOT NULL,
			sector     TEXT,
			run_id     TEXT,
			fetched_at INTEGER,
			payload    TEXT NOT NULL,
			PRIMARY KEY (ticker, quote_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_date ON quotes(quote_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Upsert inserts the row or replaces the stored one for the same key.
func (s *SQLiteStore) Upsert(ctx context.Context, row core.Row) error {
	if row.Ticker == "" || row.Date.IsZero() {
		return core.WrapError(core.ErrPersistence, fmt.Errorf("row needs a ticker and a date"))
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return core.WrapError(core.ErrPersistence, fmt.Errorf("encode %s: %w", row.Ticker, err))
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO quotes
		(ticker, quote_date, category, sector, run_id, fetched_at, payload)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(ticker, quote_date) DO UPDATE SET
			category = excluded.category,
			sector = excluded.sector,
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at,
			payload = excluded.payload`,
		row.Ticker, row.DateKey(), string(row.Category), row.Sector, row.RunID,
		row.FetchedAt.Unix(), string(payload),
	)
	if err != nil {
		return core.WrapError(core.ErrPersistence, fmt.Errorf("upsert %s: %w", row.Ticker, err))
	}
	return nil
}

// Get retrieves one row.
func (s *SQLiteStore) Get(ctx context.Context, ticker string, date time.Time) (core.Row, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM quotes WHERE ticker = ? AND quote_date = ?`,
		ticker, core.DateKey(date),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Row{}, core.ErrNoData
	}
	if err != nil {
		return core.Row{}, core.WrapError(core.ErrPersistence, err)
	}
	return decodeRow(payload)
}

// Latest returns the newest row per ticker, ordered by sector and ticker.
func (s *SQLiteStore) Latest(ctx context.Context) ([]core.Row, error) {
	rows, err := s.query(ctx, `SELECT payload FROM quotes q
		WHERE quote_date = (SELECT MAX(quote_date) FROM quotes WHERE ticker = q.ticker)`)
	if err != nil {
		return nil, err
	}
	SortBySector(rows)
	return rows, nil
}

// ByDate returns the rows of one date, ordered by sector and ticker.
func (s *SQLiteStore) ByDate(ctx context.Context, date time.Time) ([]core.Row, error) {
	rows, err := s.query(ctx, `SELECT payload FROM quotes WHERE quote_date = ?`, core.DateKey(date))
	if err != nil {
		return nil, err
	}
	SortBySector(rows)
	return rows, nil
}

// List returns rows matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]core.Row, error) {
	where, args := filterClause(filter)
	q := `SELECT payload FROM quotes` + where + ` ORDER BY quote_date DESC, ticker ASC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		q += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []core.Row{}
	}
	return rows, nil
}

// Count returns the number of rows matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes`+where, args...).Scan(&n); err != nil {
		return 0, core.WrapError(core.ErrPersistence, err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]core.Row, error) {
	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	defer rs.Close()

	result := []core.Row{}
	for rs.Next() {
		var payload string
		if err := rs.Scan(&payload); err != nil {
			return nil, core.WrapError(core.ErrPersistence, err)
		}
		row, err := decodeRow(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rs.Err(); err != nil {
		return nil, core.WrapError(core.ErrPersistence, err)
	}
	return result, nil
}

func filterClause(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Ticker != "" {
		conds = append(conds, "ticker = ?")
		args = append(args, f.Ticker)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.From.IsZero() {
		conds = append(conds, "quote_date >= ?")
		args = append(args, core.DateKey(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "quote_date <= ?")
		args = append(args, core.DateKey(f.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func decodeRow(payload string) (core.Row, error) {
	var row core.Row
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return core.Row{}, core.WrapError(core.ErrPersistence, fmt.Errorf("decode row: %w", err))
	}
	return row, nil
}
