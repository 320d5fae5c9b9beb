package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/newthinker/radar/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArchiver(t *testing.T) *Archiver {
	t.Helper()
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return NewArchiver(fs, nil)
}

func TestArchiver_SaveLoad(t *testing.T) {
	a := newArchiver(t)
	ctx := context.Background()

	snap := Snapshot{
		RunID:     "3f1c",
		Date:      "2024-03-04",
		CreatedAt: time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC),
		FXRate:    4.97,
		Rows: []core.Row{{
			Ticker: "PETR4.SA",
			Date:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Close:  null.FloatFrom(38.2),
		}},
	}

	p, err := a.Save(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/2024-03-04/3f1c.json", p)

	got, err := a.Load(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "3f1c", got.RunID)
	assert.Equal(t, 4.97, got.FXRate)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, 38.2, got.Rows[0].Close.Float64)

	runs, err := a.Runs(ctx, "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, []string{p}, runs)
}

func TestArchiver_LoadMissing(t *testing.T) {
	_, err := newArchiver(t).Load(context.Background(), SnapshotPath("2024-03-04", "nope"))
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestArchiver_SaveRequiresKey(t *testing.T) {
	_, err := newArchiver(t).Save(context.Background(), Snapshot{Date: "2024-03-04"})
	assert.Error(t, err)
}

func TestArchiver_Prune(t *testing.T) {
	a := newArchiver(t)
	ctx := context.Background()

	for _, d := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
		_, err := a.Save(ctx, Snapshot{RunID: "r", Date: d})
		require.NoError(t, err)
	}

	removed, err := a.Prune(ctx, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	runs, err := a.Runs(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	runs, err = a.Runs(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, runs)
}
