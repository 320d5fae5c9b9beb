package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/newthinker/radar/internal/core"
	"go.uber.org/zap"
)

const snapshotRoot = "snapshots"

// Snapshot is the archived output of one fetch cycle.
type Snapshot struct {
	RunID     string     `json:"run_id"`
	Date      string     `json:"date"`
	CreatedAt time.Time  `json:"created_at"`
	FXRate    float64    `json:"fx_rate"`
	Rows      []core.Row `json:"rows"`
}

// Archiver writes and reads cycle snapshots on a Storage backend.
type Archiver struct {
	store  Storage
	logger *zap.Logger
}

// NewArchiver creates an archiver.
func NewArchiver(store Storage, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, logger: logger}
}

// SnapshotPath is snapshots/<date>/<run-id>.json.
func SnapshotPath(date, runID string) string {
	return path.Join(snapshotRoot, date, runID+".json")
}

// Save stores snap and returns its path.
func (a *Archiver) Save(ctx context.Context, snap Snapshot) (string, error) {
	if snap.RunID == "" || snap.Date == "" {
		return "", fmt.Errorf("snapshot needs a run id and a date")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	p := SnapshotPath(snap.Date, snap.RunID)
	if err := a.store.Write(ctx, p, data); err != nil {
		return "", core.WrapError(core.ErrPersistence, err)
	}

	a.logger.Info("snapshot archived",
		zap.String("path", p),
		zap.Int("rows", len(snap.Rows)),
	)
	return p, nil
}

// Load reads the snapshot at p.
func (a *Archiver) Load(ctx context.Context, p string) (Snapshot, error) {
	ok, err := a.store.Exists(ctx, p)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return Snapshot{}, core.WrapError(core.ErrNoData, fmt.Errorf("snapshot %s", p))
	}

	data, err := a.store.Read(ctx, p)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", p, err)
	}
	return snap, nil
}

// Runs lists the snapshot paths of one date.
func (a *Archiver) Runs(ctx context.Context, date string) ([]string, error) {
	return a.store.List(ctx, path.Join(snapshotRoot, date))
}

// Prune deletes snapshots dated before cutoff and returns how many went.
func (a *Archiver) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	paths, err := a.store.List(ctx, snapshotRoot)
	if err != nil {
		return 0, err
	}

	limit := core.DateKey(cutoff)
	removed := 0
	for _, p := range paths {
		date := snapshotDate(p)
		if date == "" || date >= limit {
			continue
		}
		if err := a.store.Delete(ctx, p); err != nil {
			return removed, fmt.Errorf("deleting %s: %w", p, err)
		}
		removed++
	}

	if removed > 0 {
		a.logger.Info("pruned snapshots", zap.Int("removed", removed), zap.String("before", limit))
	}
	return removed, nil
}

func snapshotDate(p string) string {
	parts := strings.Split(p, "/")
	if len(parts) != 3 || parts[0] != snapshotRoot {
		return ""
	}
	return parts[1]
}
