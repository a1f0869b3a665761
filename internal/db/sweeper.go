package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/storage"
	"go.uber.org/zap"
)

// ObjectStore is the part of the audio store the sweeper needs.
type ObjectStore interface {
	List(ctx context.Context) ([]storage.Object, error)
	Stat(ctx context.Context, ref string) (storage.Object, error)
	Delete(ctx context.Context, ref string) error
}

// StartOrphanSweeper removes stored audio that no sample references, every
// interval, until ctx is done. Objects younger than grace are left alone so
// a payload written just before its row is inserted is never collected.
// A non-positive interval disables the sweeper.
func StartOrphanSweeper(
	ctx context.Context,
	db *sql.DB,
	store ObjectStore,
	interval time.Duration,
	grace time.Duration,
	log *zap.Logger,
) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := SweepOrphans(ctx, db, store, grace, time.Now())
				if err != nil {
					log.Error("failed to sweep orphaned audio", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("swept orphaned audio", zap.Int("removed", removed))
				}
			}
		}
	}()
}

// SweepOrphans performs one sweep and returns how many objects it deleted.
func SweepOrphans(ctx context.Context, db *sql.DB, store ObjectStore, grace time.Duration, now time.Time) (int, error) {
	objects, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stored audio: %w", err)
	}

	cutoff := now.Add(-grace)
	removed := 0
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}
		var referenced bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM audio_samples WHERE filename = $1)`,
			obj.Ref,
		).Scan(&referenced)
		if err != nil {
			return removed, fmt.Errorf("check reference %s: %w", obj.Ref, err)
		}
		if referenced {
			continue
		}
		// Identical content maps to the same name, so the object may have
		// been rewritten since it was listed.
		cur, err := store.Stat(ctx, obj.Ref)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("stat %s: %w", obj.Ref, err)
		}
		if cur.ModTime.After(cutoff) {
			continue
		}
		if err := store.Delete(ctx, obj.Ref); err != nil {
			return removed, fmt.Errorf("delete %s: %w", obj.Ref, err)
		}
		removed++
	}
	return removed, nil
}
