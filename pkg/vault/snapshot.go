package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/linkvault/pkg/logger"
)

// Snapshotter copies the vault to timestamped .bak files on a cron
// schedule. Snapshots are plain file copies with bounded retention, not
// a durability guarantee.
type Snapshotter struct {
	store    *Store
	schedule string
	keep     int
}

// NewSnapshotter validates the cron expression and returns a snapshotter
// that retains the keep most recent snapshots (minimum 1).
func NewSnapshotter(store *Store, schedule string, keep int) (*Snapshotter, error) {
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		return nil, fmt.Errorf("invalid snapshot schedule %q", schedule)
	}
	if keep < 1 {
		keep = 1
	}
	return &Snapshotter{store: store, schedule: schedule, keep: keep}, nil
}

// Run ticks the schedule until ctx is canceled.
func (sn *Snapshotter) Run(ctx context.Context) {
	for {
		next, err := gronx.NextTick(sn.schedule, false)
		if err != nil {
			logger.ErrorCF("vault", "Snapshot schedule error", map[string]any{
				"schedule": sn.schedule,
				"error":    err.Error(),
			})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		path, err := sn.Snapshot()
		if err != nil {
			logger.ErrorCF("vault", "Snapshot failed", map[string]any{"error": err.Error()})
			continue
		}
		logger.InfoCF("vault", "Snapshot written", map[string]any{"path": path})
	}
}

// Snapshot writes one snapshot now and prunes old ones. It serializes
// the current in-memory mapping rather than copying file bytes, so a
// snapshot taken mid-insert still sees a consistent store.
func (sn *Snapshotter) Snapshot() (string, error) {
	sn.store.mu.RLock()
	data, err := json.MarshalIndent(sn.store.entries, "", "  ")
	sn.store.mu.RUnlock()
	if err != nil {
		return "", err
	}

	dst := fmt.Sprintf("%s.%s.bak", sn.store.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return "", err
	}

	if err := sn.prune(); err != nil {
		logger.WarnCF("vault", "Snapshot prune failed", map[string]any{"error": err.Error()})
	}
	return dst, nil
}

// prune removes the oldest snapshots beyond the retention count.
// Timestamped names sort lexically in age order.
func (sn *Snapshotter) prune() error {
	matches, err := filepath.Glob(sn.store.path + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) <= sn.keep {
		return nil
	}

	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-sn.keep] {
		if err := os.Remove(stale); err != nil {
			return err
		}
	}
	return nil
}
