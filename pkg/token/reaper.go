package token

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const defaultReapInterval = 10 * time.Minute

// Reaper periodically deletes expired token files so the TokenStore
// directory does not accumulate one stale file per departed user.
type Reaper struct {
	store    *TokenStore
	interval time.Duration
}

// NewReaper returns a Reaper over store, sweeping every interval. A
// non-positive interval falls back to defaultReapInterval.
func NewReaper(store *TokenStore, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = defaultReapInterval
	}

	return &Reaper{store: store, interval: interval}
}

// Run blocks, sweeping on every tick until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep deletes every on-disk token file whose expiry has passed. A
// per-user lock held by a concurrent Save/LoadOrCreate simply defers
// that user's reap to the next tick.
func (r *Reaper) sweep() {
	entries, err := os.ReadDir(r.store.dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || isLockFile(entry.Name()) {
			continue
		}

		user := entry.Name()

		tok, err := r.store.readFile(user)
		if err != nil {
			continue
		}

		if tok.Expired() {
			_ = r.store.Delete(user)
		}
	}
}

func isLockFile(name string) bool {
	return len(name) > 0 && name[0] == '.' && filepath.Ext(name) == ".lock"
}
