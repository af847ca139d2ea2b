package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/store"
)

// Checkpointer writes the store to sqlite after every change.
type Checkpointer struct {
	db      *sql.DB
	st      *store.Store
	log     zerolog.Logger
	timeout time.Duration

	mu        sync.Mutex
	lastSaved uint64
	lastErr   error
}

// NewCheckpointer returns a checkpointer for st. Call Attach to start persisting.
func NewCheckpointer(db *sql.DB, st *store.Store, log zerolog.Logger) *Checkpointer {
	return &Checkpointer{db: db, st: st, log: log, timeout: 5 * time.Second}
}

// Attach subscribes to store changes. The returned func detaches.
func (c *Checkpointer) Attach() func() {
	return c.st.Subscribe(func(ch store.Change) {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.Save(ctx); err != nil {
			c.log.Error().Err(err).Str("action", string(ch.Action)).Uint64("version", ch.Version).Msg("checkpoint failed")
		}
	})
}

// Save persists the current snapshot unless it is already on disk.
// Concurrent changes may coalesce into one write.
func (c *Checkpointer) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.st.Snapshot()
	if snap.Version != 0 && snap.Version <= c.lastSaved {
		return nil
	}
	if err := SaveSnapshot(ctx, c.db, snap); err != nil {
		c.lastErr = err
		return err
	}
	c.lastSaved = snap.Version
	c.lastErr = nil
	c.log.Debug().Uint64("version", snap.Version).Int("leads", len(snap.Leads)).Msg("checkpoint saved")
	return nil
}

// Load restores the persisted snapshot into the store. It reports whether one existed.
func (c *Checkpointer) Load(ctx context.Context) (bool, error) {
	snap, found, err := LoadSnapshot(ctx, c.db)
	if err != nil || !found {
		return false, err
	}
	if err := c.st.Restore(snap); err != nil {
		return false, err
	}
	c.mu.Lock()
	c.lastSaved = c.st.Version()
	c.mu.Unlock()
	return true, nil
}

// LastError returns the error from the most recent failed save, if the next one has not succeeded.
func (c *Checkpointer) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
