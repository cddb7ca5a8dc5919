package session

import (
	"context"
	"time"

	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/pkg/logger"
)

// Sweeper periodically evicts expired sessions from a Store.
type Sweeper struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	log      *logger.Logger
}

// NewSweeper builds a sweeper for store. Sessions older than ttl are removed
// every interval.
func NewSweeper(store *Store, ttl, interval time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("session-sweeper")
	}
	return &Sweeper{store: store, ttl: ttl, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("ttl", w.ttl.String()).
		WithField("interval", w.interval.String()).
		Info("session sweeper started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			removed := w.store.SweepExpired(w.ttl)
			metrics.SetActiveSessions(w.store.Len())
			if removed > 0 {
				w.log.WithField("removed", removed).
					WithField("remaining", w.store.Len()).
					Info("expired sessions swept")
			}
		}
	}
}
