// Package cleanup removes long-expired sessions so the sessions table does
// not grow without bound. Revocation semantics never depend on this sweep;
// expired rows are inert either way.
package cleanup

import (
	"context"
	"log"
	"time"
)

// Store deletes sessions whose expiry is before the cutoff.
type Store interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Worker periodically sweeps expired sessions.
type Worker struct {
	store    Store
	interval time.Duration
}

func NewWorker(store Store, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{store: store, interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("session cleanup: worker started, interval %s", w.interval)
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("session cleanup: worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	deleted, err := w.store.DeleteExpiredBefore(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("session cleanup: sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("session cleanup: removed %d expired sessions", deleted)
	}
}
