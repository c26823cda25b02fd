package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (s *memStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.n, s.err
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRunSweepsImmediatelyAndStopsOnCancel(t *testing.T) {
	store := &memStore{n: 2}
	w := NewWorker(store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never swept")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestRunTicksRepeatedly(t *testing.T) {
	store := &memStore{}
	w := NewWorker(store, 15*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	if store.callCount() < 2 {
		t.Fatalf("sweeps = %d, want at least the initial sweep plus one tick", store.callCount())
	}
}

func TestNewWorkerDefaultInterval(t *testing.T) {
	w := NewWorker(&memStore{}, 0)
	if w.interval != time.Hour {
		t.Errorf("interval = %s, want 1h", w.interval)
	}
}
