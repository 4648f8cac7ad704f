package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
)

// blockingCollector parks every run until released so tests can observe
// in-flight state deterministically.
type blockingCollector struct {
	mu      sync.Mutex
	started chan string
	release chan struct{}
	targets []string
}

func (b *blockingCollector) Collect(ctx context.Context, username string) (*RunSummary, error) {
	b.mu.Lock()
	b.targets = append(b.targets, username)
	b.mu.Unlock()
	b.started <- username
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return &RunSummary{Target: username}, nil
}

func (b *blockingCollector) CollectionStatus(ctx context.Context, username string) (*RunSummary, error) {
	return nil, nil
}

func TestCollectorPool_DedupesInFlightTargets(t *testing.T) {
	t.Setenv("COLLECTOR_WORKERS", "1")
	t.Setenv("COLLECTOR_QUEUE_SIZE", "4")

	collector := &blockingCollector{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	pool := NewCollectorPool(collector, logger.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	if !pool.Enqueue("ACME") {
		t.Fatalf("first enqueue rejected")
	}

	// Wait until the worker picked it up, then the same target must be
	// rejected while running.
	select {
	case <-collector.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never started the run")
	}
	if pool.Enqueue("acme") {
		t.Fatalf("duplicate target accepted while in flight")
	}
	if !pool.InFlight("acme") {
		t.Fatalf("InFlight = false for running target")
	}

	close(collector.release)

	// Once released the target eventually frees up for a new run.
	deadline := time.After(2 * time.Second)
	for pool.InFlight("acme") {
		select {
		case <-deadline:
			t.Fatalf("target never left the in-flight set")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !pool.Enqueue("acme") {
		t.Fatalf("re-enqueue after completion rejected")
	}
}

func TestCollectorPool_RejectsEmptyTarget(t *testing.T) {
	pool := NewCollectorPool(&blockingCollector{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}, logger.NewNop())
	if pool.Enqueue("  ") {
		t.Fatalf("blank target accepted")
	}
}
