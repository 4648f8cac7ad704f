package services

import (
	"context"
	"strings"
	"sync"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

// CollectorPool runs collection runs on a bounded set of workers. A target
// already queued or running is not enqueued twice.
type CollectorPool interface {
	// Enqueue schedules a run for target. Returns false when the queue is
	// full or the target is already in flight.
	Enqueue(target string) bool
	// InFlight reports whether a run for target is queued or running.
	InFlight(target string) bool
	Start(ctx context.Context)
	Stop()
}

type collectorPool struct {
	log       *logger.Logger
	collector CollectorService
	workers   int

	mu       sync.Mutex
	inFlight map[string]bool
	queue    chan string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

// NewCollectorPool reads COLLECTOR_WORKERS (default 2) and
// COLLECTOR_QUEUE_SIZE (default 64).
func NewCollectorPool(collector CollectorService, baseLog *logger.Logger) CollectorPool {
	workers := utils.GetEnvAsInt("COLLECTOR_WORKERS", 2, baseLog)
	if workers < 1 {
		workers = 1
	}
	queueSize := utils.GetEnvAsInt("COLLECTOR_QUEUE_SIZE", 64, baseLog)
	if queueSize < 1 {
		queueSize = 1
	}
	return &collectorPool{
		log:       baseLog.With("service", "CollectorPool"),
		collector: collector,
		workers:   workers,
		inFlight:  map[string]bool{},
		queue:     make(chan string, queueSize),
	}
}

func (p *collectorPool) Enqueue(target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return false
	}

	p.mu.Lock()
	if p.inFlight[target] {
		p.mu.Unlock()
		return false
	}
	p.inFlight[target] = true
	p.mu.Unlock()

	select {
	case p.queue <- target:
		return true
	default:
		p.mu.Lock()
		delete(p.inFlight, target)
		p.mu.Unlock()
		return false
	}
}

func (p *collectorPool) InFlight(target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[target]
}

func (p *collectorPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info("collector pool started", "workers", p.workers)
}

func (p *collectorPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case target, ok := <-p.queue:
			if !ok {
				return
			}
			if _, err := p.collector.Collect(ctx, target); err != nil {
				log.Warn("collection run failed", "target", target, "error", err)
			}
			p.mu.Lock()
			delete(p.inFlight, target)
			p.mu.Unlock()
		}
	}
}

func (p *collectorPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.log.Info("collector pool stopped")
}
