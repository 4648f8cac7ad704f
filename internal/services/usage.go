package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/repos"
	"github.com/gramlytics/gramlytics-backend/internal/types"
	"github.com/gramlytics/gramlytics-backend/internal/utils"
)

// QuotaStatus reports provider call budget consumption for the current
// rolling window.
type QuotaStatus struct {
	Limit       int64     `json:"limit"`
	Used        int64     `json:"used"`
	Remaining   int64     `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// UsageTracker accounts every provider call attempt against an hourly
// budget. Recording must never fail a provider call, so persistence errors
// are logged and swallowed; the in-memory counter is the enforcement source.
type UsageTracker interface {
	Record(ctx context.Context, endpoint string, statusCode int, latency time.Duration)
	CheckBudget(ctx context.Context) error
	QuotaStatus(ctx context.Context) (QuotaStatus, error)
	Prune(ctx context.Context) (int64, error)
}

type usageTracker struct {
	log    *logger.Logger
	repo   repos.UsageLogRepo
	limit  int64
	window time.Duration

	mu          sync.Mutex
	windowStart time.Time
	used        atomic.Int64

	nowFn func() time.Time
}

// NewUsageTracker reads PROVIDER_HOURLY_QUOTA (default 1000). The window is
// fixed at one hour and resets when it elapses.
func NewUsageTracker(repo repos.UsageLogRepo, baseLog *logger.Logger) UsageTracker {
	limit := utils.GetEnvAsInt("PROVIDER_HOURLY_QUOTA", 1000, baseLog)
	t := &usageTracker{
		log:    baseLog.With("service", "UsageTracker"),
		repo:   repo,
		limit:  int64(limit),
		window: time.Hour,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	t.windowStart = t.nowFn()
	return t
}

// rollWindow resets the counter when the current window has elapsed,
// charges consume calls inside the same critical section so a racing
// Record can never land in the wrong window, and returns the active
// window start.
func (t *usageTracker) rollWindow(consume int64) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowFn()
	if now.Sub(t.windowStart) >= t.window {
		t.windowStart = now
		t.used.Store(0)
	}
	if consume > 0 {
		t.used.Add(consume)
	}
	return t.windowStart
}

func (t *usageTracker) Record(ctx context.Context, endpoint string, statusCode int, latency time.Duration) {
	t.rollWindow(1)

	rec := &types.APIUsageLog{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		LatencyMs:  latency.Milliseconds(),
		CalledAt:   t.nowFn(),
	}
	if err := t.repo.Insert(ctx, nil, rec); err != nil {
		t.log.Warn("usage log insert failed", "endpoint", endpoint, "error", err)
	}
}

func (t *usageTracker) CheckBudget(ctx context.Context) error {
	t.rollWindow(0)
	if t.used.Load() >= t.limit {
		return apperrors.ErrQuotaExhausted
	}
	return nil
}

func (t *usageTracker) QuotaStatus(ctx context.Context) (QuotaStatus, error) {
	start := t.rollWindow(0)

	used, err := t.repo.CountSince(ctx, nil, start)
	if err != nil {
		// The in-memory counter is a serviceable fallback when the store
		// is unreachable.
		t.log.Warn("usage count query failed, using in-memory counter", "error", err)
		used = t.used.Load()
	}

	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{
		Limit:       t.limit,
		Used:        used,
		Remaining:   remaining,
		WindowStart: start,
		WindowEnd:   start.Add(t.window),
	}, nil
}

// Prune drops usage rows older than two windows; they no longer affect any
// quota decision.
func (t *usageTracker) Prune(ctx context.Context) (int64, error) {
	cutoff := t.nowFn().Add(-2 * t.window)
	return t.repo.PruneBefore(ctx, nil, cutoff)
}
