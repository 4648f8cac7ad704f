package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gramlytics/gramlytics-backend/internal/logger"
)

// RunEvent announces a collection run state change to interested consumers
// (other backend replicas, dashboards).
type RunEvent struct {
	RunID    string    `json:"run_id"`
	Target   string    `json:"target"`
	Status   string    `json:"status"`
	Inserted int64     `json:"inserted"`
	Updated  int64     `json:"updated"`
	At       time.Time `json:"at"`
}

type RunBus interface {
	Publish(ctx context.Context, evt RunEvent) error
	StartForwarder(ctx context.Context, onEvent func(evt RunEvent)) error
	Close() error
}

type runBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRunBus connects to REDIS_ADDR and publishes run events on
// RUN_EVENTS_CHANNEL (default "collection_runs").
func NewRunBus(log *logger.Logger) (RunBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("RUN_EVENTS_CHANNEL"))
	if ch == "" {
		ch = "collection_runs"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &runBus{
		log:     log.With("service", "RedisRunBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *runBus) Publish(ctx context.Context, evt RunEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis run bus not initialized")
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *runBus) StartForwarder(ctx context.Context, onEvent func(evt RunEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis run bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var evt RunEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					b.log.Warn("bad redis run event payload", "error", err)
					continue
				}
				onEvent(evt)
			}
		}
	}()

	return nil
}

func (b *runBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
