package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/types"
)

// ProgressBus carries per-variant render progress across processes. The render
// callback handler publishes here; the aggregator and SSE forwarder subscribe.
type ProgressBus interface {
	Publish(ctx context.Context, ev types.ProgressEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev types.ProgressEvent)) error
	Close() error
}

type progressBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewProgressBus(log *logger.Logger) (ProgressBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_PROGRESS_CHANNEL"))
	if ch == "" {
		ch = "render_progress"
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

	return &progressBus{
		log:     log.With("service", "RedisProgressBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *progressBus) Publish(ctx context.Context, ev types.ProgressEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("progress bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *progressBus) StartForwarder(ctx context.Context, onEvent func(ev types.ProgressEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("progress bus not initialized")
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
				var ev types.ProgressEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis progress payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *progressBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
