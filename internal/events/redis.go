package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/courseloom/courseloom-backend/internal/observability"
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
)

type redisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects to REDIS_ADDR and publishes every event onto a
// single channel (REDIS_EVENT_CHANNEL, default "courseloom.events") with the
// topic inside the payload.
func NewRedisPublisher(log *logger.Logger) (Publisher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_EVENT_CHANNEL"))
	if ch == "" {
		ch = "courseloom.events"
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

	return &redisPublisher{
		log:     log.With("service", "RedisEventPublisher"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

// FromEnv builds the redis publisher when REDIS_ADDR is set and falls back
// to the noop publisher otherwise, so milestone publication never blocks the
// write paths on missing infrastructure.
func FromEnv(log *logger.Logger) Publisher {
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) == "" {
		if log != nil {
			log.Info("REDIS_ADDR unset, domain events disabled")
		}
		return NewNoopPublisher()
	}
	pub, err := NewRedisPublisher(log)
	if err != nil {
		if log != nil {
			log.Warn("redis event publisher unavailable, dropping events", "error", err)
		}
		return NewNoopPublisher()
	}
	return pub
}

func (p *redisPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis event publisher not initialized")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.rdb.Publish(ctx, p.channel, raw).Err()
	if m := observability.Current(); m != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.IncEventPublished(ev.Topic, status)
	}
	return err
}

func (p *redisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
