package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMaxStreamLen = 100_000

// Redis publishes to Redis streams via XADD with approximate trimming.
type Redis struct {
	client *redis.Client
	maxLen int64
	logger *slog.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// MaxStreamLen caps stream length (XADD MAXLEN ~). Default 100k.
	MaxStreamLen int64
}

func NewRedis(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxLen := cfg.MaxStreamLen
	if maxLen <= 0 {
		maxLen = defaultMaxStreamLen
	}
	return &Redis{
		client: client,
		maxLen: maxLen,
		logger: logger.With("component", "stream"),
	}, nil
}

func (r *Redis) PublishJSON(ctx context.Context, stream string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return observePublish(stream, err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": string(data)},
	}).Err()
	if err != nil {
		return observePublish(stream, fmt.Errorf("xadd %s: %w", stream, err))
	}
	return observePublish(stream, nil)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
