package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "worldgate/pkg/logx"
)

const redisKeyPrefix = "worldgate:"

type redisStore struct {
	client *redis.Client
	log    logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &redisStore{client: client, log: log}, nil
}

func (s *redisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *redisStore) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	if s == nil || s.client == nil {
		return 0, false, ErrDisabled
	}
	if key == "" {
		return 0, false, nil
	}
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *redisStore) SetInt64(ctx context.Context, key string, v int64) error {
	if s == nil || s.client == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	return s.client.Set(ctx, redisKeyPrefix+key, strconv.FormatInt(v, 10), 0).Err()
}
