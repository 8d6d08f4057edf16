package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/h"
	"github.com/kestrel-labs/tenancy-go/log"
)

func NewRedisClient(url string) (*redis.Client, error) {
	cfg, err := h.ParseUrl(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	db := 0
	if cfg.Path != "" {
		value := strings.TrimPrefix(cfg.Path, "/")
		if parsed, err := strconv.Atoi(value); err == nil {
			db = parsed
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       db,
	})
	_, err = client.Ping(context.Background()).Result()
	return client, err
}

// ------------------------------------------------------------------------------------------------------------------
// REDIS PROVISIONING LOCK
// ------------------------------------------------------------------------------------------------------------------

// RedisProvisioningLock serializes schema provisioning across process
// instances with a best-effort SETNX lease.
type RedisProvisioningLock struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisProvisioningLock(client *redis.Client) f.ProvisioningLock {
	return &RedisProvisioningLock{
		client: client,
		ttl:    30 * time.Second,
		retry:  100 * time.Millisecond,
	}
}

func (l *RedisProvisioningLock) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "tenancy:provision:" + key
	token := h.RandomString(16)
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Provisioning(err, "failed to acquire provisioning lock %s", key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Provisioning(ctx.Err(), "interrupted while waiting for provisioning lock %s", key)
		case <-time.After(l.retry):
		}
	}
	return func() {
		// Only delete the lease if it is still ours.
		current, err := l.client.Get(context.Background(), lockKey).Result()
		if err == nil && current == token {
			if err := l.client.Del(context.Background(), lockKey).Err(); err != nil {
				log.Warn("failed to release provisioning lock %s: %v", key, err)
			}
		}
	}, nil
}
