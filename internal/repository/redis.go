package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	deliveredKeyPrefix = "certificate:delivered:"
	claimKeyPrefix     = "certificate:claim:"
)

// RedisDedupStore keeps the delivered flags in Redis. Claims use SETNX so two
// workers can never deliver the same certificate concurrently.
type RedisDedupStore struct {
	client   *redis.Client
	claimTTL time.Duration
}

func NewRedisDedupStore(client *redis.Client, claimTTL time.Duration) *RedisDedupStore {
	if claimTTL <= 0 {
		claimTTL = 5 * time.Minute
	}
	return &RedisDedupStore{
		client:   client,
		claimTTL: claimTTL,
	}
}

func (r *RedisDedupStore) Close() error {
	return r.client.Close()
}

// IsDelivered reports whether key was already delivered.
func (r *RedisDedupStore) IsDelivered(ctx context.Context, key string) (bool, error) {
	_, err := r.client.Get(ctx, deliveredKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Claim marks key as in flight unless another worker already holds it.
func (r *RedisDedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = r.claimTTL
	}
	return r.client.SetNX(ctx, claimKeyPrefix+key, "1", ttl).Result()
}

// Release drops an in-flight claim without marking delivery.
func (r *RedisDedupStore) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, claimKeyPrefix+key).Err()
}

// MarkDelivered sets the delivered flag and drops the claim atomically.
func (r *RedisDedupStore) MarkDelivered(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, deliveredKeyPrefix+key, "1", 0)
		pipe.Del(ctx, claimKeyPrefix+key)
		return nil
	})
	return err
}
