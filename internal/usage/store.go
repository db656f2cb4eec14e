// Package usage tracks the per-device free-tier counter.
//
// The counter is the only shared mutable state in the whole service, and
// it's hit concurrently by duplicate submissions and retried clicks from
// the same device. Increment therefore has to be a single atomic
// server-side operation — Redis INCR — rather than a read-modify-write,
// which would lose updates under concurrency.
//
// Callers treat the store as best-effort: a read failure means "assume 0
// and log", a write failure means "log and move on". Losing a usage count
// is cheaper than losing a completed result, so tracking fails open and
// nothing else does.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store is the per-device usage counter contract.
type Store interface {
	// GetOrCreate returns the current count for a device, creating the
	// record at 0 if it doesn't exist yet. An error here means the count
	// is unknown — callers log it and proceed as if the count were 0.
	GetOrCreate(ctx context.Context, deviceID string) (int64, error)

	// Increment durably adds exactly 1 to the device's count. Safe under
	// concurrent increments for the same device.
	Increment(ctx context.Context, deviceID string) error
}

// keyFor namespaces device counters in the shared Redis keyspace.
func keyFor(deviceID string) string {
	return "usage:" + deviceID
}

// RedisStore keeps counters in Redis. INCR gives us the atomic increment
// for free — no transaction, no compare-and-swap loop.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured Redis client. We take the
// client as a parameter instead of dialing internally so tests can point
// it at miniredis and main.go controls the connection settings.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetOrCreate reads the device's counter, creating it at 0 on first sight.
func (s *RedisStore) GetOrCreate(ctx context.Context, deviceID string) (int64, error) {
	key := keyFor(deviceID)

	count, err := s.client.Get(ctx, key).Int64()
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("reading usage for %s: %w", deviceID, err)
	}

	// First request from this device: materialize the record at 0.
	// SETNX so a concurrent first request (or a racing INCR) can't be
	// clobbered back to zero.
	if err := s.client.SetNX(ctx, key, 0, 0).Err(); err != nil {
		return 0, fmt.Errorf("creating usage record for %s: %w", deviceID, err)
	}
	return 0, nil
}

// Increment bumps the device's counter by exactly 1. INCR is atomic on the
// Redis side and treats a missing key as 0, so this is safe even if
// GetOrCreate's SETNX never landed.
func (s *RedisStore) Increment(ctx context.Context, deviceID string) error {
	if err := s.client.Incr(ctx, keyFor(deviceID)).Err(); err != nil {
		return fmt.Errorf("incrementing usage for %s: %w", deviceID, err)
	}
	return nil
}
