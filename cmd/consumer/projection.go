package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/parcel-delivery/internal/cache"
	"github.com/example/parcel-delivery/internal/events"
)

// RedisUpdater defines the small subset of redis operations we need for tests and production.
type RedisUpdater interface {
	HSet(ctx context.Context, key string, values map[string]any) error
	Del(ctx context.Context, keys ...string) error
}

// statusFields flattens an event into the hash read by cache.StatusReader.
func statusFields(env events.Envelope) (map[string]any, error) {
	snap, err := env.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	if snap.Status == "" {
		return nil, fmt.Errorf("%s event for %s carries no status", env.Type, env.OrderID)
	}
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = env.OccurredAt
	}
	return map[string]any{
		cache.FieldStatus:        string(snap.Status),
		cache.FieldPaymentStatus: string(snap.PaymentStatus),
		cache.FieldRiderName:     snap.RiderName,
		cache.FieldUpdatedAt:     updated.UTC().Format(time.RFC3339Nano),
	}, nil
}

// updateRedisWithRetry applies one event to the projection, retrying with doubling delay.
func updateRedisWithRetry(ctx context.Context, rc RedisUpdater, env events.Envelope, attempts int, delay time.Duration) error {
	key := cache.StatusKey(env.OrderID)
	var apply func() error
	if env.Type == events.OrderDeleted {
		apply = func() error { return rc.Del(ctx, key) }
	} else {
		fields, err := statusFields(env)
		if err != nil {
			return err
		}
		apply = func() error { return rc.HSet(ctx, key, fields) }
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = apply(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
