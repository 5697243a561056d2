package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/observability"
)

// Loader fetches an order from the system of record.
type Loader func(ctx context.Context, id string) (*models.Order, error)

// TrackingCache is a read-through cache of full order records for the public tracking page.
type TrackingCache struct {
	kv     KV
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	// writes counts Refresh calls; a fill that saw a write during its load is dropped.
	writes atomic.Uint64
}

func NewTrackingCache(kv KV, ttl time.Duration, logger *slog.Logger) *TrackingCache {
	return &TrackingCache{kv: kv, ttl: ttl, logger: logging.OrDiscard(logger)}
}

func trackingKey(id string) string { return "tracking:" + id }

// Get serves id from the cache, collapsing concurrent misses into one load.
// Cache failures degrade to a direct load.
func (t *TrackingCache) Get(ctx context.Context, id string, load Loader) (*models.Order, error) {
	key := trackingKey(id)
	b, err := t.kv.Get(ctx, key)
	switch {
	case err == nil:
		var o models.Order
		if err := json.Unmarshal(b, &o); err == nil {
			observability.CacheLookups.WithLabelValues("tracking", "hit").Inc()
			return &o, nil
		}
		t.logger.Warn("tracking_cache_corrupt", "order_id", id)
	case !errors.Is(err, ErrMiss):
		t.logger.Warn("tracking_cache_get_failed", "order_id", id, "error", err)
	}
	observability.CacheLookups.WithLabelValues("tracking", "miss").Inc()

	v, err, _ := t.group.Do(id, func() (any, error) {
		// followers share this load, so the leader's cancellation must not end it
		lctx := context.WithoutCancel(ctx)
		seen := t.writes.Load()
		o, err := load(lctx, id)
		if err != nil {
			return nil, err
		}
		if t.writes.Load() != seen {
			return o, nil
		}
		if b, err := json.Marshal(o); err == nil {
			// a fresher record stored by Refresh in the meantime wins
			if _, err := t.kv.SetNX(lctx, key, b, t.ttl); err != nil {
				t.logger.Warn("tracking_cache_set_failed", "order_id", id, "error", err)
			}
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Order).Clone(), nil
}

// Refresh stores the record just written, or drops the entry when o is nil.
func (t *TrackingCache) Refresh(ctx context.Context, id string, o *models.Order) {
	t.writes.Add(1)
	key := trackingKey(id)
	if o != nil {
		b, err := json.Marshal(o)
		if err == nil {
			if err = t.kv.Set(ctx, key, b, t.ttl); err == nil {
				return
			}
		}
		t.logger.Warn("tracking_cache_refresh_failed", "order_id", id, "error", err)
	}
	if err := t.kv.Del(ctx, key); err != nil {
		t.logger.Warn("tracking_cache_invalidate_failed", "order_id", id, "error", err)
	}
}
