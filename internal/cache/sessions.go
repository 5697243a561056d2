package cache

import (
	"context"
	"errors"
	"time"
)

// RedisSessions stores revoked token ids with a TTL matching the token's remaining life.
type RedisSessions struct {
	kv  KV
	now func() time.Time
}

func NewRedisSessions(kv KV) *RedisSessions {
	return &RedisSessions{kv: kv, now: time.Now}
}

func revokedKey(tokenID string) string { return "session:revoked:" + tokenID }

func (s *RedisSessions) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.kv.Set(ctx, revokedKey(tokenID), []byte("1"), ttl)
}

func (s *RedisSessions) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := s.kv.Get(ctx, revokedKey(tokenID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrMiss):
		return false, nil
	default:
		return false, err
	}
}
