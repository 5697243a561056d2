package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is a process-local KV used when Redis is not configured.
type Memory struct {
	mu     sync.Mutex
	values map[string]memEntry
	hashes map[string]map[string]string
	now    func() time.Time
}

type memEntry struct {
	v   []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]memEntry), hashes: make(map[string]map[string]string), now: time.Now}
}

func (m *Memory) live(key string) (memEntry, bool) {
	e, ok := m.values[key]
	if !ok {
		return e, false
	}
	if !e.exp.IsZero() && m.now().After(e.exp) {
		delete(m.values, key)
		return e, false
	}
	return e, true
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), e.v...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value, ttl)
	return nil
}

func (m *Memory) put(key string, value []byte, ttl time.Duration) {
	e := memEntry{v: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = m.now().Add(ttl)
	}
	m.values[key] = e
}

func (m *Memory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.hashes, k)
	}
	return nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// HSet exists so tests can seed status projections.
func (m *Memory) HSet(ctx context.Context, key string, values map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range values {
		h[k] = fmt.Sprint(v)
	}
	return nil
}
