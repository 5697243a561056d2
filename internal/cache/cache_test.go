package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/parcel-delivery/internal/models"
)

func TestTrackingCacheReadThrough(t *testing.T) {
	kv := NewMemory()
	tc := NewTrackingCache(kv, time.Minute, nil)
	var loads atomic.Int32
	load := func(ctx context.Context, id string) (*models.Order, error) {
		loads.Add(1)
		time.Sleep(5 * time.Millisecond)
		return &models.Order{ID: id, Status: models.StatusPending}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tc.Get(context.Background(), "RC-2024-001", load); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := loads.Load(); n < 1 || n > 2 {
		t.Fatalf("expected collapsed loads, got %d", n)
	}

	before := loads.Load()
	o, _ := tc.Get(context.Background(), "RC-2024-001", load)
	if o.ID != "RC-2024-001" || loads.Load() != before {
		t.Fatalf("expected cache hit")
	}
	tc.Refresh(context.Background(), "RC-2024-001", nil)
	_, _ = tc.Get(context.Background(), "RC-2024-001", load)
	if loads.Load() != before+1 {
		t.Fatalf("expected reload after the entry was dropped")
	}
}

func TestTrackingCacheDoesNotStoreErrors(t *testing.T) {
	tc := NewTrackingCache(NewMemory(), time.Minute, nil)
	_, err := tc.Get(context.Background(), "missing", func(context.Context, string) (*models.Order, error) {
		return nil, models.ErrNotFound
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedisSessionsRevoke(t *testing.T) {
	s := NewRedisSessions(NewMemory())
	ctx := context.Background()
	if err := s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.IsRevoked(ctx, "jti-1"); !ok {
		t.Fatal("expected revoked")
	}
	if ok, _ := s.IsRevoked(ctx, "jti-2"); ok {
		t.Fatal("unexpected revocation")
	}
}

func TestStatusReader(t *testing.T) {
	kv := NewMemory()
	r := NewStatusReader(kv)
	if _, ok, err := r.Read(context.Background(), "RC-2024-001"); ok || err != nil {
		t.Fatalf("expected no projection, got %v %v", ok, err)
	}
	_ = kv.HSet(context.Background(), StatusKey("RC-2024-001"), map[string]any{
		FieldStatus: "in_transit", FieldRiderName: "Rick", FieldUpdatedAt: "2024-05-01T10:00:00Z",
	})
	v, ok, err := r.Read(context.Background(), "RC-2024-001")
	if !ok || err != nil || v.Status != models.StatusInTransit || v.RiderName != "Rick" || v.UpdatedAt.IsZero() {
		t.Fatalf("unexpected view %+v %v %v", v, ok, err)
	}
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(NewMemory(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	}))

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{}"))
		if key != "" {
			req.Header.Set(IdempotencyHeader, key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := do("abc")
	second := do("abc")
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replay, got %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get(ReplayedHeader) != "true" {
		t.Fatal("expected replay header")
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
	do("")
	do("other")
	if calls.Load() != 3 {
		t.Fatalf("expected requests without or with new keys to run, got %d", calls.Load())
	}
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	var calls atomic.Int32
	h := Idempotency(NewMemory(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.Header.Set(IdempotencyHeader, "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry after 500, got %d calls", calls.Load())
	}
}

func TestIdempotencyKeyIsBoundToCallerAndBody(t *testing.T) {
	var bodies []string
	h := Idempotency(NewMemory(), time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(b)
	}))
	do := func(token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		req.Header.Set(IdempotencyHeader, "shared-key")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	do("", `{"customerName":"Ann"}`)
	if rr := do("", `{"customerName":"Ben"}`); rr.Header().Get(ReplayedHeader) != "" || rr.Body.String() != `{"customerName":"Ben"}` {
		t.Fatalf("a different body replayed another response: %s", rr.Body.String())
	}
	if rr := do("tok-1", `{"customerName":"Ann"}`); rr.Header().Get(ReplayedHeader) != "" {
		t.Fatal("a different caller replayed another response")
	}
	if rr := do("", `{"customerName":"Ann"}`); rr.Header().Get(ReplayedHeader) != "true" {
		t.Fatal("expected the original request to replay")
	}
	if len(bodies) != 3 || bodies[1] != `{"customerName":"Ben"}` {
		t.Fatalf("handler did not see the full bodies: %q", bodies)
	}
}

func TestTrackingCacheKeepsWriteThatRacedALoad(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	tc := NewTrackingCache(kv, time.Minute, nil)
	other := NewTrackingCache(kv, time.Minute, nil) // a second API process on the same redis

	for _, writer := range []*TrackingCache{tc, other} {
		id := "RC-2024-001"
		tc.Refresh(ctx, id, nil)
		stale := func(ctx context.Context, id string) (*models.Order, error) {
			old := &models.Order{ID: id, Status: models.StatusPending}
			writer.Refresh(ctx, id, &models.Order{ID: id, Status: models.StatusConfirmed})
			return old, nil
		}
		if _, err := tc.Get(ctx, id, stale); err != nil {
			t.Fatal(err)
		}
		got, err := tc.Get(ctx, id, func(context.Context, string) (*models.Order, error) {
			t.Fatal("expected a cache hit")
			return nil, nil
		})
		if err != nil || got.Status != models.StatusConfirmed {
			t.Fatalf("stale record cached: %+v %v", got, err)
		}
	}
}

func TestTrackingCacheLoadOutlivesCallerCancel(t *testing.T) {
	tc := NewTrackingCache(NewMemory(), time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, err := tc.Get(ctx, "RC-2024-001", func(ctx context.Context, id string) (*models.Order, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &models.Order{ID: id, Status: models.StatusPending}, nil
	})
	if err != nil || o.ID != "RC-2024-001" {
		t.Fatalf("load was cut short by the caller: %+v %v", o, err)
	}
}
