package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/parcel-delivery/internal/logging"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "X-Idempotency-Replayed"

	lockTTL   = 10 * time.Second
	inFlight  = "PROCESSING"
	maxKeyLen = 128
	// bodies larger than this are hashed by prefix; handlers reject them anyway
	maxHashedBody = 1 << 20
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// state-changing requests. Requests without the header pass straight through.
// Server errors are not remembered so the client may retry them.
func Idempotency(kv KV, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logging.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLen {
				writeConflict(w, http.StatusBadRequest, "Idempotency-Key too long")
				return
			}

			fp, err := fingerprint(r)
			if err != nil {
				writeConflict(w, http.StatusBadRequest, "could not read request body")
				return
			}
			idemKey := "idempotency:" + r.Method + ":" + r.URL.Path + ":" + key + ":" + fp
			ctx := r.Context()

			val, err := kv.Get(ctx, idemKey)
			switch {
			case err == nil:
				if string(val) == inFlight {
					writeConflict(w, http.StatusConflict, "request with this Idempotency-Key is still in progress")
					return
				}
				var prev storedResponse
				if err := json.Unmarshal(val, &prev); err == nil {
					if prev.ContentType != "" {
						w.Header().Set("Content-Type", prev.ContentType)
					}
					w.Header().Set(ReplayedHeader, "true")
					w.WriteHeader(prev.Status)
					_, _ = w.Write(prev.Body)
					return
				}
			case !errors.Is(err, ErrMiss):
				logger.Warn("idempotency_lookup_failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := kv.SetNX(ctx, idemKey, []byte(inFlight), lockTTL)
			if err != nil {
				logger.Warn("idempotency_lock_failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				writeConflict(w, http.StatusConflict, "concurrent request with this Idempotency-Key")
				return
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError || rec.status == 0 {
				_ = kv.Del(ctx, idemKey)
				return
			}
			b, _ := json.Marshal(storedResponse{Status: rec.status, ContentType: w.Header().Get("Content-Type"), Body: rec.buf.Bytes()})
			if err := kv.Set(ctx, idemKey, b, ttl); err != nil {
				logger.Warn("idempotency_store_failed", "error", err)
			}
		})
	}
}

// fingerprint binds a key to its caller and payload, so a reused key from
// another caller or with another body never replays someone else's response.
func fingerprint(r *http.Request) (string, error) {
	h := sha256.New()
	h.Write([]byte(r.Header.Get("Authorization")))
	h.Write([]byte{0})
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxHashedBody))
		if err != nil {
			return "", err
		}
		h.Write(b)
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(b), r.Body), r.Body}
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

func writeConflict(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
