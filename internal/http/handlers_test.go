package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/parcel-delivery/internal/auth"
	"github.com/example/parcel-delivery/internal/cache"
	"github.com/example/parcel-delivery/internal/inbox"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/orders"
	"github.com/example/parcel-delivery/internal/payments"
	"github.com/example/parcel-delivery/internal/pricing"
	"github.com/example/parcel-delivery/internal/riders"
	"github.com/example/parcel-delivery/internal/routing"
	"github.com/example/parcel-delivery/internal/storage"
)

const (
	adminEmail    = "admin@rocscrew.co.ke"
	adminPassword = "admin-pass-123"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := storage.NewMemoryStore()
	hasher := auth.NewArgon2Hasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	authSvc := auth.NewService(st, st, hasher, auth.NewTokenIssuer(strings.Repeat("k", 32), time.Hour), nil, nil)
	if err := authSvc.EnsureAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatal(err)
	}
	riderSvc := riders.NewService(st, st, authSvc, 0.2, nil)
	orderSvc := &orders.Service{Store: st, Riders: riderSvc}
	return NewServer(Deps{
		Orders:         orderSvc,
		Riders:         riderSvc,
		Auth:           authSvc,
		Inbox:          inbox.NewService(st, st, nil, nil),
		Payments:       payments.NewService(st, orderSvc, "KES", 130, nil),
		Pricing:        pricing.Calculator{PerKm: 30, Minimum: 200, Currency: "KES"},
		Routes:         routing.NewEstimator(nil, nil, nil),
		Idempotency:    cache.Idempotency(cache.NewMemory(), time.Hour, nil),
		AllowedOrigins: []string{"https://rocscrew.co.ke"},
	}, nil)
}

func call(t *testing.T, h http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type orderResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Order   *models.Order `json:"order"`
}

func login(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body.String())
	}
	return decode[struct {
		Token string `json:"token"`
	}](t, rec).Token
}

func sampleOrder() map[string]any {
	return map[string]any{
		"customerName":   "Wanjiku Kamau",
		"customerEmail":  "wanjiku@example.co.ke",
		"customerPhone":  "+254 712 345 678",
		"pickup":         "A",
		"delivery":       "B",
		"distance":       5,
		"cost":           150,
		"packageDetails": "Documents",
	}
}

func approvedRider(t *testing.T, h http.Handler, admin string) string {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/api/riders/signup", "", map[string]any{
		"fullName": "Peter Kimani", "email": "peter@example.co.ke", "phone": "+254 700 123 456",
		"nationalId": "12345678", "motorcycle": "Boxer 150", "experience": "3 years",
		"area": "Westlands", "motivation": "Steady work", "password": "rider-pass-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("rider signup: %d %s", rec.Code, rec.Body.String())
	}
	id := decode[struct {
		Rider struct {
			ID string `json:"id"`
		} `json:"rider"`
	}](t, rec).Rider.ID
	if rec := call(t, h, http.MethodPatch, "/api/admin/riders/"+id+"/status", admin, map[string]string{"status": "approved"}); rec.Code != http.StatusOK {
		t.Fatalf("approve rider: %d %s", rec.Code, rec.Body.String())
	}
	return id
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, adminEmail, adminPassword)
	riderID := approvedRider(t, srv, admin)

	rec := call(t, srv, http.MethodPost, "/api/orders", "", sampleOrder())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[orderResponse](t, rec).Order
	if created.Cost != 150 || created.Status != models.StatusPending || len(created.StatusHistory) != 1 {
		t.Fatalf("unexpected order %+v", created)
	}

	rec = call(t, srv, http.MethodGet, "/api/orders/track/"+created.ID, "", nil)
	tracked := decode[orderResponse](t, rec).Order
	if rec.Code != http.StatusOK || tracked.CustomerEmail != "" || tracked.CustomerPhone != "+*** *** *** 678" {
		t.Fatalf("anonymous tracking must hide contact details: %d %+v", rec.Code, tracked)
	}
	rec = call(t, srv, http.MethodGet, "/api/orders/track/"+created.ID, admin, nil)
	if decode[orderResponse](t, rec).Order.CustomerEmail != "wanjiku@example.co.ke" {
		t.Fatalf("admin should see the customer email: %s", rec.Body.String())
	}

	path := "/api/admin/orders/" + created.ID
	rec = call(t, srv, http.MethodPatch, path, admin, map[string]string{"status": "flying"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}

	rec = call(t, srv, http.MethodPatch, path, admin, map[string]string{"status": "confirmed"})
	confirmed := decode[orderResponse](t, rec).Order
	if rec.Code != http.StatusOK || confirmed.RiderID != riderID || confirmed.RiderName != "Peter Kimani" || len(confirmed.StatusHistory) != 2 {
		t.Fatalf("confirm should attach the rider: %d %+v", rec.Code, confirmed)
	}

	rec = call(t, srv, http.MethodPatch, path, admin, map[string]string{"status": "confirmed"})
	if got := decode[orderResponse](t, rec).Order; len(got.StatusHistory) != 2 {
		t.Fatalf("repeating a status must not append history, got %d entries", len(got.StatusHistory))
	}

	rec = call(t, srv, http.MethodPatch, path, admin, map[string]string{"status": "pending"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for backwards transition, got %d", rec.Code)
	}

	rec = call(t, srv, http.MethodGet, "/api/orders/track/"+created.ID+"/status", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"confirmed"`) {
		t.Fatalf("status view: %d %s", rec.Code, rec.Body.String())
	}

	if rec := call(t, srv, http.MethodGet, "/api/orders/track/RC-1999-404", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	if rec := call(t, srv, http.MethodGet, "/api/admin/orders", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}
	if rec := call(t, srv, http.MethodGet, "/api/admin/orders", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}

	rec := call(t, srv, http.MethodPost, "/api/users/signup", "", map[string]string{
		"fullName": "Achieng Otieno", "email": "achieng@example.co.ke", "phone": "+254 711 000 111", "password": "customer-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "customer-pass") {
		t.Fatal("signup response leaked the password")
	}
	customer := login(t, srv, "achieng@example.co.ke", "customer-pass")
	if rec := call(t, srv, http.MethodGet, "/api/admin/orders", customer, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403, got %d", rec.Code)
	}

	if rec := call(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "achieng@example.co.ke", "password": "wrong-pass"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}

	if rec := call(t, srv, http.MethodPost, "/api/auth/logout", customer, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	if rec := call(t, srv, http.MethodGet, "/api/orders/mine", customer, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", rec.Code)
	}
}

func TestProfileIsSelfOrAdmin(t *testing.T) {
	srv := newTestServer(t)
	signup := func(name, email, phone string) string {
		rec := call(t, srv, http.MethodPost, "/api/users/signup", "", map[string]string{
			"fullName": name, "email": email, "phone": phone, "password": "customer-pass",
		})
		return decode[struct {
			User models.Account `json:"user"`
		}](t, rec).User.ID
	}
	aliceID := signup("Alice", "alice@example.co.ke", "+254 722 000 001")
	bobID := signup("Bob", "bob@example.co.ke", "+254 722 000 002")
	alice := login(t, srv, "alice@example.co.ke", "customer-pass")

	if rec := call(t, srv, http.MethodGet, "/api/auth/profile/"+aliceID, alice, nil); rec.Code != http.StatusOK {
		t.Fatalf("own profile: %d", rec.Code)
	}
	if rec := call(t, srv, http.MethodGet, "/api/auth/profile/"+bobID, alice, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other profile: expected 403, got %d", rec.Code)
	}
	rec := call(t, srv, http.MethodPatch, "/api/auth/profile/"+aliceID, alice, map[string]string{"fullName": "Alice Wambui"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Alice Wambui") {
		t.Fatalf("update profile: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOrderCreationIsIdempotentPerKey(t *testing.T) {
	srv := newTestServer(t)
	first := call(t, srv, http.MethodPost, "/api/orders", "", sampleOrder(), cache.IdempotencyHeader, "checkout-42")
	second := call(t, srv, http.MethodPost, "/api/orders", "", sampleOrder(), cache.IdempotencyHeader, "checkout-42")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("unexpected codes %d %d", first.Code, second.Code)
	}
	if second.Header().Get(cache.ReplayedHeader) != "true" || first.Body.String() != second.Body.String() {
		t.Fatalf("second call should replay the first response")
	}

	admin := login(t, srv, adminEmail, adminPassword)
	rec := call(t, srv, http.MethodGet, "/api/admin/orders", admin, nil)
	if total := decode[struct {
		Total int `json:"total"`
	}](t, rec).Total; total != 1 {
		t.Fatalf("expected a single stored order, got %d", total)
	}
}

func TestQuote(t *testing.T) {
	srv := newTestServer(t)
	rec := call(t, srv, http.MethodPost, "/api/quotes", "", map[string]any{"pickup": "CBD", "delivery": "Karen", "distanceKm": 12.4})
	q := decode[struct {
		DistanceKm float64 `json:"distanceKm"`
		Cost       float64 `json:"cost"`
		Currency   string  `json:"currency"`
		Source     string  `json:"source"`
	}](t, rec)
	if rec.Code != http.StatusOK || q.Cost != 370 || q.Currency != "KES" || q.Source != routing.SourceClient {
		t.Fatalf("unexpected quote %d %+v", rec.Code, q)
	}
	rec = call(t, srv, http.MethodPost, "/api/quotes", "", map[string]any{"pickup": "CBD", "delivery": "Karen"})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "distanceKm") {
		t.Fatalf("expected 400 naming distanceKm, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestValidationNamesFields(t *testing.T) {
	srv := newTestServer(t)
	rec := call(t, srv, http.MethodPost, "/api/messages", "", map[string]string{"name": "Kevin"})
	body := decode[struct {
		Success bool     `json:"success"`
		Fields  []string `json:"fields"`
	}](t, rec)
	if rec.Code != http.StatusBadRequest || body.Success || len(body.Fields) != 3 {
		t.Fatalf("expected 400 with three missing fields, got %d %+v", rec.Code, body)
	}
	if rec := call(t, srv, http.MethodPost, "/api/orders", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body: expected 400, got %d", rec.Code)
	}
}

func TestUnconfiguredPaymentProvider(t *testing.T) {
	srv := newTestServer(t)
	created := decode[orderResponse](t, call(t, srv, http.MethodPost, "/api/orders", "", sampleOrder())).Order
	rec := call(t, srv, http.MethodPost, "/api/payments/create-paypal-order", "", map[string]string{"orderId": created.ID})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %s", rec.Code, rec.Body.String())
	}
	rec = call(t, srv, http.MethodPost, "/api/payments/cash-on-delivery", "", map[string]string{"orderId": created.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("cash on delivery: %d %s", rec.Code, rec.Body.String())
	}
	pay := decode[struct {
		Payment models.Payment `json:"payment"`
	}](t, rec).Payment
	if rec := call(t, srv, http.MethodGet, "/api/payments/"+pay.ID, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("get payment: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://rocscrew.co.ke")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://rocscrew.co.ke" {
		t.Fatalf("unexpected preflight %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be allowed")
	}
}

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"+254 712 345 678": "+*** *** *** 678",
		"0712345678":       "*******678",
		"12":               "12",
	}
	for in, want := range cases {
		if got := maskPhone(in); got != want {
			t.Fatalf("maskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeactivatedAccountTokenStopsWorking(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, adminEmail, adminPassword)
	rec := call(t, srv, http.MethodPost, "/api/users/signup", "", map[string]string{
		"fullName": "Kamau Njoroge", "email": "kamau@example.co.ke", "phone": "+254 733 000 111", "password": "customer-pass",
	})
	id := decode[struct {
		User models.Account `json:"user"`
	}](t, rec).User.ID
	customer := login(t, srv, "kamau@example.co.ke", "customer-pass")
	if rec := call(t, srv, http.MethodGet, "/api/orders/mine", customer, nil); rec.Code != http.StatusOK {
		t.Fatalf("my orders: %d", rec.Code)
	}

	if rec := call(t, srv, http.MethodPatch, "/api/admin/users/"+id+"/status", admin, map[string]bool{"isActive": false}); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", rec.Code, rec.Body.String())
	}
	if rec := call(t, srv, http.MethodGet, "/api/orders/mine", customer, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated account: expected 401, got %d", rec.Code)
	}

	if rec := call(t, srv, http.MethodPatch, "/api/admin/users/"+id+"/status", admin, map[string]bool{"isActive": true}); rec.Code != http.StatusOK {
		t.Fatalf("reactivate: %d", rec.Code)
	}
	if rec := call(t, srv, http.MethodDelete, "/api/admin/users/"+id, admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := call(t, srv, http.MethodGet, "/api/orders/mine", customer, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted account: expected 401, got %d", rec.Code)
	}
}

func TestDeletedRiderLeavesAvailabilityButNotOrders(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, adminEmail, adminPassword)
	riderID := approvedRider(t, srv, admin)

	type available struct {
		Riders []models.RiderSummary `json:"riders"`
	}
	if got := decode[available](t, call(t, srv, http.MethodGet, "/api/riders/available", "", nil)).Riders; len(got) != 1 || got[0].ID != riderID {
		t.Fatalf("expected the approved rider to be available, got %+v", got)
	}

	rec := call(t, srv, http.MethodPost, "/api/orders", "", sampleOrder())
	orderID := decode[struct {
		Order models.Order `json:"order"`
	}](t, rec).Order.ID
	if rec := call(t, srv, http.MethodPatch, "/api/admin/orders/"+orderID+"/assign-rider", admin, map[string]string{"riderId": riderID}); rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}

	if rec := call(t, srv, http.MethodDelete, "/api/admin/riders/"+riderID, admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete rider: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[available](t, call(t, srv, http.MethodGet, "/api/riders/available", "", nil)).Riders; len(got) != 0 {
		t.Fatalf("deleted rider still available: %+v", got)
	}

	o := decode[struct {
		Order models.Order `json:"order"`
	}](t, call(t, srv, http.MethodGet, "/api/orders/track/"+orderID, admin, nil)).Order
	if o.RiderID != riderID || o.RiderName != "Peter Kimani" || o.RiderPhone != "+254 700 123 456" {
		t.Fatalf("order lost its rider details: %+v", o)
	}
}
