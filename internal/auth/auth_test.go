package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/storage"
)

// cheap parameters keep the suite fast
var testParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	svc := NewService(st, st, NewArgon2Hasher(testParams), NewTokenIssuer(strings.Repeat("k", 32), time.Hour), NewMemorySessions(), nil)
	return svc, st
}

func TestHashIsSaltedAndVerifies(t *testing.T) {
	h := NewArgon2Hasher(testParams)
	ctx := context.Background()
	a, _ := h.HashPassword(ctx, "s3cret-pass")
	b, _ := h.HashPassword(ctx, "s3cret-pass")
	if a == b {
		t.Fatalf("expected distinct salts")
	}
	if !strings.HasPrefix(a, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %s", a)
	}
	if ok, err := h.VerifyPassword(ctx, "s3cret-pass", a); !ok || err != nil {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	if ok, _ := h.VerifyPassword(ctx, "wrong", a); ok {
		t.Fatalf("wrong password verified")
	}
	if _, err := h.VerifyPassword(ctx, "x", "plaintext"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestSignupStoresHashNotPlaintext(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	a, err := svc.Signup(ctx, SignupInput{FullName: "Ann", Email: "Ann@x.io", Phone: "0700", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := st.GetAccount(ctx, a.ID)
	if stored.PasswordHash == "password1" || !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("password not hashed: %q", stored.PasswordHash)
	}
	if stored.Kind != models.KindCustomer || stored.Email != "ann@x.io" {
		t.Fatalf("unexpected account %+v", stored)
	}
	if _, err := svc.Signup(ctx, SignupInput{FullName: "B", Email: "ann@x.io", Phone: "0711", Password: "password1"}); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}
	if _, err := svc.Signup(ctx, SignupInput{FullName: "B", Email: "b@x.io", Phone: "0700", Password: "password1"}); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected duplicate phone conflict, got %v", err)
	}
	if _, err := svc.Signup(ctx, SignupInput{FullName: "C", Email: "c@x.io", Phone: "0722", Password: "short"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupInput{FullName: "Ann", Email: "ann@x.io", Phone: "0700", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "ann@x.io", "nope-nope"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.Login(ctx, "ghost@x.io", "password1"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
	sess, err := svc.Login(ctx, "ANN@x.io", "password1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Account.LastLoginAt == nil {
		t.Fatalf("last login not recorded")
	}
	p, err := svc.Authenticate(ctx, sess.Token)
	if err != nil || p.AccountID != sess.Account.ID || p.Kind != models.KindCustomer {
		t.Fatalf("authenticate failed: %+v %v", p, err)
	}
	if err := svc.Logout(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("revoked token accepted: %v", err)
	}
}

func TestLoginRejectsDeactivatedAndUnapprovedRider(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	r := &models.Rider{FullName: "Rick", Email: "rick@x.io", Phone: "0799", NationalID: "N1", Status: models.RiderPending}
	_ = st.CreateRider(ctx, r)
	if _, err := svc.CreateAccount(ctx, SignupInput{FullName: "Rick", Email: "rick@x.io", Phone: "0799", Password: "password1"}, models.KindRider, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "rick@x.io", "password1"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("pending rider logged in: %v", err)
	}
	_, _ = st.UpdateRider(ctx, r.ID, func(r *models.Rider) error {
		r.Status, r.IsActive = models.RiderApproved, true
		return nil
	})
	sess, err := svc.Login(ctx, "rick@x.io", "password1")
	if err != nil {
		t.Fatalf("approved rider refused: %v", err)
	}
	if _, err := svc.SetActive(ctx, sess.Account.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "rick@x.io", "password1"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("deactivated account logged in: %v", err)
	}
}

func TestTokenRejectsTamperingAndExpiry(t *testing.T) {
	issuer := NewTokenIssuer(strings.Repeat("k", 32), time.Minute)
	tok, _, err := issuer.Issue(&models.Account{ID: "USR-001", Kind: models.KindAdmin, Email: "a@x.io"})
	if err != nil {
		t.Fatal(err)
	}
	other := NewTokenIssuer(strings.Repeat("z", 32), time.Minute)
	if _, err := other.Parse(tok); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("foreign signature accepted: %v", err)
	}
	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := issuer.Parse(tok); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := svc.EnsureAdmin(ctx, "admin@x.io", "admin-pass"); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := st.ListAccounts(ctx)
	if len(all) != 1 || all[0].Kind != models.KindAdmin {
		t.Fatalf("unexpected accounts %+v", all)
	}
	if err := svc.Delete(ctx, all[0].ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("admin deletion allowed: %v", err)
	}
}

func TestSessionEndsWhenAccountLosesStanding(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	a, err := svc.Signup(ctx, SignupInput{FullName: "Wanjiru", Email: "wanjiru@x.io", Phone: "0711", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := svc.Login(ctx, "wanjiru@x.io", "password1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetActive(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("deactivated account still authenticated: %v", err)
	}
	if _, err := svc.SetActive(ctx, a.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); err != nil {
		t.Fatalf("reactivated account refused: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("deleted account still authenticated: %v", err)
	}

	r := &models.Rider{FullName: "Otieno", Email: "otieno@x.io", Phone: "0722", NationalID: "N2", Status: models.RiderApproved, IsActive: true}
	_ = st.CreateRider(ctx, r)
	if _, err := svc.CreateAccount(ctx, SignupInput{FullName: "Otieno", Email: "otieno@x.io", Phone: "0722", Password: "password1"}, models.KindRider, r.ID); err != nil {
		t.Fatal(err)
	}
	riderSess, err := svc.Login(ctx, "otieno@x.io", "password1")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = st.UpdateRider(ctx, r.ID, func(r *models.Rider) error {
		r.IsActive = false
		return nil
	})
	if _, err := svc.Authenticate(ctx, riderSess.Token); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("inactive rider still authenticated: %v", err)
	}
}

func TestEnsureAdminEnforcesPasswordLength(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	if err := svc.EnsureAdmin(ctx, "admin@x.io", "short"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if all, _ := st.ListAccounts(ctx); len(all) != 0 {
		t.Fatalf("admin created with a short password: %+v", all)
	}
}
