package riders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/parcel-delivery/internal/auth"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/storage"
)

func newTestService(t *testing.T) (*Service, *auth.Service, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	hasher := auth.NewArgon2Hasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	accounts := auth.NewService(st, st, hasher, auth.NewTokenIssuer(strings.Repeat("k", 32), time.Hour), nil, nil)
	return NewService(st, st, accounts, 0.2, nil), accounts, st
}

func application(n string) SignupInput {
	return SignupInput{
		FullName: "Rider " + n, Email: "rider" + n + "@x.io", Phone: "07" + n, NationalID: "ID" + n,
		Motorcycle: "Boxer", Experience: "3 years", Area: "Westlands", Motivation: "income", Password: "password1",
	}
}

func TestSignupCreatesPendingRiderWithAccount(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()
	r, err := svc.Signup(ctx, application("1"))
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != "RD-001" || r.Status != models.RiderPending || r.IsActive || r.AccountID == "" {
		t.Fatalf("unexpected rider %+v", r)
	}
	acct, err := st.GetAccount(ctx, r.AccountID)
	if err != nil || acct.Kind != models.KindRider || acct.RiderID != r.ID {
		t.Fatalf("unexpected account %+v %v", acct, err)
	}

	dup := application("2")
	dup.NationalID = "ID1"
	if _, err := svc.Signup(ctx, dup); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict on national id, got %v", err)
	}
	missing := application("3")
	missing.Area = ""
	if _, err := svc.Signup(ctx, missing); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignupRollsBackRiderWhenAccountFails(t *testing.T) {
	svc, accounts, st := newTestService(t)
	ctx := context.Background()
	// an existing customer already owns the email
	if _, err := accounts.Signup(ctx, auth.SignupInput{FullName: "C", Email: "rider4@x.io", Phone: "0999", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Signup(ctx, application("4")); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	all, _ := st.ListRiders(ctx)
	if len(all) != 0 {
		t.Fatalf("expected rider rollback, found %d riders", len(all))
	}
}

func TestStatusDrivesAvailability(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a, _ := svc.Signup(ctx, application("1"))
	b, _ := svc.Signup(ctx, application("2"))

	if _, err := svc.SetStatus(ctx, a.ID, "approved"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetStatus(ctx, b.ID, "rejected"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetStatus(ctx, b.ID, "busy"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	avail, _ := svc.Available(ctx)
	if len(avail) != 1 || avail[0].ID != a.ID {
		t.Fatalf("expected only the approved rider, got %+v", avail)
	}
	if _, err := svc.SetActive(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}
	if avail, _ = svc.Available(ctx); len(avail) != 0 {
		t.Fatalf("inactive rider listed as available")
	}
	_, stats, _ := svc.List(ctx)
	if stats.Total != 2 || stats.Approved != 1 || stats.Rejected != 1 || stats.Active != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestDeleteDeactivatesAccount(t *testing.T) {
	svc, _, st := newTestService(t)
	ctx := context.Background()
	r, _ := svc.Signup(ctx, application("1"))
	if _, err := svc.SetStatus(ctx, r.ID, "approved"); err != nil {
		t.Fatal(err)
	}
	if avail, _ := svc.Available(ctx); len(avail) != 1 {
		t.Fatalf("expected approved rider available, got %d", len(avail))
	}
	if err := svc.Delete(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetRider(ctx, r.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected rider gone, got %v", err)
	}
	acct, _ := st.GetAccount(ctx, r.AccountID)
	if acct.IsActive {
		t.Fatal("expected account deactivated")
	}
	if avail, _ := svc.Available(ctx); len(avail) != 0 {
		t.Fatalf("deleted rider still available: %+v", avail)
	}
}

func TestCreditPayoutAndEarnings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	r, _ := svc.Signup(ctx, application("1"))

	rd, e, err := svc.CreditDelivery(ctx, r.ID, &models.Order{ID: "RC-2024-001", Cost: 500, Delivery: "Karen"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Commission != 100 || e.Net != 400 || e.NewBalance != 400 || rd.TotalDeliveries != 1 || rd.Balance != 400 {
		t.Fatalf("unexpected credit %+v %+v", e, rd)
	}
	if _, err := svc.RecordPayout(ctx, r.ID, 1000, "M-Pesa"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected payout above balance to fail, got %v", err)
	}
	if rd, err = svc.RecordPayout(ctx, r.ID, 150, "M-Pesa"); err != nil || rd.Balance != 250 {
		t.Fatalf("unexpected payout result %+v %v", rd, err)
	}

	sum, err := svc.Earnings(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalEarned != 400 || sum.TotalPaid != 150 || sum.CurrentBalance != 250 || sum.DeliveryCount != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	stats, _ := svc.ActivityStats(ctx)
	if stats.Total != 2 || stats.Deliveries != 1 || stats.Payments != 1 || stats.ActiveRiders != 1 || stats.Today != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
