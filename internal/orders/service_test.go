package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/parcel-delivery/internal/cache"
	"github.com/example/parcel-delivery/internal/dispatch"
	"github.com/example/parcel-delivery/internal/events"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/storage"
)

type fakeRiders struct {
	mu         sync.Mutex
	riders     map[string]*models.Rider
	activities []models.ActivityType
	credited   []string
}

func (f *fakeRiders) Get(ctx context.Context, id string) (*models.Rider, error) {
	r, ok := f.riders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.Clone(), nil
}

func (f *fakeRiders) Available(ctx context.Context) ([]*models.Rider, error) {
	var out []*models.Rider
	for _, r := range f.riders {
		if r.Available() {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (f *fakeRiders) CreditDelivery(ctx context.Context, riderID string, o *models.Order) (*models.Rider, models.Earning, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credited = append(f.credited, o.ID)
	return f.riders[riderID], models.Earning{OrderID: o.ID, Gross: o.Cost, Net: o.Cost * 0.8}, nil
}

func (f *fakeRiders) LogActivity(ctx context.Context, riderID, riderName string, typ models.ActivityType, orderID, description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, typ)
}

type fakeNotifier struct {
	confirmed, receipts, earnings int
	nowErr                        error
}

func (f *fakeNotifier) OrderConfirmed(o *models.Order) { f.confirmed++ }
func (f *fakeNotifier) Receipt(o *models.Order) { f.receipts++ }
func (f *fakeNotifier) ReceiptNow(ctx context.Context, o *models.Order) error { return f.nowErr }
func (f *fakeNotifier) DeliveryEarnings(r *models.Rider, e models.Earning) { f.earnings++ }

type fakeFeed struct{ events []dispatch.FeedEvent }

func (f *fakeFeed) Broadcast(ev dispatch.FeedEvent) { f.events = append(f.events, ev) }

type fakePublisher struct{ types []string }

func (f *fakePublisher) Publish(ctx context.Context, env events.Envelope) error {
	f.types = append(f.types, env.Type)
	return nil
}
func (f *fakePublisher) Close() error { return nil }

type fixture struct {
	svc      *Service
	store    *storage.MemoryStore
	riders   *fakeRiders
	notifier *fakeNotifier
	feed     *fakeFeed
	pub      *fakePublisher
}

func newFixture() *fixture {
	f := &fixture{
		store: storage.NewMemoryStore(),
		riders: &fakeRiders{riders: map[string]*models.Rider{
			"RD-001": {ID: "RD-001", FullName: "Kamau", Phone: "0711", Area: "Karen", Status: models.RiderApproved, IsActive: true, Rating: 4.9},
			"RD-002": {ID: "RD-002", FullName: "Otieno", Phone: "0722", Area: "Westlands", Status: models.RiderApproved, IsActive: true, Rating: 4.1},
			"RD-003": {ID: "RD-003", FullName: "Wanjiru", Phone: "0733", Area: "Westlands", Status: models.RiderPending},
		}},
		notifier: &fakeNotifier{},
		feed:     &fakeFeed{},
		pub:      &fakePublisher{},
	}
	f.svc = &Service{
		Store:    f.store,
		Riders:   f.riders,
		Notifier: f.notifier,
		Events:   f.pub,
		Feed:     f.feed,
		Now:      func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) },
	}
	return f
}

func validInput() CreateInput {
	return CreateInput{
		CustomerName: "Ann", CustomerEmail: "ann@x.io", CustomerPhone: "0700",
		Pickup: "Sarit Centre, Westlands", Delivery: "Yaya Centre", Distance: 6, Cost: 200, PackageDetails: "documents",
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, err := f.svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}
	if o.ID != "RC-2024-001" || o.Status != models.StatusPending || o.PaymentStatus != models.PaymentUnpaid {
		t.Fatalf("unexpected order %+v", o)
	}
	if len(o.StatusHistory) != 1 || o.StatusHistory[0].Description != "Order received and is being processed" {
		t.Fatalf("unexpected history %+v", o.StatusHistory)
	}
	if got := o.EstimatedDelivery.Sub(o.CreatedAt); got != 90*time.Minute {
		t.Fatalf("expected 90 minute estimate, got %s", got)
	}
	if len(f.pub.types) != 1 || f.pub.types[0] != events.OrderCreated || len(f.feed.events) != 1 {
		t.Fatalf("expected created event and feed push, got %v %d", f.pub.types, len(f.feed.events))
	}
	second, _ := f.svc.Create(ctx, validInput())
	if second.ID != "RC-2024-002" {
		t.Fatalf("expected sequential id, got %s", second.ID)
	}

	bad := validInput()
	bad.Cost = 0
	bad.Pickup = ""
	if _, err := f.svc.Create(ctx, bad); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())

	if _, err := f.svc.UpdateStatus(ctx, o.ID, "lost"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, "RC-2024-999", "confirmed"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	same, err := f.svc.UpdateStatus(ctx, o.ID, "pending")
	if err != nil || len(same.StatusHistory) != 1 {
		t.Fatalf("same status should be a no-op: %v %d", err, len(same.StatusHistory))
	}
	if _, err := f.svc.UpdateStatus(ctx, o.ID, "delivered"); err != nil {
		t.Fatalf("forward skip should be allowed: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, o.ID, "in_transit"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	stored, _ := f.store.GetOrder(ctx, o.ID)
	if stored.Status != models.StatusDelivered || len(stored.StatusHistory) != 2 {
		t.Fatalf("rejected update changed the record: %+v", stored)
	}
}

func TestConfirmAutoAssignsByArea(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())

	o, err := f.svc.UpdateStatus(ctx, o.ID, "confirmed")
	if err != nil {
		t.Fatal(err)
	}
	if o.RiderID != "RD-002" || o.RiderName != "Otieno" || o.RiderPhone != "0722" {
		t.Fatalf("expected the Westlands rider, got %+v", o)
	}
	if last := o.StatusHistory[len(o.StatusHistory)-1]; last.Description != "Order confirmed and rider assigned" {
		t.Fatalf("unexpected description %q", last.Description)
	}
	if f.notifier.confirmed != 1 || len(f.riders.activities) != 1 || f.riders.activities[0] != models.ActivityOrderAssigned {
		t.Fatalf("expected confirmation email and assignment activity, got %d %v", f.notifier.confirmed, f.riders.activities)
	}

	for _, st := range []string{"picked_up", "in_transit", "delivered"} {
		if o, err = f.svc.UpdateStatus(ctx, o.ID, st); err != nil {
			t.Fatal(err)
		}
	}
	if o.DeliveredAt == nil || len(f.riders.credited) != 1 || f.notifier.earnings != 1 {
		t.Fatalf("expected delivery to credit the rider: %+v %v %d", o.DeliveredAt, f.riders.credited, f.notifier.earnings)
	}
	if len(o.StatusHistory) != 5 {
		t.Fatalf("expected one history entry per transition, got %d", len(o.StatusHistory))
	}
}

func TestConfirmWithoutRiders(t *testing.T) {
	f := newFixture()
	f.riders.riders = map[string]*models.Rider{}
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())
	o, err := f.svc.UpdateStatus(ctx, o.ID, "confirmed")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != models.StatusConfirmed || o.RiderID != "" {
		t.Fatalf("expected confirmed without rider, got %+v", o)
	}
	if last := o.StatusHistory[len(o.StatusHistory)-1]; last.Description != models.AwaitingRiderDescription {
		t.Fatalf("unexpected description %q", last.Description)
	}
}

func TestAssignRider(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())

	if _, err := f.svc.AssignRider(ctx, o.ID, "RD-003"); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict for pending rider, got %v", err)
	}
	if _, err := f.svc.AssignRider(ctx, o.ID, "RD-404"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	o, err := f.svc.AssignRider(ctx, o.ID, "RD-001")
	if err != nil || o.RiderName != "Kamau" || o.Status != models.StatusPending {
		t.Fatalf("unexpected assignment %+v %v", o, err)
	}
	// the same rider may carry several orders
	other, _ := f.svc.Create(ctx, validInput())
	if _, err := f.svc.AssignRider(ctx, other.ID, "RD-001"); err != nil {
		t.Fatal(err)
	}
	_, _ = f.svc.UpdateStatus(ctx, o.ID, "cancelled")
	if _, err := f.svc.AssignRider(ctx, o.ID, "RD-002"); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict for cancelled order, got %v", err)
	}
}

func TestPaymentConfirmationAndReceipts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())

	if _, err := f.svc.ConfirmPayment(ctx, o.ID, "bitcoin", ""); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	paid, err := f.svc.ConfirmPayment(ctx, o.ID, "cash", "RCPT-1")
	if err != nil || paid.PaymentStatus != models.PaymentPaid || paid.PaidAt == nil || paid.PaymentReference != "RCPT-1" {
		t.Fatalf("unexpected payment state %+v %v", paid, err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, o.ID, "cash", ""); err != nil || f.notifier.receipts != 1 {
		t.Fatalf("repeat confirmation should not resend: %v %d", err, f.notifier.receipts)
	}
	if _, err := f.svc.MarkCashOnDelivery(ctx, o.ID, "COD-1"); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict marking a paid order, got %v", err)
	}

	f.notifier.nowErr = errors.New("smtp down")
	if err := f.svc.ResendReceipt(ctx, o.ID); err == nil {
		t.Fatal("expected transport error")
	}
	if err := f.svc.ResendReceipt(ctx, "RC-2024-404"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteAndTrackThroughCache(t *testing.T) {
	f := newFixture()
	f.svc.Cache = cache.NewTrackingCache(cache.NewMemory(), time.Minute, nil)
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())

	got, err := f.svc.Track(ctx, o.ID)
	if err != nil || got.ID != o.ID {
		t.Fatalf("unexpected track %+v %v", got, err)
	}
	if _, err := f.svc.UpdateStatus(ctx, o.ID, "confirmed"); err != nil {
		t.Fatal(err)
	}
	got, _ = f.svc.Track(ctx, o.ID)
	if got.Status != models.StatusConfirmed {
		t.Fatalf("expected cache invalidated after update, got %s", got.Status)
	}
	view, err := f.svc.TrackStatus(ctx, o.ID)
	if err != nil || view.Status != models.StatusConfirmed {
		t.Fatalf("unexpected status view %+v %v", view, err)
	}

	if err := f.svc.Delete(ctx, o.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Track(ctx, o.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if last := f.pub.types[len(f.pub.types)-1]; last != events.OrderDeleted {
		t.Fatalf("expected delete event, got %s", last)
	}
}

func TestTrackingFillDoesNotOverwriteConcurrentUpdate(t *testing.T) {
	f := newFixture()
	tc := cache.NewTrackingCache(cache.NewMemory(), time.Minute, nil)
	f.svc.Cache = tc
	ctx := context.Background()
	o, _ := f.svc.Create(ctx, validInput())
	// creation stored the record; drop it so the next read goes to the store
	tc.Refresh(ctx, o.ID, nil)

	_, err := tc.Get(ctx, o.ID, func(ctx context.Context, id string) (*models.Order, error) {
		old, err := f.store.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := f.svc.UpdateStatus(ctx, id, "confirmed"); err != nil {
			t.Fatal(err)
		}
		return old, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Track(ctx, o.ID)
	if err != nil || got.Status != models.StatusConfirmed || len(got.StatusHistory) != 2 {
		t.Fatalf("tracking served a stale order: %+v %v", got, err)
	}
}
