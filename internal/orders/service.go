package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parcel-delivery/internal/cache"
	"github.com/example/parcel-delivery/internal/dispatch"
	"github.com/example/parcel-delivery/internal/events"
	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/matcher"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/observability"
	"github.com/example/parcel-delivery/internal/storage"
)

// Orders are promised within this window of being placed.
const deliveryWindow = 90 * time.Minute

type Riders interface {
	Get(ctx context.Context, id string) (*models.Rider, error)
	Available(ctx context.Context) ([]*models.Rider, error)
	CreditDelivery(ctx context.Context, riderID string, o *models.Order) (*models.Rider, models.Earning, error)
	LogActivity(ctx context.Context, riderID, riderName string, typ models.ActivityType, orderID, description string)
}

type Notifier interface {
	OrderConfirmed(o *models.Order)
	Receipt(o *models.Order)
	ReceiptNow(ctx context.Context, o *models.Order) error
	DeliveryEarnings(r *models.Rider, e models.Earning)
}

type Feed interface {
	Broadcast(ev dispatch.FeedEvent)
}

type TrackingCache interface {
	Get(ctx context.Context, id string, load cache.Loader) (*models.Order, error)
	Refresh(ctx context.Context, id string, o *models.Order)
}

type StatusReader interface {
	Read(ctx context.Context, orderID string) (cache.StatusView, bool, error)
}

// Service owns the order lifecycle. Store and Riders are required; the rest are optional.
type Service struct {
	Store    storage.OrderStore
	Riders   Riders
	Policy   matcher.Policy
	Notifier Notifier
	Events   events.Publisher
	Feed     Feed
	Cache    TrackingCache
	Status   StatusReader
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() *slog.Logger { return logging.OrDiscard(s.Logger) }

func (s *Service) policy() matcher.Policy {
	if s.Policy == nil {
		return matcher.AreaPolicy{}
	}
	return s.Policy
}

type CreateInput struct {
	CustomerName   string  `json:"customerName"`
	CustomerEmail  string  `json:"customerEmail"`
	CustomerPhone  string  `json:"customerPhone"`
	Pickup         string  `json:"pickup"`
	Delivery       string  `json:"delivery"`
	Distance       float64 `json:"distance"`
	Cost           float64 `json:"cost"`
	PackageDetails string  `json:"packageDetails"`
	Notes          string  `json:"notes"`
}

func (in CreateInput) validate() error {
	if err := models.RequireFields(
		"customerName", in.CustomerName, "customerEmail", in.CustomerEmail, "customerPhone", in.CustomerPhone,
		"pickup", in.Pickup, "delivery", in.Delivery, "packageDetails", in.PackageDetails,
	); err != nil {
		return err
	}
	var bad []string
	if in.Distance <= 0 {
		bad = append(bad, "distance")
	}
	if in.Cost <= 0 {
		bad = append(bad, "cost")
	}
	if len(bad) > 0 {
		return models.NewValidationError(strings.Join(bad, ", ")+" must be greater than zero", bad...)
	}
	return nil
}

// Create places a new pending order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	o := &models.Order{
		CustomerName:      strings.TrimSpace(in.CustomerName),
		CustomerEmail:     strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:     strings.TrimSpace(in.CustomerPhone),
		Pickup:            strings.TrimSpace(in.Pickup),
		Delivery:          strings.TrimSpace(in.Delivery),
		Distance:          in.Distance,
		Cost:              in.Cost,
		PackageDetails:    strings.TrimSpace(in.PackageDetails),
		Notes:             strings.TrimSpace(in.Notes),
		PaymentStatus:     models.PaymentUnpaid,
		EstimatedDelivery: now.Add(deliveryWindow),
		CreatedAt:         now,
	}
	o.AppendStatus(models.StatusPending, now, models.StatusDescription(o, models.StatusPending))
	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	observability.OrdersCreatedTotal.Inc()
	s.logger().Info("order created", "order_id", o.ID, "cost", o.Cost)
	s.changed(ctx, events.OrderCreated, dispatch.OrderCreated, o.ID, o)
	return o, nil
}

// Track returns the full order, through the tracking cache when one is configured.
func (s *Service) Track(ctx context.Context, id string) (*models.Order, error) {
	if s.Cache != nil {
		return s.Cache.Get(ctx, id, s.Store.GetOrder)
	}
	return s.Store.GetOrder(ctx, id)
}

// TrackStatus answers from the event projection and falls back to the store.
func (s *Service) TrackStatus(ctx context.Context, id string) (cache.StatusView, error) {
	if s.Status != nil {
		v, ok, err := s.Status.Read(ctx, id)
		if err != nil {
			s.logger().Warn("status projection read failed", "order_id", id, "error", err)
		}
		if ok {
			return v, nil
		}
	}
	o, err := s.Track(ctx, id)
	if err != nil {
		return cache.StatusView{}, err
	}
	return cache.StatusView{ID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus, RiderName: o.RiderName, UpdatedAt: o.UpdatedAt}, nil
}

// List returns orders newest first, optionally restricted to one status.
func (s *Service) List(ctx context.Context, status string) ([]*models.Order, error) {
	var f storage.OrderFilter
	if status != "" {
		st, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	return s.Store.ListOrders(ctx, f)
}

// ListForCustomer returns the orders placed with email.
func (s *Service) ListForCustomer(ctx context.Context, email string) ([]*models.Order, error) {
	return s.Store.ListOrders(ctx, storage.OrderFilter{CustomerEmail: email})
}

func (s *Service) candidates(ctx context.Context) ([]matcher.Candidate, error) {
	riders, err := s.Riders.Available(ctx)
	if err != nil {
		return nil, err
	}
	open, err := s.Store.ListOrders(ctx, storage.OrderFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	load := make(map[string]int)
	for _, o := range open {
		if o.RiderID != "" {
			load[o.RiderID]++
		}
	}
	out := make([]matcher.Candidate, 0, len(riders))
	for _, r := range riders {
		out = append(out, matcher.Candidate{Rider: r, OpenOrders: load[r.ID]})
	}
	return out, nil
}

// pickRider runs the assignment policy for an order about to be confirmed.
func (s *Service) pickRider(ctx context.Context, id string) *models.Rider {
	cur, err := s.Store.GetOrder(ctx, id)
	if err != nil || cur.RiderID != "" {
		return nil
	}
	cands, err := s.candidates(ctx)
	if err != nil {
		s.logger().Warn("rider candidates unavailable", "order_id", id, "error", err)
		return nil
	}
	r, ok := s.policy().Pick(ctx, cur, cands)
	if !ok {
		return nil
	}
	return r
}

// UpdateStatus moves an order along its lifecycle. Repeating the current
// status is a no-op; moving backwards or out of a terminal state is rejected.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*models.Order, error) {
	st, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	var picked *models.Rider
	if st == models.StatusConfirmed {
		picked = s.pickRider(ctx, id)
	}

	var (
		prev     models.OrderStatus
		assigned bool
	)
	o, err := s.Store.UpdateOrder(ctx, id, func(o *models.Order) error {
		prev = o.Status
		if o.Status == st {
			return storage.ErrSkip
		}
		if !o.Status.CanTransitionTo(st) {
			return fmt.Errorf("order %s cannot move from %s to %s: %w", o.ID, o.Status, st, models.ErrInvalidTransition)
		}
		now := s.now()
		desc := models.StatusDescription(o, st)
		if st == models.StatusConfirmed && o.RiderID == "" {
			if picked != nil {
				o.RiderID, o.RiderName, o.RiderPhone = picked.ID, picked.FullName, picked.Phone
				assigned = true
			} else {
				desc = models.AwaitingRiderDescription
			}
		}
		if st == models.StatusDelivered {
			o.DeliveredAt = &now
		}
		o.AppendStatus(st, now, desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if prev == st {
		return o, nil
	}

	observability.OrderTransitions.WithLabelValues(string(st)).Inc()
	s.logger().Info("order status changed", "order_id", o.ID, "from", prev, "to", st, "rider_id", o.RiderID)
	s.afterTransition(ctx, o, st, assigned)
	s.changed(ctx, events.OrderStatusChanged, dispatch.OrderUpdated, o.ID, o)
	return o, nil
}

func (s *Service) afterTransition(ctx context.Context, o *models.Order, st models.OrderStatus, assigned bool) {
	if st == models.StatusConfirmed {
		result := "none"
		if assigned {
			result = "assigned"
			s.Riders.LogActivity(ctx, o.RiderID, o.RiderName, models.ActivityOrderAssigned, o.ID,
				fmt.Sprintf("Assigned to order %s | Route: %s → %s", o.ID, o.Pickup, o.Delivery))
		}
		observability.RiderAssignments.WithLabelValues(s.policy().Name(), result).Inc()
		if s.Notifier != nil {
			s.Notifier.OrderConfirmed(o)
		}
	}
	if o.RiderID == "" {
		return
	}
	switch st {
	case models.StatusPickedUp:
		s.Riders.LogActivity(ctx, o.RiderID, o.RiderName, models.ActivityPickupCompleted, o.ID, "Package picked up from "+o.Pickup)
	case models.StatusInTransit, models.StatusCancelled:
		s.Riders.LogActivity(ctx, o.RiderID, o.RiderName, models.ActivityStatusChange, o.ID, fmt.Sprintf("Order %s is now %s", o.ID, st))
	case models.StatusDelivered:
		r, earning, err := s.Riders.CreditDelivery(ctx, o.RiderID, o)
		if err != nil {
			s.logger().Warn("rider earnings not credited", "order_id", o.ID, "rider_id", o.RiderID, "error", err)
			return
		}
		if s.Notifier != nil {
			s.Notifier.DeliveryEarnings(r, earning)
		}
	}
}

// AssignRider puts an approved, active rider on an open order.
func (s *Service) AssignRider(ctx context.Context, id, riderID string) (*models.Order, error) {
	if strings.TrimSpace(riderID) == "" {
		return nil, models.NewValidationError("riderId is required", "riderId")
	}
	r, err := s.Riders.Get(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if !r.Available() {
		return nil, fmt.Errorf("rider %s is not approved and active: %w", r.ID, models.ErrConflict)
	}
	changed := false
	o, err := s.Store.UpdateOrder(ctx, id, func(o *models.Order) error {
		if o.Status.IsTerminal() {
			return fmt.Errorf("order %s is %s: %w", o.ID, o.Status, models.ErrConflict)
		}
		if o.RiderID == r.ID {
			return storage.ErrSkip
		}
		o.RiderID, o.RiderName, o.RiderPhone = r.ID, r.FullName, r.Phone
		o.UpdatedAt = s.now()
		changed = true
		return nil
	})
	if err != nil || !changed {
		return o, err
	}
	observability.RiderAssignments.WithLabelValues("manual", "assigned").Inc()
	s.Riders.LogActivity(ctx, r.ID, r.FullName, models.ActivityOrderAssigned, o.ID,
		fmt.Sprintf("Assigned to order %s | Route: %s → %s", o.ID, o.Pickup, o.Delivery))
	s.changed(ctx, events.OrderRiderAssigned, dispatch.OrderUpdated, o.ID, o)
	return o, nil
}

// ConfirmPayment marks the order paid and sends the receipt.
func (s *Service) ConfirmPayment(ctx context.Context, id, method, reference string) (*models.Order, error) {
	m, err := models.ParsePaymentMethod(method)
	if err != nil {
		return nil, err
	}
	reference = strings.TrimSpace(reference)
	changed := false
	o, err := s.Store.UpdateOrder(ctx, id, func(o *models.Order) error {
		if o.PaymentStatus == models.PaymentPaid && o.PaymentMethod == string(m) && (reference == "" || o.PaymentReference == reference) {
			return storage.ErrSkip
		}
		now := s.now()
		o.PaymentStatus = models.PaymentPaid
		o.PaymentMethod = string(m)
		if reference != "" {
			o.PaymentReference = reference
		}
		o.PaidAt = &now
		o.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil || !changed {
		return o, err
	}
	s.logger().Info("order payment confirmed", "order_id", o.ID, "method", m)
	if s.Notifier != nil {
		s.Notifier.Receipt(o)
	}
	s.changed(ctx, events.OrderPaymentConfirmed, dispatch.OrderUpdated, o.ID, o)
	return o, nil
}

// MarkCashOnDelivery records that the customer will pay the rider in cash.
func (s *Service) MarkCashOnDelivery(ctx context.Context, id, reference string) (*models.Order, error) {
	o, err := s.Store.UpdateOrder(ctx, id, func(o *models.Order) error {
		if o.PaymentStatus == models.PaymentPaid {
			return fmt.Errorf("order %s is already paid: %w", o.ID, models.ErrConflict)
		}
		o.PaymentStatus = models.PaymentPending
		o.PaymentMethod = string(models.MethodCash)
		o.PaymentReference = reference
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, events.OrderStatusChanged, dispatch.OrderUpdated, o.ID, o)
	return o, nil
}

// ResendReceipt renders and sends the receipt synchronously; a transport
// failure is returned and changes nothing.
func (s *Service) ResendReceipt(ctx context.Context, id string) error {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if s.Notifier == nil {
		return fmt.Errorf("%w: email is not configured", models.ErrUnavailable)
	}
	return s.Notifier.ReceiptNow(ctx, o)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Store.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.logger().Info("order deleted", "order_id", id)
	s.changed(ctx, events.OrderDeleted, dispatch.OrderDeleted, id, nil)
	return nil
}

// changed fans a write out to the cache, the admin feed and the event stream.
// None of these can fail the operation.
func (s *Service) changed(ctx context.Context, eventType, feedType, id string, o *models.Order) {
	if s.Cache != nil {
		s.Cache.Refresh(ctx, id, o)
	}
	now := s.now()
	if s.Feed != nil {
		s.Feed.Broadcast(dispatch.FeedEvent{Type: feedType, OrderID: id, Order: o, At: now})
	}
	if s.Events == nil {
		return
	}
	err := s.Events.Publish(ctx, events.NewOrderEvent(eventType, id, o, now))
	observability.EventsPublished.WithLabelValues(observability.Result(err)).Inc()
	if err != nil {
		s.logger().Warn("order event not published", "order_id", id, "type", eventType, "error", err)
	}
}
