package payments

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/observability"
	"github.com/example/parcel-delivery/internal/storage"
)

// Orders is the slice of the order service payments drive.
type Orders interface {
	Track(ctx context.Context, id string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, id, method, reference string) (*models.Order, error)
	MarkCashOnDelivery(ctx context.Context, id, reference string) (*models.Order, error)
}

type Service struct {
	store     storage.PaymentStore
	orders    Orders
	providers map[models.PaymentMethod]Provider
	kesPerUSD float64
	currency  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the configured providers. Methods without a provider answer ErrUnavailable.
func NewService(store storage.PaymentStore, orders Orders, currency string, kesPerUSD float64, logger *slog.Logger, providers ...Provider) *Service {
	s := &Service{
		store:     store,
		orders:    orders,
		providers: make(map[models.PaymentMethod]Provider),
		kesPerUSD: kesPerUSD,
		currency:  currency,
		logger:    logging.OrDiscard(logger),
		now:       time.Now,
	}
	for _, p := range providers {
		if p != nil {
			s.providers[p.Method()] = p
		}
	}
	return s
}

func (s *Service) provider(m models.PaymentMethod) (Provider, error) {
	p, ok := s.providers[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s payments are not configured", models.ErrUnavailable, m)
	}
	return p, nil
}

// charge converts an order cost into the provider's currency. PayPal does not settle KES.
func (s *Service) charge(m models.PaymentMethod, cost float64) (float64, string) {
	if m == models.MethodPayPal {
		return math.Round(cost/s.kesPerUSD*100) / 100, "USD"
	}
	return cost, s.currency
}

// CreateProviderOrder opens a payment with the provider for the full order cost.
func (s *Service) CreateProviderOrder(ctx context.Context, method models.PaymentMethod, orderID string) (*models.Payment, ProviderOrder, error) {
	p, err := s.provider(method)
	if err != nil {
		return nil, ProviderOrder{}, err
	}
	o, err := s.orders.Track(ctx, orderID)
	if err != nil {
		return nil, ProviderOrder{}, err
	}
	if o.PaymentStatus == models.PaymentPaid {
		return nil, ProviderOrder{}, fmt.Errorf("order %s is already paid: %w", o.ID, models.ErrConflict)
	}
	amount, currency := s.charge(method, o.Cost)
	po, err := p.Create(ctx, int64(math.Round(amount*100)), currency, o.ID)
	observability.PaymentsTotal.WithLabelValues(string(method), "create", observability.Result(err)).Inc()
	if err != nil {
		s.logger.Error("payment provider create failed", "method", method, "order_id", o.ID, "error", err)
		return nil, ProviderOrder{}, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	now := s.now()
	pay := &models.Payment{
		ID:             uuid.NewString(),
		OrderID:        o.ID,
		Method:         method,
		Status:         models.PaymentCreated,
		Amount:         amount,
		Currency:       currency,
		ProviderRef:    po.Ref,
		ProviderStatus: po.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePayment(ctx, pay); err != nil {
		return nil, ProviderOrder{}, err
	}
	s.logger.Info("payment created", "payment_id", pay.ID, "order_id", o.ID, "method", method, "amount", amount, "currency", currency)
	return pay, po, nil
}

// Capture settles an approved provider order. Capturing a completed payment returns it unchanged.
func (s *Service) Capture(ctx context.Context, method models.PaymentMethod, ref string) (*models.Payment, error) {
	p, err := s.provider(method)
	if err != nil {
		return nil, err
	}
	pay, err := s.store.GetPaymentByProviderRef(ctx, method, ref)
	if err != nil {
		return nil, err
	}
	if pay.Status == models.PaymentCompleted {
		return pay, nil
	}
	res, err := p.Capture(ctx, ref)
	observability.PaymentsTotal.WithLabelValues(string(method), "capture", observability.Result(err)).Inc()
	if err != nil {
		s.logger.Error("payment capture failed", "payment_id", pay.ID, "method", method, "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return s.apply(ctx, pay, res)
}

// Verify refreshes a payment from the provider and settles it if the provider reports completion.
func (s *Service) Verify(ctx context.Context, method models.PaymentMethod, ref string) (*models.Payment, error) {
	p, err := s.provider(method)
	if err != nil {
		return nil, err
	}
	pay, err := s.store.GetPaymentByProviderRef(ctx, method, ref)
	if err != nil {
		return nil, err
	}
	res, err := p.Verify(ctx, ref)
	observability.PaymentsTotal.WithLabelValues(string(method), "verify", observability.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	return s.apply(ctx, pay, res)
}

func (s *Service) apply(ctx context.Context, pay *models.Payment, res Result) (*models.Payment, error) {
	updated, err := s.store.UpdatePayment(ctx, pay.ID, func(p *models.Payment) error {
		if p.Status == models.PaymentCompleted && p.ProviderStatus == res.Status {
			return storage.ErrSkip
		}
		now := s.now()
		p.ProviderStatus = res.Status
		if res.TransactionID != "" {
			p.TransactionID = res.TransactionID
		}
		switch {
		case res.Completed:
			if p.Status != models.PaymentCompleted {
				p.Status = models.PaymentCompleted
				p.CompletedAt = &now
			}
		case res.Failed:
			p.Status = models.PaymentFailed
		case p.Status == models.PaymentCreated:
			p.Status = models.PaymentAuthorized
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.Status == models.PaymentCompleted && pay.Status != models.PaymentCompleted {
		s.settle(ctx, updated)
	}
	return updated, nil
}

// settle marks the order paid, which also sends the receipt.
func (s *Service) settle(ctx context.Context, pay *models.Payment) {
	ref := pay.TransactionID
	if ref == "" {
		ref = pay.ProviderRef
	}
	if _, err := s.orders.ConfirmPayment(ctx, pay.OrderID, string(pay.Method), ref); err != nil {
		s.logger.Error("order payment confirmation failed", "payment_id", pay.ID, "order_id", pay.OrderID, "error", err)
	}
}

// CashOnDelivery records a pending cash payment collected by the rider.
func (s *Service) CashOnDelivery(ctx context.Context, orderID string) (*models.Payment, error) {
	o, err := s.orders.Track(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == models.PaymentPaid {
		return nil, fmt.Errorf("order %s is already paid: %w", o.ID, models.ErrConflict)
	}
	now := s.now()
	pay := &models.Payment{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		Method:        models.MethodCash,
		Status:        models.PaymentAwaiting,
		Amount:        o.Cost,
		Currency:      s.currency,
		TransactionID: fmt.Sprintf("COD-%d", now.UnixMilli()),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreatePayment(ctx, pay); err != nil {
		return nil, err
	}
	observability.PaymentsTotal.WithLabelValues(string(models.MethodCash), "create", "ok").Inc()
	if _, err := s.orders.MarkCashOnDelivery(ctx, o.ID, pay.TransactionID); err != nil {
		return nil, err
	}
	return pay, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Payment, error) {
	return s.store.GetPayment(ctx, id)
}

func (s *Service) List(ctx context.Context, orderID string) ([]*models.Payment, error) {
	return s.store.ListPayments(ctx, orderID)
}

// SetStatus is the admin override. Completing a payment confirms the order;
// failing an uncaptured card hold releases it with the provider.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*models.Payment, error) {
	st, err := models.ParsePaymentState(status)
	if err != nil {
		return nil, err
	}
	before, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdatePayment(ctx, id, func(p *models.Payment) error {
		if p.Status == st {
			return storage.ErrSkip
		}
		now := s.now()
		p.Status = st
		if st == models.PaymentCompleted {
			p.CompletedAt = &now
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if before.Status == st {
		return updated, nil
	}
	switch st {
	case models.PaymentCompleted:
		s.settle(ctx, updated)
	case models.PaymentFailed:
		s.release(ctx, before)
	}
	return updated, nil
}

func (s *Service) release(ctx context.Context, pay *models.Payment) {
	if pay.ProviderRef == "" || (pay.Status != models.PaymentCreated && pay.Status != models.PaymentAuthorized) {
		return
	}
	c, ok := s.providers[pay.Method].(Canceler)
	if !ok {
		return
	}
	if err := c.Cancel(ctx, pay.ProviderRef); err != nil {
		s.logger.Warn("payment hold release failed", "payment_id", pay.ID, "error", err)
	}
}
