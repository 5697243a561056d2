package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/parcel-delivery/internal/models"
)

// ErrSkip returned from an update callback leaves the record untouched.
// The update call then returns the current record and a nil error.
var ErrSkip = errors.New("skip update")

// UpdateFunc mutates a private copy of a record. It runs while the record is
// locked, so it must not call back into the store.
type UpdateFunc[T any] func(T) error

type OrderFilter struct {
	Status        models.OrderStatus
	RiderID       string
	CustomerEmail string
	OpenOnly      bool
}

func (f OrderFilter) match(o *models.Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.RiderID != "" && o.RiderID != f.RiderID {
		return false
	}
	if f.CustomerEmail != "" && models.NormalizeEmail(o.CustomerEmail) != models.NormalizeEmail(f.CustomerEmail) {
		return false
	}
	if f.OpenOnly && !o.Status.IsOpen() {
		return false
	}
	return true
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, error)
	UpdateOrder(ctx context.Context, id string, fn UpdateFunc[*models.Order]) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// RiderStore rejects duplicates on email, phone and national id with models.ErrConflict.
type RiderStore interface {
	CreateRider(ctx context.Context, r *models.Rider) error
	GetRider(ctx context.Context, id string) (*models.Rider, error)
	ListRiders(ctx context.Context) ([]*models.Rider, error)
	UpdateRider(ctx context.Context, id string, fn UpdateFunc[*models.Rider]) (*models.Rider, error)
	DeleteRider(ctx context.Context, id string) error
}

// AccountStore rejects duplicates on email and phone with models.ErrConflict.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, id string, fn UpdateFunc[*models.Account]) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context) ([]*models.Message, error)
	UpdateMessage(ctx context.Context, id string, fn UpdateFunc[*models.Message]) (*models.Message, error)
}

type PartnershipStore interface {
	CreatePartnership(ctx context.Context, p *models.PartnershipRequest) error
	ListPartnerships(ctx context.Context) ([]*models.PartnershipRequest, error)
	UpdatePartnership(ctx context.Context, id string, fn UpdateFunc[*models.PartnershipRequest]) (*models.PartnershipRequest, error)
	DeletePartnership(ctx context.Context, id string) error
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByProviderRef(ctx context.Context, method models.PaymentMethod, ref string) (*models.Payment, error)
	ListPayments(ctx context.Context, orderID string) ([]*models.Payment, error)
	UpdatePayment(ctx context.Context, id string, fn UpdateFunc[*models.Payment]) (*models.Payment, error)
}

type ActivityFilter struct {
	RiderID string
	Since   time.Time
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, a *models.RiderActivity) error
	ListActivities(ctx context.Context, f ActivityFilter) ([]*models.RiderActivity, error)
}

// Store is the full persistence surface used by the API process.
type Store interface {
	OrderStore
	RiderStore
	AccountStore
	MessageStore
	PartnershipStore
	PaymentStore
	ActivityStore
	Close() error
}
