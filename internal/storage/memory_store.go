package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/parcel-delivery/internal/models"
)

// collection keeps records in insertion order so listings can be served newest first.
type collection[T any] struct {
	items map[string]T
	order []string
	seq   int64
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{items: make(map[string]T)}
}

func (c *collection[T]) next() int64 {
	c.seq++
	return c.seq
}

func (c *collection[T]) put(id string, v T) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *collection[T]) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[T]) newestFirst() []T {
	out := make([]T, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		out = append(out, c.items[c.order[i]])
	}
	return out
}

// update applies fn to a copy and only stores it when fn succeeds.
func update[T any](c *collection[T], id string, clone func(T) T, fn UpdateFunc[T]) (T, error) {
	var zero T
	cur, ok := c.items[id]
	if !ok {
		return zero, fmt.Errorf("%s: %w", id, models.ErrNotFound)
	}
	next := clone(cur)
	if err := fn(next); err != nil {
		if errors.Is(err, ErrSkip) {
			return clone(cur), nil
		}
		return zero, err
	}
	c.items[id] = next
	return clone(next), nil
}

// MemoryStore holds every record in process memory. A single lock serialises
// writers, which is the per-record boundary concurrent status changes need.
type MemoryStore struct {
	mu           sync.RWMutex
	orders       *collection[*models.Order]
	riders       *collection[*models.Rider]
	accounts     *collection[*models.Account]
	messages     *collection[*models.Message]
	partnerships *collection[*models.PartnershipRequest]
	payments     *collection[*models.Payment]
	activities   *collection[*models.RiderActivity]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:       newCollection[*models.Order](),
		riders:       newCollection[*models.Rider](),
		accounts:     newCollection[*models.Account](),
		messages:     newCollection[*models.Message](),
		partnerships: newCollection[*models.PartnershipRequest](),
		payments:     newCollection[*models.Payment](),
		activities:   newCollection[*models.RiderActivity](),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.ID = models.FormatOrderID(o.CreatedAt.Year(), m.orders.next())
	m.orders.put(o.ID, o.Clone())
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders.items[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return o.Clone(), nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Order
	for _, o := range m.orders.newestFirst() {
		if f.match(o) {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, id string, fn UpdateFunc[*models.Order]) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return update(m.orders, id, (*models.Order).Clone, fn)
}

func (m *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.orders.remove(id) {
		return fmt.Errorf("order %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (m *MemoryStore) CreateRider(ctx context.Context, r *models.Rider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.riders.items {
		switch {
		case models.NormalizeEmail(ex.Email) == models.NormalizeEmail(r.Email):
			return fmt.Errorf("rider with email %s: %w", r.Email, models.ErrConflict)
		case ex.Phone == r.Phone:
			return fmt.Errorf("rider with phone %s: %w", r.Phone, models.ErrConflict)
		case strings.EqualFold(ex.NationalID, r.NationalID):
			return fmt.Errorf("rider with national id %s: %w", r.NationalID, models.ErrConflict)
		}
	}
	r.ID = models.FormatRiderID(m.riders.next())
	m.riders.put(r.ID, r.Clone())
	return nil
}

func (m *MemoryStore) GetRider(ctx context.Context, id string) (*models.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.riders.items[id]
	if !ok {
		return nil, fmt.Errorf("rider %s: %w", id, models.ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *MemoryStore) ListRiders(ctx context.Context) ([]*models.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.riders.newestFirst()
	for i, r := range out {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *MemoryStore) UpdateRider(ctx context.Context, id string, fn UpdateFunc[*models.Rider]) (*models.Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return update(m.riders, id, (*models.Rider).Clone, fn)
}

func (m *MemoryStore) DeleteRider(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.riders.remove(id) {
		return fmt.Errorf("rider %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Email = models.NormalizeEmail(a.Email)
	for _, ex := range m.accounts.items {
		if ex.Email == a.Email {
			return fmt.Errorf("account with email %s: %w", a.Email, models.ErrConflict)
		}
		if a.Phone != "" && ex.Phone == a.Phone {
			return fmt.Errorf("account with phone %s: %w", a.Phone, models.ErrConflict)
		}
	}
	a.ID = models.FormatAccountID(m.accounts.next())
	m.accounts.put(a.ID, a.Clone())
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts.items[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	return a.Clone(), nil
}

func (m *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = models.NormalizeEmail(email)
	for _, a := range m.accounts.items {
		if a.Email == email {
			return a.Clone(), nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", email, models.ErrNotFound)
}

func (m *MemoryStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.accounts.newestFirst()
	for i, a := range out {
		out[i] = a.Clone()
	}
	return out, nil
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, id string, fn UpdateFunc[*models.Account]) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	checked := func(a *models.Account) error {
		if err := fn(a); err != nil {
			return err
		}
		for _, ex := range m.accounts.items {
			if ex.ID != a.ID && a.Phone != "" && ex.Phone == a.Phone {
				return fmt.Errorf("account with phone %s: %w", a.Phone, models.ErrConflict)
			}
		}
		return nil
	}
	return update(m.accounts, id, (*models.Account).Clone, checked)
}

func (m *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accounts.remove(id) {
		return fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func cloneMessage(v *models.Message) *models.Message { c := *v; return &c }

func clonePartnership(v *models.PartnershipRequest) *models.PartnershipRequest { c := *v; return &c }

func cloneActivity(v *models.RiderActivity) *models.RiderActivity { c := *v; return &c }

func (m *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = models.FormatMessageID(m.messages.next())
	m.messages.put(msg.ID, cloneMessage(msg))
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.messages.newestFirst()
	for i, v := range out {
		out[i] = cloneMessage(v)
	}
	return out, nil
}

func (m *MemoryStore) UpdateMessage(ctx context.Context, id string, fn UpdateFunc[*models.Message]) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return update(m.messages, id, cloneMessage, fn)
}

func (m *MemoryStore) CreatePartnership(ctx context.Context, p *models.PartnershipRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = models.FormatPartnershipID(m.partnerships.next())
	m.partnerships.put(p.ID, clonePartnership(p))
	return nil
}

func (m *MemoryStore) ListPartnerships(ctx context.Context) ([]*models.PartnershipRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.partnerships.newestFirst()
	for i, v := range out {
		out[i] = clonePartnership(v)
	}
	return out, nil
}

func (m *MemoryStore) UpdatePartnership(ctx context.Context, id string, fn UpdateFunc[*models.PartnershipRequest]) (*models.PartnershipRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return update(m.partnerships, id, clonePartnership, fn)
}

func (m *MemoryStore) DeletePartnership(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.partnerships.remove(id) {
		return fmt.Errorf("partnership request %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		return fmt.Errorf("payment id required: %w", models.ErrValidation)
	}
	if _, ok := m.payments.items[p.ID]; ok {
		return fmt.Errorf("payment %s: %w", p.ID, models.ErrConflict)
	}
	m.payments.put(p.ID, p.Clone())
	return nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments.items[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, models.ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) GetPaymentByProviderRef(ctx context.Context, method models.PaymentMethod, ref string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments.items {
		if p.Method == method && p.ProviderRef == ref {
			return p.Clone(), nil
		}
	}
	return nil, fmt.Errorf("payment %s/%s: %w", method, ref, models.ErrNotFound)
}

func (m *MemoryStore) ListPayments(ctx context.Context, orderID string) ([]*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Payment
	for _, p := range m.payments.newestFirst() {
		if orderID == "" || p.OrderID == orderID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdatePayment(ctx context.Context, id string, fn UpdateFunc[*models.Payment]) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return update(m.payments, id, (*models.Payment).Clone, fn)
}

func (m *MemoryStore) AppendActivity(ctx context.Context, a *models.RiderActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = models.FormatActivityID(m.activities.next())
	m.activities.put(a.ID, cloneActivity(a))
	return nil
}

func (m *MemoryStore) ListActivities(ctx context.Context, f ActivityFilter) ([]*models.RiderActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.RiderActivity
	for _, a := range m.activities.newestFirst() {
		if f.RiderID != "" && a.RiderID != f.RiderID {
			continue
		}
		if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, cloneActivity(a))
	}
	return out, nil
}
