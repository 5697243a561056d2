package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/example/parcel-delivery/internal/models"
)

// Event types published on the order topic.
const (
	OrderCreated          = "order.created"
	OrderStatusChanged    = "order.status_changed"
	OrderRiderAssigned    = "order.rider_assigned"
	OrderPaymentConfirmed = "order.payment_confirmed"
	OrderDeleted          = "order.deleted"
)

// Envelope is the wire format of every order event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Snapshot is the payload of every event except order.deleted.
type Snapshot struct {
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	RiderID       string               `json:"riderId,omitempty"`
	RiderName     string               `json:"riderName,omitempty"`
	Description   string               `json:"description,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// NewOrderEvent snapshots o into an envelope. A nil order yields an empty payload.
func NewOrderEvent(typ string, orderID string, o *models.Order, at time.Time) Envelope {
	env := Envelope{ID: uuid.NewString(), Type: typ, OrderID: orderID, OccurredAt: at.UTC()}
	if o == nil {
		return env
	}
	snap := Snapshot{
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		RiderID:       o.RiderID,
		RiderName:     o.RiderName,
		UpdatedAt:     o.UpdatedAt.UTC(),
	}
	if n := len(o.StatusHistory); n > 0 {
		snap.Description = o.StatusHistory[n-1].Description
	}
	env.Payload, _ = json.Marshal(snap)
	return env
}

// Decode unpacks the snapshot carried by env.
func (env Envelope) Decode() (Snapshot, error) {
	var s Snapshot
	if len(env.Payload) == 0 {
		return s, nil
	}
	err := json.Unmarshal(env.Payload, &s)
	return s, err
}

// Publisher is the interface used by services to publish order events.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Nop discards events; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
func (Nop) Close() error                            { return nil }
