package models

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus is the lifecycle position of a delivery order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusInTransit OrderStatus = "in_transit"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// orderFlow is the forward sequence; cancelled sits outside it.
var orderFlow = []OrderStatus{StatusPending, StatusConfirmed, StatusPickedUp, StatusInTransit, StatusDelivered}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", NewValidationError(fmt.Sprintf("invalid status %q", s), "status")
	}
	return st, nil
}

func (s OrderStatus) IsValid() bool {
	return s == StatusCancelled || s.rank() >= 0
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) rank() int {
	for i, st := range orderFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsOpen reports whether a rider is actively working the order.
func (s OrderStatus) IsOpen() bool {
	return s == StatusConfirmed || s == StatusPickedUp || s == StatusInTransit
}

// CanTransitionTo allows forward moves along the flow (skips included) and
// cancellation from any state before delivery.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return next.rank() > s.rank()
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type StatusEvent struct {
	Status      OrderStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Description string      `json:"description"`
}

type Order struct {
	ID                string        `json:"id"`
	CustomerName      string        `json:"customerName"`
	CustomerEmail     string        `json:"customerEmail"`
	CustomerPhone     string        `json:"customerPhone"`
	Pickup            string        `json:"pickup"`
	Delivery          string        `json:"delivery"`
	Distance          float64       `json:"distance"`
	Cost              float64       `json:"cost"`
	PackageDetails    string        `json:"packageDetails"`
	Notes             string        `json:"notes,omitempty"`
	Status            OrderStatus   `json:"status"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	PaymentMethod     string        `json:"paymentMethod,omitempty"`
	PaymentReference  string        `json:"paymentReference,omitempty"`
	PaidAt            *time.Time    `json:"paidAt,omitempty"`
	RiderID           string        `json:"riderId,omitempty"`
	RiderName         string        `json:"riderName,omitempty"`
	RiderPhone        string        `json:"riderPhone,omitempty"`
	EstimatedDelivery time.Time     `json:"estimatedDelivery"`
	DeliveredAt       *time.Time    `json:"deliveredAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	StatusHistory     []StatusEvent `json:"statusHistory"`
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.StatusHistory = append([]StatusEvent(nil), o.StatusHistory...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}

// AppendStatus records a transition in the history and moves the order to it.
func (o *Order) AppendStatus(st OrderStatus, at time.Time, description string) {
	o.Status = st
	o.UpdatedAt = at
	o.StatusHistory = append(o.StatusHistory, StatusEvent{Status: st, Timestamp: at, Description: description})
}

const AwaitingRiderDescription = "Order confirmed; awaiting rider assignment"

// StatusDescription is the fixed customer-facing text recorded for a status.
func StatusDescription(o *Order, st OrderStatus) string {
	switch st {
	case StatusPending:
		return "Order received and is being processed"
	case StatusConfirmed:
		return "Order confirmed and rider assigned"
	case StatusPickedUp:
		return "Package picked up from " + o.Pickup
	case StatusInTransit:
		return "Package is on the way to destination"
	case StatusDelivered:
		return "Package delivered successfully to " + o.Delivery
	case StatusCancelled:
		return "Order cancelled"
	}
	return "Status updated to " + string(st)
}

// FormatOrderID renders the human-readable order identifier.
func FormatOrderID(year int, seq int64) string {
	return fmt.Sprintf("RC-%d-%03d", year, seq)
}

func FormatRiderID(seq int64) string       { return fmt.Sprintf("RD-%03d", seq) }
func FormatAccountID(seq int64) string     { return fmt.Sprintf("USR-%03d", seq) }
func FormatMessageID(seq int64) string     { return fmt.Sprintf("MSG-%03d", seq) }
func FormatPartnershipID(seq int64) string { return fmt.Sprintf("PR-%03d", seq) }
func FormatActivityID(seq int64) string    { return fmt.Sprintf("ACT-%03d", seq) }
