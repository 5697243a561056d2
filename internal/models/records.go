package models

import (
	"fmt"
	"strings"
	"time"
)

type MessageStatus string

const (
	MessageNew     MessageStatus = "new"
	MessageRead    MessageStatus = "read"
	MessageReplied MessageStatus = "replied"
)

func ParseMessageStatus(s string) (MessageStatus, error) {
	switch st := MessageStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case MessageNew, MessageRead, MessageReplied:
		return st, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid message status %q", s), "status")
}

// Message is a contact-form submission.
type Message struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Subject   string        `json:"subject"`
	Body      string        `json:"message"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type PartnershipStatus string

const (
	PartnershipPending  PartnershipStatus = "pending"
	PartnershipApproved PartnershipStatus = "approved"
	PartnershipRejected PartnershipStatus = "rejected"
)

func ParsePartnershipStatus(s string) (PartnershipStatus, error) {
	switch st := PartnershipStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PartnershipPending, PartnershipApproved, PartnershipRejected:
		return st, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid partnership status %q", s), "status")
}

// PartnershipRequest is an inbound B2B inquiry.
type PartnershipRequest struct {
	ID               string            `json:"id"`
	CompanyName      string            `json:"companyName"`
	ContactPerson    string            `json:"contactPerson"`
	Email            string            `json:"email"`
	Phone            string            `json:"phone"`
	BusinessCategory string            `json:"businessCategory"`
	MonthlyVolume    string            `json:"monthlyVolume"`
	Message          string            `json:"message,omitempty"`
	Status           PartnershipStatus `json:"status"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

type PaymentMethod string

const (
	MethodPayPal PaymentMethod = "paypal"
	MethodCard   PaymentMethod = "card"
	MethodCash   PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodPayPal, MethodCard, MethodCash:
		return m, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid payment method %q", s), "paymentMethod")
}

type PaymentState string

const (
	PaymentCreated    PaymentState = "created"
	PaymentAuthorized PaymentState = "authorized"
	PaymentAwaiting   PaymentState = "pending"
	PaymentCompleted  PaymentState = "completed"
	PaymentFailed     PaymentState = "failed"
	PaymentRefunded   PaymentState = "refunded"
)

func ParsePaymentState(s string) (PaymentState, error) {
	switch st := PaymentState(strings.ToLower(strings.TrimSpace(s))); st {
	case PaymentCreated, PaymentAuthorized, PaymentAwaiting, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return st, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid payment status %q", s), "status")
}

type Payment struct {
	ID             string        `json:"id"`
	OrderID        string        `json:"orderId"`
	Method         PaymentMethod `json:"paymentMethod"`
	Status         PaymentState  `json:"status"`
	Amount         float64       `json:"amount"`
	Currency       string        `json:"currency"`
	ProviderRef    string        `json:"providerRef,omitempty"`
	ProviderStatus string        `json:"providerStatus,omitempty"`
	TransactionID  string        `json:"transactionId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

type ActivityType string

const (
	ActivityOrderAssigned     ActivityType = "order_assigned"
	ActivityPickupCompleted   ActivityType = "pickup_completed"
	ActivityDeliveryCompleted ActivityType = "delivery_completed"
	ActivityPaymentReceived   ActivityType = "payment_received"
	ActivityStatusChange      ActivityType = "status_change"
	ActivityEarningsAdded     ActivityType = "earnings_added"
)

// RiderActivity is one entry in a rider's work and payout log.
type RiderActivity struct {
	ID          string       `json:"id"`
	RiderID     string       `json:"riderId"`
	RiderName   string       `json:"riderName"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	OrderID     string       `json:"orderId,omitempty"`
	Amount      float64      `json:"amount,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Earning is the split of one delivered order's cost between rider and company.
type Earning struct {
	OrderID         string  `json:"orderId"`
	Gross           float64 `json:"gross"`
	CommissionRate  float64 `json:"commissionRate"`
	Commission      float64 `json:"commission"`
	Net             float64 `json:"net"`
	PreviousBalance float64 `json:"previousBalance"`
	NewBalance      float64 `json:"newBalance"`
}

type EarningsSummary struct {
	TotalEarned    float64 `json:"totalEarned"`
	TotalPaid      float64 `json:"totalPaid"`
	CurrentBalance float64 `json:"currentBalance"`
	DeliveryCount  int     `json:"deliveryCount"`
}

type ActivityStats struct {
	Total        int `json:"total"`
	Today        int `json:"today"`
	Week         int `json:"week"`
	Deliveries   int `json:"deliveries"`
	Payments     int `json:"payments"`
	ActiveRiders int `json:"activeRiders"`
}
