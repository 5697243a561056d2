package models

import (
	"fmt"
	"strings"
	"time"
)

type RiderStatus string

const (
	RiderPending  RiderStatus = "pending"
	RiderApproved RiderStatus = "approved"
	RiderRejected RiderStatus = "rejected"
)

func ParseRiderStatus(s string) (RiderStatus, error) {
	switch st := RiderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RiderPending, RiderApproved, RiderRejected:
		return st, nil
	}
	return "", NewValidationError(fmt.Sprintf("invalid rider status %q", s), "status")
}

type Rider struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"accountId,omitempty"`
	FullName        string      `json:"fullName"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	NationalID      string      `json:"nationalId"`
	Motorcycle      string      `json:"motorcycle"`
	Experience      string      `json:"experience"`
	Area            string      `json:"area"`
	Motivation      string      `json:"motivation,omitempty"`
	Status          RiderStatus `json:"status"`
	IsActive        bool        `json:"isActive"`
	Rating          float64     `json:"rating"`
	TotalDeliveries int         `json:"totalDeliveries"`
	TotalEarnings   float64     `json:"totalEarnings"`
	Balance         float64     `json:"balance"`
	JoinedAt        time.Time   `json:"joinedAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Available riders can be assigned to orders.
func (r *Rider) Available() bool { return r.Status == RiderApproved && r.IsActive }

func (r *Rider) Clone() *Rider {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// RiderSummary is the public view served by the available-riders listing.
type RiderSummary struct {
	ID              string  `json:"id"`
	FullName        string  `json:"fullName"`
	Phone           string  `json:"phone"`
	Area            string  `json:"area"`
	Rating          float64 `json:"rating"`
	TotalDeliveries int     `json:"totalDeliveries"`
}

func (r *Rider) Summary() RiderSummary {
	return RiderSummary{ID: r.ID, FullName: r.FullName, Phone: r.Phone, Area: r.Area, Rating: r.Rating, TotalDeliveries: r.TotalDeliveries}
}

type AccountKind string

const (
	KindCustomer AccountKind = "customer"
	KindRider    AccountKind = "rider"
	KindAdmin    AccountKind = "admin"
)

// Account is a login identity of any kind. The password hash never leaves the server.
type Account struct {
	ID           string      `json:"id"`
	FullName     string      `json:"fullName"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	Kind         AccountKind `json:"userType"`
	PasswordHash string      `json:"-"`
	RiderID      string      `json:"riderId,omitempty"`
	IsActive     bool        `json:"isActive"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	LastLoginAt  *time.Time  `json:"lastLoginAt,omitempty"`
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// NormalizeEmail lowercases and trims so uniqueness checks are case-insensitive.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
