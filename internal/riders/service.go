package riders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parcel-delivery/internal/auth"
	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/pricing"
	"github.com/example/parcel-delivery/internal/storage"
)

// Accounts is the part of the auth service rider management drives.
type Accounts interface {
	CreateAccount(ctx context.Context, in auth.SignupInput, kind models.AccountKind, riderID string) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Account, error)
}

type Service struct {
	riders         storage.RiderStore
	activities     storage.ActivityStore
	accounts       Accounts
	commissionRate float64
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(riders storage.RiderStore, activities storage.ActivityStore, accounts Accounts, commissionRate float64, logger *slog.Logger) *Service {
	return &Service{
		riders:         riders,
		activities:     activities,
		accounts:       accounts,
		commissionRate: commissionRate,
		logger:         logging.OrDiscard(logger),
		now:            time.Now,
	}
}

type SignupInput struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"nationalId"`
	Motorcycle string `json:"motorcycle"`
	Experience string `json:"experience"`
	Area       string `json:"area"`
	Motivation string `json:"motivation"`
	Password   string `json:"password"`
}

func (in SignupInput) account() auth.SignupInput {
	return auth.SignupInput{FullName: in.FullName, Email: in.Email, Phone: in.Phone, Password: in.Password}
}

// Signup stores a pending, inactive rider application and its login account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.Rider, error) {
	if err := models.RequireFields(
		"fullName", in.FullName, "email", in.Email, "phone", in.Phone, "nationalId", in.NationalID,
		"motorcycle", in.Motorcycle, "experience", in.Experience, "area", in.Area,
		"motivation", in.Motivation, "password", in.Password,
	); err != nil {
		return nil, err
	}
	if err := in.account().Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.Rider{
		FullName:   strings.TrimSpace(in.FullName),
		Email:      models.NormalizeEmail(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		NationalID: strings.TrimSpace(in.NationalID),
		Motorcycle: strings.TrimSpace(in.Motorcycle),
		Experience: strings.TrimSpace(in.Experience),
		Area:       strings.TrimSpace(in.Area),
		Motivation: strings.TrimSpace(in.Motivation),
		Status:     models.RiderPending,
		JoinedAt:   now,
		UpdatedAt:  now,
	}
	if err := s.riders.CreateRider(ctx, r); err != nil {
		return nil, err
	}

	acct, err := s.accounts.CreateAccount(ctx, in.account(), models.KindRider, r.ID)
	if err != nil {
		if derr := s.riders.DeleteRider(ctx, r.ID); derr != nil {
			s.logger.Error("rider rollback failed", "rider_id", r.ID, "error", derr)
		}
		return nil, err
	}
	r, err = s.riders.UpdateRider(ctx, r.ID, func(rd *models.Rider) error {
		rd.AccountID = acct.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rider application received", "rider_id", r.ID, "area", r.Area)
	return r, nil
}

type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
	Active   int `json:"active"`
}

func (s *Service) List(ctx context.Context) ([]*models.Rider, Stats, error) {
	all, err := s.riders.ListRiders(ctx)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{Total: len(all)}
	for _, r := range all {
		switch r.Status {
		case models.RiderApproved:
			st.Approved++
		case models.RiderPending:
			st.Pending++
		case models.RiderRejected:
			st.Rejected++
		}
		if r.IsActive {
			st.Active++
		}
	}
	return all, st, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Rider, error) {
	return s.riders.GetRider(ctx, id)
}

// SetStatus approves or rejects an application. Approval activates the rider,
// rejection deactivates it.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*models.Rider, error) {
	st, err := models.ParseRiderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.riders.UpdateRider(ctx, id, func(r *models.Rider) error {
		if r.Status == st {
			return storage.ErrSkip
		}
		r.Status = st
		switch st {
		case models.RiderApproved:
			r.IsActive = true
		case models.RiderRejected:
			r.IsActive = false
		}
		r.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*models.Rider, error) {
	return s.riders.UpdateRider(ctx, id, func(r *models.Rider) error {
		if r.IsActive == active {
			return storage.ErrSkip
		}
		r.IsActive = active
		r.UpdatedAt = s.now()
		return nil
	})
}

// Available returns approved and active riders.
func (s *Service) Available(ctx context.Context) ([]*models.Rider, error) {
	all, err := s.riders.ListRiders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Rider, 0, len(all))
	for _, r := range all {
		if r.Available() {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes the rider and deactivates its login. Orders keep the copied contact details.
func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.riders.GetRider(ctx, id)
	if err != nil {
		return err
	}
	if err := s.riders.DeleteRider(ctx, id); err != nil {
		return err
	}
	if r.AccountID != "" {
		if _, err := s.accounts.SetActive(ctx, r.AccountID, false); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("rider account deactivation failed", "rider_id", id, "account_id", r.AccountID, "error", err)
		}
	}
	return nil
}

// CreditDelivery books a delivered order's earnings against the rider.
func (s *Service) CreditDelivery(ctx context.Context, riderID string, o *models.Order) (*models.Rider, models.Earning, error) {
	var e models.Earning
	r, err := s.riders.UpdateRider(ctx, riderID, func(r *models.Rider) error {
		commission, net := pricing.Split(o.Cost, s.commissionRate)
		e = models.Earning{
			OrderID:         o.ID,
			Gross:           o.Cost,
			CommissionRate:  s.commissionRate,
			Commission:      commission,
			Net:             net,
			PreviousBalance: r.Balance,
			NewBalance:      r.Balance + net,
		}
		r.TotalDeliveries++
		r.TotalEarnings += net
		r.Balance += net
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, e, err
	}
	desc := fmt.Sprintf("Delivered order %s to %s | gross KES %.2f, commission KES %.2f", o.ID, o.Delivery, e.Gross, e.Commission)
	s.log(ctx, r, models.ActivityDeliveryCompleted, o.ID, desc, e.Net)
	return r, e, nil
}

// RecordPayout reduces the rider's balance by amount.
func (s *Service) RecordPayout(ctx context.Context, riderID string, amount float64, method string) (*models.Rider, error) {
	if amount <= 0 {
		return nil, models.NewValidationError("amount must be greater than zero", "amount")
	}
	r, err := s.riders.UpdateRider(ctx, riderID, func(r *models.Rider) error {
		if amount > r.Balance {
			return models.NewValidationError(fmt.Sprintf("amount exceeds balance of KES %.2f", r.Balance), "amount")
		}
		r.Balance -= amount
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(method) == "" {
		method = "cash"
	}
	s.log(ctx, r, models.ActivityPaymentReceived, "", fmt.Sprintf("Received payment of KES %.2f via %s", amount, method), amount)
	return r, nil
}

// LogActivity appends an entry to the rider's log. Failures are logged, not returned.
func (s *Service) LogActivity(ctx context.Context, riderID, riderName string, typ models.ActivityType, orderID, description string) {
	s.log(ctx, &models.Rider{ID: riderID, FullName: riderName}, typ, orderID, description, 0)
}

func (s *Service) log(ctx context.Context, r *models.Rider, typ models.ActivityType, orderID, description string, amount float64) {
	a := &models.RiderActivity{
		RiderID:     r.ID,
		RiderName:   r.FullName,
		Type:        typ,
		Description: description,
		OrderID:     orderID,
		Amount:      amount,
		CreatedAt:   s.now(),
	}
	if err := s.activities.AppendActivity(ctx, a); err != nil {
		s.logger.Warn("rider activity not recorded", "rider_id", r.ID, "type", typ, "error", err)
	}
}

func (s *Service) Activities(ctx context.Context, riderID string) ([]*models.RiderActivity, error) {
	if _, err := s.riders.GetRider(ctx, riderID); err != nil {
		return nil, err
	}
	return s.activities.ListActivities(ctx, storage.ActivityFilter{RiderID: riderID})
}

// Earnings recomputes the rider's ledger from the activity log.
func (s *Service) Earnings(ctx context.Context, riderID string) (models.EarningsSummary, error) {
	acts, err := s.Activities(ctx, riderID)
	if err != nil {
		return models.EarningsSummary{}, err
	}
	var sum models.EarningsSummary
	for _, a := range acts {
		switch a.Type {
		case models.ActivityDeliveryCompleted:
			sum.TotalEarned += a.Amount
			sum.DeliveryCount++
		case models.ActivityPaymentReceived:
			sum.TotalPaid += a.Amount
		}
	}
	sum.CurrentBalance = sum.TotalEarned - sum.TotalPaid
	return sum, nil
}

var nairobi = time.FixedZone("EAT", 3*60*60)

func (s *Service) ActivityStats(ctx context.Context) (models.ActivityStats, error) {
	acts, err := s.activities.ListActivities(ctx, storage.ActivityFilter{})
	if err != nil {
		return models.ActivityStats{}, err
	}
	now := s.now().In(nairobi)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, nairobi)
	week := now.Add(-7 * 24 * time.Hour)

	st := models.ActivityStats{Total: len(acts)}
	active := make(map[string]struct{})
	for _, a := range acts {
		if !a.CreatedAt.Before(today) {
			st.Today++
		}
		if !a.CreatedAt.Before(week) {
			st.Week++
			active[a.RiderID] = struct{}{}
		}
		switch a.Type {
		case models.ActivityDeliveryCompleted:
			st.Deliveries++
		case models.ActivityPaymentReceived:
			st.Payments++
		}
	}
	st.ActiveRiders = len(active)
	return st, nil
}
