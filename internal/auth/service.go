package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/storage"
)

const minPasswordLength = 8

var errBadCredentials = fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized)

type Service struct {
	accounts storage.AccountStore
	riders   storage.RiderStore
	hasher   PasswordHasher
	tokens   *TokenIssuer
	sessions SessionStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(accounts storage.AccountStore, riders storage.RiderStore, hasher PasswordHasher,
	tokens *TokenIssuer, sessions SessionStore, logger *slog.Logger) *Service {
	if sessions == nil {
		sessions = NewMemorySessions()
	}
	return &Service{
		accounts: accounts,
		riders:   riders,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

type SignupInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Validate checks the fields every account needs.
func (in SignupInput) Validate() error {
	if err := models.RequireFields("fullName", in.FullName, "email", in.Email, "phone", in.Phone, "password", in.Password); err != nil {
		return err
	}
	if !strings.Contains(in.Email, "@") {
		return models.NewValidationError("invalid email address", "email")
	}
	if len(in.Password) < minPasswordLength {
		return models.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength), "password")
	}
	return nil
}

// Signup registers a customer account.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.Account, error) {
	return s.CreateAccount(ctx, in, models.KindCustomer, "")
}

// CreateAccount stores a new active account of the given kind with a hashed password.
// Rider accounts are created by the rider signup flow, which passes the rider id.
func (s *Service) CreateAccount(ctx context.Context, in SignupInput, kind models.AccountKind, riderID string) (*models.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.insert(ctx, in, kind, riderID)
}

func (s *Service) insert(ctx context.Context, in SignupInput, kind models.AccountKind, riderID string) (*models.Account, error) {
	hash, err := s.hasher.HashPassword(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	a := &models.Account{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        models.NormalizeEmail(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		Kind:         kind,
		PasswordHash: hash,
		RiderID:      riderID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("account created", "account_id", a.ID, "kind", a.Kind)
	return a, nil
}

type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Account   *models.Account `json:"user"`
}

// Login checks the password and issues a session token. Riders may only log
// in once their application is approved and they are active.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := models.RequireFields("email", email, "password", password); err != nil {
		return nil, err
	}
	a, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.VerifyPassword(ctx, password, a.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "account_id", a.ID, "error", err)
		return nil, errBadCredentials
	}
	if !ok {
		return nil, errBadCredentials
	}
	if err := s.checkStanding(ctx, a, models.ErrForbidden); err != nil {
		return nil, err
	}
	token, p, err := s.tokens.Issue(a)
	if err != nil {
		return nil, err
	}
	now := s.now()
	a, err = s.accounts.UpdateAccount(ctx, a.ID, func(acc *models.Account) error {
		acc.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: p.ExpiresAt, Account: a}, nil
}

// checkStanding reports whether a may hold a session: the account is active
// and, for riders, the application is approved and the rider active.
func (s *Service) checkStanding(ctx context.Context, a *models.Account, kind error) error {
	if !a.IsActive {
		return fmt.Errorf("%w: account is deactivated", kind)
	}
	if a.Kind != models.KindRider {
		return nil
	}
	r, err := s.riders.GetRider(ctx, a.RiderID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: rider profile not found", kind)
	}
	if err != nil {
		return err
	}
	if r.Status != models.RiderApproved {
		return fmt.Errorf("%w: rider application is %s", kind, r.Status)
	}
	if !r.IsActive {
		return fmt.Errorf("%w: rider account is inactive", kind)
	}
	return nil
}

// Authenticate verifies a bearer token, that it has not been revoked and that
// the account behind it still exists in good standing.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	p, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	revoked, err := s.sessions.IsRevoked(ctx, p.TokenID)
	if err != nil {
		return Principal{}, fmt.Errorf("session lookup: %w", err)
	}
	if revoked {
		return Principal{}, fmt.Errorf("%w: session has been logged out", models.ErrUnauthorized)
	}
	a, err := s.accounts.GetAccount(ctx, p.AccountID)
	if errors.Is(err, models.ErrNotFound) {
		return Principal{}, fmt.Errorf("%w: account no longer exists", models.ErrUnauthorized)
	}
	if err != nil {
		return Principal{}, fmt.Errorf("account lookup: %w", err)
	}
	if err := s.checkStanding(ctx, a, models.ErrUnauthorized); err != nil {
		return Principal{}, err
	}
	p.Kind = a.Kind
	return p, nil
}

func (s *Service) Logout(ctx context.Context, p Principal) error {
	return s.sessions.Revoke(ctx, p.TokenID, p.ExpiresAt)
}

func (s *Service) Profile(ctx context.Context, id string) (*models.Account, error) {
	return s.accounts.GetAccount(ctx, id)
}

type ProfileUpdate struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*models.Account, error) {
	if in.FullName != nil && strings.TrimSpace(*in.FullName) == "" {
		return nil, models.NewValidationError("fullName cannot be empty", "fullName")
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) == "" {
		return nil, models.NewValidationError("phone cannot be empty", "phone")
	}
	return s.accounts.UpdateAccount(ctx, id, func(a *models.Account) error {
		if in.FullName != nil {
			a.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.Phone != nil {
			a.Phone = strings.TrimSpace(*in.Phone)
		}
		a.UpdatedAt = s.now()
		return nil
	})
}

type AccountStats struct {
	Total     int `json:"total"`
	Customers int `json:"customers"`
	Riders    int `json:"riders"`
	Active    int `json:"active"`
}

func (s *Service) List(ctx context.Context) ([]*models.Account, AccountStats, error) {
	all, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, AccountStats{}, err
	}
	st := AccountStats{Total: len(all)}
	for _, a := range all {
		switch a.Kind {
		case models.KindCustomer:
			st.Customers++
		case models.KindRider:
			st.Riders++
		}
		if a.IsActive {
			st.Active++
		}
	}
	return all, st, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	return s.accounts.UpdateAccount(ctx, id, func(a *models.Account) error {
		if a.IsActive == active {
			return storage.ErrSkip
		}
		a.IsActive = active
		a.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if a.Kind == models.KindAdmin {
		return fmt.Errorf("%w: admin accounts cannot be deleted", models.ErrForbidden)
	}
	return s.accounts.DeleteAccount(ctx, id)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.accounts.GetAccountByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if len(password) < minPasswordLength {
		return models.NewValidationError(fmt.Sprintf("admin password must be at least %d characters", minPasswordLength), "password")
	}
	a, err := s.insert(ctx, SignupInput{FullName: "Administrator", Email: email, Password: password}, models.KindAdmin, "")
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info("admin account bootstrapped", "account_id", a.ID)
	return nil
}
