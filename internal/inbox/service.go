package inbox

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/storage"
)

// Notifier is told about new partnership requests.
type Notifier interface {
	PartnershipReceived(p *models.PartnershipRequest)
}

// Service handles contact-form messages and partnership requests.
type Service struct {
	messages     storage.MessageStore
	partnerships storage.PartnershipStore
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
}

func NewService(messages storage.MessageStore, partnerships storage.PartnershipStore, n Notifier, logger *slog.Logger) *Service {
	return &Service{messages: messages, partnerships: partnerships, notifier: n, logger: logging.OrDiscard(logger), now: time.Now}
}

type MessageInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (s *Service) CreateMessage(ctx context.Context, in MessageInput) (*models.Message, error) {
	if err := models.RequireFields("name", in.Name, "email", in.Email, "subject", in.Subject, "message", in.Message); err != nil {
		return nil, err
	}
	now := s.now()
	m := &models.Message{
		Name:      strings.TrimSpace(in.Name),
		Email:     models.NormalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Subject:   strings.TrimSpace(in.Subject),
		Body:      strings.TrimSpace(in.Message),
		Status:    models.MessageNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.messages.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("contact message received", "message_id", m.ID)
	return m, nil
}

// ListMessages returns messages newest first and how many are still unread.
func (s *Service) ListMessages(ctx context.Context) ([]*models.Message, int, error) {
	all, err := s.messages.ListMessages(ctx)
	if err != nil {
		return nil, 0, err
	}
	unread := 0
	for _, m := range all {
		if m.Status == models.MessageNew {
			unread++
		}
	}
	return all, unread, nil
}

func (s *Service) SetMessageStatus(ctx context.Context, id, status string) (*models.Message, error) {
	st, err := models.ParseMessageStatus(status)
	if err != nil {
		return nil, err
	}
	return s.messages.UpdateMessage(ctx, id, func(m *models.Message) error {
		if m.Status == st {
			return storage.ErrSkip
		}
		m.Status = st
		m.UpdatedAt = s.now()
		return nil
	})
}

type PartnershipInput struct {
	CompanyName      string `json:"companyName"`
	ContactPerson    string `json:"contactPerson"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	BusinessCategory string `json:"businessCategory"`
	MonthlyVolume    string `json:"monthlyVolume"`
	Message          string `json:"message"`
}

func (s *Service) CreatePartnership(ctx context.Context, in PartnershipInput) (*models.PartnershipRequest, error) {
	if err := models.RequireFields(
		"companyName", in.CompanyName, "contactPerson", in.ContactPerson, "email", in.Email,
		"phone", in.Phone, "businessCategory", in.BusinessCategory, "monthlyVolume", in.MonthlyVolume,
	); err != nil {
		return nil, err
	}
	now := s.now()
	p := &models.PartnershipRequest{
		CompanyName:      strings.TrimSpace(in.CompanyName),
		ContactPerson:    strings.TrimSpace(in.ContactPerson),
		Email:            models.NormalizeEmail(in.Email),
		Phone:            strings.TrimSpace(in.Phone),
		BusinessCategory: strings.TrimSpace(in.BusinessCategory),
		MonthlyVolume:    strings.TrimSpace(in.MonthlyVolume),
		Message:          strings.TrimSpace(in.Message),
		Status:           models.PartnershipPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.partnerships.CreatePartnership(ctx, p); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.PartnershipReceived(p)
	}
	s.logger.Info("partnership request received", "partnership_id", p.ID, "company", p.CompanyName)
	return p, nil
}

type PartnershipStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

func (s *Service) ListPartnerships(ctx context.Context) ([]*models.PartnershipRequest, PartnershipStats, error) {
	all, err := s.partnerships.ListPartnerships(ctx)
	if err != nil {
		return nil, PartnershipStats{}, err
	}
	st := PartnershipStats{Total: len(all)}
	for _, p := range all {
		switch p.Status {
		case models.PartnershipPending:
			st.Pending++
		case models.PartnershipApproved:
			st.Approved++
		case models.PartnershipRejected:
			st.Rejected++
		}
	}
	return all, st, nil
}

func (s *Service) SetPartnershipStatus(ctx context.Context, id, status string) (*models.PartnershipRequest, error) {
	st, err := models.ParsePartnershipStatus(status)
	if err != nil {
		return nil, err
	}
	return s.partnerships.UpdatePartnership(ctx, id, func(p *models.PartnershipRequest) error {
		if p.Status == st {
			return storage.ErrSkip
		}
		p.Status = st
		p.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) DeletePartnership(ctx context.Context, id string) error {
	return s.partnerships.DeletePartnership(ctx, id)
}
