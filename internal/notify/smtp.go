package notify

import (
	"context"
	"errors"
	"fmt"

	mail "github.com/wneessen/go-mail"
)

// Envelope is an addressed email ready for a transport.
type Envelope struct {
	Kind string   `json:"kind"`
	To   []string `json:"to"`
	Email
}

// Sender delivers an envelope. Implementations: SMTPSender delivers directly,
// Queue hands the envelope to the mailer worker.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) message(env Envelope) (*mail.Msg, error) {
	if len(env.To) == 0 {
		return nil, errors.New("no recipients")
	}
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(env.To...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(env.Subject)
	m.SetBodyString(mail.TypeTextPlain, env.Text)
	if env.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, env.HTML)
	}
	return m, nil
}

func (s *SMTPSender) Send(ctx context.Context, env Envelope) error {
	m, err := s.message(env)
	if err != nil {
		return err
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send %s: %w", env.Kind, err)
	}
	return nil
}

// LogSender stands in for SMTP when no relay is configured.
type LogSender struct {
	Log func(msg string, args ...any)
}

func (l LogSender) Send(ctx context.Context, env Envelope) error {
	if l.Log != nil {
		l.Log("email not sent: no smtp relay configured", "kind", env.Kind, "to", env.To, "subject", env.Subject)
	}
	return nil
}
