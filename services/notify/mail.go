package notify

import (
	"context"
	"fmt"
	"sync"

	"lead-routing/logger"

	"gopkg.in/gomail.v2"
)

// MailConfig mirrors the SMTP settings in config.Config.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// MailSink emails notifications to a fixed recipient list. A recipient the
// server rejects is removed from the list.
type MailSink struct {
	mu         sync.Mutex
	from       string
	recipients []string
	dial       func() (gomail.SendCloser, error)
	log        *logger.Logger
}

func NewMailSink(cfg MailConfig, recipients []string, log *logger.Logger) (*MailSink, error) {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	if from == "" {
		return nil, fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}
	if log == nil {
		log = logger.Default()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &MailSink{
		from:       from,
		recipients: append([]string(nil), recipients...),
		dial:       d.Dial,
		log:        log,
	}, nil
}

// Recipients returns the current recipient list.
func (s *MailSink) Recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recipients...)
}

func (s *MailSink) Notify(_ context.Context, n Notification) {
	if err := s.Send(n); err != nil {
		s.log.Warn("notification email failed: %v", err)
	}
}

// Send delivers n to each recipient over one SMTP session.
func (s *MailSink) Send(n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.recipients) == 0 {
		return nil
	}

	sender, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to smtp: %w", err)
	}
	defer sender.Close()

	kept := s.recipients[:0]
	for _, to := range s.recipients {
		m := gomail.NewMessage()
		m.SetHeader("From", s.from)
		m.SetHeader("To", to)
		m.SetHeader("Subject", fmt.Sprintf("Lead queue update (%s)", n.InstitutionID))
		m.SetBody("text/plain", n.Message)

		if err := gomail.Send(sender, m); err != nil {
			s.log.Warn("dropping notification recipient %s: %v", to, err)
			continue
		}
		kept = append(kept, to)
	}
	s.recipients = kept
	return nil
}
