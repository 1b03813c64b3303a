package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/inkforge/studio-backend/pkg/config"
)

// Sender delivers transactional email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender sends mail over a configured SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender returns a sender backed by cfg. Host and From are mandatory;
// username/password are optional for relays that accept unauthenticated mail.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
