package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"feedwatch/internal/domain"
)

// MailConfig is the SMTP account used for digests. The account mails itself
// unless To is set.
type MailConfig struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,min=1,max=65535"`
	Username string `validate:"required,email"`
	Password string `validate:"required"`
	To       string `validate:"required,email"`
}

// MailSink sends the HTML digest over SMTP with implicit TLS.
type MailSink struct {
	cfg MailConfig
	log logrus.FieldLogger
}

func NewMailSink(cfg MailConfig, logger logrus.FieldLogger) *MailSink {
	if cfg.To == "" {
		cfg.To = cfg.Username
	}
	return &MailSink{cfg: cfg, log: logger.WithField("component", "mail_sink")}
}

func (s *MailSink) Name() string { return "mail" }

func (s *MailSink) Validate() error {
	return validate.Struct(s.cfg)
}

func (s *MailSink) Send(ctx context.Context, msg Message) error {
	m, err := s.newMsg(msg)
	if err != nil {
		return fmt.Errorf("%w: failed to build mail: %w", domain.ErrDelivery, err)
	}

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to create SMTP client: %w", domain.ErrDelivery, err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: failed to send mail: %w", domain.ErrDelivery, err)
	}
	s.log.WithFields(logrus.Fields{
		"to":      s.cfg.To,
		"subject": msg.Subject,
	}).Info("Mail sent")
	return nil
}

func (s *MailSink) newMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(siteName, s.cfg.Username); err != nil {
		return nil, err
	}
	if err := m.To(s.cfg.To); err != nil {
		return nil, err
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}
