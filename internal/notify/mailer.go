package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Notifier delivers a composed message using the given SMTP settings.
type Notifier interface {
	Send(ctx context.Context, cfg *models.EmailConfig, msg Message) error
}

// Mailer sends notifications over SMTP.
type Mailer struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewMailer returns an SMTP mailer. A non-positive timeout uses 30 seconds.
func NewMailer(timeout time.Duration, logger *zap.Logger) *Mailer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{timeout: timeout, logger: logger.Named("mailer")}
}

// Send delivers msg to every recipient of cfg. Implicit TLS is used unless cfg
// disables it, in which case STARTTLS is required.
func (m *Mailer) Send(ctx context.Context, cfg *models.EmailConfig, msg Message) error {
	if cfg == nil {
		return fmt.Errorf("%w: email is not configured", models.ErrNotFound)
	}
	mm, err := buildMessage(cfg, msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(m.timeout),
	}
	if cfg.SSL() {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.SMTPServer, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	m.logger.Info("notification sent",
		zap.String("subject", msg.Subject),
		zap.Int("recipients", len(cfg.ToEmails)),
	)
	return nil
}

func buildMessage(cfg *models.EmailConfig, msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("%w: from address: %v", models.ErrInvalidInput, err)
	}
	if err := mm.To(cfg.ToEmails...); err != nil {
		return nil, fmt.Errorf("%w: recipient address: %v", models.ErrInvalidInput, err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		mm.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return mm, nil
}
