package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/eReuse/DeviceWare/internal/config"
)

// Mailer sends notification e-mails through a single SMTP server.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// Sender is the part of Mailer the hook layer needs; it allows tests to
// substitute a fake transport.
type Sender interface {
	SendBatch(msgs []*gomail.Message) error
	From() string
}

func NewMailer(cfg *config.SMTPConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *Mailer) From() string {
	return m.from
}

// SendBatch sends all messages over one SMTP connection. The connection
// is closed when the batch finishes, also on failure.
func (m *Mailer) SendBatch(msgs []*gomail.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	conn, err := m.dialer.Dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	for _, msg := range msgs {
		if err := gomail.Send(conn, msg); err != nil {
			return fmt.Errorf("failed to send mail: %w", err)
		}
	}

	m.logger.Info("Sent mail batch",
		zap.Int("message_count", len(msgs)),
	)
	return nil
}
