package mailer

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/kleymenovo/survey-api/pkg/config"
)

// SMTPSender delivers verification codes by email. A send failure is
// reported to the caller but never invalidates the issued code.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender constructs a sender from configuration.
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SendCode delivers a one-time code to the given address. The display
// name, when known, personalises the greeting.
func (s *SMTPSender) SendCode(email, code, name string) error {
	greeting := "Здравствуйте!"
	if name != "" {
		greeting = fmt.Sprintf("Здравствуйте, %s!", name)
	}

	text := fmt.Sprintf(`%s

Ваш код подтверждения: %s

Код действует 10 минут с момента отправки.
Новый код можно запросить через 2 минуты.

Если вы не запрашивали этот код, просто проигнорируйте это письмо.`, greeting, code)

	html := fmt.Sprintf(`<p>%s</p>
<p>Ваш код подтверждения для продолжения опроса:</p>
<p style="font-size:32px;font-weight:bold;letter-spacing:3px">%s</p>
<p>Код действует 10 минут с момента отправки.<br>
Новый код можно запросить через 2 минуты.</p>
<p>Если вы не запрашивали этот код, просто проигнорируйте это письмо.</p>`, greeting, code)

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", s.cfg.Subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if s.cfg.Port == 465 {
		d.SSL = true
	}

	if err := d.DialAndSend(m); err != nil {
		s.logger.Warn("verification mail send failed", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("send verification mail: %w", err)
	}

	return nil
}
