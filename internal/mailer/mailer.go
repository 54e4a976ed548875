package mailer

import (
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(to, subject, body string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer writes mail to the log instead of sending it. Used when no
// SMTP host is configured.
type LogMailer struct {
	log *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	return &LogMailer{log: logger}
}

func (m *LogMailer) Send(to, subject, body string) error {
	m.log.Printf("mail to %q: %s\n%s", to, subject, body)
	return nil
}

func PasswordResetMessage(link string) (subject, body string) {
	subject = "Reset your AgriTour password"
	body = fmt.Sprintf("We received a request to reset your password.\n\n"+
		"Open the link below to choose a new one. It expires in one hour.\n\n%s\n\n"+
		"If you did not ask for this you can ignore this email.\n", link)
	return subject, body
}
