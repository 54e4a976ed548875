package mailer

import (
	"testing"

	"github.com/npezzotti/go-agritour/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLogMailer(t *testing.T) {
	logger := testutil.TestLogger(t)
	buf := testutil.CaptureLogger(logger)

	m := NewLogMailer(logger)
	err := m.Send("jane@example.com", "hello", "body text")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `mail to "jane@example.com": hello`)
	assert.Contains(t, buf.String(), "body text")
}

func TestPasswordResetMessage(t *testing.T) {
	subject, body := PasswordResetMessage("http://localhost:8000/reset?token=abc")
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "http://localhost:8000/reset?token=abc")
}

func TestNewSMTPMailer(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "noreply@example.com")
	assert.Equal(t, "smtp.example.com", m.dialer.Host)
	assert.Equal(t, 587, m.dialer.Port)
	assert.Equal(t, "noreply@example.com", m.from)
}
