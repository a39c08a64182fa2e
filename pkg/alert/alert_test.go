package alert

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VisionGuard/internal/entity"
)

func clearMailEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD",
		"ALERT_EMAIL_TO", "ALERT_EMAIL_FROM", "ALERT_EMAIL_SUBJECT",
		"SMTP_USE_SSL", "SMTP_USE_TLS",
	} {
		t.Setenv(key, "")
	}
}

func configureMailEnv(t *testing.T) {
	t.Helper()
	clearMailEnv(t)
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_USERNAME", "monitor@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("ALERT_EMAIL_TO", "oncall@example.com")
}

func TestSendSkippedWhenNotConfigured(t *testing.T) {
	clearMailEnv(t)
	t.Setenv("SMTP_HOST", "mail.example.com")
	// Credentials deliberately absent.

	n := New(logrus.New())
	assert.False(t, n.Enabled())
	assert.Equal(t, SendSkipped, n.Send(entity.AlertEvent{Score: 0.9, Source: "cam1"}))
}

func TestSendFailureIsCaught(t *testing.T) {
	configureMailEnv(t)

	n := New(logrus.New()).(*notifier)
	n.deliver = func(*notifier, []byte) error {
		return errors.New("connection refused")
	}

	assert.Equal(t, SendFailed, n.Send(entity.AlertEvent{Score: 0.9, Source: "cam1"}))
}

func TestSendBuildsMessageWithAttachment(t *testing.T) {
	configureMailEnv(t)
	t.Setenv("ALERT_EMAIL_SUBJECT", "custom subject")

	var captured []byte
	n := New(logrus.New()).(*notifier)
	n.deliver = func(_ *notifier, msg []byte) error {
		captured = msg
		return nil
	}

	outcome := n.Send(entity.AlertEvent{
		Score:      0.87,
		Indicators: []string{"rope", "ledge"},
		Source:     "cam1",
		ImageBytes: []byte{0xff, 0xd8, 0xff},
		Filename:   "frame.png",
		Extra:      map[string]string{"Gallery": "/gallery/x.jpg"},
	})

	require.Equal(t, SendOK, outcome)
	body := string(captured)
	assert.Contains(t, body, "Subject: custom subject")
	assert.Contains(t, body, "To: oncall@example.com")
	assert.Contains(t, body, "Score: 0.870")
	assert.Contains(t, body, "Indicators: rope, ledge")
	assert.Contains(t, body, "Gallery: /gallery/x.jpg")
	assert.Contains(t, body, "Content-Type: image/png")
	assert.Contains(t, body, `filename="frame.png"`)
}

func TestSenderFallbackChain(t *testing.T) {
	configureMailEnv(t)
	n := New(logrus.New()).(*notifier)
	assert.Equal(t, "monitor@example.com", n.sender)

	clearMailEnv(t)
	t.Setenv("ALERT_EMAIL_TO", "oncall@example.com")
	n = New(logrus.New()).(*notifier)
	assert.Equal(t, "oncall@example.com", n.sender)

	configureMailEnv(t)
	t.Setenv("ALERT_EMAIL_FROM", "alerts@example.com")
	n = New(logrus.New()).(*notifier)
	assert.Equal(t, "alerts@example.com", n.sender)
}
