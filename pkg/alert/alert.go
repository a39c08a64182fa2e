// Package alert sends best-effort email notifications for high-risk
// detections. Send never returns an error: a failure is logged and reported
// as an outcome so the pipeline caller can never be broken by the mailer.
package alert

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	smtpPkg "net/smtp"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"VisionGuard/internal/entity"
)

type SendOutcome int

const (
	// SendSkipped means the notifier is not fully configured and no send
	// was attempted.
	SendSkipped SendOutcome = iota
	SendFailed
	SendOK
)

func (o SendOutcome) String() string {
	switch o {
	case SendSkipped:
		return "skipped"
	case SendFailed:
		return "failed"
	default:
		return "sent"
	}
}

type INotifier interface {
	Enabled() bool
	Send(event entity.AlertEvent) SendOutcome
}

type notifier struct {
	host      string
	port      string
	username  string
	password  string
	recipient string
	sender    string
	subject   string
	useSSL    bool
	useTLS    bool
	log       *logrus.Logger

	// deliver is swapped out by tests.
	deliver func(n *notifier, msg []byte) error
}

func New(log *logrus.Logger) INotifier {
	n := &notifier{
		host:      os.Getenv("SMTP_HOST"),
		port:      envDefault("SMTP_PORT", "587"),
		username:  os.Getenv("SMTP_USERNAME"),
		password:  os.Getenv("SMTP_PASSWORD"),
		recipient: os.Getenv("ALERT_EMAIL_TO"),
		subject:   os.Getenv("ALERT_EMAIL_SUBJECT"),
		useSSL:    boolEnv("SMTP_USE_SSL", false),
		useTLS:    boolEnv("SMTP_USE_TLS", true),
		log:       log,
	}

	n.sender = os.Getenv("ALERT_EMAIL_FROM")
	if n.sender == "" {
		n.sender = n.username
	}
	if n.sender == "" {
		n.sender = n.recipient
	}

	n.deliver = (*notifier).send
	return n
}

// Enabled reports whether all four send preconditions are configured.
func (n *notifier) Enabled() bool {
	return n.recipient != "" && n.host != "" && n.username != "" && n.password != ""
}

func (n *notifier) Send(event entity.AlertEvent) SendOutcome {
	if !n.Enabled() {
		return SendSkipped
	}

	msg, err := n.buildMessage(event)
	if err != nil {
		n.log.Warnf("failed to build alert message: %v", err)
		return SendFailed
	}

	if err := n.deliver(n, msg); err != nil {
		n.log.Warnf("failed to send alert email: %v", err)
		return SendFailed
	}

	return SendOK
}

func (n *notifier) buildMessage(event entity.AlertEvent) ([]byte, error) {
	subject := n.subject
	if subject == "" {
		subject = fmt.Sprintf("High risk detected (%s)", event.Source)
	}

	boundary := "visionguard-alert-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.sender)
	fmt.Fprintf(&b, "To: %s\r\n", n.recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(buildBody(event))
	b.WriteString("\r\n")

	if data, filename := attachment(event); len(data) > 0 {
		mimeType := mime.TypeByExtension(filepath.Ext(filename))
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", mimeType)
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", filename)
		b.WriteString(base64.StdEncoding.EncodeToString(data))
		b.WriteString("\r\n")
	}

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String()), nil
}

func buildBody(event entity.AlertEvent) string {
	lines := []string{
		"A new high-risk event was detected.",
		fmt.Sprintf("Source: %s", event.Source),
		fmt.Sprintf("Score: %.3f", event.Score),
	}
	if len(event.Indicators) > 0 {
		lines = append(lines, "Indicators: "+strings.Join(event.Indicators, ", "))
	}

	keys := make([]string, 0, len(event.Extra))
	for k := range event.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if event.Extra[k] != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", k, event.Extra[k]))
		}
	}

	return strings.Join(lines, "\r\n")
}

func attachment(event entity.AlertEvent) ([]byte, string) {
	data := event.ImageBytes
	filename := event.Filename

	if len(data) == 0 && event.ImagePath != "" {
		fileData, err := os.ReadFile(event.ImagePath)
		if err == nil {
			data = fileData
			if filename == "" {
				filename = filepath.Base(event.ImagePath)
			}
		}
	}
	if len(data) == 0 {
		return nil, ""
	}
	if filename == "" {
		filename = "frame.jpg"
	}
	return data, filename
}

func (n *notifier) send(msg []byte) error {
	addr := n.host + ":" + n.port
	auth := smtpPkg.PlainAuth("", n.username, n.password, n.host)

	if !n.useSSL && n.useTLS {
		// SendMail upgrades with STARTTLS when the server offers it.
		return smtpPkg.SendMail(addr, auth, n.sender, []string{n.recipient}, msg)
	}

	var client *smtpPkg.Client
	var err error
	if n.useSSL {
		conn, dialErr := tls.Dial("tcp", addr, &tls.Config{ServerName: n.host})
		if dialErr != nil {
			return dialErr
		}
		client, err = smtpPkg.NewClient(conn, n.host)
		if err != nil {
			conn.Close()
			return err
		}
	} else {
		client, err = smtpPkg.Dial(addr)
		if err != nil {
			return err
		}
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(n.sender); err != nil {
		return err
	}
	if err := client.Rcpt(n.recipient); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
