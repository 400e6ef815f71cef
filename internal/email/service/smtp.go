package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/corvusHold/changenotify/internal/config"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Ensure SMTP implements domain.Transport
var _ edomain.Transport = (*SMTP)(nil)

type SMTP struct {
	cfg      config.Config
	settings sdomain.Service
	dialer   net.Dialer
}

func NewSMTP(settings sdomain.Service, cfg config.Config) *SMTP {
	return &SMTP{settings: settings, cfg: cfg, dialer: net.Dialer{Timeout: 10 * time.Second}}
}

func (s *SMTP) Send(ctx context.Context, m edomain.Message) (int, error) {
	host, _ := s.settings.GetString(ctx, sdomain.KeySMTPHost, s.cfg.SMTPHost)
	port, _ := s.settings.GetInt(ctx, sdomain.KeySMTPPort, s.cfg.SMTPPort)
	username, _ := s.settings.GetString(ctx, sdomain.KeySMTPUsername, s.cfg.SMTPUsername)
	password, _ := s.settings.GetString(ctx, sdomain.KeySMTPPassword, s.cfg.SMTPPassword)
	if host == "" {
		return 0, edomain.ErrNotConfigured
	}
	from := m.FromAddress
	if from == "" {
		from = s.cfg.SMTPFrom
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return 0, fmt.Errorf("smtp dial: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return 0, fmt.Errorf("smtp greeting: %w", err)
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return 0, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if username != "" {
		if err := c.Auth(smtp.PlainAuth("", username, password, host)); err != nil {
			return 0, fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return 0, fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(m.To); err != nil {
		if rejected(err) {
			_ = c.Reset()
			return 0, nil
		}
		return 0, fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return 0, fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(from, m, time.Now())); err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("smtp data end: %w", err)
	}
	_ = c.Quit()
	return 1, nil
}

// rejected reports a permanent recipient refusal (5xx).
func rejected(err error) bool {
	var te *textproto.Error
	return errors.As(err, &te) && te.Code >= 500 && te.Code < 600
}

func buildMessage(from string, m edomain.Message, now time.Time) []byte {
	var b bytes.Buffer
	sender := mail.Address{Name: m.FromName, Address: from}
	fmt.Fprintf(&b, "From: %s\r\n", sender.String())
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.Write(bytes.ReplaceAll(bytes.ReplaceAll([]byte(m.Body), []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n")))
	b.WriteString("\r\n")
	return b.Bytes()
}
