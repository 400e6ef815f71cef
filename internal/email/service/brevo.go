package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corvusHold/changenotify/internal/config"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Ensure Brevo implements domain.Transport
var _ edomain.Transport = (*Brevo)(nil)

type Brevo struct {
	cfg      config.Config
	settings sdomain.Service
	http     *http.Client
}

func NewBrevo(settings sdomain.Service, cfg config.Config) *Brevo {
	if cfg.BrevoBaseURL == "" {
		cfg.BrevoBaseURL = "https://api.brevo.com"
	}
	return &Brevo{settings: settings, cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoEmail struct {
	To          []brevoContact `json:"to"`
	Sender      brevoContact   `json:"sender"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent"`
}

type brevoResponse struct {
	MessageID  string   `json:"messageId"`
	MessageIDs []string `json:"messageIds"`
}

func (b *Brevo) Send(ctx context.Context, m edomain.Message) (int, error) {
	apiKey, _ := b.settings.GetString(ctx, sdomain.KeyBrevoAPIKey, b.cfg.BrevoAPIKey)
	sender := m.FromAddress
	if sender == "" {
		sender = b.cfg.BrevoSender
	}
	if apiKey == "" || sender == "" {
		return 0, fmt.Errorf("brevo: %w", edomain.ErrNotConfigured)
	}
	payload := brevoEmail{
		To:          []brevoContact{{Email: m.To}},
		Sender:      brevoContact{Email: sender, Name: m.FromName},
		Subject:     m.Subject,
		TextContent: m.Body,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BrevoBaseURL+"/v3/smtp/email", bytes.NewReader(buf))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", apiKey)
	resp, err := b.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("brevo send failed: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	var out brevoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("brevo response: %w", err)
	}
	if out.MessageID == "" && len(out.MessageIDs) == 0 {
		return 0, nil
	}
	return 1, nil
}
