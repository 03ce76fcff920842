package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Email is one outgoing message.
type Email struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	// BCCBusiness copies the spa's own inbox on customer-facing mail.
	BCCBusiness bool
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// EmailService sends mail through the Resend API.
type EmailService struct {
	apiKey        string
	baseURL       string
	from          string
	businessEmail string
	client        *http.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func NewEmailService(cfg EmailConfig, businessEmail string) *EmailService {
	return &EmailService{
		apiKey:        cfg.ResendAPIKey,
		baseURL:       strings.TrimRight(cfg.ResendBaseURL, "/"),
		from:          cfg.From,
		businessEmail: businessEmail,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// BusinessEmail is the address internal notifications go to.
func (e *EmailService) BusinessEmail() string {
	return e.businessEmail
}

func (e *EmailService) Send(ctx context.Context, email Email) (err error) {
	defer func() { emailSentTotal.WithLabelValues(outcome(err)).Inc() }()

	if e.apiKey == "" || e.from == "" {
		return fmt.Errorf("%w: resend", ErrNotConfigured)
	}
	if len(email.To) == 0 {
		return fmt.Errorf("%w: email has no recipients", ErrInvalidInput)
	}

	request := resendRequest{
		From:    e.from,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	}
	if email.BCCBusiness && e.businessEmail != "" {
		request.Bcc = []string{e.businessEmail}
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/emails", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: resend request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: resend API error: %d - %s", ErrUpstream, resp.StatusCode, truncate(string(body), 300))
	}

	var parsed resendResponse
	_ = json.Unmarshal(body, &parsed)
	slog.Info("Email sent", "email_id", parsed.ID, "subject", email.Subject, "recipients", len(email.To))
	return nil
}
