package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// SMSSender delivers one text message and returns the provider message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// SMSService sends messages through the Telnyx v2 messaging API.
type SMSService struct {
	apiKey    string
	baseURL   string
	from      string
	profileID string
	client    *http.Client
}

type telnyxRequest struct {
	From               string `json:"from,omitempty"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
}

type telnyxResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func NewSMSService(cfg SMSConfig) *SMSService {
	return &SMSService{
		apiKey:    cfg.TelnyxAPIKey,
		baseURL:   strings.TrimRight(cfg.TelnyxBaseURL, "/"),
		from:      cfg.FromNumber,
		profileID: cfg.MessagingProfileID,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether credentials and a sender are set.
func (s *SMSService) Configured() bool {
	return s.apiKey != "" && (s.from != "" || s.profileID != "")
}

func (s *SMSService) SendSMS(ctx context.Context, to, body string) (id string, err error) {
	defer func() { smsSentTotal.WithLabelValues(outcome(err)).Inc() }()

	if !s.Configured() {
		return "", fmt.Errorf("%w: telnyx", ErrNotConfigured)
	}
	phone, err := NormalizePhone(to)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	jsonData, err := json.Marshal(telnyxRequest{
		From:               s.from,
		To:                 phone,
		Text:               body,
		MessagingProfileID: s.profileID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: telnyx request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: telnyx API error: %d - %s", ErrUpstream, resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed telnyxResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to parse telnyx response: %v", ErrUpstream, err)
	}
	slog.Info("SMS sent", "message_id", parsed.Data.ID)
	return parsed.Data.ID, nil
}

var errInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a user-entered number to E.164. Ten-digit numbers
// are treated as North American.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errInvalidPhone
	}
	international := strings.HasPrefix(raw, "+")

	var digits strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", errInvalidPhone
		}
	}
	d := digits.String()

	switch {
	case international && len(d) >= 8 && len(d) <= 15 && d[0] != '0':
		return "+" + d, nil
	case !international && len(d) == 10:
		return "+1" + d, nil
	case !international && len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	default:
		return "", errInvalidPhone
	}
}

// NormalizePhones normalises and de-duplicates a recipient list, dropping
// entries that are not valid numbers.
func NormalizePhones(raw []string) (phones []string, rejected []string) {
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		n, err := NormalizePhone(p)
		if err != nil {
			rejected = append(rejected, p)
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		phones = append(phones, n)
	}
	return phones, rejected
}
