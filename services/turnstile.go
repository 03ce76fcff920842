package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TurnstileVerifier checks Cloudflare Turnstile tokens with siteverify.
type TurnstileVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewTurnstileVerifier returns nil when no secret is configured.
func NewTurnstileVerifier(cfg BotCheckConfig) *TurnstileVerifier {
	if cfg.TurnstileSecret == "" {
		return nil
	}
	return &TurnstileVerifier{
		secret:    cfg.TurnstileSecret,
		verifyURL: cfg.TurnstileURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Verify reports whether token is a valid challenge response for ip.
func (t *TurnstileVerifier) Verify(ctx context.Context, token, ip string) (bool, error) {
	if token == "" {
		return false, nil
	}
	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if ip != "" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: turnstile request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: turnstile API error: %d", ErrUpstream, resp.StatusCode)
	}
	var parsed turnstileResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("%w: failed to parse turnstile response: %v", ErrUpstream, err)
	}
	return parsed.Success, nil
}
