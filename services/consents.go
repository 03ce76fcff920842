package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

type ConsentRequest struct {
	ClientID string `json:"client_id" validate:"required,uuid"`
	Title    string `json:"title" validate:"required,max=255"`
	Body     string `json:"body" validate:"required"`
}

type SignConsentRequest struct {
	SignatureName string `json:"signature_name" validate:"required,max=255"`
	Agree         bool   `json:"agree"`
}

type ConsentService struct {
	repo      *repository.GORMRepository
	mailer    Mailer
	sms       SMSSender
	events    EventPublisher
	sanitizer *ContentSanitizer
	siteURL   string
	now       func() time.Time
}

func NewConsentService(repo *repository.GORMRepository, mailer Mailer, sms SMSSender, events EventPublisher, sanitizer *ContentSanitizer, siteURL string) *ConsentService {
	return &ConsentService{
		repo:      repo,
		mailer:    mailer,
		sms:       sms,
		events:    events,
		sanitizer: sanitizer,
		siteURL:   siteURL,
		now:       time.Now,
	}
}

// Request creates a pending consent form and tells the client about it.
// The form is kept even when both notifications fail.
func (s *ConsentService) Request(ctx context.Context, requestedBy string, req ConsentRequest) (*models.ConsentForm, error) {
	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil || client.Status != models.ClientStatusActive {
		return nil, fmt.Errorf("%w: client", ErrNotFound)
	}

	form := &models.ConsentForm{
		ClientID:    client.ID,
		Title:       req.Title,
		Body:        s.sanitizer.SanitizeHTML(req.Body),
		Status:      models.ConsentPending,
		RequestedBy: requestedBy,
	}
	if err := s.repo.CreateConsentForm(ctx, form); err != nil {
		return nil, fmt.Errorf("failed to create consent form: %w", err)
	}

	s.notify(ctx, client, form)
	return form, nil
}

func (s *ConsentService) notify(ctx context.Context, client *models.Client, form *models.ConsentForm) {
	link := fmt.Sprintf("%s/portal/consents/%s", s.siteURL, form.ID)

	if s.mailer != nil && client.Email != "" {
		err := s.mailer.Send(ctx, Email{
			To:      []string{client.Email},
			Subject: "Please review and sign: " + form.Title,
			HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Please review and sign <strong>%s</strong> before your visit.</p><p><a href="%s">Open the form</a></p>`,
				html.EscapeString(client.FirstName), html.EscapeString(form.Title), link),
			BCCBusiness: true,
		})
		if err != nil {
			slog.Warn("Failed to email consent request", "error", err, "consent_id", form.ID)
		}
	}

	if s.sms != nil && client.Phone != "" && client.SMSOptIn {
		body := fmt.Sprintf("Hi %s, please sign \"%s\" before your visit: %s", client.FirstName, form.Title, link)
		if _, err := s.sms.SendSMS(ctx, client.Phone, body); err != nil {
			slog.Warn("Failed to text consent request", "error", err, "consent_id", form.ID)
		}
	}
}

// Sign records the owning client's signature on a pending form.
func (s *ConsentService) Sign(ctx context.Context, user *models.User, formID string, req SignConsentRequest, ip string) (*models.ConsentForm, error) {
	if !req.Agree {
		return nil, fmt.Errorf("%w: agreement is required", ErrInvalidInput)
	}
	client, err := s.repo.GetClientByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	form, err := s.repo.GetConsentForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to get consent form: %w", err)
	}
	// Forms of other clients look missing.
	if client == nil || form == nil || form.ClientID != client.ID {
		return nil, fmt.Errorf("%w: consent form", ErrNotFound)
	}

	signed, err := s.repo.SignConsentForm(ctx, form.ID, req.SignatureName, ip, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to sign consent form: %w", err)
	}
	if !signed {
		return nil, fmt.Errorf("%w: consent form is %s", ErrConflict, form.Status)
	}

	if reloaded, err := s.repo.GetConsentForm(ctx, formID); err == nil && reloaded != nil {
		form = reloaded
	}
	publish(s.events, EventConsentSigned, map[string]interface{}{
		"consent_id": form.ID,
		"client_id":  client.ID,
		"title":      form.Title,
	})
	slog.Info("Consent form signed", "consent_id", form.ID, "client_id", client.ID)
	return form, nil
}

func (s *ConsentService) Revoke(ctx context.Context, id string) error {
	if err := s.repo.RevokeConsentForm(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: consent form", ErrNotFound)
		}
		return fmt.Errorf("failed to revoke consent form: %w", err)
	}
	return nil
}
