package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

// LeadRequest unlocks gated content on the public site.
type LeadRequest struct {
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Phone     string `json:"phone" validate:"max=30"`
	FirstName string `json:"first_name" validate:"max=100"`
	Source    string `json:"source" validate:"required,max=100"`
	Message   string `json:"message" validate:"max=2000"`
	SMSOptIn  bool   `json:"sms_opt_in"`
	Company   string `json:"company"` // honeypot, hidden from people
}

type LeadService struct {
	repo          *repository.GORMRepository
	limiter       *RateLimiter
	mailer        Mailer
	events        EventPublisher
	businessEmail string
}

func NewLeadService(repo *repository.GORMRepository, limiter *RateLimiter, mailer Mailer, events EventPublisher, businessEmail string) *LeadService {
	return &LeadService{
		repo:          repo,
		limiter:       limiter,
		mailer:        mailer,
		events:        events,
		businessEmail: businessEmail,
	}
}

// Capture stores a lead and notifies the business. Notification failures
// are logged only.
func (s *LeadService) Capture(ctx context.Context, req LeadRequest, meta RequestMeta) (*models.Lead, error) {
	if req.Company != "" {
		slog.Warn("Lead honeypot field filled", "ip", meta.IP)
		return nil, fmt.Errorf("%w: request rejected", ErrInvalidInput)
	}
	email := normalizeEmail(req.Email)
	if email == "" && strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: email or phone is required", ErrInvalidInput)
	}
	phone := ""
	if strings.TrimSpace(req.Phone) != "" {
		var err error
		if phone, err = NormalizePhone(req.Phone); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if !s.limiter.Allow(ctx, meta.IP, FeatureLead) {
		return nil, fmt.Errorf("%w: too many submissions from this address", ErrRateLimited)
	}

	lead := &models.Lead{
		Email:     email,
		Phone:     phone,
		FirstName: strings.TrimSpace(req.FirstName),
		Source:    req.Source,
		Message:   req.Message,
		SMSOptIn:  req.SMSOptIn && phone != "",
		IPAddress: meta.IP,
		UserAgent: truncate(meta.UserAgent, 480),
		Status:    models.LeadNew,
	}
	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to store lead: %w", err)
	}
	leadsCapturedTotal.WithLabelValues(lead.Source).Inc()

	s.notify(ctx, lead)
	publish(s.events, EventLeadCreated, map[string]interface{}{
		"lead_id":    lead.ID,
		"source":     lead.Source,
		"first_name": lead.FirstName,
	})
	return lead, nil
}

func (s *LeadService) notify(ctx context.Context, lead *models.Lead) {
	if s.mailer == nil || s.businessEmail == "" {
		return
	}
	body := fmt.Sprintf("<p>New lead from <strong>%s</strong>.</p><ul><li>Name: %s</li><li>Email: %s</li><li>Phone: %s</li></ul><p>%s</p>",
		html.EscapeString(lead.Source),
		html.EscapeString(lead.FirstName),
		html.EscapeString(lead.Email),
		html.EscapeString(lead.Phone),
		html.EscapeString(lead.Message))
	err := s.mailer.Send(ctx, Email{
		To:      []string{s.businessEmail},
		Subject: "New lead: " + lead.Source,
		HTML:    body,
	})
	if err != nil {
		slog.Warn("Failed to send lead notification", "error", err, "lead_id", lead.ID)
	}
}

type LeadEndpoints struct {
	service *LeadService
}

func NewLeadEndpoints(service *LeadService) *LeadEndpoints {
	return &LeadEndpoints{service: service}
}

func (e *LeadEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/leads", e.CreateLeadHandler)
}

func (e *LeadEndpoints) CreateLeadHandler(w http.ResponseWriter, r *http.Request) {
	var req LeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	lead, err := e.service.Capture(r.Context(), req, RequestMeta{IP: clientIP(r), UserAgent: r.UserAgent()})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"unlocked": true,
		"lead_id":  lead.ID,
	})
}
