package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

// Blueprint kinds. Each kind is also its rate-limit feature.
const (
	KindHormone = FeatureHormone
	KindFace    = FeatureFace
	KindJourney = FeatureJourney
)

const jsonContract = `Respond with a single JSON object only, no markdown. It must contain a
"summary" string (2-4 sentences, warm and plain-spoken) plus the fields listed
below. Never diagnose, never prescribe, and always recommend an in-person
consultation with a licensed provider.`

var blueprintPrompts = map[string]string{
	KindHormone: `You are a wellness concierge at a medical spa specialising in hormone
optimisation. From the visitor's questionnaire answers, describe which hormone
patterns may be worth discussing with a provider.
` + jsonContract + `
Fields: "focus_areas" (array of {"title","detail"}), "lifestyle_tips" (array
of strings), "suggested_labs" (array of strings), "next_step" (string).`,

	KindFace: `You are an aesthetic consultant at a medical spa. From the visitor's
answers about their skin and facial goals, outline a personalised aesthetic
plan.
` + jsonContract + `
Fields: "goals" (array of strings), "treatments" (array of
{"name","why","sessions"}), "home_care" (array of strings), "next_step"
(string).`,

	KindJourney: `You are a treatment coordinator at a medical spa. From the visitor's
goals, timeline and budget, lay out a phased treatment journey.
` + jsonContract + `
Fields: "phases" (array of {"name","timing","treatments"}), "budget_note"
(string), "next_step" (string).`,
}

const labPrompt = `You are a wellness educator at a medical spa. The visitor pasted lab
results as text or CSV. Explain each marker in plain language, flag values
outside the listed reference range, and suggest questions to bring to a
provider.
` + jsonContract + `
Fields: "markers" (array of {"name","value","reference","status","note"}),
"questions" (array of strings).`

// IsBlueprintKind reports whether kind names a blueprint tool.
func IsBlueprintKind(kind string) bool {
	_, ok := blueprintPrompts[kind]
	return ok
}

// BlueprintRequest is the body of every blueprint tool.
type BlueprintRequest struct {
	Email            string                 `json:"email" validate:"omitempty,email,max=255"`
	FirstName        string                 `json:"first_name" validate:"max=100"`
	Answers          map[string]interface{} `json:"answers" validate:"required,min=1"`
	JourneySessionID string                 `json:"journey_session_id" validate:"omitempty,uuid"`

	// Bot checks.
	Website        string `json:"website"`
	StartedAt      int64  `json:"started_at"` // unix milliseconds when the form rendered
	TurnstileToken string `json:"turnstile_token"`
}

// RequestMeta carries caller details that are not part of the body.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type BlueprintResult struct {
	SessionID string                 `json:"session_id"`
	Blueprint map[string]interface{} `json:"blueprint"`
}

// ParseBlueprintJSON decodes a model reply. Markdown code fences are
// stripped; the result must be an object with a string "summary".
func ParseBlueprintJSON(raw string) (map[string]interface{}, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			// Drop the language tag line.
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("model reply is not a JSON object: %w", err)
	}
	summary, ok := doc["summary"].(string)
	if !ok || strings.TrimSpace(summary) == "" {
		return nil, errors.New("model reply has no summary")
	}
	return doc, nil
}

// BlueprintService runs the AI tools.
type BlueprintService struct {
	repo      *repository.GORMRepository
	ai        Completer
	limiter   *RateLimiter
	mailer    Mailer
	turnstile *TurnstileVerifier
	botCheck  BotCheckConfig
	modelName string
	siteURL   string
	now       func() time.Time
}

func NewBlueprintService(repo *repository.GORMRepository, ai Completer, limiter *RateLimiter, mailer Mailer, turnstile *TurnstileVerifier, cfg *Config) *BlueprintService {
	model := cfg.AI.OpenAIModel
	if cfg.AI.Provider == "gemini" {
		model = cfg.AI.GeminiModel
	}
	return &BlueprintService{
		repo:      repo,
		ai:        ai,
		limiter:   limiter,
		mailer:    mailer,
		turnstile: turnstile,
		botCheck:  cfg.BotCheck,
		modelName: model,
		siteURL:   cfg.Business.SiteURL,
		now:       time.Now,
	}
}

// Generate validates, rate limits, calls the model and stores the result.
// Storage and email failures are logged and do not fail the request.
func (s *BlueprintService) Generate(ctx context.Context, kind string, req BlueprintRequest, meta RequestMeta) (result *BlueprintResult, err error) {
	defer func() { blueprintRequestsTotal.WithLabelValues(kind, statusLabel(err)).Inc() }()

	systemPrompt, ok := blueprintPrompts[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown blueprint %q", ErrNotFound, kind)
	}
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	if err := s.checkBot(ctx, req, meta.IP); err != nil {
		return nil, err
	}
	if !s.limiter.Allow(ctx, meta.IP, kind) {
		return nil, fmt.Errorf("%w: too many %s blueprints from this address, try again later", ErrRateLimited, kind)
	}
	if s.ai == nil {
		return nil, fmt.Errorf("%w: AI provider", ErrNotConfigured)
	}

	answers, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("%w: answers are not serialisable", ErrInvalidInput)
	}
	userPrompt := "Questionnaire answers (JSON):\n" + string(answers)
	if req.FirstName != "" {
		userPrompt = "Visitor first name: " + req.FirstName + "\n" + userPrompt
	}

	raw, err := s.ai.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, err
	}
	doc, err := ParseBlueprintJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	normalized, _ := json.Marshal(doc)
	record := models.BlueprintRecord{
		Email:     normalizeEmail(req.Email),
		FirstName: req.FirstName,
		Answers:   string(answers),
		Blueprint: string(normalized),
		Model:     s.modelName,
		IPAddress: meta.IP,
	}
	sessionID := s.persist(ctx, kind, record, req.JourneySessionID)

	if record.Email != "" {
		s.emailBlueprint(ctx, kind, record.Email, req.FirstName, doc)
	}

	slog.Info("Blueprint generated", "kind", kind, "session_id", sessionID)
	return &BlueprintResult{SessionID: sessionID, Blueprint: doc}, nil
}

// AnalyzeLab interprets pasted lab results. Nothing is stored.
func (s *BlueprintService) AnalyzeLab(ctx context.Context, labText string) (map[string]interface{}, error) {
	if strings.TrimSpace(labText) == "" {
		return nil, fmt.Errorf("%w: lab text is empty", ErrInvalidInput)
	}
	if s.ai == nil {
		return nil, fmt.Errorf("%w: AI provider", ErrNotConfigured)
	}
	raw, err := s.ai.Complete(ctx, labPrompt, "Lab results:\n"+labText)
	if err != nil {
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return nil, err
	}
	doc, err := ParseBlueprintJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return doc, nil
}

func (s *BlueprintService) checkBot(ctx context.Context, req BlueprintRequest, ip string) error {
	if req.Website != "" {
		slog.Warn("Honeypot field filled", "ip", ip)
		return fmt.Errorf("%w: request rejected", ErrInvalidInput)
	}
	if s.botCheck.MinFillDuration > 0 {
		if req.StartedAt <= 0 {
			return fmt.Errorf("%w: missing form timestamp", ErrInvalidInput)
		}
		elapsed := s.now().Sub(time.UnixMilli(req.StartedAt))
		if elapsed < s.botCheck.MinFillDuration {
			slog.Warn("Form submitted too quickly", "ip", ip, "elapsed_ms", elapsed.Milliseconds())
			return fmt.Errorf("%w: form submitted too quickly", ErrInvalidInput)
		}
	}
	if s.turnstile != nil {
		ok, err := s.turnstile.Verify(ctx, req.TurnstileToken, ip)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: challenge verification failed", ErrInvalidInput)
		}
	}
	return nil
}

func (s *BlueprintService) persist(ctx context.Context, kind string, record models.BlueprintRecord, journeyID string) string {
	if s.repo == nil {
		return ""
	}
	link := s.journeyLink(ctx, journeyID)

	var (
		id  string
		err error
	)
	switch kind {
	case KindJourney:
		row := &models.JourneySession{BlueprintRecord: record}
		err = s.repo.CreateJourneySession(ctx, row)
		id = row.ID
	case KindHormone:
		row := &models.HormoneSession{BlueprintRecord: record, JourneySessionID: link}
		err = s.repo.CreateHormoneSession(ctx, row)
		id = row.ID
	case KindFace:
		row := &models.FaceSession{BlueprintRecord: record, JourneySessionID: link}
		err = s.repo.CreateFaceSession(ctx, row)
		id = row.ID
	}
	if err != nil {
		slog.Error("Failed to store blueprint session", "error", err, "kind", kind)
		return ""
	}
	return id
}

// journeyLink returns journeyID when it names an existing journey session.
func (s *BlueprintService) journeyLink(ctx context.Context, journeyID string) *string {
	if journeyID == "" {
		return nil
	}
	journey, err := s.repo.GetJourneySession(ctx, journeyID)
	if err != nil || journey == nil {
		slog.Warn("Ignoring unknown journey session", "journey_session_id", journeyID)
		return nil
	}
	return &journey.ID
}

func (s *BlueprintService) emailBlueprint(ctx context.Context, kind, to, firstName string, doc map[string]interface{}) {
	if s.mailer == nil {
		return
	}
	summary, _ := doc["summary"].(string)
	greeting := "Hi"
	if firstName != "" {
		greeting = "Hi " + html.EscapeString(firstName)
	}
	body := fmt.Sprintf(`<p>%s,</p><p>Here is your personalised %s blueprint.</p><p>%s</p><p><a href="%s/book">Book a consultation</a> to go over it with one of our providers.</p>`,
		greeting, kind, html.EscapeString(summary), s.siteURL)

	err := s.mailer.Send(ctx, Email{
		To:          []string{to},
		Subject:     fmt.Sprintf("Your %s blueprint", kind),
		HTML:        body,
		Text:        summary,
		BCCBusiness: true,
	})
	if err != nil {
		slog.Warn("Failed to email blueprint", "error", err, "kind", kind)
	}
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
