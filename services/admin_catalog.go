package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/models"
	"github.com/shopspring/decimal"
)

type ProviderInput struct {
	Name        string   `json:"name" validate:"required,max=150"`
	Slug        string   `json:"slug" validate:"required,slug,max=150"`
	Title       string   `json:"title" validate:"max=150"`
	Bio         string   `json:"bio" validate:"max=20000"`
	PhotoURL    string   `json:"photo_url" validate:"omitempty,url,max=500"`
	Specialties []string `json:"specialties" validate:"max=50,dive,max=100"`
	SortOrder   int      `json:"sort_order"`
	IsActive    *bool    `json:"is_active"`
}

type MediaInput struct {
	Kind      string `json:"kind" validate:"required,oneof=image video"`
	URL       string `json:"url" validate:"required_if=Kind image,omitempty,url,max=500"`
	VideoID   string `json:"video_id" validate:"required_if=Kind video,omitempty,uuid"`
	Caption   string `json:"caption" validate:"max=500"`
	SortOrder int    `json:"sort_order"`
	Status    string `json:"status" validate:"omitempty,oneof=active archived"`
}

type TreatmentInput struct {
	Slug            string          `json:"slug" validate:"required,slug,max=150"`
	Name            string          `json:"name" validate:"required,max=150"`
	Category        string          `json:"category" validate:"max=100"`
	Summary         string          `json:"summary" validate:"max=5000"`
	PriceFrom       decimal.Decimal `json:"price_from"`
	DurationMinutes int             `json:"duration_minutes" validate:"omitempty,min=5,max=600"`
	IsActive        *bool           `json:"is_active"`
}

type LocationInput struct {
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"max=50"`
	Slug     string `json:"slug" validate:"required,slug,max=150"`
	Headline string `json:"headline" validate:"max=255"`
	Intro    string `json:"intro" validate:"max=5000"`
	IsActive *bool  `json:"is_active"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (e *AdminEndpoints) registerCatalogRoutes(r chi.Router) {
	r.Route("/providers", func(r chi.Router) {
		r.Get("/", e.ListProvidersHandler)
		r.Post("/", e.CreateProviderHandler)
		r.Put("/{id}", e.UpdateProviderHandler)
		r.Delete("/{id}", e.DeleteProviderHandler)
		r.Post("/{id}/media", e.AddMediaHandler)
		r.Put("/{id}/media/{mediaID}", e.UpdateMediaHandler)
		r.Delete("/{id}/media/{mediaID}", e.ArchiveMediaHandler)
	})
	r.Route("/treatments", func(r chi.Router) {
		r.Get("/", e.ListTreatmentsHandler)
		r.Post("/", e.CreateTreatmentHandler)
		r.Put("/{id}", e.UpdateTreatmentHandler)
		r.Delete("/{id}", e.DeleteTreatmentHandler)
	})
	r.Route("/locations", func(r chi.Router) {
		r.Get("/", e.ListLocationsHandler)
		r.Post("/", e.CreateLocationHandler)
		r.Put("/{id}", e.UpdateLocationHandler)
		r.Delete("/{id}", e.DeleteLocationHandler)
	})
}

// Providers

func (e *AdminEndpoints) applyProvider(p *models.Provider, in ProviderInput) {
	specialties := make([]string, 0, len(in.Specialties))
	for _, s := range in.Specialties {
		if s = strings.TrimSpace(s); s != "" {
			specialties = append(specialties, s)
		}
	}
	p.Name = in.Name
	p.Slug = in.Slug
	p.Title = in.Title
	p.Bio = e.sanitizer.SanitizeHTML(in.Bio)
	p.PhotoURL = in.PhotoURL
	p.Specialties = strings.Join(specialties, ",")
	p.SortOrder = in.SortOrder
	p.IsActive = boolOr(in.IsActive, p.IsActive)
}

func (e *AdminEndpoints) ListProvidersHandler(w http.ResponseWriter, r *http.Request) {
	providers, err := e.repo.ListProviders(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": providers})
}

func (e *AdminEndpoints) CreateProviderHandler(w http.ResponseWriter, r *http.Request) {
	var in ProviderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	provider := &models.Provider{IsActive: true}
	e.applyProvider(provider, in)
	if err := e.repo.CreateProvider(r.Context(), provider); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, provider)
}

func (e *AdminEndpoints) UpdateProviderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in ProviderInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	provider, err := e.repo.GetProvider(r.Context(), id)
	if err != nil || provider == nil {
		respondFound(w, r, provider, err, "provider")
		return
	}
	e.applyProvider(provider, in)
	if err := e.repo.UpdateProvider(r.Context(), provider); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

func (e *AdminEndpoints) DeleteProviderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.repo.DeleteProvider(r.Context(), id); err != nil {
		writeServiceError(w, r, repoErr(err, "provider"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyMedia checks that a video reference points at a playable upload.
func (e *AdminEndpoints) applyMedia(r *http.Request, m *models.ProviderMedia, in MediaInput) error {
	m.Kind = in.Kind
	m.Caption = in.Caption
	m.SortOrder = in.SortOrder
	if in.Status != "" {
		m.Status = in.Status
	}
	m.URL, m.VideoID, m.Video = "", nil, nil

	if in.Kind == models.MediaKindImage {
		m.URL = in.URL
		return nil
	}
	video, err := e.repo.GetVideo(r.Context(), in.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: video", ErrNotFound)
	}
	if video.Status != models.VideoReady {
		return fmt.Errorf("%w: video is %s", ErrConflict, video.Status)
	}
	m.VideoID = &video.ID
	return nil
}

func (e *AdminEndpoints) AddMediaHandler(w http.ResponseWriter, r *http.Request) {
	providerID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in MediaInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	provider, err := e.repo.GetProvider(r.Context(), providerID)
	if err != nil || provider == nil {
		respondFound(w, r, provider, err, "provider")
		return
	}
	media := &models.ProviderMedia{ProviderID: provider.ID, Status: models.MediaStatusActive}
	if err := e.applyMedia(r, media, in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.CreateProviderMedia(r.Context(), media); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, media)
}

// providerMedia loads mediaID and checks it belongs to the provider in the path.
func (e *AdminEndpoints) providerMedia(w http.ResponseWriter, r *http.Request) (*models.ProviderMedia, bool) {
	providerID, ok := idParam(w, r, "id")
	if !ok {
		return nil, false
	}
	mediaID, ok := idParam(w, r, "mediaID")
	if !ok {
		return nil, false
	}
	media, err := e.repo.GetProviderMedia(r.Context(), mediaID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	if media == nil || media.ProviderID != providerID {
		writeError(w, http.StatusNotFound, "media not found")
		return nil, false
	}
	return media, true
}

func (e *AdminEndpoints) UpdateMediaHandler(w http.ResponseWriter, r *http.Request) {
	media, ok := e.providerMedia(w, r)
	if !ok {
		return
	}
	var in MediaInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.applyMedia(r, media, in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.UpdateProviderMedia(r.Context(), media); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, media)
}

// ArchiveMediaHandler hides media from the public site. Rows are kept.
func (e *AdminEndpoints) ArchiveMediaHandler(w http.ResponseWriter, r *http.Request) {
	media, ok := e.providerMedia(w, r)
	if !ok {
		return
	}
	media.Status = models.MediaStatusArchived
	if err := e.repo.UpdateProviderMedia(r.Context(), media); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Treatments

func applyTreatment(t *models.Treatment, in TreatmentInput) error {
	if in.PriceFrom.IsNegative() {
		return fmt.Errorf("%w: price_from must not be negative", ErrInvalidInput)
	}
	t.Slug = in.Slug
	t.Name = in.Name
	t.Category = in.Category
	t.Summary = in.Summary
	t.PriceFrom = in.PriceFrom.Round(2)
	if in.DurationMinutes > 0 {
		t.DurationMinutes = in.DurationMinutes
	}
	t.IsActive = boolOr(in.IsActive, t.IsActive)
	return nil
}

func (e *AdminEndpoints) ListTreatmentsHandler(w http.ResponseWriter, r *http.Request) {
	treatments, err := e.repo.ListTreatments(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"treatments": treatments})
}

func (e *AdminEndpoints) CreateTreatmentHandler(w http.ResponseWriter, r *http.Request) {
	var in TreatmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	treatment := &models.Treatment{DurationMinutes: 60, IsActive: true}
	if err := applyTreatment(treatment, in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.CreateTreatment(r.Context(), treatment); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, treatment)
}

func (e *AdminEndpoints) UpdateTreatmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in TreatmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	treatment, err := e.repo.GetTreatment(r.Context(), id)
	if err != nil || treatment == nil {
		respondFound(w, r, treatment, err, "treatment")
		return
	}
	if err := applyTreatment(treatment, in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.UpdateTreatment(r.Context(), treatment); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, treatment)
}

func (e *AdminEndpoints) DeleteTreatmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.repo.DeleteTreatment(r.Context(), id); err != nil {
		writeServiceError(w, r, repoErr(err, "treatment"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Locations

func applyLocation(l *models.Location, in LocationInput) {
	l.City = in.City
	l.State = in.State
	l.Slug = in.Slug
	l.Headline = in.Headline
	l.Intro = in.Intro
	l.IsActive = boolOr(in.IsActive, l.IsActive)
}

func (e *AdminEndpoints) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
	locations, err := e.repo.ListLocations(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": locations})
}

func (e *AdminEndpoints) CreateLocationHandler(w http.ResponseWriter, r *http.Request) {
	var in LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	location := &models.Location{IsActive: true}
	applyLocation(location, in)
	if err := e.repo.CreateLocation(r.Context(), location); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, location)
}

func (e *AdminEndpoints) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in LocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	location, err := e.repo.GetLocation(r.Context(), id)
	if err != nil || location == nil {
		respondFound(w, r, location, err, "location")
		return
	}
	applyLocation(location, in)
	if err := e.repo.UpdateLocation(r.Context(), location); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, location)
}

func (e *AdminEndpoints) DeleteLocationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.repo.DeleteLocation(r.Context(), id); err != nil {
		writeServiceError(w, r, repoErr(err, "location"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
