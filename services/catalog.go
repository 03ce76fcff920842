package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

// LandingPage composes one city x treatment SEO page.
type LandingPage struct {
	Path      string            `json:"path"`
	Headline  string            `json:"headline"`
	Location  *models.Location  `json:"location"`
	Treatment *models.Treatment `json:"treatment"`
	Providers []models.Provider `json:"providers"`
}

// LandingNotFound is returned when either slug is unknown.
type LandingNotFound struct {
	Suggestion string
}

func (e *LandingNotFound) Error() string {
	return "landing page not found"
}

func (e *LandingNotFound) Unwrap() error {
	return ErrNotFound
}

type CatalogService struct {
	repo *repository.GORMRepository
}

func NewCatalogService(repo *repository.GORMRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// Landing builds the page for citySlug and treatmentSlug. When either is
// unknown the error carries the closest valid path, if one is close enough.
func (s *CatalogService) Landing(ctx context.Context, citySlug, treatmentSlug string) (*LandingPage, error) {
	locations, err := s.repo.ListLocations(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	treatments, err := s.repo.ListTreatments(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list treatments: %w", err)
	}

	var location *models.Location
	for i := range locations {
		if locations[i].Slug == citySlug {
			location = &locations[i]
		}
	}
	var treatment *models.Treatment
	for i := range treatments {
		if treatments[i].Slug == treatmentSlug {
			treatment = &treatments[i]
		}
	}

	if location == nil || treatment == nil {
		cityGuess, treatmentGuess := citySlug, treatmentSlug
		if location == nil {
			cityGuess = closestSlug(citySlug, locationSlugs(locations))
		}
		if treatment == nil {
			treatmentGuess = closestSlug(treatmentSlug, treatmentSlugs(treatments))
		}
		nf := &LandingNotFound{}
		if cityGuess != "" && treatmentGuess != "" {
			nf.Suggestion = landingPath(cityGuess, treatmentGuess)
		}
		return nil, nf
	}

	providers, err := s.repo.ListProviders(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	headline := location.Headline
	if headline == "" {
		headline = fmt.Sprintf("%s in %s", treatment.Name, location.City)
		if location.State != "" {
			headline += ", " + location.State
		}
	}
	return &LandingPage{
		Path:      landingPath(location.Slug, treatment.Slug),
		Headline:  headline,
		Location:  location,
		Treatment: treatment,
		Providers: providersFor(providers, treatment),
	}, nil
}

// providersFor prefers providers whose specialties mention the treatment and
// falls back to everyone.
func providersFor(providers []models.Provider, treatment *models.Treatment) []models.Provider {
	var matched []models.Provider
	for _, p := range providers {
		specialties := strings.ToLower(p.Specialties)
		if strings.Contains(specialties, treatment.Slug) || strings.Contains(specialties, strings.ToLower(treatment.Name)) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return providers
	}
	return matched
}

func landingPath(city, treatment string) string {
	return "/landing/" + city + "/" + treatment
}

// closestSlug returns the candidate with the smallest edit distance to s,
// or "" when nothing is within a third of the input length (at least 2).
func closestSlug(s string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(s, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len(s) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}

func locationSlugs(locations []models.Location) []string {
	out := make([]string, 0, len(locations))
	for _, l := range locations {
		out = append(out, l.Slug)
	}
	return out
}

func treatmentSlugs(treatments []models.Treatment) []string {
	out := make([]string, 0, len(treatments))
	for _, t := range treatments {
		out = append(out, t.Slug)
	}
	return out
}

// CatalogEndpoints serves the public marketing data.
type CatalogEndpoints struct {
	repo    *repository.GORMRepository
	service *CatalogService
}

func NewCatalogEndpoints(repo *repository.GORMRepository, service *CatalogService) *CatalogEndpoints {
	return &CatalogEndpoints{repo: repo, service: service}
}

func (e *CatalogEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/providers", e.ListProvidersHandler)
	r.Get("/providers/{slug}", e.GetProviderHandler)
	r.Get("/treatments", e.ListTreatmentsHandler)
	r.Get("/treatments/{slug}", e.GetTreatmentHandler)
	r.Get("/locations", e.ListLocationsHandler)
	r.Get("/landing/{city}/{treatment}", e.LandingHandler)
}

func (e *CatalogEndpoints) ListProvidersHandler(w http.ResponseWriter, r *http.Request) {
	providers, err := e.repo.ListProviders(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"providers": providers})
}

func (e *CatalogEndpoints) GetProviderHandler(w http.ResponseWriter, r *http.Request) {
	provider, err := e.repo.GetProvider(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if provider == nil || !provider.IsActive {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, provider)
}

func (e *CatalogEndpoints) ListTreatmentsHandler(w http.ResponseWriter, r *http.Request) {
	treatments, err := e.repo.ListTreatments(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"treatments": treatments})
}

func (e *CatalogEndpoints) GetTreatmentHandler(w http.ResponseWriter, r *http.Request) {
	treatment, err := e.repo.GetTreatment(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if treatment == nil || !treatment.IsActive {
		writeError(w, http.StatusNotFound, "treatment not found")
		return
	}
	writeJSON(w, http.StatusOK, treatment)
}

func (e *CatalogEndpoints) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
	locations, err := e.repo.ListLocations(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"locations": locations})
}

func (e *CatalogEndpoints) LandingHandler(w http.ResponseWriter, r *http.Request) {
	page, err := e.service.Landing(r.Context(), chi.URLParam(r, "city"), chi.URLParam(r, "treatment"))
	if err != nil {
		if nf, ok := err.(*LandingNotFound); ok {
			body := map[string]interface{}{"error": nf.Error()}
			if nf.Suggestion != "" {
				body["suggestion"] = nf.Suggestion
			}
			writeJSON(w, http.StatusNotFound, body)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
