package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

// AdminEndpoints serves the back office. Every route sits behind
// RequireRole(models.RoleAdmin).
type AdminEndpoints struct {
	repo         *repository.GORMRepository
	appointments *AppointmentService
	consents     *ConsentService
	campaigns    *CampaignService
	videos       *VideoService
	sanitizer    *ContentSanitizer
}

func NewAdminEndpoints(repo *repository.GORMRepository, appointments *AppointmentService, consents *ConsentService, campaigns *CampaignService, videos *VideoService, sanitizer *ContentSanitizer) *AdminEndpoints {
	return &AdminEndpoints{
		repo:         repo,
		appointments: appointments,
		consents:     consents,
		campaigns:    campaigns,
		videos:       videos,
		sanitizer:    sanitizer,
	}
}

func (e *AdminEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", e.ListClientsHandler)
		r.Post("/", e.CreateClientHandler)
		r.Get("/{id}", e.GetClientHandler)
		r.Put("/{id}", e.UpdateClientHandler)
		r.Delete("/{id}", e.ArchiveClientHandler)
	})
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", e.ListLeadsHandler)
		r.Get("/{id}", e.GetLeadHandler)
		r.Patch("/{id}", e.UpdateLeadHandler)
		r.Delete("/{id}", e.ArchiveLeadHandler)
	})
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", e.ListAppointmentsHandler)
		r.Post("/", e.CreateAppointmentHandler)
		r.Get("/{id}", e.GetAppointmentHandler)
		r.Put("/{id}", e.UpdateAppointmentHandler)
		r.Delete("/{id}", e.DeleteAppointmentHandler)
	})
	r.Route("/consents", func(r chi.Router) {
		r.Get("/", e.ListConsentsHandler)
		r.Post("/", e.RequestConsentHandler)
		r.Get("/{id}", e.GetConsentHandler)
		r.Post("/{id}/revoke", e.RevokeConsentHandler)
	})
	r.Get("/blueprints/{kind}", e.ListBlueprintsHandler)

	e.registerCatalogRoutes(r)
	e.registerMessagingRoutes(r)
}

// respondFound writes v, or a 404 when the lookup came back empty.
func respondFound[T any](w http.ResponseWriter, r *http.Request, v *T, err error, what string) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// repoErr turns a repository miss into ErrNotFound.
func repoErr(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// Clients

type ClientInput struct {
	FirstName   string     `json:"first_name" validate:"required,max=100"`
	LastName    string     `json:"last_name" validate:"max=100"`
	Email       string     `json:"email" validate:"omitempty,email,max=255"`
	Phone       string     `json:"phone" validate:"max=30"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Notes       string     `json:"notes" validate:"max=5000"`
	SMSOptIn    bool       `json:"sms_opt_in"`
	Status      string     `json:"status" validate:"omitempty,oneof=active archived"`
}

func (in ClientInput) apply(c *models.Client) error {
	phone := ""
	if strings.TrimSpace(in.Phone) != "" {
		var err error
		if phone, err = NormalizePhone(in.Phone); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = normalizeEmail(in.Email)
	c.Phone = phone
	c.DateOfBirth = in.DateOfBirth
	c.Notes = in.Notes
	c.SMSOptIn = in.SMSOptIn && phone != ""
	if in.Status != "" {
		c.Status = in.Status
	}
	return nil
}

func (e *AdminEndpoints) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	clients, err := e.repo.ListClients(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clients": clients})
}

func (e *AdminEndpoints) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var in ClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	client := &models.Client{Status: models.ClientStatusActive}
	if err := in.apply(client); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.CreateClient(r.Context(), client); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (e *AdminEndpoints) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	client, err := e.repo.GetClient(r.Context(), id)
	respondFound(w, r, client, err, "client")
}

func (e *AdminEndpoints) UpdateClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in ClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	client, err := e.repo.GetClient(r.Context(), id)
	if err != nil || client == nil {
		respondFound(w, r, client, err, "client")
		return
	}
	if err := in.apply(client); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.UpdateClient(r.Context(), client); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (e *AdminEndpoints) ArchiveClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.repo.ArchiveClient(r.Context(), id); err != nil {
		writeServiceError(w, r, repoErr(err, "client"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leads

type leadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted converted archived"`
}

func (e *AdminEndpoints) ListLeadsHandler(w http.ResponseWriter, r *http.Request) {
	leads, err := e.repo.ListLeads(r.Context(), r.URL.Query().Get("source"), listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

func (e *AdminEndpoints) GetLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	lead, err := e.repo.GetLead(r.Context(), id)
	respondFound(w, r, lead, err, "lead")
}

func (e *AdminEndpoints) UpdateLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req leadStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := e.repo.UpdateLeadStatus(r.Context(), id, req.Status); err != nil {
		writeServiceError(w, r, repoErr(err, "lead"))
		return
	}
	lead, err := e.repo.GetLead(r.Context(), id)
	respondFound(w, r, lead, err, "lead")
}

func (e *AdminEndpoints) ArchiveLeadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.repo.UpdateLeadStatus(r.Context(), id, models.LeadArchived); err != nil {
		writeServiceError(w, r, repoErr(err, "lead"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Appointments

func (e *AdminEndpoints) ListAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.AppointmentFilter{
		ClientID:    q.Get("client_id"),
		ProviderID:  q.Get("provider_id"),
		ListOptions: listOptions(r),
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+key+", expected RFC 3339")
				return
			}
			*dst = &t
		}
	}
	appts, err := e.repo.ListAppointments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"appointments": appts})
}

func (e *AdminEndpoints) CreateAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var in AppointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	appt, err := e.appointments.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (e *AdminEndpoints) GetAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	appt, err := e.repo.GetAppointment(r.Context(), id)
	respondFound(w, r, appt, err, "appointment")
}

func (e *AdminEndpoints) UpdateAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in AppointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	appt, err := e.appointments.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (e *AdminEndpoints) DeleteAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.appointments.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Consents

func (e *AdminEndpoints) ListConsentsHandler(w http.ResponseWriter, r *http.Request) {
	forms, err := e.repo.ListConsentForms(r.Context(), r.URL.Query().Get("client_id"), listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"consents": forms})
}

func (e *AdminEndpoints) RequestConsentHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFromContext(r.Context())
	var req ConsentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	form, err := e.consents.Request(r.Context(), admin.ID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

func (e *AdminEndpoints) GetConsentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	form, err := e.repo.GetConsentForm(r.Context(), id)
	respondFound(w, r, form, err, "consent form")
}

func (e *AdminEndpoints) RevokeConsentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.consents.Revoke(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	form, err := e.repo.GetConsentForm(r.Context(), id)
	respondFound(w, r, form, err, "consent form")
}

// Blueprint sessions

func (e *AdminEndpoints) ListBlueprintsHandler(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !IsBlueprintKind(kind) {
		writeError(w, http.StatusNotFound, "unknown blueprint kind")
		return
	}
	sessions, err := e.repo.ListBlueprintSessions(r.Context(), kind, listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "sessions": sessions})
}
