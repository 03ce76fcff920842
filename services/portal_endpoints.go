package services

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/medspa/backend/models"
	"github.com/krshsl/medspa/backend/repository"
)

// PortalEndpoints serves the signed-in client's own records.
type PortalEndpoints struct {
	repo         *repository.GORMRepository
	appointments *AppointmentService
	consents     *ConsentService
	videos       *VideoService
}

type ProfileUpdate struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=30"`
	SMSOptIn  bool   `json:"sms_opt_in"`
}

func NewPortalEndpoints(repo *repository.GORMRepository, appointments *AppointmentService, consents *ConsentService, videos *VideoService) *PortalEndpoints {
	return &PortalEndpoints{repo: repo, appointments: appointments, consents: consents, videos: videos}
}

func (e *PortalEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/profile", e.GetProfileHandler)
	r.Put("/profile", e.UpdateProfileHandler)
	r.Get("/appointments", e.ListAppointmentsHandler)
	r.Post("/appointments", e.RequestAppointmentHandler)
	r.Get("/consents", e.ListConsentsHandler)
	r.Post("/consents/{id}/sign", e.SignConsentHandler)
	r.Get("/videos", e.ListVideosHandler)
	r.Post("/videos/upload-url", e.VideoUploadHandler)
}

// currentClient resolves the client record behind the session. Accounts
// without one (staff) get a 404.
func (e *PortalEndpoints) currentClient(w http.ResponseWriter, r *http.Request) (*models.User, *models.Client, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, nil, false
	}
	client, err := e.repo.GetClientByUserID(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, nil, false
	}
	if client == nil || client.Status != models.ClientStatusActive {
		writeError(w, http.StatusNotFound, "client profile not found")
		return nil, nil, false
	}
	return user, client, true
}

func (e *PortalEndpoints) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	_, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (e *PortalEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	_, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	var req ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	phone := ""
	if strings.TrimSpace(req.Phone) != "" {
		var err error
		if phone, err = NormalizePhone(req.Phone); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	client.FirstName = req.FirstName
	client.LastName = req.LastName
	client.Phone = phone
	client.SMSOptIn = req.SMSOptIn && phone != ""
	if err := e.repo.UpdateClient(r.Context(), client); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (e *PortalEndpoints) ListAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	_, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	appts, err := e.repo.ListAppointments(r.Context(), repository.AppointmentFilter{
		ClientID:    client.ID,
		ListOptions: listOptions(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"appointments": appts})
}

func (e *PortalEndpoints) RequestAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	_, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	var in AppointmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	appt, err := e.appointments.Request(r.Context(), client, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (e *PortalEndpoints) ListConsentsHandler(w http.ResponseWriter, r *http.Request) {
	_, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	forms, err := e.repo.ListConsentForms(r.Context(), client.ID, listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"consents": forms})
}

func (e *PortalEndpoints) SignConsentHandler(w http.ResponseWriter, r *http.Request) {
	user, _, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req SignConsentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	form, err := e.consents.Sign(r.Context(), user, id, req, clientIP(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (e *PortalEndpoints) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	_, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	videos, err := e.repo.ListVideos(r.Context(), client.ID, listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (e *PortalEndpoints) VideoUploadHandler(w http.ResponseWriter, r *http.Request) {
	user, client, ok := e.currentClient(w, r)
	if !ok {
		return
	}
	var req UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ticket, err := e.videos.RequestUpload(r.Context(), user.ID, &client.ID, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}
