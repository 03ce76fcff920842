package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (e *AdminEndpoints) registerMessagingRoutes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", e.ListCampaignsHandler)
		r.Post("/", e.CreateCampaignHandler)
		r.Get("/{id}", e.GetCampaignHandler)
		r.Put("/{id}", e.UpdateCampaignHandler)
		r.Post("/{id}/send", e.SendCampaignHandler)
	})
	r.Route("/videos", func(r chi.Router) {
		r.Get("/", e.ListVideosHandler)
		r.Post("/upload-url", e.VideoUploadHandler)
		r.Post("/{id}/refresh", e.RefreshVideoHandler)
		r.Delete("/{id}", e.DeleteVideoHandler)
	})
}

// SMS campaigns

func (e *AdminEndpoints) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	campaigns, err := e.repo.ListCampaigns(r.Context(), listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

func (e *AdminEndpoints) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFromContext(r.Context())
	var in CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	campaign, err := e.campaigns.Create(r.Context(), admin.ID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// GetCampaignHandler returns the campaign with its per-recipient results.
func (e *AdminEndpoints) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	campaign, err := e.repo.GetCampaign(r.Context(), id)
	if err != nil || campaign == nil {
		respondFound(w, r, campaign, err, "campaign")
		return
	}
	messages, err := e.repo.ListCampaignMessages(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	campaign.Messages = messages
	writeJSON(w, http.StatusOK, campaign)
}

func (e *AdminEndpoints) UpdateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in CampaignInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	campaign, err := e.campaigns.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// SendCampaignHandler answers 202 once delivery has been queued.
func (e *AdminEndpoints) SendCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	campaign, err := e.campaigns.Send(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, campaign)
}

// Videos

func (e *AdminEndpoints) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	videos, err := e.repo.ListVideos(r.Context(), r.URL.Query().Get("client_id"), listOptions(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (e *AdminEndpoints) VideoUploadHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := UserFromContext(r.Context())
	var req UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ticket, err := e.videos.RequestUpload(r.Context(), admin.ID, nil, req.Title)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (e *AdminEndpoints) RefreshVideoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	video, err := e.videos.Refresh(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (e *AdminEndpoints) DeleteVideoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.videos.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
