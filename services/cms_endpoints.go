package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type CMSEndpoints struct {
	service *CMSService
}

func NewCMSEndpoints(service *CMSService) *CMSEndpoints {
	return &CMSEndpoints{service: service}
}

// RegisterPublicRoutes mounts the read-only page endpoint.
func (e *CMSEndpoints) RegisterPublicRoutes(r chi.Router) {
	r.Get("/cms/pages/{page}", e.PublicPageHandler)
}

// RegisterAdminRoutes mounts section management under an admin router.
func (e *CMSEndpoints) RegisterAdminRoutes(r chi.Router) {
	r.Route("/cms", func(r chi.Router) {
		r.Get("/section-types", e.SectionTypesHandler)
		r.Get("/pages", e.PagesHandler)
		r.Get("/pages/{page}", e.AdminPageHandler)
		r.Put("/pages/{page}/order", e.ReorderHandler)
		r.Post("/sections", e.CreateSectionHandler)
		r.Put("/sections/{id}", e.UpdateSectionHandler)
		r.Delete("/sections/{id}", e.DeleteSectionHandler)
	})
}

func (e *CMSEndpoints) PublicPageHandler(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	if !slugRegex.MatchString(page) {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	sections, err := e.service.Page(r.Context(), page, true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, map[string]interface{}{"page": page, "sections": sections})
}

func (e *CMSEndpoints) AdminPageHandler(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	sections, err := e.service.Page(r.Context(), page, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"page": page, "sections": sections})
}

func (e *CMSEndpoints) SectionTypesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"section_types": SectionTypes()})
}

func (e *CMSEndpoints) PagesHandler(w http.ResponseWriter, r *http.Request) {
	pages, err := e.service.Pages(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pages": pages})
}

func (e *CMSEndpoints) CreateSectionHandler(w http.ResponseWriter, r *http.Request) {
	var in CMSSectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := e.service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (e *CMSEndpoints) UpdateSectionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in CMSSectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := e.service.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (e *CMSEndpoints) DeleteSectionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := e.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

func (e *CMSEndpoints) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	page := chi.URLParam(r, "page")
	if err := e.service.Reorder(r.Context(), page, req.IDs); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sections, err := e.service.Page(r.Context(), page, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"page": page, "sections": sections})
}
