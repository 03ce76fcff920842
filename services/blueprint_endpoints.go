package services

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxLabBytes = 1 << 20

type BlueprintEndpoints struct {
	service       *BlueprintService
	uploadLimiter *UploadLimiter
}

func NewBlueprintEndpoints(service *BlueprintService, uploadLimiter *UploadLimiter) *BlueprintEndpoints {
	return &BlueprintEndpoints{service: service, uploadLimiter: uploadLimiter}
}

func (e *BlueprintEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/tools", func(r chi.Router) {
		r.Post("/hormone-blueprint", e.blueprintHandler(KindHormone))
		r.Post("/face-blueprint", e.blueprintHandler(KindFace))
		r.Post("/journey-blueprint", e.blueprintHandler(KindJourney))
		r.Post("/analyze-lab", e.AnalyzeLabHandler)
	})
}

func (e *BlueprintEndpoints) blueprintHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlueprintRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		result, err := e.service.Generate(r.Context(), kind, req, RequestMeta{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// AnalyzeLabHandler accepts a text or CSV upload in "file", or pasted text
// in "lab_text".
func (e *BlueprintEndpoints) AnalyzeLabHandler(w http.ResponseWriter, r *http.Request) {
	if !e.uploadLimiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many lab uploads, try again later")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*maxLabBytes)
	if err := r.ParseMultipartForm(maxLabBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart form no larger than 1 MiB")
		return
	}
	defer r.MultipartForm.RemoveAll()

	text, status, msg := readLabText(r)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	doc, err := e.service.AnalyzeLab(r.Context(), text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analysis": doc})
}

func readLabText(r *http.Request) (string, int, string) {
	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		text := r.FormValue("lab_text")
		if strings.TrimSpace(text) == "" {
			return "", http.StatusBadRequest, "provide a file or lab_text"
		}
		if len(text) > maxLabBytes {
			return "", http.StatusRequestEntityTooLarge, "lab text exceeds 1 MiB"
		}
		return text, 0, ""
	}
	if err != nil {
		return "", http.StatusBadRequest, "invalid file upload"
	}
	defer file.Close()

	if header.Size > maxLabBytes {
		return "", http.StatusRequestEntityTooLarge, "file exceeds 1 MiB"
	}
	if !isLabContentType(header.Header.Get("Content-Type"), header.Filename) {
		return "", http.StatusUnsupportedMediaType, "only text/plain and text/csv files are accepted"
	}

	data, err := io.ReadAll(io.LimitReader(file, maxLabBytes+1))
	if err != nil {
		return "", http.StatusBadRequest, "failed to read file"
	}
	if len(data) > maxLabBytes {
		return "", http.StatusRequestEntityTooLarge, "file exceeds 1 MiB"
	}
	return string(data), 0, ""
}

func isLabContentType(contentType, filename string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "text/plain", "text/csv":
			return true
		case "application/octet-stream":
		default:
			return false
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".csv":
		return true
	}
	return false
}
