package api

import (
	"encoding/json"
	"net/http"

	"flowform/internal/engine"
	"flowform/internal/form"
	"flowform/internal/storage"

	"github.com/go-chi/chi/v5"
)

type CollectRequest struct {
	FieldName string             `json:"fieldName"`
	Answer    json.RawMessage    `json:"answer,omitempty"`
	File      *engine.FileUpload `json:"file,omitempty"`
}

// decodeAnswer accepts a bare string or an array of strings.
func decodeAnswer(raw json.RawMessage) (form.RawAnswer, bool) {
	if len(raw) == 0 {
		return form.Single(""), true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return form.Single(text), true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return form.Multiple(list), true
	}
	return form.RawAnswer{}, false
}

func (d Dependencies) collectAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := d.loadForm(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Form not found", d.Log)
		return
	}

	var req CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	answer, ok := decodeAnswer(req.Answer)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Answer must be a string or a list of strings", d.Log)
		return
	}

	result := d.Engine.Collect(f, req.FieldName, answer, req.File)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type PreviewRequest struct {
	Responses map[string]any `json:"responses"`
}

func (d Dependencies) previewSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := d.loadForm(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Form not found", d.Log)
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	result := d.Engine.Preview(f, req.Responses)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type SubmitRequest struct {
	Responses      map[string]string                 `json:"responses"`
	FileMetadata   map[string]map[string]interface{} `json:"fileMetadata,omitempty"`
	IdempotencyKey string                            `json:"idempotencyKey,omitempty"`
}

func (d Dependencies) submitForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := d.loadForm(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Form not found", d.Log)
		return
	}
	if !f.IsActive {
		WriteError(w, http.StatusForbidden, "form_inactive", "This form is no longer accepting responses", d.Log)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	// File metadata arrives loosely typed; sizes may be numbers and
	// some clients send contentType instead of mimeType.
	fileMetadata := make(map[string]engine.FileMeta, len(req.FileMetadata))
	for name, raw := range req.FileMetadata {
		meta := storage.NormalizeUploadMetadata(raw)
		fileMetadata[name] = engine.FileMeta{
			URL:      meta.URL,
			Name:     meta.Name,
			MimeType: meta.MimeType,
			Size:     meta.Size,
		}
	}

	result := d.Engine.Submit(r.Context(), f, req.Responses, fileMetadata, req.IdempotencyKey)

	w.Header().Set("Content-Type", "application/json")
	if !result.Success {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	json.NewEncoder(w).Encode(result)
}
