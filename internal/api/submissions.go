package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"flowform/internal/auth"
	"flowform/internal/export"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (d Dependencies) listSubmissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := d.loadForm(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Form not found", d.Log)
		return
	}
	if f.OwnerID != auth.GetUserID(r.Context()) {
		WriteError(w, http.StatusForbidden, "forbidden", "Not the form owner", d.Log)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	submissions, err := d.Store.ListSubmissionsByForm(r.Context(), id, limit, offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "list_failed", "Failed to list submissions", d.Log)
		return
	}

	out := make([]map[string]interface{}, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, map[string]interface{}{
			"id":          s.ID,
			"responses":   s.Responses,
			"metadata":    s.Metadata,
			"submittedAt": s.SubmittedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"submissions": out})
}

// exportSubmissions renders all of a form's submissions as CSV. The
// default response is a document envelope; ?format=csv streams the raw
// file instead.
func (d Dependencies) exportSubmissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := d.loadForm(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Form not found", d.Log)
		return
	}
	if f.OwnerID != auth.GetUserID(r.Context()) {
		WriteError(w, http.StatusForbidden, "forbidden", "Not the form owner", d.Log)
		return
	}

	var all []export.Submission
	const page = 500
	for offset := 0; ; offset += page {
		batch, err := d.Store.ListSubmissionsByForm(r.Context(), id, page, offset)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "export_failed", "Failed to load submissions", d.Log)
			return
		}
		for _, s := range batch {
			all = append(all, export.Submission{Responses: s.Responses, SubmittedAt: s.SubmittedAt})
		}
		if len(batch) < page {
			break
		}
	}

	csv := export.SubmissionsToCSV(f, all)
	title := f.Title + " - Submissions"

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+title+`.csv"`)
		w.Write([]byte(csv))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"documentId":      uuid.NewString(),
		"title":           title,
		"mimeType":        "text/csv",
		"content":         csv,
		"submissionCount": len(all),
	})
}
