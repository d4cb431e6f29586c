package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strconv"

	"flowform/internal/form"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// uploadFile receives a multipart upload for a file field, checks it
// against the field's accepted types and the server upload policy, and
// stores it. The returned metadata is what submit expects in
// fileMetadata.
func (d Dependencies) uploadFile(w http.ResponseWriter, r *http.Request) {
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

	if max := d.Policy.MaxFileBytes(); max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+1024)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_upload", "Invalid multipart request", d.Log)
		return
	}

	fieldName := r.FormValue("fieldName")
	field, found := f.Field(fieldName)
	if !found {
		WriteError(w, http.StatusBadRequest, "unknown_field", "Field not found in form schema", d.Log)
		return
	}
	if field.Type != form.FieldFile {
		WriteError(w, http.StatusBadRequest, "invalid_field", "Field does not accept file uploads", d.Log)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_upload", "Missing file part", d.Log)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := d.Policy.ValidateUpload(contentType, header.Size); err != nil {
		WriteError(w, http.StatusBadRequest, "policy_violation", err.Error(), d.Log)
		return
	}

	objectName := path.Join(f.ID, ulid.Make().String(), header.Filename)
	fileURL := d.Files.URLFor(objectName)

	// Per-field accepted types apply before the bytes land anywhere.
	outcome := form.ValidateFile(*field, fileURL, header.Filename, contentType)
	if !outcome.Valid {
		WriteError(w, http.StatusBadRequest, "file_rejected", outcome.Error, d.Log)
		return
	}

	hash := sha256.New()
	if err := d.Files.Put(r.Context(), objectName, io.TeeReader(file, hash)); err != nil {
		WriteError(w, http.StatusInternalServerError, "upload_failed", "Failed to store file", d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"fieldName": fieldName,
		"url":       fileURL,
		"name":      header.Filename,
		"mimeType":  contentType,
		"size":      strconv.FormatInt(header.Size, 10),
		"sha256":    hex.EncodeToString(hash.Sum(nil)),
	})
}
