package api

import (
	"encoding/json"
	"io"
	"net/http"

	"flowform/internal/auth"
	"flowform/internal/db"
	"flowform/internal/form"
	"flowform/internal/schema"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

type CreateFormRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Tone        string      `json:"tone,omitempty"`
	Schema      form.Schema `json:"schema"`
	CallbackURL *string     `json:"callbackUrl,omitempty"`
}

func (d Dependencies) createForm(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	// Structural validation runs against the raw document so unknown
	// field types are reported before anything is decoded.
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := d.Compiler.ValidateDefinition(raw); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_definition", err.Error(), d.Log)
		return
	}

	var req CreateFormRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if err := schema.CheckDefinition(req.Schema); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_definition", err.Error(), d.Log)
		return
	}

	created, err := d.Store.CreateForm(r.Context(), db.CreateFormParams{
		ID:          ulid.Make().String(),
		OwnerID:     auth.GetUserID(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		Tone:        req.Tone,
		Schema:      req.Schema,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "create_failed", "Failed to create form", d.Log)
		return
	}
	d.Cache.Add(created)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (d Dependencies) getForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := d.loadForm(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Form not found", d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":          f.ID,
		"title":       f.Title,
		"description": f.Description,
		"tone":        f.Tone,
		"schema":      f.Schema,
		"isActive":    f.IsActive,
	})
}

func (d Dependencies) listForms(w http.ResponseWriter, r *http.Request) {
	forms, err := d.Store.ListFormsByOwner(r.Context(), auth.GetUserID(r.Context()))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "list_failed", "Failed to list forms", d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"forms": forms})
}

type SetFormStatusRequest struct {
	IsActive bool `json:"isActive"`
}

func (d Dependencies) setFormStatus(w http.ResponseWriter, r *http.Request) {
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

	var req SetFormStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	if err := d.Store.SetFormActive(r.Context(), id, req.IsActive); err != nil {
		WriteError(w, http.StatusInternalServerError, "update_failed", "Failed to update form status", d.Log)
		return
	}
	d.Cache.Remove(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "isActive": req.IsActive})
}
