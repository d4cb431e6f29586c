package api

import (
	"context"
	"net/http"
	"os"

	"flowform/internal/auth"
	"flowform/internal/db"
	"flowform/internal/engine"
	"flowform/internal/form"
	"flowform/internal/schema"
	"flowform/internal/storage"
	"flowform/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FormStore is the persistence surface the handlers need. *db.Queries
// satisfies it.
type FormStore interface {
	CreateForm(ctx context.Context, params db.CreateFormParams) (*form.Form, error)
	GetFormByID(ctx context.Context, id string) (*form.Form, error)
	ListFormsByOwner(ctx context.Context, ownerID string) ([]form.Form, error)
	SetFormActive(ctx context.Context, id string, active bool) error
	ListSubmissionsByForm(ctx context.Context, formID string, limit, offset int) ([]db.Submission, error)
}

type Dependencies struct {
	Store    FormStore
	Engine   *engine.Engine
	Compiler *schema.Compiler
	Cache    *schema.Cache
	Files    storage.Storage
	Policy   *storage.UploadPolicy
	Hub      *ws.Hub
	Log      *zap.Logger
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// Add request logging middleware
	r.Use(RequestLogger(d.Log))

	// Add JWT authentication middleware (optional - respondent endpoints stay anonymous)
	jwtSecret := os.Getenv("JWT_SECRET")
	jwtConfig := auth.NewJWTConfig(jwtSecret)
	r.Use(jwtConfig.Middleware)

	r.Route("/v1", func(r chi.Router) {
		// Owner endpoints
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/forms", d.createForm)
			r.Get("/forms", d.listForms)
			r.Post("/forms/{id}/status", d.setFormStatus)
			r.Get("/forms/{id}/submissions", d.listSubmissions)
			r.Get("/forms/{id}/submissions/export", d.exportSubmissions)
		})

		// Respondent endpoints
		r.Get("/forms/{id}", d.getForm)
		r.Post("/forms/{id}/collect", d.collectAnswer)
		r.Post("/forms/{id}/preview", d.previewSubmission)
		r.Post("/forms/{id}/submit", d.submitForm)
		r.Post("/forms/{id}/uploads", d.uploadFile)
	})

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}

// loadForm fetches a form, reading through the cache.
func (d Dependencies) loadForm(ctx context.Context, id string) (*form.Form, error) {
	if f, ok := d.Cache.Get(id); ok {
		return f, nil
	}
	f, err := d.Store.GetFormByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Cache.Add(f)
	return f, nil
}
