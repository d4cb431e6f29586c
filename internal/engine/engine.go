package engine

import (
	"context"

	"go.uber.org/zap"
)

// Store is the narrow persistence surface the engine writes through.
// Everything else about storage lives behind it.
type Store interface {
	CreateSubmission(ctx context.Context, params CreateSubmissionParams) (string, error)
	CreateFileRecord(ctx context.Context, params CreateFileRecordParams) error
}

type CreateSubmissionParams struct {
	ID             string
	FormID         string
	Responses      map[string]any
	Metadata       map[string]any
	IdempotencyKey string
}

type CreateFileRecordParams struct {
	ID           string
	SubmissionID string
	FormID       string
	FieldName    string
	URL          string
	FileName     string
	FileSize     string
	MimeType     string
}

// EventBus publishes submission lifecycle events.
type EventBus interface {
	PublishForm(formID string, event map[string]interface{}) error
}

// JobClient schedules background work after a submission is persisted.
type JobClient interface {
	EnqueueWebhookDelivery(submissionID, formID string) error
	EnqueueFileReconciliation(submissionID string) error
}

// Engine validates answers against a form schema and finalizes
// submissions. It holds no per-conversation state: the caller passes the
// full accumulated response set on every Preview and Submit call.
type Engine struct {
	store Store
	bus   EventBus
	jobs  JobClient
	log   *zap.Logger
}

func New(store Store, bus EventBus, log *zap.Logger) *Engine {
	return &Engine{store: store, bus: bus, log: log}
}

// SetJobClient sets the job client for scheduling background jobs.
func (e *Engine) SetJobClient(client JobClient) {
	e.jobs = client
}
