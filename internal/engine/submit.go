package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"flowform/internal/form"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// FileMeta is the per-field file metadata supplied alongside a submit
// call for file-type answers.
type FileMeta struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     string `json:"size,omitempty"`
}

type SubmitResult struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submissionId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Submit is the final integrity gate: it checks required-field
// completeness, re-validates every present answer from scratch,
// materializes file answers into durable records, and persists exactly
// one submission. Validation errors are aggregated so the user hears
// about everything at once instead of one field per round trip.
//
// The submission write happens before the file-record writes; if a file
// record fails, the submission is not rolled back. A reconciliation job
// is enqueued to re-issue the missing records.
func (e *Engine) Submit(ctx context.Context, f *form.Form, responses map[string]string, fileMetadata map[string]FileMeta, idempotencyKey string) SubmitResult {
	var missing []string
	for _, field := range f.Schema.Fields {
		if field.Required && strings.TrimSpace(responses[field.Name]) == "" {
			missing = append(missing, field.Label)
		}
	}
	if len(missing) > 0 {
		return SubmitResult{Error: "Missing required fields: " + strings.Join(missing, ", ")}
	}

	// Re-validate every present answer, even ones already validated
	// during collection. Answers can mutate between collect and submit.
	var errs []string
	for _, field := range f.Schema.Fields {
		value := responses[field.Name]
		if strings.TrimSpace(value) == "" {
			continue
		}
		if field.Type == form.FieldFile {
			meta, okMeta := fileMetadata[field.Name]
			if !okMeta {
				errs = append(errs, field.Label+": Missing file metadata for uploaded file")
				continue
			}
			if out := form.ValidateFile(field, value, meta.Name, meta.MimeType); !out.Valid {
				errs = append(errs, field.Label+": "+out.Error)
			}
		} else {
			if out := form.Validate(field, rawAnswerFor(field, value)); !out.Valid {
				errs = append(errs, field.Label+": "+out.Error)
			}
		}
	}
	if len(errs) > 0 {
		return SubmitResult{Error: "Validation errors: " + strings.Join(errs, "; ")}
	}

	// Store raw responses, except file answers which become durable
	// {url, filename, mimeType} records instead of bare URLs.
	stored := make(map[string]any, len(responses))
	for name, value := range responses {
		stored[name] = value
	}
	for _, field := range f.Schema.Fields {
		if field.Type != form.FieldFile || responses[field.Name] == "" {
			continue
		}
		if meta, okMeta := fileMetadata[field.Name]; okMeta {
			stored[field.Name] = map[string]any{
				"url":      meta.URL,
				"filename": meta.Name,
				"mimeType": meta.MimeType,
			}
		}
	}

	submissionID, err := e.store.CreateSubmission(ctx, CreateSubmissionParams{
		ID:        ulid.Make().String(),
		FormID:    f.ID,
		Responses: stored,
		Metadata: map[string]any{
			"submittedVia": "conversational",
			"completedAt":  time.Now().UTC().Format(time.RFC3339),
		},
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		e.log.Error("failed to create submission", zap.String("form_id", f.ID), zap.Error(err))
		return SubmitResult{Error: "Failed to save submission. Please try again."}
	}

	// File records are independent of each other; issue them concurrently.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var recordErrs []error
	for _, field := range f.Schema.Fields {
		if field.Type != form.FieldFile || responses[field.Name] == "" {
			continue
		}
		meta, okMeta := fileMetadata[field.Name]
		if !okMeta {
			continue
		}
		size := meta.Size
		if size == "" {
			size = "0"
		}
		params := CreateFileRecordParams{
			ID:           ulid.Make().String(),
			SubmissionID: submissionID,
			FormID:       f.ID,
			FieldName:    field.Name,
			URL:          meta.URL,
			FileName:     meta.Name,
			FileSize:     size,
			MimeType:     meta.MimeType,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.store.CreateFileRecord(ctx, params); err != nil {
				mu.Lock()
				recordErrs = append(recordErrs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if e.bus != nil {
		_ = e.bus.PublishForm(f.ID, map[string]interface{}{
			"type":         "submission.created",
			"formId":       f.ID,
			"submissionId": submissionID,
		})
	}

	if len(recordErrs) > 0 {
		// The submission stays; the reconciliation job re-creates the
		// missing file records from the stored responses.
		e.log.Error("file record creation failed",
			zap.String("submission_id", submissionID),
			zap.Int("failed", len(recordErrs)),
			zap.Error(recordErrs[0]),
		)
		if e.jobs != nil {
			_ = e.jobs.EnqueueFileReconciliation(submissionID)
		}
		return SubmitResult{Error: "Submission was saved but some file attachments could not be recorded."}
	}

	if e.jobs != nil && f.CallbackURL != nil && *f.CallbackURL != "" {
		_ = e.jobs.EnqueueWebhookDelivery(submissionID, f.ID)
	}

	return SubmitResult{Success: true, SubmissionID: submissionID}
}

// rawAnswerFor rebuilds the RawAnswer shape the validator expects from
// the flat string responses map. Multi-select answers arrive
// comma-joined and are split back into their entries, matching against
// the configured choices so a choice containing a comma survives the
// round trip.
func rawAnswerFor(field form.FieldDefinition, value string) form.RawAnswer {
	if field.Type == form.FieldChoice && field.Options != nil && field.Options.MultiSelect {
		return form.Multiple(form.SplitSelections(value, field.Options.Choices))
	}
	return form.Single(value)
}
