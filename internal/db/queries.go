package db

import (
	"context"
	"errors"
	"time"

	"flowform/internal/engine"
	"flowform/internal/form"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// Form queries

type CreateFormParams struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Tone        string
	Schema      form.Schema
	CallbackURL *string
}

func (q *Queries) CreateForm(ctx context.Context, params CreateFormParams) (*form.Form, error) {
	var f form.Form
	err := q.Pool.QueryRow(ctx,
		`INSERT INTO forms (id, owner_id, title, description, tone, schema, is_active, callback_url)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		RETURNING id, owner_id, title, description, tone, schema, is_active, callback_url`,
		params.ID, params.OwnerID, params.Title, params.Description, params.Tone, params.Schema, params.CallbackURL,
	).Scan(&f.ID, &f.OwnerID, &f.Title, &f.Description, &f.Tone, &f.Schema, &f.IsActive, &f.CallbackURL)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *Queries) GetFormByID(ctx context.Context, id string) (*form.Form, error) {
	var f form.Form
	err := q.Pool.QueryRow(ctx,
		`SELECT id, owner_id, title, description, tone, schema, is_active, callback_url
		FROM forms WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.OwnerID, &f.Title, &f.Description, &f.Tone, &f.Schema, &f.IsActive, &f.CallbackURL)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *Queries) ListFormsByOwner(ctx context.Context, ownerID string) ([]form.Form, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT id, owner_id, title, description, tone, schema, is_active, callback_url
		FROM forms WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forms := make([]form.Form, 0)
	for rows.Next() {
		var f form.Form
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Title, &f.Description, &f.Tone, &f.Schema, &f.IsActive, &f.CallbackURL); err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func (q *Queries) SetFormActive(ctx context.Context, id string, active bool) error {
	result, err := q.Pool.Exec(ctx,
		"UPDATE forms SET is_active = $2, updated_at = NOW() WHERE id = $1",
		id, active,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Submission queries

// CreateSubmission implements engine.Store. When an idempotency key is
// supplied and a submission for (form, key) already exists, the existing
// id is returned instead of a second row being written.
func (q *Queries) CreateSubmission(ctx context.Context, params engine.CreateSubmissionParams) (string, error) {
	var id string
	err := q.Pool.QueryRow(ctx,
		`INSERT INTO submissions (id, form_id, responses, metadata, idempotency_key)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (form_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING id`,
		params.ID, params.FormID, params.Responses, params.Metadata, params.IdempotencyKey,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict path: hand back the submission that won the race.
		err = q.Pool.QueryRow(ctx,
			"SELECT id FROM submissions WHERE form_id = $1 AND idempotency_key = $2",
			params.FormID, params.IdempotencyKey,
		).Scan(&id)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateFileRecord implements engine.Store.
func (q *Queries) CreateFileRecord(ctx context.Context, params engine.CreateFileRecordParams) error {
	_, err := q.Pool.Exec(ctx,
		`INSERT INTO submission_files (id, submission_id, form_id, field_name, url, file_name, file_size, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		params.ID, params.SubmissionID, params.FormID, params.FieldName,
		params.URL, params.FileName, params.FileSize, params.MimeType,
	)
	return err
}

type Submission struct {
	ID          string
	FormID      string
	Responses   map[string]interface{}
	Metadata    map[string]interface{}
	SubmittedAt time.Time
}

func (q *Queries) GetSubmissionByID(ctx context.Context, id string) (Submission, error) {
	var s Submission
	err := q.Pool.QueryRow(ctx,
		`SELECT id, form_id, responses, metadata, submitted_at
		FROM submissions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.FormID, &s.Responses, &s.Metadata, &s.SubmittedAt)
	return s, err
}

func (q *Queries) ListSubmissionsByForm(ctx context.Context, formID string, limit, offset int) ([]Submission, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT id, form_id, responses, metadata, submitted_at
		FROM submissions
		WHERE form_id = $1
		ORDER BY submitted_at ASC
		LIMIT $2 OFFSET $3`,
		formID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]Submission, 0)
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.FormID, &s.Responses, &s.Metadata, &s.SubmittedAt); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

type FileRecord struct {
	ID           string
	SubmissionID string
	FormID       string
	FieldName    string
	URL          string
	FileName     string
	FileSize     string
	MimeType     string
	CreatedAt    time.Time
}

func (q *Queries) ListFileRecords(ctx context.Context, submissionID string) ([]FileRecord, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT id, submission_id, form_id, field_name, url, file_name, file_size, mime_type, created_at
		FROM submission_files
		WHERE submission_id = $1
		ORDER BY created_at ASC`,
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var r FileRecord
		if err := rows.Scan(&r.ID, &r.SubmissionID, &r.FormID, &r.FieldName, &r.URL, &r.FileName, &r.FileSize, &r.MimeType, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
