package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flowform/internal/db"
	"flowform/internal/engine"
	"flowform/internal/pubsub"

	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	TypeWebhookDeliver     = "webhook:deliver"
	TypeFileReconciliation = "submission:reconcile_files"
)

type webhookPayload struct {
	SubmissionID string `json:"submissionId"`
	FormID       string `json:"formId"`
}

type JobServer struct {
	server *asynq.Server
	client *asynq.Client
	db     *db.Pool
	bus    *pubsub.Bus
	http   *http.Client
	log    *zap.Logger
}

func NewJobServer(redisAddr string, dbPool *db.Pool, bus *pubsub.Bus, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server: server,
		client: client,
		db:     dbPool,
		bus:    bus,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeWebhookDeliver, js.handleWebhookDelivery)
	mux.HandleFunc(TypeFileReconciliation, js.handleFileReconciliation)

	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

// handleWebhookDelivery posts the completed submission to the form's
// callback URL. A non-2xx response returns an error so asynq retries
// with backoff.
func (js *JobServer) handleWebhookDelivery(ctx context.Context, t *asynq.Task) error {
	var payload webhookPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	f, err := js.db.Queries.GetFormByID(ctx, payload.FormID)
	if err != nil {
		return fmt.Errorf("failed to get form: %w", err)
	}
	if f.CallbackURL == nil || *f.CallbackURL == "" {
		return nil
	}

	sub, err := js.db.Queries.GetSubmissionByID(ctx, payload.SubmissionID)
	if err != nil {
		return fmt.Errorf("failed to get submission: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"event":        "submission.created",
		"formId":       sub.FormID,
		"submissionId": sub.ID,
		"responses":    sub.Responses,
		"metadata":     sub.Metadata,
		"submittedAt":  sub.SubmittedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *f.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := js.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	js.log.Info("Webhook delivered",
		zap.String("submission_id", payload.SubmissionID),
		zap.String("form_id", payload.FormID),
	)
	return nil
}

// handleFileReconciliation re-creates file records that failed to write
// when the submission was saved. The stored responses are the source of
// truth for which files a submission carries.
func (js *JobServer) handleFileReconciliation(ctx context.Context, t *asynq.Task) error {
	submissionID := string(t.Payload())

	sub, err := js.db.Queries.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("failed to get submission: %w", err)
	}

	records, err := js.db.Queries.ListFileRecords(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("failed to list file records: %w", err)
	}
	recorded := make(map[string]bool, len(records))
	for _, r := range records {
		recorded[r.FieldName] = true
	}

	repaired := 0
	for fieldName, answer := range sub.Responses {
		file, ok := answer.(map[string]interface{})
		if !ok {
			continue
		}
		url, _ := file["url"].(string)
		if url == "" || recorded[fieldName] {
			continue
		}
		name, _ := file["filename"].(string)
		mimeType, _ := file["mimeType"].(string)

		err := js.db.Queries.CreateFileRecord(ctx, engine.CreateFileRecordParams{
			ID:           ulid.Make().String(),
			SubmissionID: sub.ID,
			FormID:       sub.FormID,
			FieldName:    fieldName,
			URL:          url,
			FileName:     name,
			MimeType:     mimeType,
		})
		if err != nil {
			return fmt.Errorf("failed to repair file record for %s: %w", fieldName, err)
		}
		repaired++
	}

	if repaired > 0 {
		js.log.Info("File records reconciled",
			zap.String("submission_id", submissionID),
			zap.Int("repaired", repaired),
		)
	}
	return nil
}

// Client wraps an asynq client behind the enqueue surface the engine
// needs.
type Client struct {
	client *asynq.Client
}

func NewClient(client *asynq.Client) *Client {
	return &Client{client: client}
}

func (c *Client) EnqueueWebhookDelivery(submissionID, formID string) error {
	payload, err := json.Marshal(webhookPayload{SubmissionID: submissionID, FormID: formID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeWebhookDeliver, payload)
	_, err = c.client.Enqueue(task, asynq.Queue("default"), asynq.MaxRetry(10))
	return err
}

func (c *Client) EnqueueFileReconciliation(submissionID string) error {
	task := asynq.NewTask(TypeFileReconciliation, []byte(submissionID))
	_, err := c.client.Enqueue(task, asynq.Queue("critical"), asynq.MaxRetry(10))
	return err
}
