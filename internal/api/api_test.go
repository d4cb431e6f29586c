package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"flowform/internal/db"
	"flowform/internal/engine"
	"flowform/internal/form"
	"flowform/internal/schema"
	"flowform/internal/storage"
	"flowform/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore backs both the handlers and the engine in tests.
type fakeStore struct {
	mu          sync.Mutex
	forms       map[string]form.Form
	submissions []db.Submission
	files       []engine.CreateFileRecordParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{forms: make(map[string]form.Form)}
}

func (s *fakeStore) CreateForm(ctx context.Context, params db.CreateFormParams) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := form.Form{
		ID:          params.ID,
		OwnerID:     params.OwnerID,
		Title:       params.Title,
		Description: params.Description,
		Tone:        params.Tone,
		Schema:      params.Schema,
		IsActive:    true,
		CallbackURL: params.CallbackURL,
	}
	s.forms[f.ID] = f
	return &f, nil
}

func (s *fakeStore) GetFormByID(ctx context.Context, id string) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, fmt.Errorf("form %s not found", id)
	}
	return &f, nil
}

func (s *fakeStore) ListFormsByOwner(ctx context.Context, ownerID string) ([]form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []form.Form
	for _, f := range s.forms {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) SetFormActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return fmt.Errorf("form %s not found", id)
	}
	f.IsActive = active
	s.forms[id] = f
	return nil
}

func (s *fakeStore) ListSubmissionsByForm(ctx context.Context, formID string, limit, offset int) ([]db.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Submission
	for _, sub := range s.submissions {
		if sub.FormID == formID {
			out = append(out, sub)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CreateSubmission(ctx context.Context, params engine.CreateSubmissionParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, db.Submission{
		ID:          params.ID,
		FormID:      params.FormID,
		Responses:   params.Responses,
		Metadata:    params.Metadata,
		SubmittedAt: time.Now(),
	})
	return params.ID, nil
}

func (s *fakeStore) CreateFileRecord(ctx context.Context, params engine.CreateFileRecordParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, params)
	return nil
}

type fakeBus struct{}

func (fakeBus) PublishForm(formID string, event map[string]interface{}) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()

	store := newFakeStore()
	log := zap.NewNop()

	compiler, err := schema.NewCompiler()
	require.NoError(t, err)

	files, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	deps := Dependencies{
		Store:    store,
		Engine:   engine.New(store, fakeBus{}, log),
		Compiler: compiler,
		Cache:    schema.NewCache(16, time.Minute),
		Files:    files,
		Policy:   &storage.UploadPolicy{MaxFileMB: 8},
		Hub:      ws.NewHub(log),
		Log:      log,
	}

	srv := httptest.NewServer(Routes(deps))
	t.Cleanup(srv.Close)
	return srv, store
}

func seedForm(t *testing.T, store *fakeStore, f form.Form) {
	t.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	store.forms[f.ID] = f
}

func contactForm() form.Form {
	return form.Form{
		ID:       "frm_1",
		OwnerID:  "owner_1",
		Title:    "Contact",
		IsActive: true,
		Schema: form.Schema{Fields: []form.FieldDefinition{
			{Name: "name", Type: form.FieldText, Label: "Full Name", Required: true},
			{Name: "email", Type: form.FieldEmail, Label: "Email", Required: true},
			{Name: "resume", Type: form.FieldFile, Label: "Resume",
				Validation: &form.Validation{AcceptedTypes: []string{"pdf"}}},
		}},
	}
}

func postJSON(t *testing.T, url string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateFormRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/forms", map[string]interface{}{"title": "x"}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateForm(t *testing.T) {
	srv, store := newTestServer(t)
	owner := map[string]string{"X-User-ID": "owner_1"}

	resp := postJSON(t, srv.URL+"/v1/forms", map[string]interface{}{
		"title": "Feedback",
		"schema": map[string]interface{}{
			"fields": []map[string]interface{}{
				{"name": "email", "type": "email", "label": "Email", "required": true},
			},
		},
	}, owner)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, true, body["isActive"])

	store.mu.Lock()
	assert.Len(t, store.forms, 1)
	store.mu.Unlock()
}

func TestCreateFormRejectsBadDefinition(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := map[string]string{"X-User-ID": "owner_1"}

	// Unknown field type
	resp := postJSON(t, srv.URL+"/v1/forms", map[string]interface{}{
		"title": "Bad",
		"schema": map[string]interface{}{
			"fields": []map[string]interface{}{
				{"name": "x", "type": "telepathy", "label": "X"},
			},
		},
	}, owner)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Choice field with no choices
	resp = postJSON(t, srv.URL+"/v1/forms", map[string]interface{}{
		"title": "Bad",
		"schema": map[string]interface{}{
			"fields": []map[string]interface{}{
				{"name": "c", "type": "choice", "label": "C"},
			},
		},
	}, owner)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetForm(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	resp, err := http.Get(srv.URL + "/v1/forms/frm_1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Contact", body["title"])
	assert.Nil(t, body["ownerId"])

	resp, err = http.Get(srv.URL + "/v1/forms/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCollectAnswer(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	resp := postJSON(t, srv.URL+"/v1/forms/frm_1/collect", map[string]interface{}{
		"fieldName": "email",
		"answer":    "ada@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "ada@example.com", body["canonicalValue"])

	resp = postJSON(t, srv.URL+"/v1/forms/frm_1/collect", map[string]interface{}{
		"fieldName": "email",
		"answer":    "not-an-email",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["error"], "valid email")
}

func TestSubmitForm(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	resp := postJSON(t, srv.URL+"/v1/forms/frm_1/submit", map[string]interface{}{
		"responses": map[string]string{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
		},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["submissionId"])

	store.mu.Lock()
	require.Len(t, store.submissions, 1)
	store.mu.Unlock()
}

func TestSubmitFormWithFile(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	resp := postJSON(t, srv.URL+"/v1/forms/frm_1/submit", map[string]interface{}{
		"responses": map[string]string{
			"name":   "Ada Lovelace",
			"email":  "ada@example.com",
			"resume": "https://files.example.com/resume.pdf",
		},
		"fileMetadata": map[string]interface{}{
			"resume": map[string]interface{}{
				"name":        "resume.pdf",
				"url":         "https://files.example.com/resume.pdf",
				"size":        204800,
				"contentType": "application/pdf",
			},
		},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])

	store.mu.Lock()
	require.Len(t, store.files, 1)
	assert.Equal(t, "resume", store.files[0].FieldName)
	assert.Equal(t, "204800", store.files[0].FileSize)
	assert.Equal(t, "application/pdf", store.files[0].MimeType)
	store.mu.Unlock()
}

func TestSubmitFormValidationFailure(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	resp := postJSON(t, srv.URL+"/v1/forms/frm_1/submit", map[string]interface{}{
		"responses": map[string]string{"name": "Ada Lovelace"},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Missing required fields")
	assert.Contains(t, body["error"], "Email")
}

func TestSubmitInactiveForm(t *testing.T) {
	srv, store := newTestServer(t)
	f := contactForm()
	f.IsActive = false
	seedForm(t, store, f)

	resp := postJSON(t, srv.URL+"/v1/forms/frm_1/submit", map[string]interface{}{
		"responses": map[string]string{"name": "Ada", "email": "ada@example.com"},
	}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], "no longer accepting")
}

func TestSetFormStatus(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	resp := postJSON(t, srv.URL+"/v1/forms/frm_1/status",
		map[string]interface{}{"isActive": false},
		map[string]string{"X-User-ID": "owner_1"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	store.mu.Lock()
	assert.False(t, store.forms["frm_1"].IsActive)
	store.mu.Unlock()

	// Non-owners cannot toggle
	resp = postJSON(t, srv.URL+"/v1/forms/frm_1/status",
		map[string]interface{}{"isActive": true},
		map[string]string{"X-User-ID": "intruder"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExportSubmissions(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())
	store.submissions = append(store.submissions, db.Submission{
		ID:     "sub_1",
		FormID: "frm_1",
		Responses: map[string]interface{}{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
		},
		SubmittedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/forms/frm_1/submissions/export", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "owner_1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, "Contact - Submissions", body["title"])
	assert.Equal(t, "text/csv", body["mimeType"])
	assert.Equal(t, float64(1), body["submissionCount"])
	content, _ := body["content"].(string)
	assert.True(t, strings.HasPrefix(content, "Full Name,Email,Resume,Submitted At"))
	assert.Contains(t, content, "Ada Lovelace")
}

func TestUploadFile(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("fieldName", "resume"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="resume.pdf"`)
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/forms/frm_1/uploads", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)

	assert.Equal(t, "resume.pdf", body["name"])
	assert.Equal(t, "application/pdf", body["mimeType"])
	url, _ := body["url"].(string)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/files/frm_1/"))
	assert.NotEmpty(t, body["sha256"])
}

func TestUploadFileRejectsType(t *testing.T) {
	srv, store := newTestServer(t)
	seedForm(t, store, contactForm())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("fieldName", "resume"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte("png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/forms/frm_1/uploads", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], "File type not accepted")
}
