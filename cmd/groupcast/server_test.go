package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcast/internal/engine"
	"groupcast/internal/models"
	"groupcast/internal/notify"
	"groupcast/internal/store"
	"groupcast/internal/versioning"
)

type stubTransport struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (t *stubTransport) Send(ctx context.Context, target engine.SendTarget, text string) (*engine.SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	jid := target.JID
	if jid == "" {
		jid = "123456789@g.us"
	}
	name := target.Name
	if name == "" {
		name = "Resolved Group"
	}
	return &engine.SendResult{Group: models.ResolvedGroup{ID: jid, Name: name}}, nil
}

func newTestServer(t *testing.T) (*Server, *stubTransport) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	persistence, err := store.NewFileStore(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, err)

	transport := &stubTransport{}
	hub := notify.NewHub(logger)
	eng := engine.New(store.New(persistence, logger), transport, engine.SystemClock(), hub, logger)
	eng.Start()
	t.Cleanup(eng.Stop)
	t.Cleanup(hub.Close)

	cfg := &models.Config{
		Server: models.ServerConfig{Port: 0, ReadTimeoutSec: 5, WriteTimeoutSec: 5, IdleTimeoutSec: 5},
	}
	return NewServer(cfg, eng, hub, logger), transport
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) models.Job {
	t.Helper()
	var job models.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	return job
}

func futureTime() string {
	return time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
}

func createJob(t *testing.T, s *Server) models.Job {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/jobs", map[string]interface{}{
		"messageText": "hello world",
		"scheduledAt": futureTime(),
		"groupJid":    "123456789@g.us",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeJob(t, rec)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestVersionHeaderOnResponses(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, versioning.CurrentVersion.String(), rec.Header().Get(versioning.VersionHeader))
}

func TestIncompatibleVersionRejected(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(versioning.RequestedVersionHeader, "99.0")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestCreateJob(t *testing.T) {
	s, _ := newTestServer(t)

	job := createJob(t, s)
	assert.Equal(t, int64(1), job.ID)
	assert.Equal(t, models.JobStatusUploaded, job.Status)
	assert.True(t, job.Enabled)
	assert.Len(t, job.Revisions, 1)
	assert.Equal(t, models.RevisionSourceManualEntry, job.Revisions[0].Source)
}

func TestCreateJobRejectsBadTime(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs", map[string]interface{}{
		"messageText": "hello",
		"scheduledAt": "not a time",
		"groupJid":    "123456789@g.us",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_FAILED")
}

func TestCreateJobRejectsMissingFields(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/jobs", map[string]interface{}{
		"messageText": "",
		"scheduledAt": futureTime(),
		"groupJid":    "123456789@g.us",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Empty(t, body.Jobs)
}

func TestCreateJobRejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	s, _ := newTestServer(t)
	created := createJob(t, s)

	rec := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/jobs/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeJob(t, rec).ID)
}

func TestGetJobNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/jobs/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "JOB_NOT_FOUND")
}

func TestListJobs(t *testing.T) {
	s, _ := newTestServer(t)
	createJob(t, s)
	createJob(t, s)

	rec := doJSON(t, s, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Jobs, 2)
}

func TestEnqueuePauseCancelFlow(t *testing.T) {
	s, _ := newTestServer(t)
	job := createJob(t, s)
	ids := map[string]interface{}{"ids": []int64{job.ID}}

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/enqueue", ids)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, models.JobStatusScheduled, body.Jobs[0].Status)

	rec = doJSON(t, s, http.MethodPost, "/api/jobs/pause", ids)
	require.Equal(t, http.StatusOK, rec.Code)
	body.Jobs = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, models.JobStatusUploaded, body.Jobs[0].Status)

	rec = doJSON(t, s, http.MethodPost, "/api/jobs/cancel", ids)
	require.Equal(t, http.StatusOK, rec.Code)
	body.Jobs = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, body.Jobs[0].Status)
}

func TestBatchRequiresIDs(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/enqueue", map[string]interface{}{"ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditJob(t *testing.T) {
	s, _ := newTestServer(t)
	job := createJob(t, s)

	rec := doJSON(t, s, http.MethodPatch, fmt.Sprintf("/api/jobs/%d", job.ID), map[string]interface{}{
		"messageText": "updated text",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	edited := decodeJob(t, rec)
	assert.Equal(t, "updated text", edited.MessageText)
	require.Len(t, edited.Revisions, 2)
	assert.Equal(t, models.RevisionSourceManualEdit, edited.Revisions[1].Source)
}

func TestDeleteJobs(t *testing.T) {
	s, _ := newTestServer(t)
	job := createJob(t, s)

	rec := doJSON(t, s, http.MethodDelete, "/api/jobs", map[string]interface{}{"ids": []int64{job.ID}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/jobs/%d", job.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportPastedRows(t *testing.T) {
	s, _ := newTestServer(t)

	text := "messageText,scheduledAt,groupJid\n" +
		"hello one," + futureTime() + ",123456789@g.us\n" +
		"hello two," + futureTime() + ",987654321@g.us\n"

	rec := doJSON(t, s, http.MethodPost, "/api/import", map[string]interface{}{"text": text})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report struct {
		CreatedCount int          `json:"createdCount"`
		Jobs         []models.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 2, report.CreatedCount)
	require.Len(t, report.Jobs, 2)
	assert.Equal(t, models.RevisionSourceBulkPaste, report.Jobs[0].Revisions[0].Source)
}

func TestImportAllRowsInvalid(t *testing.T) {
	s, _ := newTestServer(t)

	text := "messageText,scheduledAt,groupJid\n" +
		",not-a-time,bogus\n"

	rec := doJSON(t, s, http.MethodPost, "/api/import", map[string]interface{}{"text": text})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestImportMultipartUpload(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "schedule.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("messageText,scheduledAt,groupJid\nhello," + futureTime() + ",123456789@g.us\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report struct {
		CreatedCount int          `json:"createdCount"`
		Jobs         []models.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 1, report.CreatedCount)
	require.Len(t, report.Jobs, 1)
	assert.Equal(t, models.RevisionSourceCSVUpload, report.Jobs[0].Revisions[0].Source)
}

func TestRandomize(t *testing.T) {
	s, _ := newTestServer(t)
	job := createJob(t, s)

	start := time.Now().Add(48 * time.Hour).UTC()
	end := start.Add(2 * time.Hour)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/randomize", map[string]interface{}{
		"ids":         []int64{job.ID},
		"windowStart": start.Format(time.RFC3339),
		"windowEnd":   end.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Jobs []models.Job `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	got := body.Jobs[0].ScheduledAt
	assert.False(t, got.Before(start))
	assert.False(t, got.After(end))
}

func TestRandomizeInvertedWindowRejected(t *testing.T) {
	s, _ := newTestServer(t)
	job := createJob(t, s)

	start := time.Now().Add(48 * time.Hour).UTC()

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/randomize", map[string]interface{}{
		"ids":         []int64{job.ID},
		"windowStart": start.Format(time.RFC3339),
		"windowEnd":   start.Add(-time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings models.Settings
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&settings))
	assert.Equal(t, 0, settings.RandomDelayMaxMinutes)

	rec = doJSON(t, s, http.MethodPut, "/api/settings", models.Settings{RandomDelayMaxMinutes: 120})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&settings))
	assert.Equal(t, 120, settings.RandomDelayMaxMinutes)
}

func TestSettingsGuardViolation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/api/settings", models.Settings{RandomDelayMaxMinutes: 181})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "GUARD_VIOLATION")
}

func TestComposeSuccess(t *testing.T) {
	s, transport := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/compose", map[string]interface{}{
		"messageText": "immediate hello",
		"groupName":   "Test Group",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	job := decodeJob(t, rec)
	assert.Equal(t, models.JobStatusSent, job.Status)
	assert.Equal(t, models.DeliveryTypeCompose, job.DeliveryType)
	require.NotNil(t, job.ResolvedGroup)
	assert.Equal(t, "Test Group", job.ResolvedGroup.Name)
	assert.Equal(t, 1, transport.calls)
}

func TestComposeFailureReturnsFailedJob(t *testing.T) {
	s, transport := newTestServer(t)
	transport.err = fmt.Errorf("gateway unreachable")

	rec := doJSON(t, s, http.MethodPost, "/api/compose", map[string]interface{}{
		"messageText": "immediate hello",
		"groupJid":    "123456789@g.us",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	job := decodeJob(t, rec)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.StatusReason, "gateway unreachable")
}
