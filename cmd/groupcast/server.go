package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"groupcast/internal/engine"
	"groupcast/internal/errors"
	"groupcast/internal/importer"
	"groupcast/internal/middleware"
	"groupcast/internal/models"
	"groupcast/internal/notify"
	"groupcast/internal/versioning"
)

const maxImportBodyBytes = 8 << 20

type Server struct {
	router *mux.Router
	logger *logrus.Logger
	errlog *errors.Logger
	engine *engine.Engine
	hub    *notify.Hub
	cfg    *models.Config
	server *http.Server
}

func NewServer(cfg *models.Config, eng *engine.Engine, hub *notify.Hub, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		errlog: errors.WrapLogger(logger),
		engine: eng,
		hub:    hub,
		cfg:    cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))
	s.router.Use(versioning.Middleware)

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.Handle("/ws", s.hub).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/import", s.handleImport()).Methods(http.MethodPost)

	api.HandleFunc("/jobs", s.handleListJobs()).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleCreateJob()).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.handleDeleteJobs()).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/enqueue", s.handleBatch(s.engine.EnqueueJobs)).Methods(http.MethodPost)
	api.HandleFunc("/jobs/pause", s.handleBatch(s.engine.PauseJobs)).Methods(http.MethodPost)
	api.HandleFunc("/jobs/cancel", s.handleBatch(s.engine.CancelJobs)).Methods(http.MethodPost)
	api.HandleFunc("/jobs/randomize", s.handleRandomize()).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id:[0-9]+}", s.handleGetJob()).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id:[0-9]+}", s.handleEditJob()).Methods(http.MethodPatch)

	api.HandleFunc("/compose", s.handleCompose()).Methods(http.MethodPost)

	api.HandleFunc("/settings", s.handleGetSettings()).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings()).Methods(http.MethodPut)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"jobs":        len(s.engine.ListJobs()),
			"timers":      s.engine.PendingTimers(),
			"subscribers": s.hub.SubscriberCount(),
		})
	}
}

type importRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// handleImport accepts schedule rows either as a multipart CSV upload or as
// a JSON body with pasted delimited text. Row validation is independent per
// row; the response reports created jobs and per-row errors side by side.
func (s *Server) handleImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, source, err := readImportPayload(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		rows, err := importer.ParseDelimited(text)
		if err != nil {
			s.writeError(w, err)
			return
		}

		report, err := s.engine.Import(r.Context(), rows, source)
		if err != nil {
			s.writeError(w, err)
			return
		}

		status := http.StatusCreated
		if report.CreatedCount == 0 {
			status = http.StatusUnprocessableEntity
		}
		s.writeJSON(w, status, report)
	}
}

func readImportPayload(r *http.Request) (string, models.RevisionSource, error) {
	contentType := r.Header.Get("Content-Type")

	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBodyBytes); err != nil {
			return "", "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid multipart form")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", "", errors.Wrap(err, errors.ErrCodeInvalidInput, "missing file field")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxImportBodyBytes))
		if err != nil {
			return "", "", errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read upload")
		}
		return string(data), models.RevisionSourceCSVUpload, nil
	}

	var req importRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImportBodyBytes)).Decode(&req); err != nil {
		return "", "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	if req.Text == "" {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "text is required")
	}

	source := models.RevisionSourceBulkPaste
	if req.Source == string(models.RevisionSourceCSVUpload) {
		source = models.RevisionSourceCSVUpload
	}
	return req.Text, source, nil
}

type jobRequest struct {
	RowID       string `json:"rowId,omitempty"`
	MessageText string `json:"messageText"`
	ScheduledAt string `json:"scheduledAt,omitempty"`
	GroupJID    string `json:"groupJid,omitempty"`
	GroupName   string `json:"groupName,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

func (req *jobRequest) toSpec() (models.JobSpec, error) {
	spec := models.JobSpec{
		RowID:       req.RowID,
		MessageText: req.MessageText,
		GroupJID:    req.GroupJID,
		GroupName:   req.GroupName,
		Enabled:     true,
	}
	if req.Enabled != nil {
		spec.Enabled = *req.Enabled
	}
	if req.ScheduledAt != "" {
		at, err := importer.ParseScheduleTime(req.ScheduledAt)
		if err != nil {
			return spec, errors.NewValidationError("scheduledAt", req.ScheduledAt, err.Error())
		}
		spec.ScheduledAt = at
	}
	return spec, nil
}

func (s *Server) handleCreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		spec, err := req.toSpec()
		if err != nil {
			s.writeError(w, err)
			return
		}

		job, err := s.engine.CreateJob(r.Context(), spec)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, job)
	}
}

// handleCompose sends immediately and records the outcome as a job.
func (s *Server) handleCompose() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		spec, err := req.toSpec()
		if err != nil {
			s.writeError(w, err)
			return
		}

		// A failed send still produces a job record; return it alongside
		// the error status so the caller can re-enqueue later.
		job, err := s.engine.Compose(r.Context(), spec)
		if err != nil {
			if job == nil {
				s.writeError(w, err)
				return
			}
			s.writeJSON(w, errors.HTTPStatusCode(err), job)
			return
		}
		s.writeJSON(w, http.StatusCreated, job)
	}
}

func (s *Server) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"jobs": s.engine.ListJobs(),
		})
	}
}

func (s *Server) handleGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseJobID(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		job, err := s.engine.GetJob(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, job)
	}
}

type editRequest struct {
	RowID       *string `json:"rowId,omitempty"`
	MessageText *string `json:"messageText,omitempty"`
	ScheduledAt *string `json:"scheduledAt,omitempty"`
	GroupJID    *string `json:"groupJid,omitempty"`
	GroupName   *string `json:"groupName,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

func (s *Server) handleEditJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseJobID(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		var req editRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		edit := engine.JobEdit{
			RowID:       req.RowID,
			MessageText: req.MessageText,
			GroupJID:    req.GroupJID,
			GroupName:   req.GroupName,
			Enabled:     req.Enabled,
		}
		if req.ScheduledAt != nil {
			at, err := importer.ParseScheduleTime(*req.ScheduledAt)
			if err != nil {
				s.writeError(w, errors.NewValidationError("scheduledAt", *req.ScheduledAt, err.Error()))
				return
			}
			edit.ScheduledAt = &at
		}

		job, err := s.engine.EditJob(r.Context(), id, edit, models.RevisionSourceManualEdit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, job)
	}
}

type idsRequest struct {
	IDs []int64 `json:"ids"`
}

// handleBatch serves the enqueue, pause and cancel operations, which all
// share the same request and response shape.
func (s *Server) handleBatch(op func(context.Context, []int64) ([]*models.Job, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := readIDs(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		jobs, err := op(r.Context(), ids)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
	}
}

type randomizeRequest struct {
	IDs         []int64 `json:"ids"`
	WindowStart string  `json:"windowStart"`
	WindowEnd   string  `json:"windowEnd"`
}

func (s *Server) handleRandomize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req randomizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		if len(req.IDs) == 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "ids is required"))
			return
		}

		start, err := importer.ParseScheduleTime(req.WindowStart)
		if err != nil {
			s.writeError(w, errors.NewValidationError("windowStart", req.WindowStart, err.Error()))
			return
		}
		end, err := importer.ParseScheduleTime(req.WindowEnd)
		if err != nil {
			s.writeError(w, errors.NewValidationError("windowEnd", req.WindowEnd, err.Error()))
			return
		}

		jobs, err := s.engine.RandomizeJobTimes(r.Context(), req.IDs, start, end)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
	}
}

func (s *Server) handleDeleteJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := readIDs(r)
		if err != nil {
			s.writeError(w, err)
			return
		}

		deleted, err := s.engine.DeleteJobs(r.Context(), ids)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
	}
}

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.engine.Settings())
	}
}

func (s *Server) handleUpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			s.writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		if err := s.engine.UpdateSettings(r.Context(), settings); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, s.engine.Settings())
	}
}

func readIDs(r *http.Request) ([]int64, error) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "ids is required")
	}
	return req.IDs, nil
}

func parseJobID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("id", raw, "must be a positive integer")
	}
	return id, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= 500 {
		s.errlog.LogError(err, "Request failed")
	} else {
		s.errlog.WithError(err).Debug("Request rejected")
	}
	s.writeJSON(w, status, errors.ToHTTPResponse(err))
}
