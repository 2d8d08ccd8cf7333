package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"courier/internal/api"
	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	srv := &apiServer{bind: bind, logger: logger, daemon: d}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/api/health", s.handleHealth)
	if s.daemon.metrics != nil {
		r.Mount("/metrics", s.daemon.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(token))
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/jobs", s.handleListJobs)
		r.Get("/api/jobs/{id}", s.handleGetJob)
		r.Post("/api/jobs/{id}/retry", s.handleRetryJob)
		r.Post("/api/retry", s.handleRetry)
		r.Get("/api/batches", s.handleListBatches)
		r.Post("/api/batches", s.handleEnqueue)
		r.Post("/api/cleanup", s.handleCleanup)
		r.Post("/api/purge", s.handlePurge)
		r.Get("/api/database", s.handleDatabase)
		if s.daemon.hub != nil {
			r.Handle("/api/events", s.daemon.hub)
		}
	})
	return r
}

// start listens synchronously so bind errors surface to the caller, then
// serves in the background until ctx is cancelled.
func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound address, useful when binding port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", Running: s.daemon.Running()})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	withChecks, _ := strconv.ParseBool(r.URL.Query().Get("checks"))
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context(), withChecks))
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	req, err := api.ParseListQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.daemon.List(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.Retry(r.Context(), api.RetryRequest{IDs: []int64{id}})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req api.RetryRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.Retry(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.daemon.Batches(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BatchListResponse{Batches: batches})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.Enqueue(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req api.CleanupRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.Cleanup(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePurge(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.Purge(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDatabase(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.DatabaseHealth(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *apiServer) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body. An empty body leaves dst at its zero value.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log().Warn("api request failed", logging.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
