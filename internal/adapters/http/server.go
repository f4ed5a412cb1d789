package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/ternarybob/arbor"

	"mapscraper/internal/domain"
	"mapscraper/internal/ports"
	jobsvc "mapscraper/internal/services/jobs"
)

const (
	defaultBulkLimit = 40
	minBulkLimit     = 5
	maxBulkLimit     = 200
)

// Server exposes job submission, listing and export over HTTP.
type Server struct {
	jobs   ports.Jobs
	logger arbor.ILogger
}

func New(jobs ports.Jobs, logger arbor.ILogger) *Server {
	return &Server{jobs: jobs, logger: logger}
}

// Routes returns a chi.Router with every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", s.getHealthz)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Post("/create-bulk", s.createBulk)
		r.Get("/{id}", s.getJob)
		r.Post("/{id}/requeue", s.requeueJob)
		r.Get("/{id}/download", s.downloadJob)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type listResponse struct {
	Jobs  []domain.Job             `json:"jobs"`
	Stats map[domain.JobStatus]int `json:"stats"`
}

type bulkRequest struct {
	Keywords  string `json:"keywords"`
	Locations string `json:"locations"`
	Limit     *int   `json:"limit"`
}

type bulkResponse struct {
	Created int `json:"created"`
	Limit   int `json:"limit"`
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid limit: %v", err)})
		return
	}
	jobs, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	writeJSON(w, http.StatusOK, listResponse{Jobs: jobs, Stats: stats})
}

// createBulk accepts a JSON body or a submitted form, each carrying
// newline-separated keywords and locations.
func (s *Server) createBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		req.Keywords = r.FormValue("keywords")
		req.Locations = r.FormValue("locations")
		if v := r.FormValue("limit"); v != "" {
			// Non-numeric input falls back to the default.
			if n, err := strconv.Atoi(v); err == nil {
				req.Limit = &n
			}
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	created, err := s.jobs.CreateBulk(r.Context(), jobsvc.ParseLines(req.Keywords), jobsvc.ParseLines(req.Locations))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkResponse{Created: created, Limit: clampLimit(req.Limit)})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) requeueJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Requeue(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) downloadJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	// Buffered so a missing job is reported before any header is sent.
	var buf bytes.Buffer
	if err := s.jobs.ExportCSV(r.Context(), id, &buf); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="job-%s.csv"`, id))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("CSV download interrupted")
	}
}

func jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid job id"})
		return "", false
	}
	return id, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoKeywords), errors.Is(err, domain.ErrNoLocations):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "job is not in a state that allows this"})
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// clampLimit treats a missing or zero limit as the default.
func clampLimit(limit *int) int {
	if limit == nil || *limit == 0 {
		return defaultBulkLimit
	}
	switch {
	case *limit < minBulkLimit:
		return minBulkLimit
	case *limit > maxBulkLimit:
		return maxBulkLimit
	}
	return *limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
