// Package api exposes the HTTP interface for the audit service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sitewarden/site-auditor/internal/audit"
	"github.com/sitewarden/site-auditor/internal/config"
	"github.com/sitewarden/site-auditor/internal/metrics"
	"github.com/sitewarden/site-auditor/internal/orchestrator"

	"go.uber.org/zap"
)

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router chi.Router
	orch   *orchestrator.Orchestrator
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(orch *orchestrator.Orchestrator, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		orch:   orch,
		cfg:    cfg,
		logger: logger,
	}
	requestTimeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Post("/anonymous", s.submitAnonymousAudit)
			r.Get("/public", s.listPublicAudits)

			r.Group(func(r chi.Router) {
				if cfg.Auth.Enabled {
					r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
				}
				r.Post("/", s.submitAudit)
				r.Post("/batch", s.submitBatch)
				r.Get("/", s.listAudits)
				r.Route("/{audit_id}", func(r chi.Router) {
					r.Get("/", s.getAudit)
					r.Delete("/", s.deleteAudit)
				})
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; downstream checks can hook in here.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequest struct {
	URL        string           `json:"url"`
	DeviceType audit.DeviceType `json:"device_type"`
	Location   string           `json:"location"`
	IsPublic   *bool            `json:"is_public"`
	Tags       []string         `json:"tags"`
	Notes      string           `json:"notes"`
}

type batchRequest struct {
	URLs       []string         `json:"urls"`
	DeviceType audit.DeviceType `json:"device_type"`
	Location   string           `json:"location"`
	IsPublic   *bool            `json:"is_public"`
	Tags       []string         `json:"tags"`
	Notes      string           `json:"notes"`
}

type batchItemResponse struct {
	URL   string         `json:"url"`
	Audit *audit.Summary `json:"audit,omitempty"`
	Error string         `json:"error,omitempty"`
}

type listResponse struct {
	Audits []audit.Summary `json:"audits"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, requesterFrom(r))
}

// submitAnonymousAudit accepts submissions without identity headers. The
// resulting jobs are always public.
func (s *Server) submitAnonymousAudit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, audit.Requester{})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, requester audit.Requester) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	summary, err := s.orch.Submit(r.Context(), requester, req.URL, audit.SubmitOptions{
		DeviceType: req.DeviceType,
		Location:   req.Location,
		IsPublic:   req.IsPublic,
		Tags:       req.Tags,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, summary)
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	items, err := s.orch.SubmitBatch(r.Context(), requesterFrom(r), req.URLs, audit.SubmitOptions{
		DeviceType: req.DeviceType,
		Location:   req.Location,
		IsPublic:   req.IsPublic,
		Tags:       req.Tags,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := make([]batchItemResponse, 0, len(items))
	for _, item := range items {
		out := batchItemResponse{URL: item.URL}
		if item.Err != nil {
			out.Error = item.Err.Error()
		} else {
			summary := item.Summary
			out.Audit = &summary
		}
		resp = append(resp, out)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"audits": resp})
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.Get(r.Context(), requesterFrom(r), chi.URLParam(r, "audit_id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	filter := filterFrom(r)
	summaries, total, err := s.orch.List(r.Context(), requesterFrom(r), filter)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeList(w, summaries, total, filter)
}

func (s *Server) listPublicAudits(w http.ResponseWriter, r *http.Request) {
	filter := filterFrom(r)
	summaries, total, err := s.orch.ListPublic(r.Context(), filter)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeList(w, summaries, total, filter)
}

func (s *Server) deleteAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "audit_id")
	if err := s.orch.Delete(r.Context(), requesterFrom(r), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func writeList(w http.ResponseWriter, summaries []audit.Summary, total int, filter audit.ListFilter) {
	norm := filter.Normalize()
	if summaries == nil {
		summaries = []audit.Summary{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Audits: summaries,
		Total:  total,
		Page:   norm.Page,
		Limit:  norm.Limit,
	})
}

// requesterFrom extracts the caller identity forwarded by the gateway. Bare
// requests are treated as anonymous.
func requesterFrom(r *http.Request) audit.Requester {
	return audit.Requester{
		ID:   r.Header.Get("X-Requester-ID"),
		Plan: audit.Plan(r.Header.Get("X-Requester-Plan")),
	}
}

func filterFrom(r *http.Request) audit.ListFilter {
	q := r.URL.Query()
	filter := audit.ListFilter{
		Status:     audit.Status(q.Get("status")),
		DeviceType: audit.DeviceType(q.Get("device_type")),
		Search:     q.Get("search"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	return filter
}

func statusFor(err error) int {
	switch {
	case audit.IsValidation(err):
		return http.StatusBadRequest
	case audit.IsQuota(err):
		return http.StatusTooManyRequests
	case errors.Is(err, audit.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
