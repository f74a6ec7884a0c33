// Package server exposes the buyer-group pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-group-cli/internal/buyergroup"
	"github.com/sells-group/buyer-group-cli/internal/model"
	"github.com/sells-group/buyer-group-cli/internal/store"
)

const maxBodyBytes = 1 << 20

// Runner runs buyer-group requests. *buyergroup.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, req model.Request) (*model.Response, error)
	Invalidate(ctx context.Context, companyID string) (int, error)
}

// RunReader loads persisted runs.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
}

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server holds the handlers.
type Server struct {
	runner Runner
	runs   RunReader
	opts   Options
}

// New creates a Server. runs may be nil, in which case run lookups 404.
func New(runner Runner, runs RunReader, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{runner: runner, runs: runs, opts: opts}
}

// Routes returns the router with middleware applied.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		if s.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
		}
		r.Post("/buyer-groups", s.createBuyerGroup)
		r.Delete("/buyer-groups/{companyID}", s.invalidate)
		r.Get("/runs/{runID}", s.getRun)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createBuyerGroup(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.CodeInvalidRequest, "invalid request body")
		return
	}

	resp, err := s.runner.Run(r.Context(), req)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	n, err := s.runner.Invalidate(r.Context(), companyID)
	if err != nil {
		zap.L().Error("server: invalidate cache", zap.String("company_id", companyID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "cache invalidation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companyId": companyID, "invalidated": n})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "", "run not found")
		return
	}
	run, err := s.runs.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "", "run not found")
		return
	}
	if err != nil {
		zap.L().Error("server: get run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "run lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// StatusFor maps a pipeline error code to an HTTP status.
func StatusFor(code model.ErrorCode) int {
	switch code {
	case model.CodeInvalidRequest:
		return http.StatusBadRequest
	case model.CodeCompanyNotFound:
		return http.StatusNotFound
	case model.CodeProviderRateLimited:
		return http.StatusTooManyRequests
	case model.CodeProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *buyergroup.Error
	if !errors.As(err, &pe) {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "", "request timed out")
			return
		}
		zap.L().Error("server: pipeline error", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	writeError(w, StatusFor(pe.Code), pe.Code, pe.Message)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    model.ErrorCode `json:"code,omitempty"`
	Message string          `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code model.ErrorCode, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
