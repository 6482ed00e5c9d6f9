package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/screening"
	"github.com/kailas-cloud/screener/internal/logger"
	healthuc "github.com/kailas-cloud/screener/internal/usecase/health"
	screeninguc "github.com/kailas-cloud/screener/internal/usecase/screening"
)

const (
	maxBodyBytes = 1 << 20
	// retryAfterSec is advertised on 503 responses.
	retryAfterSec = 5
)

// Screener runs one screening call.
type Screener interface {
	Screen(ctx context.Context, req *screeninguc.Request) (*screening.Result, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the screening HTTP API.
type Server struct {
	screener      Screener
	health        HealthChecker
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
// Request-scoped logging comes from the context.
func NewServer(screener Screener, health HealthChecker) *Server {
	s := &Server{
		screener: screener,
		health:   health,
	}
	s.errorHandlers = []errorHandler{
		configErrorHandler,
		upstreamHandler,
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/screenings", s.CreateScreening)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// CreateScreening handles POST /v1/screenings.
func (s *Server) CreateScreening(w http.ResponseWriter, r *http.Request) {
	var body ScreeningRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := body.toRequest()
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.screener.Screen(ctx, req)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, res)
}

// HealthCheck handles GET /health. Degraded still serves traffic.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// configErrorHandler maps *domain.ConfigError to 400 naming the field.
func configErrorHandler(w http.ResponseWriter, err error) bool {
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    CodeInvalidConstraints,
		Field:   ce.Field,
		Message: ce.Reason,
	})
	return true
}

// upstreamHandler maps retryable failures to 503 with Retry-After.
func upstreamHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	writeError(w, http.StatusServiceUnavailable, CodeUpstreamUnavailable, domain.ErrUpstreamUnavailable.Error())
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
