// Package httpapi exposes the import pipeline, position engine and metrics
// read models over a JSON HTTP API.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/abhishekyadav2000/fpm/internal/domain"
	"github.com/abhishekyadav2000/fpm/internal/usecase/importer"
	"github.com/abhishekyadav2000/fpm/internal/usecase/metrics"
	"github.com/abhishekyadav2000/fpm/internal/usecase/position"
)

// userIDHeader carries the authenticated caller's ID, set by the fronting
// identity provider. Authentication itself is outside this core.
const userIDHeader = "X-User-ID"

// Server routes HTTP requests to the use case services
type Server struct {
	ImportService   *importer.ImportService
	PositionService *position.PositionService
	MetricsService  *metrics.MetricsService
	Log             zerolog.Logger
}

// NewServer creates a new HTTP server adapter
func NewServer(
	importService *importer.ImportService,
	positionService *position.PositionService,
	metricsService *metrics.MetricsService,
	log zerolog.Logger,
) *Server {
	return &Server{
		ImportService:   importService,
		PositionService: positionService,
		MetricsService:  metricsService,
		Log:             log,
	}
}

// Handler builds the full middleware-wrapped route tree. The health endpoint
// sits outside the auth wrap so liveness probes need no token.
func (s *Server) Handler(apiToken string) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /v1/imports", s.handleStage)
	api.HandleFunc("GET /v1/imports/{id}/rows", s.handleListRows)
	api.HandleFunc("POST /v1/imports/{id}/commit", s.handleCommit)
	api.HandleFunc("POST /v1/imports/{id}/rollback", s.handleRollback)

	api.HandleFunc("POST /v1/portfolios/{id}/trades", s.handleApplyTrade)
	api.HandleFunc("GET /v1/portfolios/{id}/holdings/{symbol}", s.handleGetHolding)
	api.HandleFunc("GET /v1/portfolios/{id}/holdings/{symbol}/rebuild", s.handleRebuildHolding)
	api.HandleFunc("GET /v1/portfolios/{id}/summary", s.handlePortfolioSummary)

	api.HandleFunc("GET /v1/metrics/cashflow", s.handleCashflow)
	api.HandleFunc("GET /v1/metrics/burn-rate", s.handleBurnRate)
	api.HandleFunc("GET /v1/metrics/net-worth", s.handleNetWorth)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.Handle("/", Auth(apiToken)(api))

	var handler http.Handler = root
	handler = RequestID(handler)
	handler = Logger(s.Log)(handler)
	handler = Recovery(s.Log)(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDomainError maps the error taxonomy to HTTP status codes
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.Log.Error().Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// callerID extracts the authenticated user ID from the request headers
func callerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, errors.New("missing " + userIDHeader + " header")
	}
	return uuid.Parse(raw)
}

// pathUUID parses a path segment as a UUID
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue(name))
}
