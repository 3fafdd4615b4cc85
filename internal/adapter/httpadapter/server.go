// Package httpadapter serves the view session over HTTP JSON together with
// the health, readiness, and metrics endpoints.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/webcam-weather/internal/carousel"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/view"
)

const maxRequestBytes = 1 << 16

// Session is the view session driven by the API.
type Session interface {
	View() view.View
	Search(ctx context.Context, city string) error
	Locate(ctx context.Context) error
	ReportPosition(ctx context.Context, position domain.Coordinate) error
	ReportPositionError(ctx context.Context, reason string) error
	Next(key string) error
	Prev(key string) error
	Jump(key string, i int) error
	Pause(key string) error
	Resume(key string) error
	SetZoom(zoom int)
}

// Server exposes the view API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	session    Session
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates an HTTP server for session.
func NewServer(addr string, session Session, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		session:  session,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/locate", s.handleLocate)
	mux.HandleFunc("POST /api/position", s.handlePosition)
	mux.HandleFunc("POST /api/map/zoom", s.handleZoom)
	mux.HandleFunc("POST /api/cards/{key}/next", s.handleCardStep(Session.Next))
	mux.HandleFunc("POST /api/cards/{key}/prev", s.handleCardStep(Session.Prev))
	mux.HandleFunc("POST /api/cards/{key}/jump/{index}", s.handleCardJump)
	mux.HandleFunc("POST /api/cards/{key}/pause", s.handleCardStep(Session.Pause))
	mux.HandleFunc("POST /api/cards/{key}/resume", s.handleCardStep(Session.Resume))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type searchRequest struct {
	City string `json:"city" validate:"max=200"`
}

type positionRequest struct {
	Lat   *float64 `json:"lat" validate:"required_without=Error,omitempty,latitude"`
	Lon   *float64 `json:"lon" validate:"required_without=Error,omitempty,longitude"`
	Error string   `json:"error" validate:"max=500"`
}

type zoomRequest struct {
	Zoom int `json:"zoom" validate:"min=0,max=19"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respondAction(w, s.session.Search(r.Context(), req.City))
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, s.session.Locate(r.Context()))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lon == nil {
		s.respondAction(w, s.session.ReportPositionError(r.Context(), req.Error))
		return
	}
	s.respondAction(w, s.session.ReportPosition(r.Context(), domain.Coordinate{Lat: *req.Lat, Lon: *req.Lon}))
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.session.SetZoom(req.Zoom)
	writeJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleCardStep(step func(Session, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondCard(w, step(s.session, r.PathValue("key")))
	}
}

func (s *Server) handleCardJump(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index must be an integer"})
		return
	}
	s.respondCard(w, s.session.Jump(r.PathValue("key"), i))
}

// decode reads and validates a JSON body. It writes a 400 and returns false
// on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

// respondAction answers a user action with the current view. Failures that
// the view already explains still carry a matching status code.
func (s *Server) respondAction(w http.ResponseWriter, err error) {
	writeJSON(w, actionStatus(err), s.session.View())
}

func actionStatus(err error) int {
	switch {
	case err == nil, errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrSuperseded):
		return http.StatusOK
	case errors.Is(err, domain.ErrCityNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLocationUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGeocodingUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondCard(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.session.View())
	case errors.Is(err, view.ErrUnknownCard):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, carousel.ErrIndexOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, carousel.ErrClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("card action failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
