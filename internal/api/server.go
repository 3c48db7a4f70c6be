// Package api is the HTTP adapter over the service layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishpool/internal/commitment"
	"github.com/Kerhoff/wishpool/internal/identity"
	"github.com/Kerhoff/wishpool/internal/service"
)

// ActorResolver resolves a request to the acting user ID.
type ActorResolver interface {
	ResolveActor(r *http.Request) (int64, error)
}

// Server provides the HTTP API.
type Server struct {
	svc      *service.Service
	identity ActorResolver
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, identity ActorResolver, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, identity: identity, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

func (s *Server) routes() {
	// Commitments
	s.mux.HandleFunc("POST /api/reservations", s.authed(s.handleClaim))
	s.mux.HandleFunc("DELETE /api/reservations/{id}", s.authed(s.handleCancel))
	s.mux.HandleFunc("POST /api/contributions", s.authed(s.handleContribute))
	s.mux.HandleFunc("GET /api/gifts/{id}/status", s.handleGiftStatus)

	// Inbox
	s.mux.HandleFunc("GET /api/notifications", s.authed(s.handleListNotifications))
	s.mux.HandleFunc("PATCH /api/notifications/{id}/read", s.authed(s.handleMarkRead))
	s.mux.HandleFunc("POST /api/notifications/read-all", s.authed(s.handleMarkAllRead))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID returns the request ID stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID tags every request with an ID (reusing a client-supplied
// one) and writes an access log line.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		s.logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
		}).Info("HTTP request")
	})
}

type actorHandler func(w http.ResponseWriter, r *http.Request, actorID int64)

// authed resolves the actor before calling h and answers 401 otherwise.
func (s *Server) authed(h actorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := s.identity.ResolveActor(r)
		if err != nil {
			s.respondError(w, r, commitment.Wrap(commitment.KindAuthFailure, "auth", err))
			return
		}
		h(w, r, actorID)
	}
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    commitment.Kind `json:"code"`
	Message string          `json:"message"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// respondError writes err as {"error": {"code", "message"}}. Errors without
// a kind are reported as INTERNAL without their details.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := commitment.KindOf(err)
	if kind == "" {
		kind = commitment.KindInternal
	}
	message := commitment.MessageOf(err)
	if kind == commitment.KindInternal {
		s.logger.WithFields(logrus.Fields{
			"request_id": RequestID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("Request failed")
		message = "internal server error"
	}
	s.respondJSON(w, statusFor(kind), errorBody{Error: errorDetail{Code: kind, Message: message}})
}

func (s *Server) respondInvalid(w http.ResponseWriter, r *http.Request, op, message string) {
	s.respondError(w, r, commitment.New(commitment.KindInvalid, op, message))
}

func statusFor(kind commitment.Kind) int {
	switch kind {
	case commitment.KindNotFound:
		return http.StatusNotFound
	case commitment.KindForbidden:
		return http.StatusForbidden
	case commitment.KindInvalid, commitment.KindInvalidKind, commitment.KindPastDeadline:
		return http.StatusBadRequest
	case commitment.KindConflict:
		return http.StatusConflict
	case commitment.KindAuthFailure:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	return nil
}

// pathID extracts the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return id, nil
}

// optionalActor resolves the actor when credentials are present. Requests
// without credentials are anonymous; bad credentials are still rejected.
func (s *Server) optionalActor(r *http.Request) (int64, error) {
	actorID, err := s.identity.ResolveActor(r)
	if errors.Is(err, identity.ErrNoCredentials) {
		return 0, nil
	}
	return actorID, err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
