package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"guildbot/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the HTTP surface needs.
type Store interface {
	List(ctx context.Context) ([]storage.Response, error)
	Get(ctx context.Context, id int64) (storage.Response, error)
	Create(ctx context.Context, in storage.Input) (storage.Response, error)
	Update(ctx context.Context, id int64, in storage.Input) (storage.Response, error)
	Delete(ctx context.Context, id int64) (storage.Response, error)
	Match(ctx context.Context, input string) (storage.Response, error)
}

type Server struct {
	store  Store
	logger *zap.Logger
	mux    *http.ServeMux
}

type payload struct {
	Trigger  *string `json:"trigger"`
	Response *string `json:"response"`
	Active   *bool   `json:"active"`
}

type problem struct {
	Detail string `json:"detail"`
}

type requestIDKey struct{}

const RequestIDHeader = "X-Request-ID"

func New(store Store, logger *zap.Logger) *Server {
	s := &Server{store: store, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.health)
	s.mux.HandleFunc("GET /responses", s.list)
	s.mux.HandleFunc("POST /responses", s.create)
	s.mux.HandleFunc("GET /responses/{id}", s.get)
	s.mux.HandleFunc("PUT /responses/{id}", s.update)
	s.mux.HandleFunc("DELETE /responses/{id}", s.remove)
	s.mux.HandleFunc("GET /respond", s.respond)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withAccessLog(s.mux))
}

// RequestID returns the id assigned to the request by the middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	responses, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	response, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	response, err := s.store.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	response, err := s.store.Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	response, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("input_text") {
		writeProblem(w, http.StatusUnprocessableEntity, "input_text query parameter is required")
		return
	}
	response, err := s.store.Match(r.Context(), query.Get("input_text"))
	if errors.Is(err, storage.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "No matching response found")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Response not found")
	case errors.Is(err, storage.ErrDuplicateTrigger):
		writeProblem(w, http.StatusBadRequest, "Response for this trigger already exists")
	default:
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeProblem(w, http.StatusInternalServerError, "Internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "id must be an integer")
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (storage.Input, bool) {
	var body payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Malformed JSON body")
		return storage.Input{}, false
	}
	if body.Trigger == nil || body.Response == nil {
		writeProblem(w, http.StatusUnprocessableEntity, "trigger and response are required")
		return storage.Input{}, false
	}
	in := storage.Input{Trigger: strings.TrimSpace(*body.Trigger), Response: *body.Response, Active: true}
	if in.Trigger == "" {
		writeProblem(w, http.StatusUnprocessableEntity, "trigger must not be empty")
		return storage.Input{}, false
	}
	if body.Active != nil {
		in.Active = *body.Active
	}
	return in, true
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, problem{Detail: detail})
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info("http request",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
