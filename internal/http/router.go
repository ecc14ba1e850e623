// Package http exposes the conversation API over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"conversation-analytics-service/internal/app"
	"conversation-analytics-service/internal/asr"
	"conversation-analytics-service/internal/models"
	"conversation-analytics-service/internal/schema"
	"conversation-analytics-service/internal/service/conversation"
	"conversation-analytics-service/internal/service/segment"
	"conversation-analytics-service/internal/service/stt"
	"conversation-analytics-service/internal/store"
)

// Conversations is the subset of the conversation handler the API serves.
type Conversations interface {
	Process(ctx context.Context, jobName string) (*conversation.Result, error)
	Get(ctx context.Context, jobName string) (*store.Summary, *models.Conversation, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

// ReadyFunc reports whether the service can take traffic.
type ReadyFunc func(ctx context.Context) error

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, conversations Conversations, ready ReadyFunc) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{conversations: conversations}
	if application != nil {
		h.service = application.Cfg.Service.Name
	}

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/conversations", h.list)
		r.Get("/conversations/{jobName}", h.get)
		r.Post("/jobs/{jobName}/process", h.process)
	})

	return r
}

type handlers struct {
	conversations Conversations
	service       string
}

type processResponse struct {
	JobName   string `json:"jobName"`
	RunID     string `json:"runId"`
	ResultURI string `json:"resultUri"`
	Turns     int    `json:"turns"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Service string `json:"service,omitempty"`
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	list, err := h.conversations.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	_, record, err := h.conversations.Get(r.Context(), chi.URLParam(r, "jobName"))
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	jobName := chi.URLParam(r, "jobName")
	res, err := h.conversations.Process(r.Context(), jobName)
	if err != nil {
		h.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{
		JobName:   jobName,
		RunID:     res.RunID,
		ResultURI: res.ResultURI,
		Turns:     len(res.Record.SpeechSegments),
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, stt.ErrJobNotCompleted):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, schema.ErrInvalid),
		errors.Is(err, asr.ErrNoLabels),
		errors.Is(err, segment.ErrNoPronunciation),
		errors.Is(err, segment.ErrBadLabel),
		errors.Is(err, conversation.ErrLimitExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("HTTP request failed")
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Service: h.service})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write HTTP response")
	}
}
