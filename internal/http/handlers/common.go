package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/agent"
	"github.com/iago/feed-agent-back/internal/http/middleware"
	"github.com/iago/feed-agent-back/internal/repository"
	"github.com/iago/feed-agent-back/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	chatService     *service.ChatService
	turnJobsService *service.TurnJobsService
	idempotency     *idempotencyStore
	logger          *logrus.Logger
}

func NewAPI(
	chatService *service.ChatService,
	turnJobsService *service.TurnJobsService,
	logger *logrus.Logger,
) *API {
	return &API{
		chatService:     chatService,
		turnJobsService: turnJobsService,
		idempotency:     newIdempotencyStore(),
		logger:          logger,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps domain errors to the HTTP envelope. Backend
// details are logged, never echoed.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, service.ErrThreadNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "thread not found")
		return
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "job not found")
		return
	}

	if api.logger != nil {
		api.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetRequestID(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Warn("request failed")
	}

	switch {
	case errors.Is(err, agent.ErrReasoningUnavailable):
		writeError(w, r, http.StatusBadGateway, "reasoning_unavailable", "the assistant is temporarily unavailable")
	case errors.Is(err, agent.ErrRecursionExceeded):
		writeError(w, r, http.StatusInternalServerError, "recursion_exceeded", "the assistant could not reach an answer")
	case errors.Is(err, agent.ErrCheckpointUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "state_unavailable", "conversation state is temporarily unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to process request")
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
	ThreadID    string
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		JobID:       jobID,
		ThreadID:    threadID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
