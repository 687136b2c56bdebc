package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iago/feed-agent-back/internal/agent"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/service"
)

type chatRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id,omitempty"`
}

type filteredChatRequest struct {
	Query    string              `json:"query"`
	ThreadID string              `json:"thread_id,omitempty"`
	Filters  service.FeedFilters `json:"filters"`
}

type chatResponse struct {
	ThreadID       string               `json:"thread_id"`
	Text           string               `json:"text"`
	Records        []domain.Record      `json:"records"`
	AppliedFilters *service.FeedFilters `json:"applied_filters,omitempty"`
}

func newChatResponse(result agent.TurnResult) chatResponse {
	records := result.Records
	if records == nil {
		records = []domain.Record{}
	}
	return chatResponse{
		ThreadID: result.ThreadID,
		Text:     result.Text,
		Records:  records,
	}
}

// Chat answers a question, starting a thread when thread_id is absent.
func (api *API) Chat(w http.ResponseWriter, r *http.Request) {
	var request chatRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	result, err := api.chatService.Ask(r.Context(), request.ThreadID, request.Query)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(result))
}

// ChatThread continues the thread named in the path.
func (api *API) ChatThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var request struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	result, err := api.chatService.Ask(r.Context(), threadID, request.Query)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(result))
}

func (api *API) ChatFiltered(w http.ResponseWriter, r *http.Request) {
	var request filteredChatRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if from := request.Filters.DateFrom; from != "" && !domain.IsFeedDate(from) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "filters.date_from must be a date")
		return
	}
	if to := request.Filters.DateTo; to != "" && !domain.IsFeedDate(to) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "filters.date_to must be a date")
		return
	}
	if request.Filters.MinRecords < 0 || request.Filters.MinJobs < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "minimum counts must not be negative")
		return
	}

	result, err := api.chatService.AskFiltered(r.Context(), request.ThreadID, request.Query, request.Filters)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	response := newChatResponse(result)
	response.AppliedFilters = &request.Filters
	writeJSON(w, http.StatusOK, response)
}
