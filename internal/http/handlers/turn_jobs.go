package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type turnJobRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id,omitempty"`
}

// EnqueueTurn accepts a turn for background processing. A repeated
// Idempotency-Key with the same payload returns the original job.
func (api *API) EnqueueTurn(w http.ResponseWriter, r *http.Request) {
	var request turnJobRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if key != "" {
		if entry, ok := api.idempotency.Get(key); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key reused with a different payload")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{
				"job_id":    entry.JobID,
				"thread_id": entry.ThreadID,
				"status":    "pending",
			})
			return
		}
	}

	job, err := api.turnJobsService.Enqueue(r.Context(), request.ThreadID, request.Query)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	if key != "" {
		api.idempotency.Put(key, payloadHash, job.ID, job.ThreadID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    job.ID,
		"thread_id": job.ThreadID,
		"status":    job.Status,
	})
}

func (api *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	job, err := api.turnJobsService.GetJob(r.Context(), jobID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	response := map[string]any{
		"job_id":     job.ID,
		"thread_id":  job.ThreadID,
		"status":     job.Status,
		"attempts":   job.Attempts,
		"updated_at": job.UpdatedAt,
	}
	if len(job.Result) > 0 {
		response["result"] = jsonRawOrFallback(job.Result)
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		response["error"] = map[string]any{
			"code":    "processing_error",
			"message": job.ErrorMessage,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func jsonRawOrFallback(value []byte) any {
	var decoded any
	if err := json.Unmarshal(value, &decoded); err == nil {
		return decoded
	}
	return string(value)
}
