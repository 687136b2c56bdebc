package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (api *API) Thread(w http.ResponseWriter, r *http.Request) {
	state, err := api.chatService.History(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
