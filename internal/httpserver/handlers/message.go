package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/offline"
)

type messageResponse struct {
	State string `json:"state"`
}

// Message posts a control instruction ({"type":"SKIP_WAITING"}) to the
// offline controller.
func Message(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg offline.Message
		if err := decodeJSON(w, r, &msg); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := d.Offline.Message(r.Context(), msg); err != nil {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{State: string(d.Offline.State())})
	}
}
