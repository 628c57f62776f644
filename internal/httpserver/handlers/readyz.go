package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/offline"
)

type readyzResponse struct {
	Ready      bool   `json:"ready"`
	CacheState string `json:"cache_state"`
}

// Readyz reports ready once the offline controller controls requests.
// Before that every request would bypass the cache.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Offline.State()
		ready := state == offline.StateActivated

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{
			Ready:      ready,
			CacheState: string(state),
		})
	}
}
