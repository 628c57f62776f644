package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/offline"
	"github.com/MrSnakeDoc/stacklink/internal/store"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	State  string `json:"state,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the selected backend and the offline cache state.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"backend": checkBackend(r.Context(), d),
			"offline": checkOffline(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(d, components),
			Components: components,
		})
	}
}

// determineMode is "online" on a healthy remote backend, "local" on the
// local fallback and "degraded" when something is not serving.
func determineMode(d deps.Deps, components map[string]componentStatus) string {
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	if d.Backend == store.KindLocal {
		return "local"
	}
	return "online"
}

func checkBackend(ctx context.Context, d deps.Deps) componentStatus {
	if d.Backend == store.KindLocal {
		return componentStatus{
			OK:     true,
			Mode:   string(store.KindLocal),
			Impact: "single-user",
		}
	}

	if d.RedisClient == nil {
		return componentStatus{
			OK:    false,
			Mode:  string(store.KindRemote),
			Error: "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   string(store.KindRemote),
			Impact: "reads-empty-writes-failing",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   string(store.KindRemote),
		Impact: "multi-user",
	}
}

func checkOffline(d deps.Deps) componentStatus {
	state := d.Offline.State()
	return componentStatus{
		OK:     state == offline.StateActivated,
		State:  string(state),
		Bucket: d.Offline.Bucket(),
	}
}
