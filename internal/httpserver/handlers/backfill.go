package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/stacklink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stacklink/internal/logger"
)

// Backfill triggers a preview backfill pass for the caller.
func Backfill(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Library.Backfill(r.Context()); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		d.Logger.Info("manual preview backfill triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))

		w.WriteHeader(http.StatusAccepted)
		if _, err := w.Write([]byte("✅ Preview backfill scheduled\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
