package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/logger"
)

// Reload asks the seed reloader to re-apply the seed file.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReloadTrigger == nil {
			writeDetail(w, http.StatusNotFound, "No seed file configured.")
			return
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual seed reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeDetail(w, http.StatusAccepted, "Reload triggered.")
		default:
			d.Logger.Warn("seed reload already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeDetail(w, http.StatusTooManyRequests, "Reload already in progress, please wait.")
		}
	}
}
