package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/logger"
)

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz pings every backing store. Any failure makes the instance unready.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyzResponse{Ready: true, Components: make(map[string]componentStatus, len(d.ReadyChecks))}
		for _, c := range d.ReadyChecks {
			if err := c.Ping(ctx); err != nil {
				d.Logger.Warn("readiness check failed", logger.String("component", c.Name), logger.Error(err))
				resp.Ready = false
				resp.Components[c.Name] = componentStatus{OK: false, Error: "unavailable"}
				continue
			}
			resp.Components[c.Name] = componentStatus{OK: true}
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
