package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/metrics"
)

type shortcutJSON struct {
	ID        int64    `json:"id"`
	Key       string   `json:"key"`
	Value     string   `json:"value"`
	HTMLValue string   `json:"html_value"`
	SetNames  []string `json:"set_names"`
	SetTypes  []string `json:"set_types"`
	UpdatedAt string   `json:"updated_at"`
}

// Shortcuts serves full and delta syncs:
// GET /api/shortcuts?sets=birou,cosmin&updated_after=2025-01-10T12:00:00.000Z
func Shortcuts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := mw.PrincipalFrom(r.Context())

		req, err := parseSyncRequest(r)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		found, err := d.Sync.FetchShortcuts(r.Context(), p, req)
		if err != nil {
			d.Logger.Error("fetch shortcuts failed", logger.Int64("user_id", p.ID), logger.Error(err))
			writeInternalError(w)
			return
		}

		out := make([]shortcutJSON, 0, len(found))
		for _, sc := range found {
			types := make([]string, 0, len(sc.Sets))
			for _, k := range sc.SetKinds() {
				types = append(types, string(k))
			}
			out = append(out, shortcutJSON{
				ID:        sc.ID,
				Key:       sc.Key,
				Value:     sc.Value,
				HTMLValue: sc.HTMLValue,
				SetNames:  sc.SetNames(),
				SetTypes:  types,
				UpdatedAt: formatTime(sc.UpdatedAt),
			})
		}
		metrics.AddShortcutsServed(len(out))

		d.Logger.Debug("shortcuts served",
			logger.Int64("user_id", p.ID),
			logger.Int("count", len(out)),
			logger.Bool("delta", req.UpdatedAfter != nil))
		writeJSON(w, http.StatusOK, out)
	}
}

func parseSyncRequest(r *http.Request) (domain.SyncRequest, error) {
	q := r.URL.Query()
	var req domain.SyncRequest

	for _, name := range strings.Split(q.Get("sets"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			req.SetNames = append(req.SetNames, name)
		}
	}

	if raw := strings.TrimSpace(q.Get("updated_after")); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return domain.SyncRequest{}, fmt.Errorf("Invalid updated_after %q: expected an ISO-8601 timestamp.", raw)
		}
		req.UpdatedAfter = &t
	}
	return req, nil
}

// timestampLayouts are tried in order. Timestamps without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(raw string) (time.Time, error) {
	// An unencoded "+" in the offset arrives as a space.
	if i := strings.LastIndexByte(raw, ' '); i > 10 {
		raw = raw[:i] + "+" + raw[i+1:]
	}

	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
