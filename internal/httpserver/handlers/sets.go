package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/textsync/internal/logger"
)

type setJSON struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SetType       string `json:"set_type"`
	Description   string `json:"description"`
	ShortcutCount int    `json:"shortcut_count"`
	CreatedAt     string `json:"created_at"`
}

// Sets lists the sets the caller can read.
func Sets(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := mw.PrincipalFrom(r.Context())

		sets, err := d.Access.AccessibleSets(r.Context(), p)
		if err != nil {
			d.Logger.Error("list sets failed", logger.Int64("user_id", p.ID), logger.Error(err))
			writeInternalError(w)
			return
		}

		ids := make([]int64, 0, len(sets))
		for _, s := range sets {
			ids = append(ids, s.ID)
		}
		counts, err := d.Catalog.CountShortcuts(r.Context(), ids)
		if err != nil {
			d.Logger.Error("count shortcuts failed", logger.Error(err))
			writeInternalError(w)
			return
		}

		out := make([]setJSON, 0, len(sets))
		for _, s := range sets {
			out = append(out, setJSON{
				ID:            s.ID,
				Name:          s.Name,
				SetType:       string(s.Kind()),
				Description:   s.Description,
				ShortcutCount: counts[s.ID],
				CreatedAt:     formatTime(s.CreatedAt),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
