package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// timeLayout is ISO-8601 UTC with millisecond precision, the resolution
// timestamps are stored at. Clients send it back verbatim as updated_after.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type userJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func toUserJSON(p domain.Principal) userJSON {
	return userJSON{ID: p.ID, Username: p.Username, Email: p.Email}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func writeInternalError(w http.ResponseWriter) {
	writeDetail(w, http.StatusInternalServerError, "Internal server error.")
}
