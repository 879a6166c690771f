package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"dreamplanner/internal/http/middleware"
	"dreamplanner/internal/notification"
)

type NotificationHandler struct {
	Store *notification.Store
}

type notificationDTO struct {
	ID          string          `json:"id"`
	DreamID     *string         `json:"dream_id"`
	TaskID      *string         `json:"task_id"`
	Type        string          `json:"type"`
	Message     string          `json:"message"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Status      string          `json:"status"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// List returns the user's notification feed, newest scheduled first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.Store.ListForUser(r.Context(), uid, limit, (page-1)*limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]notificationDTO, 0, len(rows))
	for i := range rows {
		n := rows[i]
		out = append(out, notificationDTO{
			ID:          n.ID,
			DreamID:     n.DreamID,
			TaskID:      n.TaskID,
			Type:        n.Type,
			Message:     n.Message,
			ScheduledAt: n.ScheduledAt,
			Status:      n.Status,
			Metadata:    n.Metadata,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"page":          page,
		"limit":         limit,
		"notifications": out,
	})
}
