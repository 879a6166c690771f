package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dreamplanner/internal/http/middleware"
	"dreamplanner/internal/task"
)

type TaskHandler struct {
	Svc *task.Service
}

type createTaskReq struct {
	DreamID     string  `json:"dream_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   *string `json:"start_date"` // RFC3339, optional
	Deadline    string  `json:"deadline"`   // RFC3339
}

type taskDTO struct {
	ID          string    `json:"id"`
	DreamID     string    `json:"dream_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	Deadline    time.Time `json:"deadline"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTaskDTO(t *task.Task) taskDTO {
	return taskDTO{
		ID:          t.ID,
		DreamID:     t.DreamID,
		Title:       t.Title,
		Description: t.Description,
		StartDate:   t.StartDate,
		Deadline:    t.Deadline,
		Status:      t.Status,
		Progress:    t.Progress,
		CreatedAt:   t.CreatedAt,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.DreamID) == "" {
		http.Error(w, "dream_id required", http.StatusBadRequest)
		return
	}

	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		http.Error(w, "invalid deadline (RFC3339)", http.StatusBadRequest)
		return
	}

	var start *time.Time
	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		t, err := time.Parse(time.RFC3339, *req.StartDate)
		if err != nil {
			http.Error(w, "invalid start_date (RFC3339)", http.StatusBadRequest)
			return
		}
		start = &t
	}

	t, err := h.Svc.Create(r.Context(), uid, task.CreateInput{
		DreamID:     req.DreamID,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   start,
		Deadline:    deadline,
	})
	if err != nil {
		writeTaskErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toTaskDTO(t))
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	t, err := h.Svc.Complete(r.Context(), uid, id)
	if err != nil {
		writeTaskErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTaskDTO(t))
}

type progressReq struct {
	Progress int `json:"progress"`
}

func (h *TaskHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req progressReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	t, err := h.Svc.UpdateProgress(r.Context(), uid, id, req.Progress)
	if err != nil {
		writeTaskErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toTaskDTO(t))
}

func writeTaskErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, task.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
