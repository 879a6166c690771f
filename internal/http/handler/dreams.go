package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dreamplanner/internal/dream"
	"dreamplanner/internal/http/middleware"
)

type DreamHandler struct {
	Svc *dream.Service
}

type createDreamReq struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	MotivationStatement string `json:"motivation_statement"`
	Deadline            string `json:"deadline"` // RFC3339
}

type dreamDTO struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	MotivationStatement string    `json:"motivation_statement"`
	Deadline            time.Time `json:"deadline"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

func toDreamDTO(d *dream.Dream) dreamDTO {
	return dreamDTO{
		ID:                  d.ID,
		Title:               d.Title,
		Description:         d.Description,
		MotivationStatement: d.MotivationStatement,
		Deadline:            d.Deadline,
		Status:              d.Status,
		CreatedAt:           d.CreatedAt,
	}
}

func (h *DreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	var req createDreamReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		http.Error(w, "invalid deadline (RFC3339)", http.StatusBadRequest)
		return
	}

	d, err := h.Svc.Create(r.Context(), uid, dream.CreateInput{
		Title:               req.Title,
		Description:         req.Description,
		MotivationStatement: req.MotivationStatement,
		Deadline:            deadline,
	})
	if err != nil {
		writeDreamErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toDreamDTO(d))
}

func (h *DreamHandler) Complete(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	d, err := h.Svc.Complete(r.Context(), uid, id)
	if err != nil {
		writeDreamErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toDreamDTO(d))
}

func writeDreamErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dream.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, dream.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
