package handler

import (
	"encoding/json"
	"net/http"

	"dreamplanner/internal/http/middleware"
	"dreamplanner/internal/user"
)

type UserHandler struct {
	Svc *user.Service
}

type registerReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	u, err := h.Svc.Register(r.Context(), user.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Timezone: req.Timezone,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":       u.ID,
		"email":    u.Email,
		"name":     u.Name,
		"timezone": u.Timezone,
	})
}

type preferencesReq struct {
	NotificationFrequency int      `json:"notification_frequency"` // minutes
	SleepStart            string   `json:"sleep_start"`
	SleepEnd              string   `json:"sleep_end"`
	QuietHours            []string `json:"quiet_hours"` // "HH:MM-HH:MM"
	MotivationTone        string   `json:"motivation_tone"`
}

func (h *UserHandler) UpsertPreferences(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	var req preferencesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	pref, err := h.Svc.UpsertPreferences(r.Context(), uid, user.PreferenceInput{
		NotificationFrequency: req.NotificationFrequency,
		SleepStart:            req.SleepStart,
		SleepEnd:              req.SleepEnd,
		QuietHours:            req.QuietHours,
		MotivationTone:        req.MotivationTone,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id":                pref.UserID,
		"notification_frequency": pref.NotificationFrequency,
		"sleep_start":            pref.SleepStart,
		"sleep_end":              pref.SleepEnd,
		"quiet_hours":            []string(pref.QuietHours),
		"motivation_tone":        pref.MotivationTone,
	})
}
