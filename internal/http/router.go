package http

import (
	"net/http"

	"dreamplanner/internal/config"
	"dreamplanner/internal/dream"
	"dreamplanner/internal/http/handler"
	mw "dreamplanner/internal/http/middleware"
	"dreamplanner/internal/notification"
	"dreamplanner/internal/task"
	"dreamplanner/internal/user"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Services struct {
	Users         *user.Service
	Dreams        *dream.Service
	Tasks         *task.Service
	Notifications *notification.Store
}

func NewRouter(cfg config.Config, svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	uh := &handler.UserHandler{Svc: svc.Users}
	r.Post("/users", uh.Register)
	r.With(mw.RequireUser).Put("/users/preferences", uh.UpsertPreferences)

	dh := &handler.DreamHandler{Svc: svc.Dreams}
	r.Route("/dreams", func(r chi.Router) {
		r.Use(mw.RequireUser)
		r.Post("/", dh.Create)
		r.Post("/{id}/complete", dh.Complete)
	})

	th := &handler.TaskHandler{Svc: svc.Tasks}
	r.Route("/tasks", func(r chi.Router) {
		r.Use(mw.RequireUser)
		r.Post("/", th.Create)
		r.Post("/{id}/complete", th.Complete)
		r.Post("/{id}/progress", th.UpdateProgress)
	})

	nh := &handler.NotificationHandler{Store: svc.Notifications}
	r.With(mw.RequireUser).Get("/notifications", nh.List)

	return r
}
