package http

import (
	"net/http"

	"github.com/tranductridung/bds/internal/auth"
	"github.com/tranductridung/bds/internal/config"
	"github.com/tranductridung/bds/internal/http/handler"
	mw "github.com/tranductridung/bds/internal/http/middleware"
	"github.com/tranductridung/bds/internal/notification"
	"github.com/tranductridung/bds/internal/reminder"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT, reminderSvc *reminder.Service, notifSvc *notification.Service) http.Handler {
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

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{DB: db}
	r.With(auth.RequireAuth(jwtSvc)).Get("/me", me.Me)

	remH := &handler.ReminderHandler{Svc: reminderSvc}
	r.Route("/reminders", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Post("/", remH.CreateForUser)
		r.Post("/me", remH.CreateSelf)
		r.Get("/", remH.List)

		r.Get("/{id}", remH.Get)
		r.Patch("/{id}", remH.Update)
		r.Post("/{id}/cancel", remH.Cancel)
	})

	notifH := &handler.NotificationHandler{Svc: notifSvc}
	r.Route("/notifications", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/", notifH.List)
		r.Post("/read-all", notifH.MarkAllRead)
		r.Post("/{id}/read", notifH.MarkRead)
		r.Delete("/{id}", notifH.Dismiss)
	})

	return r
}
