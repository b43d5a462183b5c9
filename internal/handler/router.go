package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/calmloop/calmloop/backend/internal/handler/companion"
	historyHandler "github.com/calmloop/calmloop/backend/internal/handler/history"
	middlewarePkg "github.com/calmloop/calmloop/backend/internal/middleware"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionsvc "github.com/calmloop/calmloop/backend/internal/service/session"
	"github.com/calmloop/calmloop/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(registry *sessionsvc.Registry, checkins checkin.Store, histories historyHandler.Gateway) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	companionHandler := companion.New(registry, checkins)
	historiesHandler := historyHandler.New(histories)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.Auth)

		companionHandler.RegisterRoutes(api)
		historiesHandler.RegisterRoutes(api)
	})

	return r
}
