package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"annonces-api/internal/config"
	"annonces-api/internal/handler"
	"annonces-api/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Annonce *handler.AnnonceHandler
	Admin   *handler.AdminHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Route("/annonces", func(annonces chi.Router) {
			annonces.Get("/", h.Annonce.ListPublic)
			annonces.With(authMiddleware.RequireAuth).Get("/me", h.Annonce.ListOwn)
			annonces.With(authMiddleware.RequireAuth).Post("/", h.Annonce.Create)
			annonces.With(authMiddleware.RequireAuth).Put("/{id}", h.Annonce.Update)
			annonces.With(authMiddleware.RequireAuth).Delete("/{id}", h.Annonce.Delete)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth, authMiddleware.RequireRoles("admin"))

			admin.Get("/annonces", h.Admin.List)
			admin.Put("/annonces/{id}/validate", h.Admin.Validate)
			admin.Put("/annonces/{id}/reject", h.Admin.Reject)
			admin.Delete("/annonces/{id}", h.Admin.Delete)
			admin.Get("/audit", h.Admin.Audit)
		})
	})

	return r
}
