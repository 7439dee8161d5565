package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	custommiddleware "github.com/pedrobots/bluebot-rental/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса аренды ботов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/plans", h.GetPlans)
		r.Get("/leaderboard", h.GetLeaderboard)

		r.Route("/chat", func(r chi.Router) {
			r.Use(h.session.Middleware)

			r.Get("/messages", h.GetMessages)
			r.Post("/messages", h.PostMessage)
			r.Post("/plan", h.SelectPlan)
			r.Get("/checkout", h.Checkout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.AdminLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.adminAuth.Middleware)

				r.Get("/plans", h.AdminGetPlans)
				r.Post("/plans", h.AdminCreatePlan)
				r.Put("/plans/{id}", h.AdminUpdatePlan)
				r.Delete("/plans/{id}", h.AdminDeletePlan)

				r.Get("/settings", h.AdminGetSettings)
				r.Put("/settings", h.AdminUpdateSettings)

				r.Get("/resellers", h.AdminGetResellers)
				r.Post("/resellers", h.AdminAddReseller)
				r.Delete("/resellers/{id}", h.AdminRemoveReseller)

				r.Get("/orders", h.AdminGetOrders)
				r.Get("/orders/export", h.AdminExportOrders)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
