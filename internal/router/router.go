package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/royal-restaurant/api/internal/config"
	"github.com/royal-restaurant/api/internal/handler"
	mw "github.com/royal-restaurant/api/internal/middleware"
	"github.com/royal-restaurant/api/internal/service"
	"github.com/royal-restaurant/api/internal/store"
	"github.com/royal-restaurant/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, st *store.Store, engine *service.OrderEngine, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The storefront and the admin panel are static pages that may be
	// hosted anywhere; the API itself is token-gated where it matters.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.AdminTokenHeader},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	menuHandler := handler.NewMenuHandler(st)
	r.Get("/api/data", menuHandler.GetData)

	orderHandler := handler.NewOrderHandler(engine, st, cfg.PublicBaseURL)
	r.Route("/api/orders", orderHandler.RegisterRoutes)

	paymentHandler := handler.NewPaymentHandler(engine)
	r.Route("/api/payments", paymentHandler.RegisterRoutes)

	// Admin routes
	adminHandler := handler.NewAdminHandler(st, engine, cfg.AdminToken)

	// Login and backup carry the token themselves (body / query param)
	// and sit outside the header-gated group.
	r.Post("/api/admin/login", adminHandler.Login)
	r.Get("/api/admin/backup", adminHandler.Backup)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAdmin(cfg.AdminToken))

		r.Get("/api/admin/full-data", adminHandler.FullData)
		r.Get("/api/admin/orders", adminHandler.ListOrders)
		r.Patch("/api/admin/orders/{id}/status", adminHandler.UpdateStatus)

		r.Post("/api/admin/products", menuHandler.SaveProduct)
		r.Delete("/api/admin/products/{id}", menuHandler.DeleteProduct)
		r.Post("/api/admin/categories", menuHandler.SaveCategory)
		r.Delete("/api/admin/categories/{id}", menuHandler.DeleteCategory)

		r.Post("/api/admin/restore", adminHandler.Restore)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/admin/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.AdminToken, w, r)
	})

	return r
}
