// Package server assembles the HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"carrental/internal/api"
	"carrental/internal/apperr"
	"carrental/internal/auth"
	"carrental/internal/catalog"
	"carrental/internal/customer"
	"carrental/internal/rental"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the components the router serves.
type Deps struct {
	Logger    *zap.Logger
	DB        Pinger
	Tokens    *auth.TokenManager
	Cars      catalog.Store
	Customers customer.Store
	Accounts  customer.Service
	Rentals   rental.Service
}

// NewRouter wires every route. Reads of the catalog are public; rentals
// need a token; catalog writes and the customer list need an admin.
func NewRouter(d Deps) http.Handler {
	cars := catalog.NewHandler(d.Cars)
	customers := customer.NewHandler(d.Accounts, d.Customers)
	rentals := rental.NewHandler(d.Rentals)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(api.Logging(d.Logger))
	r.Use(api.Recoverer)
	r.Use(tracing)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "route not found", Code: apperr.CodeRouteNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed", Code: apperr.CodeMethodNotAllowed})
	})

	r.Get("/healthz", health(d.DB))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", customers.HandleRegister)
		r.Post("/auth/login", customers.HandleLogin)

		r.Get("/cars", cars.HandleList)
		r.Get("/cars/{id}", cars.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(d.Tokens.Authenticate)

			r.Get("/auth/me", customers.HandleMe)

			r.Get("/rentals", rentals.HandleList)
			r.Post("/rentals", rentals.HandleRent)
			r.Get("/rentals/{id}", rentals.HandleGet)
			r.Get("/rentals/{id}/events", rentals.HandleHistory)
			r.Put("/rentals/{id}/return", rentals.HandleReturn)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Post("/cars", cars.HandleCreate)
				r.Put("/cars/{id}", cars.HandleUpdate)
				r.Delete("/cars/{id}", cars.HandleDelete)
				r.Get("/customers", customers.HandleList)
			})
		})
	})

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			api.Logger(r.Context()).Warn("health check failed", zap.Error(err))
			api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
