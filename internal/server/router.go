// internal/server/router.go

// Package server assembles the HTTP surface of the marketplace.
package server

import (
	"net/http"

	"carmarket/internal/accounts"
	"carmarket/internal/auction"
	"carmarket/internal/garage"
	"carmarket/internal/httpapi"
	"carmarket/internal/logging"
	"carmarket/internal/marketplace"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Handlers are the per-domain HTTP handlers.
type Handlers struct {
	Auctions *auction.Handler
	Listings *marketplace.Handler
	Cars     *garage.Handler
	Users    *accounts.Handler
}

// NewRouter wires every route. Bids go through limiter when it is non-nil.
func NewRouter(h Handlers, limiter *BidLimiter, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpapi.JSON(w, http.StatusOK, nil, "ok")
	})

	r.Route("/auctions", func(r chi.Router) {
		r.Post("/", h.Auctions.Create)
		r.Get("/", h.Auctions.List)
		r.Get("/{id}", h.Auctions.Get)
		r.Get("/{id}/events", h.Auctions.History)
		r.Post("/{id}/cancel", h.Auctions.Cancel)
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.Middleware)
			}
			r.Post("/{id}/bids", h.Auctions.PlaceBid)
		})
	})

	r.Get("/auction-events", h.Auctions.Feed)

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.Listings.Create)
		r.Get("/", h.Listings.List)
		r.Post("/{id}/buy", h.Listings.Buy)
		r.Post("/{id}/cancel", h.Listings.Cancel)
	})

	r.Route("/cars", func(r chi.Router) {
		r.Post("/", h.Cars.Add)
		r.Get("/", h.Cars.ListOwned)
		r.Get("/{id}", h.Cars.Get)
		r.Delete("/{id}", h.Cars.Delete)
		r.Post("/{id}/moderation", h.Cars.Moderate)
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Users.Register)
		r.Post("/login", h.Users.Login)
		r.Get("/{id}", h.Users.Get)
		r.Post("/{id}/deposits", h.Users.Deposit)
	})

	return r
}
