/**
 * @description
 * This file sets up the HTTP router for the funding-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// FundingRoutes creates and returns the router for the funding service.
func FundingRoutes(h *FundingHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public read-side endpoints: listing visibility is independent of pause
	// state and requires no identity.
	r.Get("/campaigns", h.ListCampaignsHandler)
	r.Get("/campaigns/{id}", h.GetCampaignHandler)
	r.Get("/campaigns/{id}/recommendations", h.RecommendCampaignsHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/campaigns", h.CreateCampaignHandler)
		r.Get("/campaigns/mine", h.ListOwnedCampaignsHandler)
		r.Patch("/campaigns/{id}/pause", h.SetCampaignPauseHandler)
		r.Put("/campaigns/{id}", h.UpdateCampaignHandler)
		r.Delete("/campaigns/{id}", h.DeleteCampaignHandler)

		r.Post("/donations", h.RecordDonationHandler)
		r.Get("/donations", h.ListCampaignDonationsHandler)
		r.Get("/donations/mine", h.ListDonorDonationsHandler)
		r.Delete("/donations/{id}", h.ReverseDonationHandler)
		r.Post("/donations/intent", h.CreateDonationIntentHandler)
	})

	return r
}
