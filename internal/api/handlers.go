/**
 * @description
 * This file contains the HTTP handlers for the funding-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * Error mapping (the reliability contract): every response is a definite
 * success or a definite typed failure. Validation errors map to 400, missing
 * auth to 401, a paused campaign to 403, absent entities to 404, rate limits
 * to 429, and anything transient from storage to 500. Ownership failures on
 * pause and reversal map to 404 so the API does not leak entity existence to
 * non-owners.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/google/uuid: Routing and IDs.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pawfund/funding-service/internal/app"
	"github.com/pawfund/funding-service/internal/domain"
	"github.com/pawfund/funding-service/internal/store"
)

// FundingHandlers holds the application service that handlers will use.
type FundingHandlers struct {
	service *app.Service
}

// NewFundingHandlers creates a new instance of FundingHandlers.
func NewFundingHandlers(service *app.Service) *FundingHandlers {
	return &FundingHandlers{service: service}
}

// CreateCampaignHandler handles POST /campaigns.
func (h *FundingHandlers) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var payload domain.CreateCampaignPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	campaign, err := h.service.CreateCampaign(r.Context(), auth, payload)
	if err != nil {
		h.writeServiceError(w, "create_campaign", err)
		return
	}
	h.writeJSON(w, http.StatusOK, campaign)
}

// ListCampaignsHandler handles GET /campaigns?page=&limit=.
func (h *FundingHandlers) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.service.ListCampaigns(r.Context(), page, limit)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_campaigns err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not list campaigns")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ListOwnedCampaignsHandler handles GET /campaigns/mine.
func (h *FundingHandlers) ListOwnedCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	campaigns, err := h.service.ListOwnedCampaigns(r.Context(), auth)
	if err != nil {
		h.writeServiceError(w, "list_owned_campaigns", err)
		return
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

// GetCampaignHandler handles GET /campaigns/{id}.
func (h *FundingHandlers) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	campaign, err := h.service.GetCampaign(r.Context(), campaignID)
	if err != nil {
		h.writeServiceError(w, "get_campaign", err)
		return
	}
	h.writeJSON(w, http.StatusOK, campaign)
}

// RecommendCampaignsHandler handles GET /campaigns/{id}/recommendations.
func (h *FundingHandlers) RecommendCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	excludeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Campaign not found")
		return
	}
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))

	campaigns, err := h.service.RecommendCampaigns(r.Context(), excludeID, count)
	if err != nil {
		log.Printf("level=error component=api endpoint=recommend_campaigns err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Could not recommend campaigns")
		return
	}
	h.writeJSON(w, http.StatusOK, campaigns)
}

type setPauseRequest struct {
	Paused bool `json:"paused"`
}

// SetCampaignPauseHandler handles PATCH /campaigns/{id}/pause.
func (h *FundingHandlers) SetCampaignPauseHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	var req setPauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetCampaignPause(r.Context(), auth, campaignID, req.Paused); err != nil {
		// Ownership failures read as NotFound here so non-owners cannot
		// probe for campaign existence.
		if errors.Is(err, app.ErrUnauthorized) {
			h.writeError(w, http.StatusNotFound, "Campaign not found")
			return
		}
		h.writeServiceError(w, "set_campaign_pause", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "paused": req.Paused})
}

// UpdateCampaignHandler handles PUT /campaigns/{id}.
func (h *FundingHandlers) UpdateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	var fields domain.UpdateCampaignPayload
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateCampaign(r.Context(), auth, campaignID, fields); err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			h.writeError(w, http.StatusNotFound, "Campaign not found")
			return
		}
		h.writeServiceError(w, "update_campaign", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DeleteCampaignHandler handles DELETE /campaigns/{id}. Admin only.
func (h *FundingHandlers) DeleteCampaignHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	if err := h.service.DeleteCampaign(r.Context(), auth, campaignID); err != nil {
		if errors.Is(err, app.ErrUnauthorized) {
			h.writeError(w, http.StatusForbidden, "Administrator role required")
			return
		}
		h.writeServiceError(w, "delete_campaign", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// RecordDonationHandler handles POST /donations.
func (h *FundingHandlers) RecordDonationHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var payload domain.RecordDonationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	donationID, err := h.service.RecordDonation(r.Context(), auth, payload)
	if err != nil {
		var rateLimited *app.RateLimitedError
		if errors.As(err, &rateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many donations; please slow down")
			return
		}
		h.writeServiceError(w, "record_donation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "insertedId": donationID})
}

// ListCampaignDonationsHandler handles GET /donations?campaign_id=.
func (h *FundingHandlers) ListCampaignDonationsHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	rawID := r.URL.Query().Get("campaign_id")
	if rawID == "" {
		h.writeError(w, http.StatusBadRequest, "campaign_id query parameter is required")
		return
	}
	campaignID, err := uuid.Parse(rawID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "campaign_id is not a valid id")
		return
	}

	donations, err := h.service.ListCampaignDonations(r.Context(), auth, campaignID)
	if err != nil {
		h.writeServiceError(w, "list_campaign_donations", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"donations": donations})
}

// ListDonorDonationsHandler handles GET /donations/mine.
func (h *FundingHandlers) ListDonorDonationsHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	donations, err := h.service.ListDonorDonations(r.Context(), auth)
	if err != nil {
		h.writeServiceError(w, "list_donor_donations", err)
		return
	}
	h.writeJSON(w, http.StatusOK, donations)
}

// ReverseDonationHandler handles DELETE /donations/{id}.
func (h *FundingHandlers) ReverseDonationHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	donationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Donation not found")
		return
	}

	if err := h.service.ReverseDonation(r.Context(), auth, donationID); err != nil {
		// Another donor's donation reads as NotFound, same as an absent one.
		if errors.Is(err, store.ErrNotDonationOwner) {
			h.writeError(w, http.StatusNotFound, "Donation not found")
			return
		}
		h.writeServiceError(w, "reverse_donation", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type donationIntentRequest struct {
	Amount   int64  `json:"amount"` // in cents
	Currency string `json:"currency,omitempty"`
}

// CreateDonationIntentHandler handles POST /donations/intent. It relays the
// payment authority's client secret to the frontend.
func (h *FundingHandlers) CreateDonationIntentHandler(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuthContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req donationIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	intent, err := h.service.CreateDonationIntent(r.Context(), auth, req.Amount, req.Currency)
	if err != nil {
		if errors.Is(err, app.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=donation_intent err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Payment authority unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"client_secret": intent.ClientSecret, "intent_id": intent.ID})
}

// writeServiceError classifies service/store errors into the response
// taxonomy shared by all endpoints.
func (h *FundingHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, app.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "Not permitted")
	case errors.Is(err, store.ErrCampaignPaused):
		h.writeError(w, http.StatusForbidden, "Campaign is paused and not accepting donations")
	case errors.Is(err, store.ErrCampaignNotFound):
		h.writeError(w, http.StatusNotFound, "Campaign not found")
	case errors.Is(err, store.ErrDonationNotFound):
		h.writeError(w, http.StatusNotFound, "Donation not found")
	default:
		log.Printf("level=error component=api endpoint=%s err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *FundingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *FundingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
