/**
 * @description
 * This file defines the campaign domain models for the funding-service.
 * A campaign is a fundraising drive for a specific pet, with a target amount
 * and a running accrued total maintained by the donation ledger.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents),
 *   which avoids floating-point inaccuracies with financial data.
 * - AccruedAmount is owned by the ledger: it is only ever mutated together
 *   with a donation insert or reversal, inside one database transaction.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Campaign represents a fundraising drive for a pet awaiting adoption.
// This struct maps directly to the `campaigns` table in the database.
type Campaign struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ImageURL      string    `json:"image_url"`
	TargetAmount  int64     `json:"target_amount"`  // in cents
	AccruedAmount int64     `json:"accrued_amount"` // in cents
	ShortDesc     string    `json:"short_desc"`
	LongDesc      string    `json:"long_desc"`
	OwnerEmail    string    `json:"owner_email"`
	Paused        bool      `json:"paused"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// CreateCampaignPayload is the DTO for incoming campaign creation requests.
type CreateCampaignPayload struct {
	Name         string    `json:"name"`
	ImageURL     string    `json:"image_url"`
	TargetAmount int64     `json:"target_amount"` // in cents
	ShortDesc    string    `json:"short_desc"`
	LongDesc     string    `json:"long_desc"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UpdateCampaignPayload carries the permitted partial updates for a campaign.
// Nil fields are left untouched; accrued amount and pause flag are never
// updatable through this path.
type UpdateCampaignPayload struct {
	Name         *string    `json:"name,omitempty"`
	ImageURL     *string    `json:"image_url,omitempty"`
	TargetAmount *int64     `json:"target_amount,omitempty"`
	ShortDesc    *string    `json:"short_desc,omitempty"`
	LongDesc     *string    `json:"long_desc,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// CampaignPage is one page of the public campaign listing.
type CampaignPage struct {
	Items      []Campaign `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}
