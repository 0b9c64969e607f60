/**
 * @description
 * This file defines the donation ledger domain models. A donation is one
 * monetary contribution, linked to exactly one campaign and one donor, and
 * counted exactly once in the campaign's accrued amount from insertion until
 * (if ever) reversal.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Donation statuses. The external payment authority settles the payment
// before a donation record is submitted, so "succeeded" is the default.
const (
	DonationStatusSucceeded = "succeeded"
	DonationStatusPending   = "pending"
	DonationStatusFailed    = "failed"
)

// Donation represents a single ledger record for a monetary contribution.
// This struct maps directly to the `donations` table in the database.
type Donation struct {
	ID             uuid.UUID `json:"id"`
	CampaignID     uuid.UUID `json:"campaign_id"`
	Amount         int64     `json:"amount"` // in cents
	TransactionRef string    `json:"transaction_ref"`
	DonorEmail     string    `json:"donor_email"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordDonationPayload is the DTO for incoming donation recording requests.
// The transaction reference is the opaque receipt handed back by the payment
// authority after settlement.
type RecordDonationPayload struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	Amount         int64     `json:"amount"` // in cents
	TransactionRef string    `json:"transaction_ref"`
	Status         string    `json:"status,omitempty"`
}

// DonorDonation is the donor-facing view of a donation, enriched with the
// linked campaign's display fields. When the campaign no longer exists the
// enrichment falls back to placeholder values instead of failing the listing.
type DonorDonation struct {
	Donation
	CampaignName     string `json:"campaign_name"`
	CampaignImageURL string `json:"campaign_image_url"`
}
