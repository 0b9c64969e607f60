/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the funding-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pawfund/funding-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Campaign store methods
	CreateCampaign(ctx context.Context, campaign *domain.Campaign) error
	FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context, limit int, offset int) ([]domain.Campaign, int64, error)
	ListCampaignsByOwner(ctx context.Context, ownerEmail string) ([]domain.Campaign, error)
	RecommendCampaigns(ctx context.Context, excludeID uuid.UUID, count int) ([]domain.Campaign, error)
	SetCampaignPaused(ctx context.Context, campaignID uuid.UUID, paused bool) error
	UpdateCampaignFields(ctx context.Context, campaignID uuid.UUID, fields domain.UpdateCampaignPayload) error
	DeleteCampaignCascade(ctx context.Context, campaignID uuid.UUID) error

	// Donation ledger methods. The two Atomic operations are the balance
	// reconciler: the donation write and the campaign accrued-amount write
	// commit together or not at all.
	RecordDonationAtomic(ctx context.Context, donation *domain.Donation) error
	ReverseDonationAtomic(ctx context.Context, donationID uuid.UUID, donorEmail string) (*domain.Donation, error)
	ListDonationsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Donation, error)
	ListDonationsByDonor(ctx context.Context, donorEmail string) ([]domain.DonorDonation, error)
}
