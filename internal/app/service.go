/**
 * @description
 * This file contains the core business logic for the funding-service. The `Service`
 * struct orchestrates campaign lifecycle and donation ledger operations,
 * coordinating between the database repository, the external payment authority
 * client, and the message broker.
 *
 * Key features:
 * - Validates payload shape and authorization before any mutation reaches storage.
 * - Delegates the cross-collection donation/accrued-amount mutation to the
 *   repository's atomic operations, so a reported success always means both
 *   sides committed.
 * - Publishes ledger events to RabbitMQ for asynchronous consumers; publish
 *   failures are logged and never fail the operation.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paymentclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/funding-service/internal/domain"
	"github.com/pawfund/funding-service/internal/store"
	"github.com/pawfund/funding-service/pkg/paymentclient"
	"github.com/pawfund/funding-service/pkg/rabbitmq"
)

const (
	// DefaultRecommendCount caps related-campaign suggestions.
	DefaultRecommendCount = 3

	donationRateLimitScope  = "donation_record"
	donationRateLimitWindow = time.Minute
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required")
	ErrUnauthorized    = errors.New("caller is not permitted to perform this operation")
)

// RateLimitedError is returned when a donor exceeds the configured donation
// rate limit. RetryAfterSeconds tells the caller when the window resets.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("donation rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

// RateLimiter is the contract for the distributed donation rate limiter.
// A nil limiter disables rate limiting entirely.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for campaigns and donations.
type Service struct {
	repo          store.Repository
	payments      *paymentclient.Client
	eventProducer rabbitmq.Publisher

	rateLimiter           RateLimiter
	donationRatePerMinute int
}

// NewService creates a new funding service instance.
func NewService(repo store.Repository, payments *paymentclient.Client, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		payments:      payments,
		eventProducer: producer,
	}
}

// SetDonationRateLimiter installs a distributed rate limiter for donation
// recording. limitPerMinute <= 0 disables limiting.
func (s *Service) SetDonationRateLimiter(limiter RateLimiter, limitPerMinute int) {
	s.rateLimiter = limiter
	s.donationRatePerMinute = limitPerMinute
}

// CreateCampaign validates the payload and persists a new campaign owned by
// the authenticated caller. Accrued amount starts at zero and the campaign is
// born unpaused.
func (s *Service) CreateCampaign(ctx context.Context, auth domain.AuthContext, payload domain.CreateCampaignPayload) (*domain.Campaign, error) {
	if !auth.Authenticated {
		return nil, ErrUnauthenticated
	}
	if err := validateCreateCampaignPayload(payload); err != nil {
		return nil, err
	}

	campaign := &domain.Campaign{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(payload.Name),
		ImageURL:      strings.TrimSpace(payload.ImageURL),
		TargetAmount:  payload.TargetAmount,
		AccruedAmount: 0,
		ShortDesc:     payload.ShortDesc,
		LongDesc:      payload.LongDesc,
		OwnerEmail:    auth.Email,
		Paused:        false,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     payload.ExpiresAt,
	}

	if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	log.Printf("level=info component=app op=create_campaign campaign_id=%s owner=%s target=%d", campaign.ID, campaign.OwnerEmail, campaign.TargetAmount)
	return campaign, nil
}

// GetCampaign returns a single campaign by id.
func (s *Service) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	return s.repo.FindCampaignByID(ctx, campaignID)
}

// ListCampaigns returns one page of campaigns, most recent first. Page and
// limit are normalized to sane bounds before hitting storage.
func (s *Service) ListCampaigns(ctx context.Context, page int, limit int) (*domain.CampaignPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := s.repo.ListCampaigns(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if items == nil {
		items = []domain.Campaign{}
	}
	return &domain.CampaignPage{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// ListOwnedCampaigns returns all campaigns owned by the authenticated caller.
func (s *Service) ListOwnedCampaigns(ctx context.Context, auth domain.AuthContext) ([]domain.Campaign, error) {
	if !auth.Authenticated {
		return nil, ErrUnauthenticated
	}
	return s.repo.ListCampaignsByOwner(ctx, auth.Email)
}

// RecommendCampaigns returns up to count related campaigns excluding the
// given id. count <= 0 falls back to the default of 3.
func (s *Service) RecommendCampaigns(ctx context.Context, excludeID uuid.UUID, count int) ([]domain.Campaign, error) {
	if count <= 0 || count > DefaultRecommendCount {
		count = DefaultRecommendCount
	}
	campaigns, err := s.repo.RecommendCampaigns(ctx, excludeID, count)
	if err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}
	return campaigns, nil
}

// SetCampaignPause toggles the pause flag. Only the owning identity or an
// administrator may pause or resume a campaign.
func (s *Service) SetCampaignPause(ctx context.Context, auth domain.AuthContext, campaignID uuid.UUID, paused bool) error {
	if !auth.Authenticated {
		return ErrUnauthenticated
	}

	campaign, err := s.repo.FindCampaignByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if !auth.Owns(campaign.OwnerEmail) && !auth.IsAdmin() {
		return ErrUnauthorized
	}

	if err := s.repo.SetCampaignPaused(ctx, campaignID, paused); err != nil {
		return err
	}
	log.Printf("level=info component=app op=set_campaign_pause campaign_id=%s paused=%t actor=%s", campaignID, paused, auth.Email)

	s.publishEvent(ctx, rabbitmq.RoutingKeyCampaignPaused, rabbitmq.CampaignPausedEvent{
		CampaignID: campaignID,
		Paused:     paused,
		ActorEmail: auth.Email,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

// UpdateCampaign merges the permitted partial fields into a campaign owned by
// the caller.
func (s *Service) UpdateCampaign(ctx context.Context, auth domain.AuthContext, campaignID uuid.UUID, fields domain.UpdateCampaignPayload) error {
	if !auth.Authenticated {
		return ErrUnauthenticated
	}
	if fields.TargetAmount != nil && *fields.TargetAmount <= 0 {
		return fmt.Errorf("%w: target_amount must be positive", ErrValidation)
	}

	campaign, err := s.repo.FindCampaignByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if !auth.Owns(campaign.OwnerEmail) {
		return ErrUnauthorized
	}

	return s.repo.UpdateCampaignFields(ctx, campaignID, fields)
}

// DeleteCampaign removes a campaign and, by policy, all donations linked to
// it. Administrators only.
func (s *Service) DeleteCampaign(ctx context.Context, auth domain.AuthContext, campaignID uuid.UUID) error {
	if !auth.Authenticated {
		return ErrUnauthenticated
	}
	if !auth.IsAdmin() {
		return ErrUnauthorized
	}
	if err := s.repo.DeleteCampaignCascade(ctx, campaignID); err != nil {
		return err
	}
	log.Printf("level=info component=app op=delete_campaign campaign_id=%s actor=%s", campaignID, auth.Email)
	return nil
}

// RecordDonation validates the payload and records a donation against a
// campaign. The donation insert and the accrued-amount increment commit as
// one unit in the repository; a returned id means both sides are durable.
func (s *Service) RecordDonation(ctx context.Context, auth domain.AuthContext, payload domain.RecordDonationPayload) (uuid.UUID, error) {
	if !auth.Authenticated {
		return uuid.Nil, ErrUnauthenticated
	}
	if payload.Amount <= 0 {
		return uuid.Nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(payload.TransactionRef) == "" {
		return uuid.Nil, fmt.Errorf("%w: transaction_ref is required", ErrValidation)
	}
	if payload.CampaignID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: campaign_id is required", ErrValidation)
	}

	status := payload.Status
	if status == "" {
		status = domain.DonationStatusSucceeded
	}
	switch status {
	case domain.DonationStatusSucceeded, domain.DonationStatusPending, domain.DonationStatusFailed:
	default:
		return uuid.Nil, fmt.Errorf("%w: unknown donation status %q", ErrValidation, status)
	}

	if err := s.consumeDonationRateLimit(ctx, auth.Email); err != nil {
		return uuid.Nil, err
	}

	donation := &domain.Donation{
		ID:             uuid.New(),
		CampaignID:     payload.CampaignID,
		Amount:         payload.Amount,
		TransactionRef: strings.TrimSpace(payload.TransactionRef),
		DonorEmail:     auth.Email,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.RecordDonationAtomic(ctx, donation); err != nil {
		return uuid.Nil, err
	}
	log.Printf("level=info component=app op=record_donation donation_id=%s campaign_id=%s donor=%s amount=%d", donation.ID, donation.CampaignID, donation.DonorEmail, donation.Amount)

	s.publishEvent(ctx, rabbitmq.RoutingKeyDonationRecorded, rabbitmq.DonationEvent{
		DonationID: donation.ID,
		CampaignID: donation.CampaignID,
		DonorEmail: donation.DonorEmail,
		Amount:     donation.Amount,
		Timestamp:  donation.CreatedAt,
	})
	return donation.ID, nil
}

// ListCampaignDonations returns all donation records linked to a campaign,
// for the campaign owner's view. Any authenticated identity may read the list.
func (s *Service) ListCampaignDonations(ctx context.Context, auth domain.AuthContext, campaignID uuid.UUID) ([]domain.Donation, error) {
	if !auth.Authenticated {
		return nil, ErrUnauthenticated
	}
	donations, err := s.repo.ListDonationsByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if donations == nil {
		donations = []domain.Donation{}
	}
	return donations, nil
}

// ListDonorDonations returns the caller's donations, enriched with campaign
// display fields for the donor history view.
func (s *Service) ListDonorDonations(ctx context.Context, auth domain.AuthContext) ([]domain.DonorDonation, error) {
	if !auth.Authenticated {
		return nil, ErrUnauthenticated
	}
	donations, err := s.repo.ListDonationsByDonor(ctx, auth.Email)
	if err != nil {
		return nil, err
	}
	if donations == nil {
		donations = []domain.DonorDonation{}
	}
	return donations, nil
}

// ReverseDonation removes one of the caller's own donations and undoes its
// effect on the campaign's accrued amount, as one unit. A second reversal of
// the same donation fails with NotFound because the first delete consumed the
// record.
func (s *Service) ReverseDonation(ctx context.Context, auth domain.AuthContext, donationID uuid.UUID) error {
	if !auth.Authenticated {
		return ErrUnauthenticated
	}

	donation, err := s.repo.ReverseDonationAtomic(ctx, donationID, auth.Email)
	if err != nil {
		return err
	}
	log.Printf("level=info component=app op=reverse_donation donation_id=%s campaign_id=%s donor=%s amount=%d", donation.ID, donation.CampaignID, donation.DonorEmail, donation.Amount)

	s.publishEvent(ctx, rabbitmq.RoutingKeyDonationReversed, rabbitmq.DonationEvent{
		DonationID: donation.ID,
		CampaignID: donation.CampaignID,
		DonorEmail: donation.DonorEmail,
		Amount:     donation.Amount,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

// CreateDonationIntent asks the external payment authority to open a payment
// intent for the given amount and relays its client secret. The authority's
// internals are opaque to this service.
func (s *Service) CreateDonationIntent(ctx context.Context, auth domain.AuthContext, amount int64, currency string) (*paymentclient.PaymentIntent, error) {
	if !auth.Authenticated {
		return nil, ErrUnauthenticated
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if s.payments == nil {
		return nil, errors.New("payment authority client not configured")
	}
	if currency == "" {
		currency = "usd"
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, amount, currency, "Campaign donation by "+auth.Email)
	if err != nil {
		return nil, fmt.Errorf("payment authority rejected intent: %w", err)
	}
	return intent, nil
}

func (s *Service) consumeDonationRateLimit(ctx context.Context, donorEmail string) error {
	if s.rateLimiter == nil || s.donationRatePerMinute <= 0 {
		return nil
	}

	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, donationRateLimitScope, donorEmail, s.donationRatePerMinute, donationRateLimitWindow)
	if err != nil {
		// A broken limiter must not block donations; fail open.
		log.Printf("level=warn component=app op=record_donation msg=\"rate limiter unavailable; allowing request\" donor=%s err=%v", donorEmail, err)
		return nil
	}
	if count > s.donationRatePerMinute {
		return &RateLimitedError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

func validateCreateCampaignPayload(payload domain.CreateCampaignPayload) error {
	if strings.TrimSpace(payload.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(payload.ImageURL) == "" {
		return fmt.Errorf("%w: image_url is required", ErrValidation)
	}
	if payload.TargetAmount <= 0 {
		return fmt.Errorf("%w: target_amount must be positive", ErrValidation)
	}
	if payload.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expires_at is required", ErrValidation)
	}
	if strings.TrimSpace(payload.ShortDesc) == "" {
		return fmt.Errorf("%w: short_desc is required", ErrValidation)
	}
	if strings.TrimSpace(payload.LongDesc) == "" {
		return fmt.Errorf("%w: long_desc is required", ErrValidation)
	}
	return nil
}
