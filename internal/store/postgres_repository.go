/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * for campaigns and the donation ledger.
 *
 * Key consistency properties:
 * - RecordDonationAtomic and ReverseDonationAtomic run the donation write and
 *   the campaign accrued-amount write inside one database transaction, with a
 *   `FOR UPDATE` row lock on the campaign. Concurrent donations to the same
 *   campaign therefore serialize, and a failure on either side rolls the whole
 *   unit back before the caller hears about it.
 * - The accrued-amount adjustment is expressed as an in-place add
 *   (`accrued_amount = accrued_amount + $n`), never a read-modify-write.
 *
 * @dependencies
 * - context, errors, fmt, strings: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawfund/funding-service/internal/domain"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCampaignPaused   = errors.New("campaign is paused")
	ErrDonationNotFound = errors.New("donation not found")
	ErrNotDonationOwner = errors.New("donation belongs to another donor")
)

// Placeholder values used when a donor's donation references a campaign that
// has since been deleted.
const (
	orphanCampaignName  = "Unknown"
	orphanCampaignImage = ""
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const campaignColumns = `id, name, image_url, target_amount, accrued_amount, short_desc, long_desc, owner_email, paused, created_at, expires_at`

func scanCampaign(row pgx.Row, c *domain.Campaign) error {
	return row.Scan(
		&c.ID, &c.Name, &c.ImageURL, &c.TargetAmount, &c.AccruedAmount,
		&c.ShortDesc, &c.LongDesc, &c.OwnerEmail, &c.Paused, &c.CreatedAt, &c.ExpiresAt,
	)
}

// CreateCampaign inserts a new campaign record.
func (r *PostgresRepository) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (id, name, image_url, target_amount, accrued_amount,
		                       short_desc, long_desc, owner_email, paused, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		campaign.ID, campaign.Name, campaign.ImageURL, campaign.TargetAmount, campaign.AccruedAmount,
		campaign.ShortDesc, campaign.LongDesc, campaign.OwnerEmail, campaign.Paused,
		campaign.CreatedAt, campaign.ExpiresAt,
	)
	return err
}

// FindCampaignByID retrieves a campaign from the database by its ID.
func (r *PostgresRepository) FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	var campaign domain.Campaign
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	err := scanCampaign(r.db.QueryRow(ctx, query, campaignID), &campaign)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// ListCampaigns returns one page of campaigns ordered most recent first,
// together with the total campaign count. Paused campaigns stay visible; the
// pause flag only blocks new donations.
func (r *PostgresRepository) ListCampaigns(ctx context.Context, limit int, offset int) ([]domain.Campaign, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns, err := collectCampaigns(rows)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ListCampaignsByOwner returns all campaigns owned by the given identity.
func (r *PostgresRepository) ListCampaignsByOwner(ctx context.Context, ownerEmail string) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE owner_email = $1 ORDER BY created_at DESC, id`
	rows, err := r.db.Query(ctx, query, ownerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// RecommendCampaigns returns up to `count` campaigns excluding the given id,
// most recent first. Used for related-campaign suggestions.
func (r *PostgresRepository) RecommendCampaigns(ctx context.Context, excludeID uuid.UUID, count int) ([]domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id <> $1 ORDER BY created_at DESC, id LIMIT $2`
	rows, err := r.db.Query(ctx, query, excludeID, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// SetCampaignPaused sets the pause flag on a campaign.
func (r *PostgresRepository) SetCampaignPaused(ctx context.Context, campaignID uuid.UUID, paused bool) error {
	result, err := r.db.Exec(ctx, `UPDATE campaigns SET paused = $1 WHERE id = $2`, paused, campaignID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// UpdateCampaignFields merges the permitted non-nil fields into an existing
// campaign. Accrued amount and pause flag are deliberately not reachable here.
func (r *PostgresRepository) UpdateCampaignFields(ctx context.Context, campaignID uuid.UUID, fields domain.UpdateCampaignPayload) error {
	setClauses, args := buildCampaignUpdateSet(fields)

	if len(setClauses) == 0 {
		// Nothing to change; still report NotFound for absent campaigns.
		_, err := r.FindCampaignByID(ctx, campaignID)
		return err
	}

	args = append(args, campaignID)
	query := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d", strings.Join(setClauses, ", "), len(args))
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// DeleteCampaignCascade removes a campaign and all donation records linked to
// it, in one transaction, so no orphaned ledger rows survive the deletion.
func (r *PostgresRepository) DeleteCampaignCascade(ctx context.Context, campaignID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM donations WHERE campaign_id = $1`, campaignID); err != nil {
		return fmt.Errorf("failed to delete campaign donations: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, campaignID)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}

	return tx.Commit(ctx)
}

// RecordDonationAtomic inserts a donation and increments the linked campaign's
// accrued amount as one unit. The campaign row is locked first, so the pause
// check observes any pause toggle that committed before this donation and
// concurrent donations to the same campaign serialize their increments.
func (r *PostgresRepository) RecordDonationAtomic(ctx context.Context, donation *domain.Donation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var paused bool
	err = tx.QueryRow(ctx, `SELECT paused FROM campaigns WHERE id = $1 FOR UPDATE`, donation.CampaignID).Scan(&paused)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrCampaignNotFound
		}
		return fmt.Errorf("failed to lock campaign: %w", err)
	}
	if paused {
		return ErrCampaignPaused
	}

	insertQuery := `
		INSERT INTO donations (id, campaign_id, amount, transaction_ref, donor_email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insertQuery,
		donation.ID, donation.CampaignID, donation.Amount, donation.TransactionRef,
		donation.DonorEmail, donation.Status, donation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE campaigns SET accrued_amount = accrued_amount + $1 WHERE id = $2`,
		donation.Amount, donation.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to increment campaign accrued amount: %w", err)
	}

	return tx.Commit(ctx)
}

// ReverseDonationAtomic deletes a donation owned by the given donor and
// decrements the linked campaign's accrued amount as one unit. The delete
// consumes the row, so a second reversal of the same donation observes no row
// and fails with ErrDonationNotFound rather than double-decrementing. The
// decrement is clamped at zero; a missing campaign (already deleted) is
// tolerated so the ledger row can still be cleaned up.
func (r *PostgresRepository) ReverseDonationAtomic(ctx context.Context, donationID uuid.UUID, donorEmail string) (*domain.Donation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var donation domain.Donation
	query := `
		SELECT id, campaign_id, amount, transaction_ref, donor_email, status, created_at
		FROM donations
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, query, donationID).Scan(
		&donation.ID, &donation.CampaignID, &donation.Amount, &donation.TransactionRef,
		&donation.DonorEmail, &donation.Status, &donation.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to lock donation: %w", err)
	}

	if donation.DonorEmail != donorEmail {
		return nil, ErrNotDonationOwner
	}

	if _, err := tx.Exec(ctx, `DELETE FROM donations WHERE id = $1`, donationID); err != nil {
		return nil, fmt.Errorf("failed to delete donation: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE campaigns SET accrued_amount = GREATEST(accrued_amount - $1, 0) WHERE id = $2`,
		donation.Amount, donation.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrement campaign accrued amount: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &donation, nil
}

// ListDonationsByCampaign returns all donation records linked to a campaign,
// most recent first, for the campaign owner's view.
func (r *PostgresRepository) ListDonationsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Donation, error) {
	query := `
		SELECT id, campaign_id, amount, transaction_ref, donor_email, status, created_at
		FROM donations
		WHERE campaign_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.Query(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []domain.Donation
	for rows.Next() {
		var d domain.Donation
		err := rows.Scan(&d.ID, &d.CampaignID, &d.Amount, &d.TransactionRef, &d.DonorEmail, &d.Status, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

// ListDonationsByDonor returns all donations made by an identity, enriched
// with the linked campaign's name and image via a read-side join. Donations
// whose campaign has been deleted fall back to placeholder display values.
func (r *PostgresRepository) ListDonationsByDonor(ctx context.Context, donorEmail string) ([]domain.DonorDonation, error) {
	query := `
		SELECT d.id, d.campaign_id, d.amount, d.transaction_ref, d.donor_email, d.status, d.created_at,
		       COALESCE(c.name, $2), COALESCE(c.image_url, $3)
		FROM donations d
		LEFT JOIN campaigns c ON c.id = d.campaign_id
		WHERE d.donor_email = $1
		ORDER BY d.created_at DESC, d.id
	`
	rows, err := r.db.Query(ctx, query, donorEmail, orphanCampaignName, orphanCampaignImage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []domain.DonorDonation
	for rows.Next() {
		var d domain.DonorDonation
		err := rows.Scan(
			&d.ID, &d.CampaignID, &d.Amount, &d.TransactionRef, &d.DonorEmail, &d.Status, &d.CreatedAt,
			&d.CampaignName, &d.CampaignImageURL,
		)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

// buildCampaignUpdateSet turns the non-nil payload fields into SET clauses and
// positional arguments. Accrued amount and pause flag have no corresponding
// payload field, so they can never be written through this path.
func buildCampaignUpdateSet(fields domain.UpdateCampaignPayload) ([]string, []interface{}) {
	setClauses := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Name != nil {
		appendSet("name", *fields.Name)
	}
	if fields.ImageURL != nil {
		appendSet("image_url", *fields.ImageURL)
	}
	if fields.TargetAmount != nil {
		appendSet("target_amount", *fields.TargetAmount)
	}
	if fields.ShortDesc != nil {
		appendSet("short_desc", *fields.ShortDesc)
	}
	if fields.LongDesc != nil {
		appendSet("long_desc", *fields.LongDesc)
	}
	if fields.ExpiresAt != nil {
		appendSet("expires_at", *fields.ExpiresAt)
	}
	return setClauses, args
}

func collectCampaigns(rows pgx.Rows) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		err := rows.Scan(
			&c.ID, &c.Name, &c.ImageURL, &c.TargetAmount, &c.AccruedAmount,
			&c.ShortDesc, &c.LongDesc, &c.OwnerEmail, &c.Paused, &c.CreatedAt, &c.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
