package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pawfund/funding-service/internal/app"
	"github.com/pawfund/funding-service/internal/domain"
	"github.com/pawfund/funding-service/internal/store"
)

// fakeRepo is an in-memory Repository backing the HTTP round-trip tests.
type fakeRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*domain.Campaign
	donations map[uuid.UUID]*domain.Donation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		campaigns: make(map[uuid.UUID]*domain.Campaign),
		donations: make(map[uuid.UUID]*domain.Donation),
	}
}

func (f *fakeRepo) CreateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *campaign
	f.campaigns[campaign.ID] = &copied
	return nil
}

func (f *fakeRepo) FindCampaignByID(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return nil, store.ErrCampaignNotFound
	}
	copied := *campaign
	return &copied, nil
}

func (f *fakeRepo) ListCampaigns(ctx context.Context, limit int, offset int) ([]domain.Campaign, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.Campaign
	for _, c := range f.campaigns {
		items = append(items, *c)
	}
	return items, int64(len(f.campaigns)), nil
}

func (f *fakeRepo) ListCampaignsByOwner(ctx context.Context, ownerEmail string) ([]domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.Campaign
	for _, c := range f.campaigns {
		if c.OwnerEmail == ownerEmail {
			items = append(items, *c)
		}
	}
	return items, nil
}

func (f *fakeRepo) RecommendCampaigns(ctx context.Context, excludeID uuid.UUID, count int) ([]domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []domain.Campaign
	for _, c := range f.campaigns {
		if c.ID == excludeID || len(items) >= count {
			continue
		}
		items = append(items, *c)
	}
	return items, nil
}

func (f *fakeRepo) SetCampaignPaused(ctx context.Context, campaignID uuid.UUID, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return store.ErrCampaignNotFound
	}
	campaign.Paused = paused
	return nil
}

func (f *fakeRepo) UpdateCampaignFields(ctx context.Context, campaignID uuid.UUID, fields domain.UpdateCampaignPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return store.ErrCampaignNotFound
	}
	if fields.Name != nil {
		campaign.Name = *fields.Name
	}
	if fields.TargetAmount != nil {
		campaign.TargetAmount = *fields.TargetAmount
	}
	return nil
}

func (f *fakeRepo) DeleteCampaignCascade(ctx context.Context, campaignID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campaigns[campaignID]; !ok {
		return store.ErrCampaignNotFound
	}
	delete(f.campaigns, campaignID)
	for id, d := range f.donations {
		if d.CampaignID == campaignID {
			delete(f.donations, id)
		}
	}
	return nil
}

func (f *fakeRepo) RecordDonationAtomic(ctx context.Context, donation *domain.Donation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[donation.CampaignID]
	if !ok {
		return store.ErrCampaignNotFound
	}
	if campaign.Paused {
		return store.ErrCampaignPaused
	}
	copied := *donation
	f.donations[donation.ID] = &copied
	campaign.AccruedAmount += donation.Amount
	return nil
}

func (f *fakeRepo) ReverseDonationAtomic(ctx context.Context, donationID uuid.UUID, donorEmail string) (*domain.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	donation, ok := f.donations[donationID]
	if !ok {
		return nil, store.ErrDonationNotFound
	}
	if donation.DonorEmail != donorEmail {
		return nil, store.ErrNotDonationOwner
	}
	delete(f.donations, donationID)
	if campaign, ok := f.campaigns[donation.CampaignID]; ok {
		campaign.AccruedAmount -= donation.Amount
		if campaign.AccruedAmount < 0 {
			campaign.AccruedAmount = 0
		}
	}
	copied := *donation
	return &copied, nil
}

func (f *fakeRepo) ListDonationsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var donations []domain.Donation
	for _, d := range f.donations {
		if d.CampaignID == campaignID {
			donations = append(donations, *d)
		}
	}
	return donations, nil
}

func (f *fakeRepo) ListDonationsByDonor(ctx context.Context, donorEmail string) ([]domain.DonorDonation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var donations []domain.DonorDonation
	for _, d := range f.donations {
		if d.DonorEmail != donorEmail {
			continue
		}
		enriched := domain.DonorDonation{Donation: *d, CampaignName: "Unknown"}
		if campaign, ok := f.campaigns[d.CampaignID]; ok {
			enriched.CampaignName = campaign.Name
			enriched.CampaignImageURL = campaign.ImageURL
		}
		donations = append(donations, enriched)
	}
	return donations, nil
}

func newTestServer(t *testing.T) (*fakeRepo, http.Handler) {
	t.Helper()
	repo := newFakeRepo()
	svc := app.NewService(repo, nil, nil)
	return repo, FundingRoutes(NewFundingHandlers(svc), testJWTSecret)
}

func seedCampaign(t *testing.T, repo *fakeRepo, owner string) *domain.Campaign {
	t.Helper()
	campaign := &domain.Campaign{
		ID:           uuid.New(),
		Name:         "Surgery for Biscuit",
		ImageURL:     "https://cdn.example.com/biscuit.jpg",
		TargetAmount: 50000,
		ShortDesc:    "Biscuit needs a hip operation.",
		LongDesc:     "Biscuit is a three year old beagle recovering from a traffic accident.",
		OwnerEmail:   owner,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
	}
	if err := repo.CreateCampaign(context.Background(), campaign); err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	return campaign
}

func doJSON(t *testing.T, router http.Handler, method string, target string, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func userToken(t *testing.T, email string) string {
	return signTestToken(t, testJWTSecret, authClaims(email, domain.RoleUser))
}

func adminToken(t *testing.T) string {
	return signTestToken(t, testJWTSecret, authClaims("admin@example.com", domain.RoleAdmin))
}

func TestCreateCampaignEndpoint_RequiresToken(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/campaigns", "", domain.CreateCampaignPayload{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCreateCampaignEndpoint_OwnerFromToken(t *testing.T) {
	_, router := newTestServer(t)

	payload := domain.CreateCampaignPayload{
		Name:         "Surgery for Biscuit",
		ImageURL:     "https://cdn.example.com/biscuit.jpg",
		TargetAmount: 50000,
		ShortDesc:    "Biscuit needs a hip operation.",
		LongDesc:     "Biscuit is a three year old beagle recovering from a traffic accident.",
		ExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
	}
	rec := doJSON(t, router, http.MethodPost, "/campaigns", userToken(t, "owner@example.com"), payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.OwnerEmail != "owner@example.com" {
		t.Fatalf("expected owner from token, got %q", created.OwnerEmail)
	}
	if created.AccruedAmount != 0 || created.Paused {
		t.Fatalf("expected zero accrual and unpaused, got accrued=%d paused=%t", created.AccruedAmount, created.Paused)
	}
}

func TestCreateCampaignEndpoint_InvalidPayload(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/campaigns", userToken(t, "owner@example.com"), domain.CreateCampaignPayload{Name: "no target"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListCampaignsEndpoint_Public(t *testing.T) {
	repo, router := newTestServer(t)
	seedCampaign(t, repo, "owner@example.com")

	rec := doJSON(t, router, http.MethodGet, "/campaigns?page=1&limit=12", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without token, got %d", rec.Code)
	}

	var page domain.CampaignPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Fatalf("expected one campaign, got total=%d items=%d", page.Total, len(page.Items))
	}
}

func TestGetCampaignEndpoint_UnknownIDIsNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/campaigns/"+uuid.NewString(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing campaign, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/campaigns/not-a-uuid", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", rec.Code)
	}
}

func TestRecordDonationEndpoint_Success(t *testing.T) {
	repo, router := newTestServer(t)
	campaign := seedCampaign(t, repo, "owner@example.com")

	rec := doJSON(t, router, http.MethodPost, "/donations", userToken(t, "alice@example.com"), domain.RecordDonationPayload{
		CampaignID:     campaign.ID,
		Amount:         2500,
		TransactionRef: "txn-abc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success    bool      `json:"success"`
		InsertedID uuid.UUID `json:"insertedId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success || resp.InsertedID == uuid.Nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	updated, _ := repo.FindCampaignByID(context.Background(), campaign.ID)
	if updated.AccruedAmount != 2500 {
		t.Fatalf("expected accrued amount 2500, got %d", updated.AccruedAmount)
	}
}

func TestRecordDonationEndpoint_PausedCampaignIsForbidden(t *testing.T) {
	repo, router := newTestServer(t)
	campaign := seedCampaign(t, repo, "owner@example.com")
	if err := repo.SetCampaignPaused(context.Background(), campaign.ID, true); err != nil {
		t.Fatalf("failed to pause campaign: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/donations", userToken(t, "alice@example.com"), domain.RecordDonationPayload{
		CampaignID:     campaign.ID,
		Amount:         2500,
		TransactionRef: "txn-abc",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for paused campaign, got %d", rec.Code)
	}

	updated, _ := repo.FindCampaignByID(context.Background(), campaign.ID)
	if updated.AccruedAmount != 0 {
		t.Fatalf("expected accrued amount untouched, got %d", updated.AccruedAmount)
	}
}

func TestRecordDonationEndpoint_MissingCampaignIsNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/donations", userToken(t, "alice@example.com"), domain.RecordDonationPayload{
		CampaignID:     uuid.New(),
		Amount:         2500,
		TransactionRef: "txn-abc",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing campaign, got %d", rec.Code)
	}
}

func TestRecordDonationEndpoint_RateLimited(t *testing.T) {
	repo := newFakeRepo()
	svc := app.NewService(repo, nil, nil)
	svc.SetDonationRateLimiter(rateLimiterFunc(func(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error) {
		return limit + 1, 17, nil
	}), 30)
	router := FundingRoutes(NewFundingHandlers(svc), testJWTSecret)
	campaign := seedCampaign(t, repo, "owner@example.com")

	rec := doJSON(t, router, http.MethodPost, "/donations", userToken(t, "alice@example.com"), domain.RecordDonationPayload{
		CampaignID:     campaign.ID,
		Amount:         2500,
		TransactionRef: "txn-abc",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "17" {
		t.Fatalf("expected Retry-After 17, got %q", got)
	}
}

type rateLimiterFunc func(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error)

func (f rateLimiterFunc) ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (int, int, error) {
	return f(ctx, scope, subject, limit, window)
}

func TestListCampaignDonationsEndpoint_RequiresCampaignID(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/donations", userToken(t, "owner@example.com"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without campaign_id, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/donations?campaign_id=nope", userToken(t, "owner@example.com"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed campaign_id, got %d", rec.Code)
	}
}

func TestReverseDonationEndpoint_OtherDonorReadsNotFound(t *testing.T) {
	repo, router := newTestServer(t)
	campaign := seedCampaign(t, repo, "owner@example.com")

	donation := &domain.Donation{
		ID:             uuid.New(),
		CampaignID:     campaign.ID,
		Amount:         2500,
		TransactionRef: "txn-abc",
		DonorEmail:     "alice@example.com",
		Status:         domain.DonationStatusSucceeded,
		CreatedAt:      time.Now().UTC(),
	}
	if err := repo.RecordDonationAtomic(context.Background(), donation); err != nil {
		t.Fatalf("failed to seed donation: %v", err)
	}

	rec := doJSON(t, router, http.MethodDelete, "/donations/"+donation.ID.String(), userToken(t, "mallory@example.com"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign donation, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/donations/"+donation.ID.String(), userToken(t, "alice@example.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own donation, got %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ := repo.FindCampaignByID(context.Background(), campaign.ID)
	if updated.AccruedAmount != 0 {
		t.Fatalf("expected accrued amount back to 0, got %d", updated.AccruedAmount)
	}
}

func TestSetCampaignPauseEndpoint_StrangerReadsNotFound(t *testing.T) {
	repo, router := newTestServer(t)
	campaign := seedCampaign(t, repo, "owner@example.com")
	target := fmt.Sprintf("/campaigns/%s/pause", campaign.ID)

	rec := doJSON(t, router, http.MethodPatch, target, userToken(t, "mallory@example.com"), map[string]bool{"paused": true})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPatch, target, userToken(t, "owner@example.com"), map[string]bool{"paused": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ := repo.FindCampaignByID(context.Background(), campaign.ID)
	if !updated.Paused {
		t.Fatal("expected campaign paused")
	}
}

func TestDeleteCampaignEndpoint_AdminOnly(t *testing.T) {
	repo, router := newTestServer(t)
	campaign := seedCampaign(t, repo, "owner@example.com")
	target := "/campaigns/" + campaign.ID.String()

	rec := doJSON(t, router, http.MethodDelete, target, userToken(t, "owner@example.com"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, target, adminToken(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := repo.FindCampaignByID(context.Background(), campaign.ID); err != store.ErrCampaignNotFound {
		t.Fatalf("expected campaign gone, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
