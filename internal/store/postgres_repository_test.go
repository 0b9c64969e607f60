package store

import (
	"strings"
	"testing"
	"time"

	"github.com/pawfund/funding-service/internal/domain"
)

func TestBuildCampaignUpdateSet(t *testing.T) {
	name := "Renamed drive"
	target := int64(75000)
	expires := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty payload produces no clauses", func(t *testing.T) {
		setClauses, args := buildCampaignUpdateSet(domain.UpdateCampaignPayload{})
		if len(setClauses) != 0 || len(args) != 0 {
			t.Fatalf("expected empty result, got clauses=%v args=%v", setClauses, args)
		}
	})

	t.Run("single field", func(t *testing.T) {
		setClauses, args := buildCampaignUpdateSet(domain.UpdateCampaignPayload{Name: &name})
		if len(setClauses) != 1 || setClauses[0] != "name = $1" {
			t.Fatalf("unexpected clauses: %v", setClauses)
		}
		if len(args) != 1 || args[0] != name {
			t.Fatalf("unexpected args: %v", args)
		}
	})

	t.Run("placeholders numbered in field order", func(t *testing.T) {
		setClauses, args := buildCampaignUpdateSet(domain.UpdateCampaignPayload{
			Name:         &name,
			TargetAmount: &target,
			ExpiresAt:    &expires,
		})
		joined := strings.Join(setClauses, ", ")
		if joined != "name = $1, target_amount = $2, expires_at = $3" {
			t.Fatalf("unexpected clauses: %q", joined)
		}
		if len(args) != 3 || args[0] != name || args[1] != target || args[2] != expires {
			t.Fatalf("unexpected args: %v", args)
		}
	})

	t.Run("accrued amount and pause flag are unreachable", func(t *testing.T) {
		name := "x"
		image := "y"
		short := "s"
		long := "l"
		setClauses, _ := buildCampaignUpdateSet(domain.UpdateCampaignPayload{
			Name: &name, ImageURL: &image, TargetAmount: &target,
			ShortDesc: &short, LongDesc: &long, ExpiresAt: &expires,
		})
		joined := strings.Join(setClauses, ", ")
		if strings.Contains(joined, "accrued_amount") || strings.Contains(joined, "paused") {
			t.Fatalf("protected column reachable through update payload: %q", joined)
		}
	})
}
