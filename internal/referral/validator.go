// Package referral resolves promo codes claimed at signup. It only creates
// the pending referral row; flipping it to validated once the referee
// completes a qualifying trip is the points ledger's job, fed by the
// lifecycle event stream.
package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/models"
	"github.com/example/kigali-rides/internal/observability"
	"github.com/example/kigali-rides/internal/storage"
)

type Validator struct {
	Users     storage.UserDirectory
	Referrals storage.ReferralStore
}

func NewValidator(users storage.UserDirectory, referrals storage.ReferralStore) *Validator {
	return &Validator{Users: users, Referrals: referrals}
}

// Resolve validates code for refereeID and creates the pending referral.
// Duplicate claims are rejected by the store's uniqueness constraint rather
// than a prior read, so two racing signups cannot both land a row.
func (v *Validator) Resolve(ctx context.Context, code, refereeID string, refereeRole models.Role) (*models.Referral, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errs.New(errs.Validation, "code is required")
	}
	if refereeID == "" {
		return nil, errs.New(errs.Validation, "referee_id is required")
	}
	if !models.ValidRole(refereeRole) {
		return nil, errs.New(errs.Validation, "referee_role must be passenger or driver")
	}

	referrerID, err := v.Users.LookupPromoCode(ctx, code)
	if err != nil {
		observability.ReferralsResolvedTotal.WithLabelValues("invalid_code").Inc()
		return nil, err
	}
	if referrerID == refereeID {
		observability.ReferralsResolvedTotal.WithLabelValues("self_referral").Inc()
		return nil, errs.New(errs.SelfReferral, "a promo code cannot refer its own owner")
	}

	now := time.Now().UTC()
	r := &models.Referral{
		ID:               models.NewID(),
		ReferrerID:       referrerID,
		RefereeID:        refereeID,
		RefereeRole:      refereeRole,
		ValidationStatus: models.ReferralPending,
		RewardWeek:       RewardWeek(now),
		CreatedAt:        now,
	}
	if err := v.Referrals.CreateReferral(ctx, r); err != nil {
		if errs.Is(err, errs.DuplicateReferral) {
			observability.ReferralsResolvedTotal.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}
	observability.ReferralsResolvedTotal.WithLabelValues("ok").Inc()
	return r, nil
}

// RewardWeek buckets a time into the ISO year-week the leaderboard ledger
// keys rewards by.
func RewardWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
