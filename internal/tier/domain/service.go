package domain

import "context"

type UpsertTierRequest struct {
	Tier                  Tier    `json:"tier"`
	MinimumLifetimePoints int64   `json:"minimum_lifetime_points"`
	PointsMultiplier      float64 `json:"points_multiplier"`
	DiscountPercentage    float64 `json:"discount_percentage"`
	BirthdayBonus         int64   `json:"birthday_bonus"`
}

type Service interface {
	// Ladder returns the tenant's tier ladder, falling back to the default
	// ladder when the tenant has no configured rows.
	Ladder(ctx context.Context) (Ladder, error)
	Upsert(ctx context.Context, req UpsertTierRequest) (TierConfig, error)
}
