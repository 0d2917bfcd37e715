package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/db/pagination"
)

type AwardRequest struct {
	CustomerID string `json:"customer_id"`
	SaleID     string `json:"sale_id,omitempty"`
	SaleAmount int64  `json:"sale_amount"`
}

type AwardResult struct {
	PointsAwarded int64           `json:"points_awarded"`
	BasePoints    int64           `json:"base_points"`
	BonusPoints   int64           `json:"bonus_points"`
	NewBalance    int64           `json:"new_balance"`
	NewTier       tierdomain.Tier `json:"new_tier"`
}

type RedeemRequest struct {
	CustomerID  string     `json:"customer_id"`
	Points      int64      `json:"points"`
	RewardType  RewardType `json:"reward_type"`
	RewardValue float64    `json:"reward_value"`
	Description string     `json:"description,omitempty"`
}

type RedeemResult struct {
	Reward     LoyaltyReward `json:"reward"`
	NewBalance int64         `json:"new_balance"`
}

type AdjustRequest struct {
	CustomerID  string `json:"customer_id"`
	Points      int64  `json:"points"`
	Description string `json:"description"`
}

type AdjustResult struct {
	Transaction PointsTransaction `json:"transaction"`
	NewBalance  int64             `json:"new_balance"`
	NewTier     tierdomain.Tier   `json:"new_tier"`
}

type BirthdayBonusResult struct {
	CustomerID    snowflake.ID    `json:"customer_id"`
	PointsAwarded int64           `json:"points_awarded"`
	NewBalance    int64           `json:"new_balance"`
	Tier          tierdomain.Tier `json:"tier"`
	Skipped       bool            `json:"skipped"`
	Reason        string          `json:"reason,omitempty"`
}

type BalanceResult struct {
	CustomerID     snowflake.ID    `json:"customer_id"`
	CurrentBalance int64           `json:"current_balance"`
	LifetimePoints int64           `json:"lifetime_points"`
	Tier           tierdomain.Tier `json:"tier"`
}

type UpdateSettingsRequest struct {
	PointsPerUnit int64 `json:"points_per_unit"`
}

type HistoryRequest struct {
	CustomerID string
	PageToken  string
	PageSize   int32
}

type HistoryResponse struct {
	pagination.PageInfo
	Transactions []PointsTransaction `json:"transactions"`
}

type Service interface {
	// AwardForSale credits base plus tier-multiplier bonus points for a
	// completed sale. The multiplier is the customer's tier before this
	// award is applied.
	AwardForSale(ctx context.Context, req AwardRequest) (AwardResult, error)
	// Redeem debits points and creates the reward record atomically.
	Redeem(ctx context.Context, req RedeemRequest) (RedeemResult, error)
	// Adjust appends a signed correction entry.
	Adjust(ctx context.Context, req AdjustRequest) (AdjustResult, error)
	// AwardBirthdayBonus appends at most one birthday_bonus entry per
	// customer per calendar day.
	AwardBirthdayBonus(ctx context.Context, customerID snowflake.ID, day time.Time) (BirthdayBonusResult, error)
	Balance(ctx context.Context, customerID string) (BalanceResult, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	// GetSettings reports the tenant's earning configuration, falling back
	// to the defaults when no row exists.
	GetSettings(ctx context.Context) (Settings, error)
	// UpdateSettings upserts the tenant's earning configuration.
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (Settings, error)
}
