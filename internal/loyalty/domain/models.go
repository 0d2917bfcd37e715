package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TransactionType tags a points ledger entry. Positive types must carry
// points > 0, redeemed entries points < 0. Entries are never mutated or
// deleted; corrections are new adjusted entries.
type TransactionType string

const (
	TransactionTypeEarned        TransactionType = "earned"
	TransactionTypeRedeemed      TransactionType = "redeemed"
	TransactionTypeBirthdayBonus TransactionType = "birthday_bonus"
	TransactionTypeAdjusted      TransactionType = "adjusted"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeEarned, TransactionTypeRedeemed, TransactionTypeBirthdayBonus, TransactionTypeAdjusted:
		return true
	default:
		return false
	}
}

// PointsTransaction is one immutable row of the append-only points ledger.
// BonusDay is stamped only on birthday_bonus rows; the unique index over
// (tenant_id, customer_id, type, bonus_day) is what makes the daily bonus
// job idempotent under overlapping runs.
type PointsTransaction struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_points_tx_bonus_day,priority:1" json:"tenant_id"`
	CustomerID    snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_points_tx_bonus_day,priority:2" json:"customer_id"`
	Type          TransactionType `gorm:"type:text;not null;uniqueIndex:ux_points_tx_bonus_day,priority:3" json:"type"`
	Points        int64           `gorm:"not null" json:"points"`
	RelatedSaleID *snowflake.ID   `gorm:"index" json:"related_sale_id,omitempty"`
	Description   string          `gorm:"type:text;not null" json:"description"`
	BonusDay      *string         `gorm:"type:text;uniqueIndex:ux_points_tx_bonus_day,priority:4" json:"bonus_day,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PointsTransaction) TableName() string { return "points_transactions" }

// RewardType is the closed set of redeemable reward kinds, decided once at
// the API boundary.
type RewardType string

const (
	RewardTypeDiscountFixed   RewardType = "discount_fixed"
	RewardTypeDiscountPercent RewardType = "discount_percent"
	RewardTypeFreeProduct     RewardType = "free_product"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardTypeDiscountFixed, RewardTypeDiscountPercent, RewardTypeFreeProduct:
		return true
	default:
		return false
	}
}

// LoyaltyReward is created once per successful redemption, in the same
// transaction as the redeemed ledger entry.
type LoyaltyReward struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	PointsCost int64        `gorm:"not null" json:"points_cost"`
	RewardType RewardType   `gorm:"type:text;not null" json:"reward_type"`
	RewardValue float64     `gorm:"not null" json:"reward_value"`
	RedeemedAt time.Time    `gorm:"not null" json:"redeemed_at"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
}

func (LoyaltyReward) TableName() string { return "loyalty_rewards" }

// Settings holds per-tenant earning configuration.
type Settings struct {
	TenantID      snowflake.ID `gorm:"primaryKey" json:"tenant_id"`
	PointsPerUnit int64        `gorm:"not null;default:10" json:"points_per_unit"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Settings) TableName() string { return "loyalty_settings" }

// DefaultPointsPerUnit applies when a tenant has no settings row.
const DefaultPointsPerUnit int64 = 10

var (
	ErrInvalidTenant          = errors.New("invalid_tenant")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidPoints          = errors.New("invalid_points")
	ErrInvalidRewardType      = errors.New("invalid_reward_type")
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrCustomerNotFound       = errors.New("customer_not_found")
	ErrCustomerInactive       = errors.New("customer_inactive")
	ErrConcurrencyConflict    = errors.New("concurrency_conflict")
	ErrInsufficientPoints     = errors.New("insufficient_points")
)

// InsufficientPointsError carries the exact shortfall so callers can show
// how many points are missing.
type InsufficientPointsError struct {
	Available int64 `json:"available"`
	Requested int64 `json:"requested"`
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient_points: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}
