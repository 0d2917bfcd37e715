package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is a customer loyalty tier label.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

var tierRanks = map[Tier]int{
	TierBronze:   0,
	TierSilver:   1,
	TierGold:     2,
	TierPlatinum: 3,
}

// Rank returns the ordinal position of the tier. Unknown tiers rank below bronze.
func (t Tier) Rank() int {
	rank, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return rank
}

// Outranks reports whether t is strictly higher than other.
func (t Tier) Outranks(other Tier) bool {
	return t.Rank() > other.Rank()
}

func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// TierConfig is one rung of a tenant's tier ladder.
type TierConfig struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID              snowflake.ID `gorm:"not null;index;uniqueIndex:ux_tier_configs_tenant_tier,priority:1" json:"tenant_id"`
	Tier                  Tier         `gorm:"type:text;not null;uniqueIndex:ux_tier_configs_tenant_tier,priority:2" json:"tier"`
	MinimumLifetimePoints int64        `gorm:"not null" json:"minimum_lifetime_points"`
	PointsMultiplier      float64      `gorm:"not null;default:1" json:"points_multiplier"`
	DiscountPercentage    float64      `gorm:"not null;default:0" json:"discount_percentage"`
	BirthdayBonus         int64        `gorm:"not null;default:0" json:"birthday_bonus"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TierConfig) TableName() string { return "tier_configs" }

// Ladder is a tenant's tier ladder ordered by minimum lifetime points ascending.
type Ladder []TierConfig

func (l Ladder) Sorted() Ladder {
	out := make(Ladder, len(l))
	copy(out, l)
	sort.Slice(out, func(i, j int) bool {
		return out[i].MinimumLifetimePoints < out[j].MinimumLifetimePoints
	})
	return out
}

// ForTier returns the config row for the given tier, if present.
func (l Ladder) ForTier(t Tier) (TierConfig, bool) {
	for _, cfg := range l {
		if cfg.Tier == t {
			return cfg, true
		}
	}
	return TierConfig{}, false
}

// Classify returns the qualifying tier for the given lifetime-earned points:
// the highest rung whose minimum is <= lifetimePoints. The never-downgrade
// rule is enforced by the caller, not here.
func Classify(lifetimePoints int64, ladder Ladder) Tier {
	result := TierBronze
	for _, cfg := range ladder.Sorted() {
		if lifetimePoints >= cfg.MinimumLifetimePoints {
			result = cfg.Tier
		}
	}
	return result
}

// DefaultLadder is the fallback ladder used when a tenant has no tier_configs
// rows. It is not a second source of truth; seeding writes it to the table.
func DefaultLadder() Ladder {
	return Ladder{
		{Tier: TierBronze, MinimumLifetimePoints: 0, PointsMultiplier: 1.0, DiscountPercentage: 0, BirthdayBonus: 50},
		{Tier: TierSilver, MinimumLifetimePoints: 500, PointsMultiplier: 1.25, DiscountPercentage: 2.5, BirthdayBonus: 100},
		{Tier: TierGold, MinimumLifetimePoints: 2000, PointsMultiplier: 1.5, DiscountPercentage: 5, BirthdayBonus: 200},
		{Tier: TierPlatinum, MinimumLifetimePoints: 5000, PointsMultiplier: 2.0, DiscountPercentage: 10, BirthdayBonus: 500},
	}
}

var (
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidTier       = errors.New("invalid_tier")
	ErrInvalidMinimum    = errors.New("invalid_minimum_lifetime_points")
	ErrInvalidMultiplier = errors.New("invalid_points_multiplier")
	ErrNotFound          = errors.New("not_found")
)
