package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"gorm.io/datatypes"
)

type OfferType string

const (
	OfferTypeDiscountFixed   OfferType = "discount_fixed"
	OfferTypeDiscountPercent OfferType = "discount_percent"
	OfferTypeFreeProduct     OfferType = "free_product"
)

func (t OfferType) Valid() bool {
	switch t {
	case OfferTypeDiscountFixed, OfferTypeDiscountPercent, OfferTypeFreeProduct:
		return true
	default:
		return false
	}
}

// LoyaltyOffer is a time-windowed, tier-gated promotion. Lifecycle is
// admin-managed; customer reads only filter it.
type LoyaltyOffer struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	Name          string            `gorm:"not null" json:"name"`
	RequiredTier  tierdomain.Tier   `gorm:"type:text;not null;default:'bronze'" json:"required_tier"`
	OfferType     OfferType         `gorm:"type:text;not null" json:"offer_type"`
	DiscountValue float64           `gorm:"not null;default:0" json:"discount_value"`
	StartDate     time.Time         `gorm:"not null" json:"start_date"`
	EndDate       time.Time         `gorm:"not null" json:"end_date"`
	IsActive      bool              `gorm:"not null;default:true" json:"is_active"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LoyaltyOffer) TableName() string { return "loyalty_offers" }

// VisibleTo reports whether the offer is live at now and reachable by the
// given tier. Bronze-gated offers are visible to everyone.
func (o LoyaltyOffer) VisibleTo(tier tierdomain.Tier, now time.Time) bool {
	if !o.IsActive {
		return false
	}
	if now.Before(o.StartDate) || now.After(o.EndDate) {
		return false
	}
	return tier.Rank() >= o.RequiredTier.Rank()
}

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidTier      = errors.New("invalid_tier")
	ErrInvalidOfferType = errors.New("invalid_offer_type")
	ErrInvalidWindow    = errors.New("invalid_window")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
