package domain

import (
	"context"
	"time"

	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
)

type CreateOfferRequest struct {
	Name          string          `json:"name"`
	RequiredTier  tierdomain.Tier `json:"required_tier"`
	OfferType     OfferType       `json:"offer_type"`
	DiscountValue float64         `json:"discount_value"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	IsActive      *bool           `json:"is_active,omitempty"`
}

type ListOffersRequest struct {
	// Admin listings return every offer regardless of window or state.
	Admin bool
	// Tier gates customer-facing listings. Ignored for admin listings.
	Tier tierdomain.Tier
}

type Service interface {
	Create(ctx context.Context, req CreateOfferRequest) (LoyaltyOffer, error)
	// List returns all offers for admins, or only live offers reachable by
	// the given tier for customer-facing reads.
	List(ctx context.Context, req ListOffersRequest) ([]LoyaltyOffer, error)
	Deactivate(ctx context.Context, id string) (LoyaltyOffer, error)
}
