package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/clock"
	"github.com/smallbiznis/loyalty/internal/offer/domain"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("offer.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOfferRequest) (domain.LoyaltyOffer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.LoyaltyOffer{}, domain.ErrInvalidTenant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.LoyaltyOffer{}, domain.ErrInvalidName
	}
	if !req.RequiredTier.Valid() {
		return domain.LoyaltyOffer{}, domain.ErrInvalidTier
	}
	if !req.OfferType.Valid() {
		return domain.LoyaltyOffer{}, domain.ErrInvalidOfferType
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || req.EndDate.Before(req.StartDate) {
		return domain.LoyaltyOffer{}, domain.ErrInvalidWindow
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := time.Now().UTC()
	offer := domain.LoyaltyOffer{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		Name:          name,
		RequiredTier:  req.RequiredTier,
		OfferType:     req.OfferType,
		DiscountValue: req.DiscountValue,
		StartDate:     req.StartDate.UTC(),
		EndDate:       req.EndDate.UTC(),
		IsActive:      isActive,
		Metadata:      datatypes.JSONMap{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.WithContext(ctx).Create(&offer).Error; err != nil {
		return domain.LoyaltyOffer{}, err
	}

	return offer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOffersRequest) ([]domain.LoyaltyOffer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	var offers []domain.LoyaltyOffer
	err := s.db.WithContext(ctx).
		Model(&domain.LoyaltyOffer{}).
		Where("tenant_id = ?", tenantID).
		Order("start_date desc, id desc").
		Find(&offers).Error
	if err != nil {
		return nil, err
	}

	if req.Admin {
		return offers, nil
	}

	tier := req.Tier
	if !tier.Valid() {
		tier = tierdomain.TierBronze
	}

	now := s.clock.Now()
	visible := make([]domain.LoyaltyOffer, 0, len(offers))
	for _, offer := range offers {
		if offer.VisibleTo(tier, now) {
			visible = append(visible, offer)
		}
	}
	return visible, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) (domain.LoyaltyOffer, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.LoyaltyOffer{}, domain.ErrInvalidTenant
	}

	offerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || offerID == 0 {
		return domain.LoyaltyOffer{}, domain.ErrInvalidID
	}

	var offer domain.LoyaltyOffer
	err = s.db.WithContext(ctx).Raw(
		`SELECT * FROM loyalty_offers WHERE tenant_id = ? AND id = ?`,
		tenantID,
		offerID,
	).Scan(&offer).Error
	if err != nil {
		return domain.LoyaltyOffer{}, err
	}
	if offer.ID == 0 {
		return domain.LoyaltyOffer{}, domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Exec(
		`UPDATE loyalty_offers SET is_active = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		false,
		time.Now().UTC(),
		tenantID,
		offerID,
	).Error
	if err != nil {
		return domain.LoyaltyOffer{}, err
	}

	offer.IsActive = false
	return offer, nil
}
