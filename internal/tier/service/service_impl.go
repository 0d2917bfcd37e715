package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tier.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Ladder(ctx context.Context) (domain.Ladder, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	ladder, err := s.repo.Ladder(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if len(ladder) == 0 {
		return domain.DefaultLadder(), nil
	}
	return ladder, nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertTierRequest) (domain.TierConfig, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TierConfig{}, domain.ErrInvalidTenant
	}

	if !req.Tier.Valid() {
		return domain.TierConfig{}, domain.ErrInvalidTier
	}
	if req.MinimumLifetimePoints < 0 {
		return domain.TierConfig{}, domain.ErrInvalidMinimum
	}
	if req.PointsMultiplier < 1 {
		return domain.TierConfig{}, domain.ErrInvalidMultiplier
	}

	now := time.Now().UTC()
	cfg := domain.TierConfig{
		ID:                    s.genID.Generate(),
		TenantID:              tenantID,
		Tier:                  req.Tier,
		MinimumLifetimePoints: req.MinimumLifetimePoints,
		PointsMultiplier:      req.PointsMultiplier,
		DiscountPercentage:    req.DiscountPercentage,
		BirthdayBonus:         req.BirthdayBonus,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Upsert(ctx, s.db, &cfg); err != nil {
		return domain.TierConfig{}, err
	}

	return cfg, nil
}
