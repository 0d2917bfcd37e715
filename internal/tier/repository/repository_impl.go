package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/tier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cfg *domain.TierConfig) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "tier"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"minimum_lifetime_points",
			"points_multiplier",
			"discount_percentage",
			"birthday_bonus",
			"updated_at",
		}),
	}).Create(cfg).Error
}

func (r *repo) Ladder(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (domain.Ladder, error) {
	var configs []domain.TierConfig
	err := db.WithContext(ctx).
		Model(&domain.TierConfig{}).
		Where("tenant_id = ?", tenantID).
		Order("minimum_lifetime_points asc").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return domain.Ladder(configs), nil
}
