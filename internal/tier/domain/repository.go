package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, cfg *TierConfig) error
	Ladder(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (Ladder, error)
}
