package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureDefaultTiers writes the default tier ladder for a tenant. Existing
// rows are left untouched so operator edits survive restarts.
func EnsureDefaultTiers(db *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id node is required")
	}
	if tenantID == 0 {
		return errors.New("seed tenant id is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rung := range tierdomain.DefaultLadder() {
			row := rung
			row.ID = node.Generate()
			row.TenantID = tenantID

			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "tier"}},
				DoNothing: true,
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
