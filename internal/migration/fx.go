package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/config"
	"github.com/smallbiznis/loyalty/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := autoMigrate(conn); err != nil {
			return err
		}

		if cfg.DefaultTenantID != 0 {
			return seed.EnsureDefaultTiers(conn, node, snowflake.ID(cfg.DefaultTenantID))
		}
		return nil
	}),
)
