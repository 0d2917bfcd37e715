package migration

import (
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	loyaltydomain "github.com/smallbiznis/loyalty/internal/loyalty/domain"
	offerdomain "github.com/smallbiznis/loyalty/internal/offer/domain"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"gorm.io/gorm"
)

// autoMigrate covers mysql and sqlite deployments, where the embedded
// postgres migration set does not apply.
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&customerdomain.Customer{},
		&loyaltydomain.PointsTransaction{},
		&loyaltydomain.LoyaltyReward{},
		&loyaltydomain.Settings{},
		&tierdomain.TierConfig{},
		&offerdomain.LoyaltyOffer{},
	)
}
