package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"gorm.io/datatypes"
)

// Customer carries the denormalized loyalty projection (current balance,
// lifetime-earned points, tier) alongside the profile fields. Balance and
// tier are mutated only as a side effect of a ledger append.
type Customer struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	Name           string            `gorm:"not null" json:"name"`
	Email          string            `gorm:"not null" json:"email"`
	DateOfBirth    *time.Time        `json:"date_of_birth,omitempty"`
	IsActive       bool              `gorm:"not null;default:true" json:"is_active"`
	CurrentBalance int64             `gorm:"not null;default:0" json:"current_balance"`
	LifetimePoints int64             `gorm:"not null;default:0" json:"lifetime_points"`
	Tier           tierdomain.Tier   `gorm:"type:text;not null;default:'bronze'" json:"tier"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
