package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/db/pagination"
	"gorm.io/gorm"
)

// Projection is the loyalty state written back to the customer row inside
// the same transaction as a ledger append.
type Projection struct {
	CurrentBalance int64
	LifetimePoints int64
	Tier           tierdomain.Tier
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Customer, error)
	// FindForUpdate locks the customer row for the duration of tx. The lock
	// is the serialization point for all balance-affecting writes.
	FindForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*Customer, error)
	UpdateProjection(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, p Projection) error
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	// FindBirthdays returns active customers whose birth month/day matches day.
	FindBirthdays(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, day time.Time) ([]*Customer, error)
}
