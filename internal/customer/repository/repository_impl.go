package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/customer/domain"
	"github.com/smallbiznis/loyalty/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM customers WHERE tenant_id = ? AND id = ?`,
		tenantID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.Customer, error) {
	stmt := tx.WithContext(ctx)
	// sqlite serializes writers itself and rejects FOR UPDATE.
	if tx.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}

	var customer domain.Customer
	err := stmt.
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Limit(1).
		Find(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) UpdateProjection(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, p domain.Projection) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers
		 SET current_balance = ?, lifetime_points = ?, tier = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		p.CurrentBalance,
		p.LifetimePoints,
		p.Tier,
		time.Now().UTC(),
		tenantID,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("tenant_id = ?", tenantID)
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.Tier != "" {
		stmt = stmt.Where("tier = ?", filter.Tier)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.ID != "" {
			afterID, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return nil, domain.ErrInvalidID
			}
			// Snowflake ids are time-ordered, so the id alone is a stable
			// cursor regardless of how the dialect stores timestamps.
			stmt = stmt.Where("id < ?", afterID)
		}
	}
	if page.PageSize > 0 {
		stmt = stmt.Limit(page.PageSize + 1)
	}
	err := stmt.
		Order("id desc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) FindBirthdays(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, day time.Time) ([]*domain.Customer, error) {
	monthDay := day.UTC().Format("01-02")

	var expr string
	switch db.Dialector.Name() {
	case "postgres":
		expr = `to_char(date_of_birth, 'MM-DD') = ?`
	case "mysql":
		expr = `DATE_FORMAT(date_of_birth, '%m-%d') = ?`
	default:
		expr = `strftime('%m-%d', date_of_birth) = ?`
	}

	var customers []*domain.Customer
	err := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("tenant_id = ? AND is_active = ? AND date_of_birth IS NOT NULL", tenantID, true).
		Where(expr, monthDay).
		Order("id asc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
