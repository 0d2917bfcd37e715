package service

import (
	"context"
	"errors"

	"github.com/smallbiznis/loyalty/internal/reporting/domain"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidTenant = errors.New("invalid_tenant")

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("reporting.service"),
	}
}

func (s *Service) Overview(ctx context.Context) (domain.Overview, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Overview{}, ErrInvalidTenant
	}

	var overview domain.Overview

	var head struct {
		TotalCustomers     int64
		ActiveCustomers    int64
		OutstandingBalance int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT
			COUNT(*) AS total_customers,
			COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active_customers,
			COALESCE(SUM(current_balance), 0) AS outstanding_balance
		 FROM customers WHERE tenant_id = ?`,
		tenantID,
	).Scan(&head).Error
	if err != nil {
		return domain.Overview{}, err
	}
	overview.TotalCustomers = head.TotalCustomers
	overview.ActiveCustomers = head.ActiveCustomers
	overview.OutstandingBalance = head.OutstandingBalance

	var byTier []domain.TierCount
	err = s.db.WithContext(ctx).Raw(
		`SELECT tier, COUNT(*) AS count
		 FROM customers WHERE tenant_id = ?
		 GROUP BY tier`,
		tenantID,
	).Scan(&byTier).Error
	if err != nil {
		return domain.Overview{}, err
	}
	overview.CustomersByTier = byTier

	var totals struct {
		Issued   int64
		Redeemed int64
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN points > 0 THEN points ELSE 0 END), 0) AS issued,
			COALESCE(SUM(CASE WHEN points < 0 THEN -points ELSE 0 END), 0) AS redeemed
		 FROM points_transactions WHERE tenant_id = ?`,
		tenantID,
	).Scan(&totals).Error
	if err != nil {
		return domain.Overview{}, err
	}
	overview.PointsIssued = totals.Issued
	overview.PointsRedeemed = totals.Redeemed

	return overview, nil
}

func (s *Service) TopCustomers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, ErrInvalidTenant
	}

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var entries []domain.LeaderboardEntry
	err := s.db.WithContext(ctx).Raw(
		`SELECT id AS customer_id, name, tier, lifetime_points, current_balance
		 FROM customers
		 WHERE tenant_id = ? AND is_active = ?
		 ORDER BY lifetime_points DESC, id ASC
		 LIMIT ?`,
		tenantID,
		true,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}
