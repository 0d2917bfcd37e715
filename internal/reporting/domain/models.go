package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
)

// TierCount is one row of the customers-by-tier breakdown.
type TierCount struct {
	Tier  tierdomain.Tier `json:"tier"`
	Count int64           `json:"count"`
}

// Overview summarizes the loyalty program from the denormalized customer
// projection and the ledger. Read-only; never part of the write path.
type Overview struct {
	TotalCustomers     int64       `json:"total_customers"`
	ActiveCustomers    int64       `json:"active_customers"`
	CustomersByTier    []TierCount `json:"customers_by_tier"`
	PointsIssued       int64       `json:"points_issued"`
	PointsRedeemed     int64       `json:"points_redeemed"`
	OutstandingBalance int64       `json:"outstanding_balance"`
}

// LeaderboardEntry ranks a customer by lifetime-earned points.
type LeaderboardEntry struct {
	CustomerID     snowflake.ID    `json:"customer_id"`
	Name           string          `json:"name"`
	Tier           tierdomain.Tier `json:"tier"`
	LifetimePoints int64           `json:"lifetime_points"`
	CurrentBalance int64           `json:"current_balance"`
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
	TopCustomers(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}
