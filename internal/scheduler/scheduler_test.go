package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/loyalty/internal/clock"
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	customerrepo "github.com/smallbiznis/loyalty/internal/customer/repository"
	loyaltydomain "github.com/smallbiznis/loyalty/internal/loyalty/domain"
	loyaltyservice "github.com/smallbiznis/loyalty/internal/loyalty/service"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	tierrepo "github.com/smallbiznis/loyalty/internal/tier/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go.uber.org/zap"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func setupSchedulerDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	err = db.AutoMigrate(
		&customerdomain.Customer{},
		&loyaltydomain.PointsTransaction{},
		&loyaltydomain.LoyaltyReward{},
		&loyaltydomain.Settings{},
		&tierdomain.TierConfig{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db, mustNode(t)
}

func seedBirthdayCustomer(t *testing.T, db *gorm.DB, node *snowflake.Node, tenantID snowflake.ID, dob time.Time, active bool) snowflake.ID {
	t.Helper()

	customer := customerdomain.Customer{
		ID:          node.Generate(),
		TenantID:    tenantID,
		Name:        "Birthday Customer",
		Email:       "birthday@example.com",
		DateOfBirth: &dob,
		IsActive:    active,
		Tier:        tierdomain.TierBronze,
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer.ID
}

func newTestScheduler(t *testing.T, db *gorm.DB, node *snowflake.Node, fake *clock.FakeClock, loyaltySvc loyaltydomain.Service) *Scheduler {
	t.Helper()

	sched, err := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		LoyaltySvc:   loyaltySvc,
		CustomerRepo: customerrepo.Provide(),
		Clock:        fake,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func newLoyaltyService(t *testing.T, db *gorm.DB, node *snowflake.Node, fake *clock.FakeClock) loyaltydomain.Service {
	t.Helper()
	return loyaltyservice.New(loyaltyservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		CustomerRepo: customerrepo.Provide(),
		TierRepo:     tierrepo.Provide(),
	})
}

func TestBirthdayBonusRunIsIdempotent(t *testing.T) {
	db, node := setupSchedulerDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 10, 4, 2, 0, 0, 0, time.UTC))
	tenantID := node.Generate()

	dob := time.Date(1990, 10, 4, 0, 0, 0, 0, time.UTC)
	matching := seedBirthdayCustomer(t, db, node, tenantID, dob, true)
	seedBirthdayCustomer(t, db, node, tenantID, time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC), true)
	seedBirthdayCustomer(t, db, node, tenantID, dob, false)

	sched := newTestScheduler(t, db, node, fake, newLoyaltyService(t, db, node, fake))

	first, err := sched.RunBirthdayBonuses(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 tenant result, got %d", len(first))
	}
	if first[0].AwardedCount != 1 || first[0].SkippedCount != 0 || first[0].FailedCount != 0 {
		t.Fatalf("expected 1 award, got %+v", first[0])
	}
	if first[0].Results[0].CustomerID != matching {
		t.Fatalf("awarded the wrong customer: %+v", first[0].Results[0])
	}

	// Overlapping second run for the same day only skips.
	second, err := sched.RunBirthdayBonuses(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second[0].AwardedCount != 0 || second[0].SkippedCount != 1 {
		t.Fatalf("expected idempotent second run, got %+v", second[0])
	}

	var rows int64
	err = db.Raw(
		`SELECT COUNT(*) FROM points_transactions WHERE customer_id = ? AND type = ?`,
		matching, loyaltydomain.TransactionTypeBirthdayBonus,
	).Scan(&rows).Error
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected exactly 1 bonus row after two runs, got %d", rows)
	}
}

type failingLoyaltyStub struct {
	failFor snowflake.ID
	calls   int
}

func (s *failingLoyaltyStub) AwardForSale(context.Context, loyaltydomain.AwardRequest) (loyaltydomain.AwardResult, error) {
	return loyaltydomain.AwardResult{}, nil
}

func (s *failingLoyaltyStub) Redeem(context.Context, loyaltydomain.RedeemRequest) (loyaltydomain.RedeemResult, error) {
	return loyaltydomain.RedeemResult{}, nil
}

func (s *failingLoyaltyStub) Adjust(context.Context, loyaltydomain.AdjustRequest) (loyaltydomain.AdjustResult, error) {
	return loyaltydomain.AdjustResult{}, nil
}

func (s *failingLoyaltyStub) AwardBirthdayBonus(ctx context.Context, customerID snowflake.ID, day time.Time) (loyaltydomain.BirthdayBonusResult, error) {
	s.calls++
	if customerID == s.failFor {
		return loyaltydomain.BirthdayBonusResult{}, errors.New("boom")
	}
	return loyaltydomain.BirthdayBonusResult{
		CustomerID:    customerID,
		PointsAwarded: 50,
	}, nil
}

func (s *failingLoyaltyStub) Balance(context.Context, string) (loyaltydomain.BalanceResult, error) {
	return loyaltydomain.BalanceResult{}, nil
}

func (s *failingLoyaltyStub) History(context.Context, loyaltydomain.HistoryRequest) (loyaltydomain.HistoryResponse, error) {
	return loyaltydomain.HistoryResponse{}, nil
}

func (s *failingLoyaltyStub) GetSettings(context.Context) (loyaltydomain.Settings, error) {
	return loyaltydomain.Settings{}, nil
}

func (s *failingLoyaltyStub) UpdateSettings(context.Context, loyaltydomain.UpdateSettingsRequest) (loyaltydomain.Settings, error) {
	return loyaltydomain.Settings{}, nil
}

func TestBirthdayBonusFailureDoesNotAbortSiblings(t *testing.T) {
	db, node := setupSchedulerDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 10, 4, 2, 0, 0, 0, time.UTC))
	tenantID := node.Generate()

	dob := time.Date(1990, 10, 4, 0, 0, 0, 0, time.UTC)
	first := seedBirthdayCustomer(t, db, node, tenantID, dob, true)
	second := seedBirthdayCustomer(t, db, node, tenantID, dob, true)
	third := seedBirthdayCustomer(t, db, node, tenantID, dob, true)

	stub := &failingLoyaltyStub{failFor: second}
	sched := newTestScheduler(t, db, node, fake, stub)

	results, err := sched.RunBirthdayBonuses(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	run := results[0]
	if run.AwardedCount != 2 {
		t.Fatalf("expected 2 awards, got %+v", run)
	}
	if run.FailedCount != 1 {
		t.Fatalf("expected 1 failure, got %+v", run)
	}
	if stub.calls != 3 {
		t.Fatalf("expected all 3 customers attempted, got %d", stub.calls)
	}

	for _, item := range run.Results {
		switch item.CustomerID {
		case first, third:
			if item.Error != "" {
				t.Fatalf("expected success for %s: %+v", item.CustomerID, item)
			}
		case second:
			if item.Error == "" {
				t.Fatalf("expected recorded error for %s", item.CustomerID)
			}
		}
	}
}

func TestRunBirthdayBonusesAllTenants(t *testing.T) {
	db, node := setupSchedulerDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 10, 4, 2, 0, 0, 0, time.UTC))
	tenantA := node.Generate()
	tenantB := node.Generate()

	dob := time.Date(1990, 10, 4, 0, 0, 0, 0, time.UTC)
	seedBirthdayCustomer(t, db, node, tenantA, dob, true)
	seedBirthdayCustomer(t, db, node, tenantB, dob, true)

	sched := newTestScheduler(t, db, node, fake, newLoyaltyService(t, db, node, fake))

	results, err := sched.RunBirthdayBonuses(context.Background(), 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both tenants, got %d", len(results))
	}
	for _, run := range results {
		if run.AwardedCount != 1 {
			t.Fatalf("expected 1 award for tenant %s, got %+v", run.TenantID, run)
		}
	}
}
