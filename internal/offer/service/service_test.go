package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/loyalty/internal/clock"
	"github.com/smallbiznis/loyalty/internal/offer/domain"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupOfferService(t *testing.T, fake *clock.FakeClock) (domain.Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&domain.LoyaltyOffer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
	})
	return svc, node
}

func TestListOffersFiltersByTierAndWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, node := setupOfferService(t, fake)
	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	mk := func(name string, tier tierdomain.Tier, start, end time.Time, active bool) {
		t.Helper()
		_, err := svc.Create(ctx, domain.CreateOfferRequest{
			Name:          name,
			RequiredTier:  tier,
			OfferType:     domain.OfferTypeDiscountPercent,
			DiscountValue: 10,
			StartDate:     start,
			EndDate:       end,
			IsActive:      &active,
		})
		require.NoError(t, err)
	}

	mk("everyone", tierdomain.TierBronze, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1), true)
	mk("gold only", tierdomain.TierGold, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1), true)
	mk("expired", tierdomain.TierBronze, now.AddDate(0, -2, 0), now.AddDate(0, -1, 0), true)
	mk("upcoming", tierdomain.TierBronze, now.AddDate(0, 1, 0), now.AddDate(0, 2, 0), true)
	mk("inactive", tierdomain.TierBronze, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1), false)

	silver, err := svc.List(ctx, domain.ListOffersRequest{Tier: tierdomain.TierSilver})
	require.NoError(t, err)
	require.Len(t, silver, 1)
	require.Equal(t, "everyone", silver[0].Name)

	gold, err := svc.List(ctx, domain.ListOffersRequest{Tier: tierdomain.TierGold})
	require.NoError(t, err)
	require.Len(t, gold, 2)

	// Admin listings ignore window, state and tier gating.
	admin, err := svc.List(ctx, domain.ListOffersRequest{Admin: true})
	require.NoError(t, err)
	require.Len(t, admin, 5)
}

func TestCreateOfferValidatesWindow(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, node := setupOfferService(t, fake)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	_, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:         "backwards window",
		RequiredTier: tierdomain.TierBronze,
		OfferType:    domain.OfferTypeFreeProduct,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, -1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestDeactivateOfferScopedToTenant(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, node := setupOfferService(t, fake)
	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	offer, err := svc.Create(ctx, domain.CreateOfferRequest{
		Name:         "flash sale",
		RequiredTier: tierdomain.TierBronze,
		OfferType:    domain.OfferTypeDiscountFixed,
		StartDate:    now,
		EndDate:      now.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	otherCtx := tenantctx.WithTenantID(context.Background(), node.Generate())
	_, err = svc.Deactivate(otherCtx, offer.ID.String())
	require.ErrorIs(t, err, domain.ErrNotFound)

	deactivated, err := svc.Deactivate(ctx, offer.ID.String())
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)
}
