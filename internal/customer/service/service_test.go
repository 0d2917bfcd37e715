package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/loyalty/internal/customer/domain"
	"github.com/smallbiznis/loyalty/internal/customer/repository"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupCustomerService(t *testing.T) (domain.Service, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestCreateCustomerDefaults(t *testing.T) {
	svc, node := setupCustomerService(t)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
	require.True(t, customer.IsActive)
	require.Equal(t, tierdomain.TierBronze, customer.Tier)
	require.Zero(t, customer.CurrentBalance)
	require.Zero(t, customer.LifetimePoints)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc, node := setupCustomerService(t)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Email: "ada@example.com"})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Ada", Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Ada", Email: "ada@example.com"})
	require.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestGetCustomerScopedToTenant(t *testing.T) {
	svc, node := setupCustomerService(t)
	tenantID := node.Generate()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.NoError(t, err)
	require.Equal(t, customer.ID, got.ID)

	otherCtx := tenantctx.WithTenantID(context.Background(), node.Generate())
	_, err = svc.GetByID(otherCtx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeactivateCustomer(t *testing.T) {
	svc, node := setupCustomerService(t)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)

	deactivated, err := svc.Deactivate(ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: customer.ID.String()})
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestListCustomersPagination(t *testing.T) {
	svc, node := setupCustomerService(t)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{
			Name:  fmt.Sprintf("Customer %d", i),
			Email: fmt.Sprintf("customer%d@example.com", i),
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page.Customers, 3)
	require.True(t, page.HasMore)
	require.NotEmpty(t, page.NextPageToken)

	all, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 50})
	require.NoError(t, err)
	require.Len(t, all.Customers, 5)
	require.False(t, all.HasMore)
}

func TestListCustomersPagesDoNotOverlap(t *testing.T) {
	svc, node := setupCustomerService(t)
	ctx := tenantctx.WithTenantID(context.Background(), node.Generate())

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{
			Name:  fmt.Sprintf("Customer %d", i),
			Email: fmt.Sprintf("customer%d@example.com", i),
		})
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	token := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "pagination did not terminate")

		page, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: token})
		require.NoError(t, err)
		for _, customer := range page.Customers {
			require.False(t, seen[customer.ID.String()], "customer %s served on more than one page", customer.ID)
			seen[customer.ID.String()] = true
		}
		if !page.HasMore {
			break
		}
		token = page.NextPageToken
	}

	require.Len(t, seen, 5)
}
