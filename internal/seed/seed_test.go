package seed

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEnsureDefaultTiersIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&tierdomain.TierConfig{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	tenantID := node.Generate()

	require.NoError(t, EnsureDefaultTiers(db, node, tenantID))

	// Operator edits must survive a re-run.
	require.NoError(t, db.Exec(
		`UPDATE tier_configs SET minimum_lifetime_points = ? WHERE tenant_id = ? AND tier = ?`,
		750, tenantID, tierdomain.TierSilver,
	).Error)
	require.NoError(t, EnsureDefaultTiers(db, node, tenantID))

	var count int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM tier_configs WHERE tenant_id = ?`, tenantID,
	).Scan(&count).Error)
	require.EqualValues(t, len(tierdomain.DefaultLadder()), count)

	var minimum int64
	require.NoError(t, db.Raw(
		`SELECT minimum_lifetime_points FROM tier_configs WHERE tenant_id = ? AND tier = ?`,
		tenantID, tierdomain.TierSilver,
	).Scan(&minimum).Error)
	require.EqualValues(t, 750, minimum)
}

func TestEnsureDefaultTiersRequiresNode(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.Error(t, EnsureDefaultTiers(db, nil, node.Generate()))
	require.Error(t, EnsureDefaultTiers(nil, node, node.Generate()))
	require.Error(t, EnsureDefaultTiers(db, node, 0))
}
