package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyalty/internal/clock"
	"github.com/smallbiznis/loyalty/internal/config"
	"github.com/smallbiznis/loyalty/internal/customer"
	"github.com/smallbiznis/loyalty/internal/loyalty"
	"github.com/smallbiznis/loyalty/internal/migration"
	"github.com/smallbiznis/loyalty/internal/observability"
	"github.com/smallbiznis/loyalty/internal/scheduler"
	"github.com/smallbiznis/loyalty/internal/tier"
	"github.com/smallbiznis/loyalty/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by the jobs
		customer.Module,
		tier.Module,
		loyalty.Module,

		// No server module!
		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
