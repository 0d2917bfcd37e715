package loyalty

import (
	"github.com/smallbiznis/loyalty/internal/loyalty/service"
	"go.uber.org/fx"
)

var Module = fx.Module("loyalty.service",
	fx.Provide(service.New),
)
