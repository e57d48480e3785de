package inventory

import (
	"github.com/smallbiznis/spinwheel/internal/inventory/repository"
	"github.com/smallbiznis/spinwheel/internal/inventory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.ledger",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
