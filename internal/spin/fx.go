package spin

import (
	"github.com/smallbiznis/spinwheel/internal/spin/repository"
	"github.com/smallbiznis/spinwheel/internal/spin/service"
	"go.uber.org/fx"
)

var Module = fx.Module("spin.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
