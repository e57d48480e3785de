package session

import (
	"github.com/smallbiznis/spinwheel/internal/session/repository"
	"github.com/smallbiznis/spinwheel/internal/session/service"
	"go.uber.org/fx"
)

var Module = fx.Module("session.gate",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
