package entitylock

import (
	"github.com/smallbiznis/faktur/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("entitylock",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Manager {
		return NewManager(cfg.LockTimeout, log)
	}),
)
