package entitlement

import (
	"github.com/MNhat168/careerhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideTable(cfg config.Config, log *zap.Logger) (*Table, error) {
	table, err := Load(cfg.EntitlementsFile)
	if err != nil {
		return nil, err
	}
	if cfg.EntitlementsFile != "" {
		log.Info("entitlement table loaded", zap.String("path", cfg.EntitlementsFile))
	}
	return table, nil
}

var Module = fx.Module("entitlement",
	fx.Provide(provideTable),
)
