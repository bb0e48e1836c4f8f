package config

import (
	"go.uber.org/fx"

	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	ConfigPath string `name:"configPath" optional:"true"`
}

// NewConfigProvider is an Fx provider that loads and provides *Config,
// and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadFromFile(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Scour.System.Logging.Level)
	return cfg, nil
}

// Module is an Fx module that provides the application configuration.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
