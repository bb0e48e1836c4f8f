package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// LoadFromBytes builds a Config from raw YAML: defaults first, then the YAML
// document, then environment variable overrides.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := NewConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, exception.NewConfigError(moduleName, "", "failed to unmarshal config YAML", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads a Config from a YAML file. A .env file, when present,
// is loaded first so its variables participate in the override pass.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	if path == "" {
		return LoadFromBytes(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exception.NewConfigError(moduleName, "", "failed to read config file "+path, err)
	}
	return LoadFromBytes(data)
}

// applyEnvOverrides overrides selected settings from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCOUR_LOG_LEVEL"); v != "" {
		cfg.Scour.System.Logging.Level = v
	}
	if v := os.Getenv("SCOUR_NAMING_CONVENTION"); v != "" {
		cfg.Scour.Pipeline.Naming = NamingConvention(v)
	}
	if v := os.Getenv("SCOUR_MAX_ERROR_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scour.Pipeline.Thresholds.MaxErrorRate = f
		} else {
			logger.Warnf("Ignoring non-numeric SCOUR_MAX_ERROR_RATE %q: %v", v, err)
		}
	}
	if v := os.Getenv("SCOUR_MAX_WARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scour.Pipeline.Thresholds.MaxWarningRate = f
		} else {
			logger.Warnf("Ignoring non-numeric SCOUR_MAX_WARNING_RATE %q: %v", v, err)
		}
	}
}
