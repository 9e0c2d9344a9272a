// Package providers contains the dependency injection providers.
package providers

import (
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/karlokarate/FishIT-Player-sub011/internal/config"
	"github.com/karlokarate/FishIT-Player-sub011/internal/logger"
)

// ProvideConfig loads the runtime configuration from flags, environment
// and .env file.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger builds the process logger from the configuration.
func ProvideLogger(i do.Injector) (*slog.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Logger.Level),
		Format: cfg.Logger.Format,
	})
	log.Info("engine starting",
		"data_path", cfg.Data.Path,
		"log_level", cfg.Logger.Level,
	)
	return log, nil
}
