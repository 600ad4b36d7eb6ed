// Package providers registers the ingest server's services with the
// samber/do injector. Handles that own goroutines or files implement
// do.Shutdownable.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/logger"
)

// ProvideConfig loads configuration from flags, environment and the
// optional TOML file.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger builds the process logger. Development builds log source
// locations.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	dev := cfg.App.Environment == "development"

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   dev,
		Environment: cfg.App.Environment,
	})

	inbox := cfg.Storage.InboxPath
	if inbox == "" {
		inbox = "disabled"
	}
	log.Info("Starting ListenUp Ingest",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"media", cfg.Storage.MediaPath,
		"database", cfg.Storage.DatabasePath,
		"inbox", inbox,
		"listen", cfg.Server.Port,
	)
	return log, nil
}
