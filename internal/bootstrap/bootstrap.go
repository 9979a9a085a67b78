package bootstrap

import (
	"fmt"

	"go-modguard/internal/config"
	"go-modguard/internal/database"
	"go-modguard/internal/logging"
)

type Bootstrap struct {
	Config      *config.Config
	Components  *Components
	initialized bool
}

func New(cfg *config.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

func (b *Bootstrap) Initialize() error {
	if err := b.initializeLogging(); err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}

	db, err := database.Open(b.Config.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	logging.Info("[BOOT] Database opened at %s", b.Config.Storage.DatabasePath)

	if err := Wire(b, db); err != nil {
		db.Close()
		return fmt.Errorf("component wiring failed: %w", err)
	}

	b.initialized = true
	logging.Info("[BOOT] Bootstrap complete")
	return nil
}

func (b *Bootstrap) initializeLogging() error {
	return logging.InitGlobalLogger(logging.ParseLevel(b.Config.Logging.Level), b.Config.Logging.Path)
}
