// Package app assembles the HTTP service from configuration.
package app

import (
	"context"
	"fmt"

	"adpulse/internal/config"
	"adpulse/internal/logger"
	apihttp "adpulse/internal/transport/http/api"
)

// App owns the HTTP server and the resources it needs.
type App struct {
	cfg     *config.Config
	server  *apihttp.Server
	Summary *StartupSummary
	cleanup func()
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	app, cleanup, err := buildAppWithWire(cfg)
	if err != nil {
		return nil, err
	}
	app.cleanup = cleanup
	return app, nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	return a.server.Start(ctx)
}

// Close releases the ledger.
func (a *App) Close() {
	if a != nil && a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}
