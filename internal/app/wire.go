//go:build wireinject

package app

import (
	"adpulse/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(cfg *config.Config) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
