// Package di wires the engine's components into a samber/do container.
package di

import (
	"github.com/samber/do/v2"

	"github.com/karlokarate/FishIT-Player-sub011/internal/di/providers"
)

// NewContainer creates the DI container with all providers registered.
// Construction is lazy; nothing opens until first invoked.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage and search
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Engine
	do.Provide(injector, providers.ProvideMatchPolicy)
	do.Provide(injector, providers.ProvideWriter)
	do.Provide(injector, providers.ProvideReconciler)
	do.Provide(injector, providers.ProvideScanner)

	return injector
}
