// Package di provides dependency injection configuration for the Leafread server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/leafreadapp/leafread-server/internal/config"
	"github.com/leafreadapp/leafread-server/internal/di/providers"
	"github.com/leafreadapp/leafread-server/internal/logger"
	"github.com/leafreadapp/leafread-server/internal/service"
	"github.com/leafreadapp/leafread-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Extraction layer
	do.Provide(injector, providers.ProvideExtractClient)

	// Business services
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideSettingsService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is running.
// This triggers lazy initialization of all core services; a store that
// cannot open (unusable path, or another session holding the directory
// lock) surfaces here.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.ExtractClientHandle](injector)

	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.SettingsService](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Catch the index up with records written while search was unavailable.
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
