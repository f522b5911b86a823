package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/leafreadapp/leafread-server/internal/config"
	"github.com/leafreadapp/leafread-server/internal/logger"
	"github.com/leafreadapp/leafread-server/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the versioned book store. The DI container holds the
// single store handle for the process; every consumer shares it, so the
// schema migration runs exactly once per startup.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.BasePath, "db")
	db, err := store.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Store initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}
