package providers

import (
	"github.com/samber/do/v2"

	"github.com/leafreadapp/leafread-server/internal/config"
	"github.com/leafreadapp/leafread-server/internal/extract"
	"github.com/leafreadapp/leafread-server/internal/logger"
)

// ExtractClientHandle wraps the extraction client with shutdown capability.
type ExtractClientHandle struct {
	*extract.Client
}

// Shutdown implements do.Shutdownable.
func (h *ExtractClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideExtractClient provides the rate-limited content extraction client.
func ProvideExtractClient(i do.Injector) (*ExtractClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := extract.New(extract.Config{
		Endpoint:          cfg.Extract.Endpoint,
		Model:             cfg.Extract.Model,
		Timeout:           cfg.Extract.Timeout,
		RequestsPerMinute: cfg.Extract.RequestsPerMinute,
	}, log.Logger)

	log.Info("Extraction client ready",
		"endpoint", cfg.Extract.Endpoint,
		"model", cfg.Extract.Model,
		"rpm", cfg.Extract.RequestsPerMinute,
	)

	return &ExtractClientHandle{Client: client}, nil
}
