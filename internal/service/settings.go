package service

import (
	"context"
	"log/slog"

	"github.com/leafreadapp/leafread-server/internal/domain"
	"github.com/leafreadapp/leafread-server/internal/store"
	"github.com/leafreadapp/leafread-server/internal/validation"
)

// SettingsService manages the single-user application settings.
type SettingsService struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store *store.Store, validator *validation.Validator, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// GetSettings returns the saved settings, or the defaults if none exist.
func (s *SettingsService) GetSettings(ctx context.Context) (*domain.UserSettings, error) {
	return s.store.GetUserSettings(ctx)
}

// UpdateSettings validates and applies a partial update, then persists the
// merged record. Nil fields keep their current values.
func (s *SettingsService) UpdateSettings(ctx context.Context, update domain.UserSettingsUpdate) (*domain.UserSettings, error) {
	if err := s.validator.Validate(update); err != nil {
		return nil, err
	}

	current, err := s.store.GetUserSettings(ctx)
	if err != nil {
		return nil, err
	}

	current.Apply(update)

	if err := s.store.SaveUserSettings(ctx, current); err != nil {
		return nil, err
	}

	// The API key never reaches the log.
	s.logger.Info("settings updated",
		"dark_mode", current.DarkMode,
		"font_size", current.FontSize,
		"language", current.Language,
		"has_api_key", current.GeminiAPIKey != "",
	)
	return current, nil
}
