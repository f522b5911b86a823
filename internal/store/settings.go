package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/leafreadapp/leafread-server/internal/domain"
	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
)

// User settings are a singleton record. Reading before any write yields the
// defaults; fields absent from an older record also fall back to defaults.

// GetUserSettings returns the stored settings, or the defaults when none
// were ever saved.
func (s *Store) GetUserSettings(ctx context.Context) (*domain.UserSettings, error) {
	settings := domain.DefaultUserSettings()

	err := s.get([]byte(userSettingsKey), settings)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.DefaultUserSettings(), nil
	}
	if err != nil {
		return nil, apperrors.Persistence("get user settings", err)
	}

	if settings.FontSize == 0 {
		settings.FontSize = domain.DefaultUserSettings().FontSize
	}
	return settings, nil
}

// SaveUserSettings overwrites the settings record.
func (s *Store) SaveUserSettings(ctx context.Context, settings *domain.UserSettings) error {
	if err := s.set([]byte(userSettingsKey), settings); err != nil {
		return apperrors.Persistence("save user settings", err)
	}

	if s.logger != nil {
		s.logger.Debug("user settings saved",
			"dark_mode", settings.DarkMode,
			"font_size", settings.FontSize,
			"language", settings.Language,
		)
	}
	return nil
}
