package domain

import "github.com/leafreadapp/leafread-server/internal/normalize"

// Font size bounds for the reader UI.
const (
	MinFontSize = 8
	MaxFontSize = 72
)

// UserSettings are the single-user application preferences. Exactly one
// record exists; reading it when nothing was ever saved yields the defaults.
type UserSettings struct {
	DarkMode bool   `json:"darkMode"`
	FontSize int    `json:"fontSize"`
	Language string `json:"language,omitempty"`
	// GeminiAPIKey is the user-supplied key for the content extraction
	// service. Stored locally, never logged.
	GeminiAPIKey string `json:"geminiApiKey,omitempty"`
}

// DefaultUserSettings returns the settings used before the user saves any.
func DefaultUserSettings() *UserSettings {
	return &UserSettings{
		DarkMode: false,
		FontSize: 16,
		Language: normalize.DefaultLanguage,
	}
}

// UserSettingsUpdate is a partial settings update. Nil fields are left
// unchanged; set fields are validated before being applied.
type UserSettingsUpdate struct {
	DarkMode     *bool   `json:"darkMode,omitempty"`
	FontSize     *int    `json:"fontSize,omitempty" validate:"omitempty,gte=8,lte=72"`
	Language     *string `json:"language,omitempty"`
	GeminiAPIKey *string `json:"geminiApiKey,omitempty"`
}

// Apply merges the update into the settings.
func (s *UserSettings) Apply(update UserSettingsUpdate) {
	if update.DarkMode != nil {
		s.DarkMode = *update.DarkMode
	}
	if update.FontSize != nil {
		s.FontSize = *update.FontSize
	}
	if update.Language != nil {
		s.Language = normalize.Language(*update.Language)
	}
	if update.GeminiAPIKey != nil {
		s.GeminiAPIKey = *update.GeminiAPIKey
	}
}
