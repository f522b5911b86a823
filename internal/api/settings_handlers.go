package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/leafreadapp/leafread-server/internal/domain"
	"github.com/leafreadapp/leafread-server/internal/http/response"
)

// handleGetSettings returns the user settings, defaults included.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsService.GetSettings(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, settings, s.logger)
}

// handleUpdateSettings applies a partial settings update.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update domain.UserSettingsUpdate
	if err := json.UnmarshalRead(r.Body, &update); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	settings, err := s.settingsService.UpdateSettings(r.Context(), update)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, settings, s.logger)
}
