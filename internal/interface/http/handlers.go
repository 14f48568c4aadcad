package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/halisaha/teammatch/internal/application/command"
	"github.com/halisaha/teammatch/internal/application/query"
	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCHES
// ══════════════════════════════════════════════════════════════════════════════

// handleFindTeammates handles GET /api/v1/matches.
// Неудачный подбор тоже отдаётся с 200: причина лежит в message.
func (s *Server) handleFindTeammates(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Matcher.Handle(r.Context(), query.FindTeammatesQuery{Credential: bearer(r)})
	if errors.Is(err, shared.ErrStaleRun) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(JSONResponse{
			Data:      result,
			Error:     &APIError{Code: "stale_run", Message: "a newer matching run has already completed"},
			RequestID: middleware.GetReqID(r.Context()),
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeResult(w, r, result)
}

// handleLatestMatch handles GET /api/v1/matches/latest.
func (s *Server) handleLatestMatch(w http.ResponseWriter, r *http.Request) {
	result, ok := s.deps.Matcher.Latest(bearer(r))
	if !ok {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "no matching result yet")
		return
	}
	writeResult(w, r, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.deps.PreferencesReader.Handle(r.Context(), bearer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

// handleUpdatePreferences handles PATCH /api/v1/preferences with a partial body.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch preferences.Patch
	if !s.decode(w, r, &patch) {
		return
	}
	prefs, err := s.deps.PreferencesWriter.Handle(r.Context(), command.UpdatePreferencesCommand{
		Credential: bearer(r),
		Patch:      patch,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

type adjustRequest struct {
	Field     preferences.Field     `json:"field"`
	Direction preferences.Direction `json:"direction"`
}

func (s *Server) handleAdjustPreference(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if !s.decode(w, r, &req) {
		return
	}
	prefs, err := s.deps.PreferencesWriter.Adjust(r.Context(), command.AdjustPreferenceCommand{
		Credential: bearer(r),
		Field:      req.Field,
		Direction:  req.Direction,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAVORITES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.FavoritesReader.Handle(r.Context(), bearer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"favoritePlayers": ids})
}

type addFavoriteRequest struct {
	PlayerID string `json:"playerId"`
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var req addFavoriteRequest
	if !s.decode(w, r, &req) {
		return
	}
	ids, err := s.deps.FavoriteAdder.Handle(r.Context(), command.AddFavoriteCommand{
		Credential: bearer(r),
		PlayerID:   strings.TrimSpace(req.PlayerID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"favoritePlayers": ids})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// bearer returns the session credential; an absent header yields an empty one.
func bearer(r *http.Request) player.Credential {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return player.Credential(strings.TrimSpace(token))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}

// writeError maps domain error kinds onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"error", err,
		)
		writeJSONError(w, r, status, code, http.StatusText(status))
		return
	}
	writeJSONError(w, r, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_format"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsExternalService(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
