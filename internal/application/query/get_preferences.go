package query

import (
	"context"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PREFERENCES / GET FAVORITES
// ══════════════════════════════════════════════════════════════════════════════

// GetPreferencesHandler returns stored preferences or the defaults.
type GetPreferencesHandler struct {
	profiles ProfileSource
	repo     preferences.Repository
}

// NewGetPreferencesHandler creates a GetPreferencesHandler.
func NewGetPreferencesHandler(profiles ProfileSource, repo preferences.Repository) *GetPreferencesHandler {
	return &GetPreferencesHandler{profiles: profiles, repo: repo}
}

// Handle загружает настройки инициатора.
func (h *GetPreferencesHandler) Handle(ctx context.Context, cred player.Credential) (preferences.MatchingPreferences, error) {
	id, err := requesterID(ctx, h.profiles, cred, "GetPreferences")
	if err != nil {
		return preferences.MatchingPreferences{}, err
	}
	return h.repo.Load(ctx, id), nil
}

// GetFavoritesHandler returns the favorites list, never nil.
type GetFavoritesHandler struct {
	profiles  ProfileSource
	favorites preferences.FavoritesRepository
}

// NewGetFavoritesHandler creates a GetFavoritesHandler.
func NewGetFavoritesHandler(profiles ProfileSource, favorites preferences.FavoritesRepository) *GetFavoritesHandler {
	return &GetFavoritesHandler{profiles: profiles, favorites: favorites}
}

// Handle возвращает список избранных или пустой список.
func (h *GetFavoritesHandler) Handle(ctx context.Context, cred player.Credential) ([]string, error) {
	id, err := requesterID(ctx, h.profiles, cred, "GetFavorites")
	if err != nil {
		return nil, err
	}
	return h.favorites.List(ctx, id), nil
}

func requesterID(ctx context.Context, profiles ProfileSource, cred player.Credential, op string) (string, error) {
	p, err := profiles.Resolve(ctx, cred)
	if err != nil || p == nil || p.ID == "" {
		return "", shared.WrapError("preferences", op, shared.ErrUnauthorized, "unknown requester", err)
	}
	return p.ID, nil
}
