package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/logger"
)

// FavoritesStore persists the set of favorited players as a JSON list.
// Read-modify-write without locking: concurrent adds race, last write wins.
type FavoritesStore struct {
	store    Store
	logger   *slog.Logger
	failures FailureRecorder
}

// NewFavoritesStore creates a FavoritesStore. failures may be nil.
func NewFavoritesStore(store Store, logger *slog.Logger, failures FailureRecorder) *FavoritesStore {
	if logger == nil {
		logger = slog.Default()
	}
	if failures == nil {
		failures = nopFailures{}
	}
	return &FavoritesStore{
		store:    store,
		logger:   logger.With("component", "favorites_store"),
		failures: failures,
	}
}

var _ preferences.FavoritesRepository = (*FavoritesStore)(nil)

// List returns the favorites or an empty list.
func (s *FavoritesStore) List(ctx context.Context, playerID string) []string {
	ids, err := GetJSON[[]string](ctx, s.store, PlayerKey(playerID, preferences.KeyFavoritePlayers))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.failures.StoreError("list_favorites")
			s.logger.Warn("load favorites failed", logger.PlayerID(playerID), "error", err)
		}
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// Add appends favoriteID unless it is already present and returns the list.
func (s *FavoritesStore) Add(ctx context.Context, playerID, favoriteID string) ([]string, error) {
	favoriteID = strings.TrimSpace(favoriteID)
	if favoriteID == "" {
		return nil, shared.ErrInvalidPlayerID
	}

	ids := s.List(ctx, playerID)
	if slices.Contains(ids, favoriteID) {
		return ids, nil
	}
	ids = append(ids, favoriteID)

	if err := SetJSON(ctx, s.store, PlayerKey(playerID, preferences.KeyFavoritePlayers), ids, 0); err != nil {
		s.failures.StoreError("add_favorite")
		return nil, fmt.Errorf("save favorites: %w", err)
	}
	return ids, nil
}
