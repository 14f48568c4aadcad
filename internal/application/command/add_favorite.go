package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD FAVORITE COMMAND
// Добавляет игрока в избранное. Повторное добавление ничего не меняет.
// ══════════════════════════════════════════════════════════════════════════════

// AddFavoriteCommand adds PlayerID to the requester's favorites.
type AddFavoriteCommand struct {
	Credential player.Credential
	PlayerID   string
}

// AddFavoriteHandler handles AddFavoriteCommand.
type AddFavoriteHandler struct {
	profiles  ProfileSource
	favorites preferences.FavoritesRepository
	logger    *slog.Logger
}

// NewAddFavoriteHandler creates a new AddFavoriteHandler.
func NewAddFavoriteHandler(profiles ProfileSource, favorites preferences.FavoritesRepository, logger *slog.Logger) *AddFavoriteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddFavoriteHandler{
		profiles:  profiles,
		favorites: favorites,
		logger:    logger.With("component", "add_favorite"),
	}
}

// Handle adds the favorite and returns the updated list.
func (h *AddFavoriteHandler) Handle(ctx context.Context, cmd AddFavoriteCommand) ([]string, error) {
	if strings.TrimSpace(cmd.PlayerID) == "" {
		return nil, shared.ErrInvalidPlayerID
	}
	id, err := requesterID(ctx, h.profiles, cmd.Credential, "AddFavorite")
	if err != nil {
		return nil, err
	}

	ids, err := h.favorites.Add(ctx, id, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}

	h.logger.Info("favorite added", logger.PlayerID(id), "favorite_id", cmd.PlayerID, "total", len(ids))
	return ids, nil
}
