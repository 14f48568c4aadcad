// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/timeutil"
	"github.com/halisaha/teammatch/pkg/logger"
)

// ProfileSource resolves the requester profile for a credential.
type ProfileSource interface {
	Resolve(ctx context.Context, cred player.Credential) (*player.Player, error)
}

// requesterID resolves the player that owns the credential.
func requesterID(ctx context.Context, profiles ProfileSource, cred player.Credential, op string) (string, error) {
	if cred.IsEmpty() {
		return "", shared.NewDomainError("preferences", op, shared.ErrUnauthorized, "credential is required")
	}
	p, err := profiles.Resolve(ctx, cred)
	if err != nil || p == nil || p.ID == "" {
		return "", shared.WrapError("preferences", op, shared.ErrUnauthorized, "unknown requester", err)
	}
	return p.ID, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Частичное обновление настроек подбора. Поля, которых нет в команде,
// берутся из последних загруженных настроек.
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesCommand contains the data to update preferences.
type UpdatePreferencesCommand struct {
	Credential player.Credential

	// Patch - только изменяемые поля; nil означает "не менять".
	Patch preferences.Patch
}

// Validate validates the command. Out-of-range numbers are clamped later,
// malformed time windows are rejected here.
func (c UpdatePreferencesCommand) Validate() error {
	if c.Patch.IsEmpty() {
		return shared.NewDomainError("preferences", "Update", shared.ErrValidation, "nothing to update")
	}
	for _, w := range c.Patch.PreferredTimes {
		if _, _, ok := timeutil.ParseTimeRange(w); !ok {
			return shared.NewDomainError("preferences", "Update", shared.ErrInvalidFormat,
				fmt.Sprintf("preferred time %q must look like 18:00-20:00", w))
		}
	}
	for _, pos := range c.Patch.PreferredPositions {
		if !pos.IsValid() {
			return shared.NewDomainError("preferences", "Update", shared.ErrValidation,
				fmt.Sprintf("unknown position %q", pos))
		}
	}
	return nil
}

// UpdatePreferencesHandler handles UpdatePreferencesCommand and
// AdjustPreferenceCommand.
type UpdatePreferencesHandler struct {
	profiles ProfileSource
	repo     preferences.Repository
	logger   *slog.Logger
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(profiles ProfileSource, repo preferences.Repository, logger *slog.Logger) *UpdatePreferencesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdatePreferencesHandler{
		profiles: profiles,
		repo:     repo,
		logger:   logger.With("component", "update_preferences"),
	}
}

// Handle saves the patch and returns the resulting preferences.
func (h *UpdatePreferencesHandler) Handle(ctx context.Context, cmd UpdatePreferencesCommand) (preferences.MatchingPreferences, error) {
	if err := cmd.Validate(); err != nil {
		return preferences.MatchingPreferences{}, err
	}
	id, err := requesterID(ctx, h.profiles, cmd.Credential, "Update")
	if err != nil {
		return preferences.MatchingPreferences{}, err
	}

	saved, err := h.repo.Save(ctx, id, cmd.Patch)
	if err != nil {
		return preferences.MatchingPreferences{}, fmt.Errorf("update preferences: %w", err)
	}

	h.logger.Info("preferences updated", logger.PlayerID(id))
	return saved, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ADJUST PREFERENCE COMMAND
// Один шаг изменения (±5 км, ±1 уровень, ±1 год).
// ══════════════════════════════════════════════════════════════════════════════

// AdjustPreferenceCommand moves one preference by a single step.
type AdjustPreferenceCommand struct {
	Credential player.Credential
	Field      preferences.Field
	Direction  preferences.Direction
}

// Adjust loads the current preferences, applies one step and saves the
// changed field.
func (h *UpdatePreferencesHandler) Adjust(ctx context.Context, cmd AdjustPreferenceCommand) (preferences.MatchingPreferences, error) {
	id, err := requesterID(ctx, h.profiles, cmd.Credential, "Adjust")
	if err != nil {
		return preferences.MatchingPreferences{}, err
	}

	current := h.repo.Load(ctx, id)
	patch, err := preferences.Adjust(current, cmd.Field, cmd.Direction)
	if err != nil {
		return preferences.MatchingPreferences{}, err
	}

	saved, err := h.repo.Save(ctx, id, patch)
	if err != nil {
		return preferences.MatchingPreferences{}, fmt.Errorf("adjust preferences: %w", err)
	}

	h.logger.Debug("preference adjusted", logger.PlayerID(id), "field", cmd.Field, "direction", cmd.Direction)
	return saved, nil
}
