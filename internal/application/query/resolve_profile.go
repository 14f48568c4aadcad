// Package query contains read operations following CQRS pattern.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"log/slog"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE PROFILE
// Профиль инициатора: сначала локальный кеш, затем аутентифицированная
// сессия. Профиль из сессии записывается обратно в кеш.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileResolver resolves the requester profile for a credential.
type ProfileResolver struct {
	cache    player.ProfileCache
	identity player.IdentityProvider
	logger   *slog.Logger
}

// NewProfileResolver создаёт резолвер. cache может быть nil.
func NewProfileResolver(cache player.ProfileCache, identity player.IdentityProvider, logger *slog.Logger) *ProfileResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileResolver{
		cache:    cache,
		identity: identity,
		logger:   logger.With("component", "profile_resolver"),
	}
}

// Resolve возвращает профиль или ошибку вида shared.ErrProfileIncomplete.
// Ошибки кеша не фатальны.
func (r *ProfileResolver) Resolve(ctx context.Context, cred player.Credential) (*player.Player, error) {
	if cred.IsEmpty() {
		return nil, shared.ErrProfileIncomplete
	}

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, cred)
		switch {
		case err != nil:
			r.logger.Warn("profile cache read failed", "error", err)
		case cached != nil && cached.ID != "":
			return cached, nil
		}
	}

	if r.identity == nil {
		return nil, shared.ErrProfileIncomplete
	}

	p, err := r.identity.Identity(ctx, cred)
	if err != nil || p == nil || p.ID == "" {
		if err != nil {
			r.logger.Debug("identity fallback failed", "error", err)
		}
		return nil, shared.ErrProfileIncomplete
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cred, p); err != nil {
			r.logger.Warn("profile cache write-back failed", logger.PlayerID(p.ID), "error", err)
		}
	}
	return p, nil
}
