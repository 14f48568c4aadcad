package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/pkg/logger"
)

// FailureRecorder counts store failures. Implemented by *metrics.Metrics.
type FailureRecorder interface {
	StoreError(op string)
}

type nopFailures struct{}

func (nopFailures) StoreError(string) {}

// PreferenceStore persists matching preferences per player.
//
// Save merges the patch over the preferences last loaded by this process for
// the player, not over what is currently persisted. If nothing was loaded yet
// the defaults are used as the base.
type PreferenceStore struct {
	store    Store
	logger   *slog.Logger
	failures FailureRecorder

	mu     sync.Mutex
	loaded map[string]preferences.MatchingPreferences
}

// NewPreferenceStore creates a PreferenceStore. failures may be nil.
func NewPreferenceStore(store Store, logger *slog.Logger, failures FailureRecorder) *PreferenceStore {
	if logger == nil {
		logger = slog.Default()
	}
	if failures == nil {
		failures = nopFailures{}
	}
	return &PreferenceStore{
		store:    store,
		logger:   logger.With("component", "preference_store"),
		failures: failures,
		loaded:   make(map[string]preferences.MatchingPreferences),
	}
}

var _ preferences.Repository = (*PreferenceStore)(nil)

// Load returns the stored preferences or the defaults. Read failures are
// logged and fall back to the defaults.
func (s *PreferenceStore) Load(ctx context.Context, playerID string) preferences.MatchingPreferences {
	key := PlayerKey(playerID, preferences.KeyMatchingPreferences)

	prefs, err := GetJSON[preferences.MatchingPreferences](ctx, s.store, key)
	switch {
	case err == nil:
		prefs = prefs.Normalize()
	case errors.Is(err, ErrNotFound):
		prefs = preferences.Default()
	default:
		s.failures.StoreError("load_preferences")
		s.logger.Warn("load preferences failed, using defaults", logger.PlayerID(playerID), "error", err)
		prefs = preferences.Default()
	}

	s.mu.Lock()
	s.loaded[playerID] = prefs.Clone()
	s.mu.Unlock()

	return prefs
}

// Save merges patch over the last loaded preferences and persists the result.
// The write error is returned to the caller.
func (s *PreferenceStore) Save(ctx context.Context, playerID string, patch preferences.Patch) (preferences.MatchingPreferences, error) {
	s.mu.Lock()
	base, ok := s.loaded[playerID]
	if !ok {
		base = preferences.Default()
	}
	merged := preferences.Merge(base, patch)
	s.mu.Unlock()

	key := PlayerKey(playerID, preferences.KeyMatchingPreferences)
	if err := SetJSON(ctx, s.store, key, merged, 0); err != nil {
		s.failures.StoreError("save_preferences")
		return preferences.MatchingPreferences{}, fmt.Errorf("save preferences: %w", err)
	}

	s.mu.Lock()
	s.loaded[playerID] = merged.Clone()
	s.mu.Unlock()

	return merged, nil
}
