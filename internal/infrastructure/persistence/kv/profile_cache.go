package kv

import (
	"context"
	"errors"
	"time"

	"github.com/halisaha/teammatch/internal/domain/player"
)

const keyProfile = "profile"

// SessionKeyer hashes a credential into a stable key.
type SessionKeyer interface {
	SessionKey(cred player.Credential) string
}

// ProfileCache caches the requester profile per session.
type ProfileCache struct {
	store Store
	keyer SessionKeyer
	ttl   time.Duration
}

// NewProfileCache creates a ProfileCache. ttl == 0 keeps entries forever.
func NewProfileCache(store Store, keyer SessionKeyer, ttl time.Duration) *ProfileCache {
	return &ProfileCache{store: store, keyer: keyer, ttl: ttl}
}

var _ player.ProfileCache = (*ProfileCache)(nil)

// Get returns the cached profile. A miss returns (nil, nil).
func (c *ProfileCache) Get(ctx context.Context, cred player.Credential) (*player.Player, error) {
	if cred.IsEmpty() {
		return nil, nil
	}
	p, err := GetJSON[player.Player](ctx, c.store, SessionKey(c.keyer.SessionKey(cred), keyProfile))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Set stores p for the session.
func (c *ProfileCache) Set(ctx context.Context, cred player.Credential, p *player.Player) error {
	if cred.IsEmpty() || p == nil {
		return nil
	}
	return SetJSON(ctx, c.store, SessionKey(c.keyer.SessionKey(cred), keyProfile), p, c.ttl)
}
