package query

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// ═══════════════════════════════════════════════════════════════════════════════
// FAKES
// ═══════════════════════════════════════════════════════════════════════════════

type fakeProfiles struct {
	ResolveFn func(ctx context.Context, cred player.Credential) (*player.Player, error)
}

func (f *fakeProfiles) Resolve(ctx context.Context, cred player.Credential) (*player.Player, error) {
	return f.ResolveFn(ctx, cred)
}

func profileOf(p player.Player) *fakeProfiles {
	return &fakeProfiles{ResolveFn: func(context.Context, player.Credential) (*player.Player, error) {
		return &p, nil
	}}
}

type fakePrefs struct {
	mu    sync.Mutex
	loads []string
}

func (f *fakePrefs) Load(_ context.Context, playerID string) preferences.MatchingPreferences {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, playerID)
	return preferences.Default()
}

func (f *fakePrefs) Save(_ context.Context, _ string, patch preferences.Patch) (preferences.MatchingPreferences, error) {
	return preferences.Merge(preferences.Default(), patch), nil
}

type fakeDirectory struct {
	ListPlayersFn func(ctx context.Context, cred player.Credential, excludeID string) []player.Player
}

func (f *fakeDirectory) ListPlayers(ctx context.Context, cred player.Credential, excludeID string) []player.Player {
	return f.ListPlayersFn(ctx, cred, excludeID)
}

func poolOf(players ...player.Player) *fakeDirectory {
	return &fakeDirectory{ListPlayersFn: func(context.Context, player.Credential, string) []player.Player {
		return players
	}}
}

type fakeFavorites struct {
	ids []string
}

func (f *fakeFavorites) Add(_ context.Context, _, favoriteID string) ([]string, error) {
	f.ids = append(f.ids, favoriteID)
	return f.ids, nil
}

func (f *fakeFavorites) List(context.Context, string) []string {
	if f.ids == nil {
		return []string{}
	}
	return f.ids
}

type plainKeyer struct{}

func (plainKeyer) SessionKey(cred player.Credential) string { return string(cred) }

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	stale    int
	pools    []int
}

func (r *recordingRecorder) RunFinished(_, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) RunStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func (r *recordingRecorder) PoolSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, n)
}

type fakeCache struct {
	mu     sync.Mutex
	stored map[player.Credential]*player.Player
	getErr error
}

func (f *fakeCache) Get(_ context.Context, cred player.Credential) (*player.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.stored[cred], nil
}

func (f *fakeCache) Set(_ context.Context, cred player.Credential, p *player.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = make(map[player.Credential]*player.Player)
	}
	f.stored[cred] = p
	return nil
}

type identityFunc func(ctx context.Context, cred player.Credential) (*player.Player, error)

func (f identityFunc) Identity(ctx context.Context, cred player.Credential) (*player.Player, error) {
	return f(ctx, cred)
}
