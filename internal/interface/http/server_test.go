package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halisaha/teammatch/internal/application/command"
	"github.com/halisaha/teammatch/internal/application/query"
	"github.com/halisaha/teammatch/internal/domain/matching"
	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/internal/infrastructure/metrics"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/kv"
	"github.com/halisaha/teammatch/internal/interface/http/handlers"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type sessions map[player.Credential]player.Player

func (s sessions) Resolve(_ context.Context, cred player.Credential) (*player.Player, error) {
	p, ok := s[cred]
	if !ok {
		return nil, shared.ErrProfileIncomplete
	}
	return &p, nil
}

type staticPool []player.Player

func (p staticPool) ListPlayers(context.Context, player.Credential, string) []player.Player {
	return p
}

type plainKeyer struct{}

func (plainKeyer) SessionKey(cred player.Credential) string { return string(cred) }

// newTestServer wires the real handlers over an in-memory store.
func newTestServer(t *testing.T, cfg Config) (*Server, *prometheus.Registry) {
	t.Helper()

	me := player.Player{ID: "me", FirstName: "Emre", Position: player.PositionMidfielder, Stats: player.DefaultStats()}
	profiles := sessions{"tok": me}
	pool := staticPool{
		me,
		{ID: "gk", FirstName: "Volkan", Position: player.PositionGoalkeeper, Stats: player.DefaultStats()},
		{ID: "d1", FirstName: "Caner", Position: player.PositionDefender, Stats: player.DefaultStats()},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := kv.NewMemory()
	prefs := kv.NewPreferenceStore(store, quiet, m)
	favs := kv.NewFavoritesStore(store, quiet, m)

	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("store", func(context.Context) error { return nil })

	srv := NewServer(cfg, Dependencies{
		Matcher:           query.NewFindTeammatesHandler(profiles, prefs, pool, plainKeyer{}, quiet, query.WithRunRecorder(m)),
		PreferencesReader: query.NewGetPreferencesHandler(profiles, prefs),
		PreferencesWriter: command.NewUpdatePreferencesHandler(profiles, prefs, quiet),
		FavoritesReader:   query.NewGetFavoritesHandler(profiles, favs),
		FavoriteAdder:     command.NewAddFavoriteHandler(profiles, favs, quiet),
		Logger:            quiet,
		HealthChecker:     health,
		Gatherer:          reg,
	})
	return srv, reg
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func data(env map[string]any) map[string]any {
	d, _ := env["data"].(map[string]any)
	return d
}

// ═══════════════════════════════════════════════════════════════════════════════
// MATCHES
// ═══════════════════════════════════════════════════════════════════════════════

func TestMatches_RunAndLatest(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	h := srv.Handler()

	rec, _ := do(t, h, http.MethodGet, "/api/v1/matches/latest", "tok", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := do(t, h, http.MethodGet, "/api/v1/matches", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result := data(env)
	assert.Equal(t, true, env["success"])
	assert.Equal(t, true, result["success"])
	assert.Equal(t, matching.SuccessMessage, result["message"])
	assert.Equal(t, "Midfielder", result["userPosition"])
	assert.EqualValues(t, 2, result["totalMatches"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, env = do(t, h, http.MethodGet, "/api/v1/matches/latest", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, result["runId"], data(env)["runId"])
}

func TestMatches_FailureIsStillOK(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())

	rec, env := do(t, srv.Handler(), http.MethodGet, "/api/v1/matches", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, false, data(env)["success"])
	assert.Equal(t, "complete your profile", data(env)["message"])
	assert.Empty(t, data(env)["teamMembers"])
}

type staleMatcher struct{}

func (staleMatcher) Handle(context.Context, query.FindTeammatesQuery) (*matching.TeamMatchingResult, error) {
	return &matching.TeamMatchingResult{Generation: 1, TeamMembers: []matching.PlayerMatch{}}, shared.ErrStaleRun
}

func (staleMatcher) Latest(player.Credential) (*matching.TeamMatchingResult, bool) { return nil, false }

func TestMatches_StaleRunIsConflict(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{Matcher: staleMatcher{}, Logger: quiet})

	rec, env := do(t, srv.Handler(), http.MethodGet, "/api/v1/matches", "tok", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, env["success"])
	assert.EqualValues(t, 1, data(env)["generation"])
	assert.Equal(t, "stale_run", env["error"].(map[string]any)["code"])
}

// ═══════════════════════════════════════════════════════════════════════════════
// PREFERENCES
// ═══════════════════════════════════════════════════════════════════════════════

func TestPreferences_GetPatchAdjust(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	h := srv.Handler()

	rec, env := do(t, h, http.MethodGet, "/api/v1/preferences", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, data(env)["maxDistance"])
	assert.Equal(t, []any{18.0, 35.0}, data(env)["ageRange"])

	rec, env = do(t, h, http.MethodPatch, "/api/v1/preferences", "tok", `{"maxDistance":30,"preferredTimes":["19:00-21:00"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 30, data(env)["maxDistance"])
	assert.EqualValues(t, 1, data(env)["skillLevelRange"])

	rec, env = do(t, h, http.MethodPost, "/api/v1/preferences/adjust", "tok", `{"field":"maxDistance","direction":"increase"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 35, data(env)["maxDistance"])
}

func TestPreferences_Errors(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
		code   string
	}{
		{"no credential", http.MethodGet, "/api/v1/preferences", "", "", http.StatusUnauthorized, "unauthorized"},
		{"unknown session", http.MethodGet, "/api/v1/preferences", "nope", "", http.StatusUnauthorized, "unauthorized"},
		{"bad json", http.MethodPatch, "/api/v1/preferences", "tok", `{`, http.StatusBadRequest, "invalid_json"},
		{"empty patch", http.MethodPatch, "/api/v1/preferences", "tok", `{}`, http.StatusBadRequest, "validation_error"},
		{"bad time window", http.MethodPatch, "/api/v1/preferences", "tok", `{"preferredTimes":["late"]}`, http.StatusBadRequest, "invalid_format"},
		{"unknown field", http.MethodPost, "/api/v1/preferences/adjust", "tok", `{"field":"radius","direction":"increase"}`, http.StatusBadRequest, "validation_error"},
		{"wrong method", http.MethodDelete, "/api/v1/preferences", "tok", "", http.StatusMethodNotAllowed, "method_not_allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, env["error"].(map[string]any)["code"])
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// FAVORITES
// ═══════════════════════════════════════════════════════════════════════════════

func TestFavorites(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	h := srv.Handler()

	rec, env := do(t, h, http.MethodGet, "/api/v1/favorites", "tok", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, data(env)["favoritePlayers"])

	for range 2 {
		rec, env = do(t, h, http.MethodPost, "/api/v1/favorites", "tok", `{"playerId":"gk"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []any{"gk"}, data(env)["favoritePlayers"])

	rec, _ = do(t, h, http.MethodPost, "/api/v1/favorites", "tok", `{"playerId":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ═══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE ROUTES
// ═══════════════════════════════════════════════════════════════════════════════

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	h := srv.Handler()

	rec, env := do(t, h, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, data(env)["healthy"])

	do(t, h, http.MethodGet, "/api/v1/matches", "tok", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	require.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), `teammatch_matching_runs_total{outcome="success",state="DONE"} 1`)
}

func TestHealth_Unhealthy(t *testing.T) {
	health := handlers.NewCompositeHealthChecker("test")
	health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	srv := NewServer(DefaultConfig(), Dependencies{Logger: quiet, HealthChecker: health})

	rec, env := do(t, srv.Handler(), http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "failing: redis", data(env)["message"])
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 1
	cfg.RateLimitBurst = 2
	srv, _ := newTestServer(t, cfg)

	codes := make([]int, 3)
	for i := range codes {
		rec, _ := do(t, srv.Handler(), http.MethodGet, "/health", "", "")
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := NewServer(DefaultConfig(), Dependencies{Logger: quiet})
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}

func TestBearer(t *testing.T) {
	tests := map[string]player.Credential{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
		"abc":         "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		assert.Equal(t, want, bearer(req), header)
	}
}
