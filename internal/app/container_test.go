package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halisaha/teammatch/config"
	"github.com/halisaha/teammatch/internal/application/query"
	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/infrastructure/persistence/kv"
)

const usersJSON = `[
	{"_id":"me","name":"Emre Kaya","position":"Orta Saha"},
	{"_id":"gk1","name":"Volkan Demir","position":"Goalkeeper","bio":"Refleksler iyi"},
	{"_id":"d1","name":"Caner Er","position":"defender"},
	{"_id":"t1","name":"Test User","position":"Forward"}
]`

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		App:       config.AppConfig{Version: "test", ShutdownTimeout: time.Second},
		Directory: config.DirectoryConfig{BaseURL: baseURL, Timeout: 2 * time.Second, MaxAttempts: 1},
		Auth:      config.AuthConfig{SessionSecret: "secret", KeySecret: "key"},
		Store:     config.StoreConfig{Backend: config.StoreMemory, ProfileTTL: time.Hour},
		Matching:  config.MatchingConfig{BaselineRating: 5},
	}
}

func TestBuild_EndToEndWithMemoryStore(t *testing.T) {
	dir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, usersJSON)
	}))
	defer dir.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := Build(context.Background(), testConfig(dir.URL), logger)
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Scheduler)

	token, err := c.Sessions.Issue(player.Player{
		ID:        "me",
		FirstName: "Emre",
		Position:  player.PositionMidfielder,
	}, time.Hour)
	require.NoError(t, err)

	res, err := c.FindTeammates.Handle(context.Background(), query.FindTeammatesQuery{Credential: player.Credential(token)})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	ids := make([]string, 0, len(res.TeamMembers))
	for _, m := range res.TeamMembers {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{"gk1", "d1"}, ids)

	mem, ok := c.Store.(*kv.Memory)
	require.True(t, ok)
	assert.Equal(t, 1, mem.Len(), "resolved profile is cached")

	status := c.Health.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Contains(t, status.Checks, "directory")
}
