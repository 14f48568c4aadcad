package query

import (
	"context"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halisaha/teammatch/internal/domain/matching"
	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/shared"
)

func mk(id string, pos player.Position, detailed bool) player.Player {
	p := player.Player{ID: id, FirstName: id, Position: pos, Stats: player.DefaultStats()}
	if detailed {
		p.Bio = "Hafta sonu oynarım"
		p.Phone = "+905550000000"
	}
	return p
}

func newHandler(profiles ProfileSource, dir player.Directory, opts ...FindTeammatesOption) *FindTeammatesHandler {
	return NewFindTeammatesHandler(profiles, &fakePrefs{}, dir, plainKeyer{}, quietLogger, opts...)
}

func memberIDs(ms []matching.PlayerMatch) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// SUCCESS PATH
// ═══════════════════════════════════════════════════════════════════════════════

func TestFindTeammates_Success(t *testing.T) {
	me := mk("me", player.PositionMidfielder, false)
	dir := poolOf(
		mk("gk1", player.PositionGoalkeeper, false),
		mk("d1", player.PositionDefender, false),
		mk("d2", player.PositionDefender, false),
		mk("d3", player.PositionDefender, true),
		me,
		mk("m1", player.PositionMidfielder, false),
		mk("f1", player.PositionForward, false),
	)
	rec := &recordingRecorder{}
	prefs := &fakePrefs{}
	h := NewFindTeammatesHandler(profileOf(me), prefs, dir, plainKeyer{}, quietLogger, WithRunRecorder(rec))

	res, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, matching.StateDone, res.State)
	assert.Equal(t, matching.SuccessMessage, res.Message)
	assert.Equal(t, player.PositionMidfielder, res.UserPosition)
	assert.Equal(t, matching.Requirements{
		player.PositionGoalkeeper: 1,
		player.PositionDefender:   2,
		player.PositionMidfielder: 1,
		player.PositionForward:    1,
	}, res.RequiredPositions)

	assert.Equal(t, []string{"d3", "gk1", "d1", "d2", "f1", "m1"}, memberIDs(res.TeamMembers))
	assert.Equal(t, len(res.TeamMembers), res.TotalMatches)
	assert.EqualValues(t, 100, res.TeamMembers[0].CompatibilityScore)
	assert.EqualValues(t, 70, res.TeamMembers[5].CompatibilityScore)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, res.Generation)

	assert.Equal(t, []string{"me"}, prefs.loads)
	assert.Equal(t, []string{OutcomeSuccess}, rec.outcomes)
	assert.Equal(t, []int{6}, rec.pools)

	latest, ok := h.Latest("tok")
	require.True(t, ok)
	assert.Same(t, res, latest)
}

// ═══════════════════════════════════════════════════════════════════════════════
// FAILURE PATHS
// ═══════════════════════════════════════════════════════════════════════════════

func TestFindTeammates_Failures(t *testing.T) {
	me := mk("me", player.PositionForward, false)

	tests := []struct {
		name     string
		profiles ProfileSource
		dir      player.Directory
		message  string
		outcome  string
	}{
		{
			name: "profile incomplete",
			profiles: &fakeProfiles{ResolveFn: func(context.Context, player.Credential) (*player.Player, error) {
				return nil, shared.ErrProfileIncomplete
			}},
			dir:     poolOf(mk("x", player.PositionDefender, false)),
			message: "complete your profile",
			outcome: OutcomeProfileIncomplete,
		},
		{
			name:     "position missing",
			profiles: profileOf(player.Player{ID: "me", FirstName: "Ali"}),
			dir:      poolOf(mk("x", player.PositionDefender, false)),
			message:  "set your position",
			outcome:  OutcomePositionMissing,
		},
		{
			name:     "empty pool",
			profiles: profileOf(me),
			dir:      poolOf(),
			message:  "no other players yet",
			outcome:  OutcomeNoCandidates,
		},
		{
			name:     "only the requester in the pool",
			profiles: profileOf(me),
			dir:      poolOf(me),
			message:  "no other players yet",
			outcome:  OutcomeNoCandidates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingRecorder{}
			h := newHandler(tt.profiles, tt.dir, WithRunRecorder(rec))

			res, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})

			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, matching.StateFailed, res.State)
			assert.Equal(t, tt.message, res.Message)
			assert.NotNil(t, res.TeamMembers)
			assert.Empty(t, res.TeamMembers)
			assert.Zero(t, res.TotalMatches)
			assert.Equal(t, []string{tt.outcome}, rec.outcomes)
		})
	}
}

func TestFindTeammates_NoProfileSkipsDirectory(t *testing.T) {
	called := false
	dir := &fakeDirectory{ListPlayersFn: func(context.Context, player.Credential, string) []player.Player {
		called = true
		return nil
	}}
	profiles := &fakeProfiles{ResolveFn: func(context.Context, player.Credential) (*player.Player, error) {
		return nil, nil
	}}

	res, err := newHandler(profiles, dir).Handle(context.Background(), FindTeammatesQuery{})

	require.NoError(t, err)
	assert.Equal(t, "complete your profile", res.Message)
	assert.False(t, called)
}

func TestFindTeammates_AnonymousRequestsDoNotShareGenerations(t *testing.T) {
	rec := &recordingRecorder{}
	h := newHandler(profileOf(mk("me", player.PositionGoalkeeper, false)), poolOf(), WithRunRecorder(rec))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*matching.TeamMatchingResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.Handle(context.Background(), FindTeammatesQuery{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "complete your profile", results[i].Message)
		assert.Equal(t, matching.StateFailed, results[i].State)
		assert.Zero(t, results[i].Generation)
	}
	assert.Zero(t, rec.stale)
	assert.Len(t, rec.outcomes, callers)

	_, ok := h.Latest("")
	assert.False(t, ok)
}

// ═══════════════════════════════════════════════════════════════════════════════
// PROPERTIES
// ═══════════════════════════════════════════════════════════════════════════════

func randomPool(f *gofakeit.Faker, n int) []player.Player {
	positions := player.AllPositions()
	pool := make([]player.Player, n)
	for i := range pool {
		pool[i] = mk(f.UUID(), positions[f.Number(0, len(positions)-1)], f.Bool())
		if f.Bool() {
			pool[i].Bio = ""
		}
	}
	return pool
}

func TestFindTeammates_Properties(t *testing.T) {
	f := gofakeit.New(42)

	for i := 0; i < 25; i++ {
		pool := randomPool(f, f.Number(1, 40))
		me := pool[f.Number(0, len(pool)-1)]

		res, err := newHandler(profileOf(me), poolOf(pool...)).
			Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})
		require.NoError(t, err)

		if !res.Success {
			assert.Equal(t, "no other players yet", res.Message)
			continue
		}

		assert.Equal(t, len(res.TeamMembers), res.TotalMatches)
		assert.NotContains(t, memberIDs(res.TeamMembers), me.ID)
		assert.Equal(t, matching.TeamSize-1, res.RequiredPositions.Total())

		total := 0
		for pos, alts := range res.PositionAlternatives {
			assert.LessOrEqual(t, len(alts), matching.MaxAlternatives)
			assert.Positive(t, res.RequiredPositions[pos])
			total += len(alts)
		}
		assert.Equal(t, res.TotalMatches, total)

		for _, m := range res.TeamMembers {
			assert.True(t, m.CompatibilityScore.IsValid())
		}
	}
}

func TestFindTeammates_Deterministic(t *testing.T) {
	pool := randomPool(gofakeit.New(3), 30)
	me := mk("me", player.PositionDefender, true)

	run := func() *matching.TeamMatchingResult {
		res, err := newHandler(profileOf(me), poolOf(pool...)).
			Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.NotEqual(t, a.RunID, b.RunID)
	if diff := cmp.Diff(a, b,
		cmp.AllowUnexported(matching.Distance{}),
		cmpopts.IgnoreFields(matching.TeamMatchingResult{}, "RunID"),
	); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// GENERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// blockingDirectory blocks the first call until release is closed.
type blockingDirectory struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
	pool    []player.Player
}

func (d *blockingDirectory) ListPlayers(context.Context, player.Credential, string) []player.Player {
	first := false
	d.once.Do(func() { first = true })
	if first {
		close(d.entered)
		<-d.release
		return nil
	}
	return d.pool
}

func TestFindTeammates_StaleRunIsNotPublished(t *testing.T) {
	me := mk("me", player.PositionGoalkeeper, false)
	dir := &blockingDirectory{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		pool:    []player.Player{mk("d1", player.PositionDefender, false)},
	}
	rec := &recordingRecorder{}
	h := newHandler(profileOf(me), dir, WithRunRecorder(rec))

	type outcome struct {
		res *matching.TeamMatchingResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})
		first <- outcome{res, err}
	}()
	<-dir.entered

	newer, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})
	require.NoError(t, err)
	require.True(t, newer.Success)
	assert.EqualValues(t, 2, newer.Generation)

	close(dir.release)
	old := <-first

	assert.ErrorIs(t, old.err, shared.ErrStaleRun)
	assert.EqualValues(t, 1, old.res.Generation)
	assert.False(t, old.res.Success)
	assert.Equal(t, 1, rec.stale)

	latest, ok := h.Latest("tok")
	require.True(t, ok)
	assert.Same(t, newer, latest)
}

func TestFindTeammates_OlderRunFinishingFirstIsPublished(t *testing.T) {
	me := mk("me", player.PositionGoalkeeper, false)
	h := newHandler(profileOf(me), poolOf(mk("d1", player.PositionDefender, false)))

	a, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})
	require.NoError(t, err)
	b, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok"})
	require.NoError(t, err)

	assert.Less(t, a.Generation, b.Generation)
	latest, _ := h.Latest("tok")
	assert.Same(t, b, latest)
}

func TestFindTeammates_GenerationsArePerRequester(t *testing.T) {
	me := mk("me", player.PositionGoalkeeper, false)
	h := newHandler(profileOf(me), poolOf(mk("d1", player.PositionDefender, false)))

	a, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok-a"})
	require.NoError(t, err)
	b, err := h.Handle(context.Background(), FindTeammatesQuery{Credential: "tok-b"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, a.Generation)
	assert.EqualValues(t, 1, b.Generation)

	_, ok := h.Latest("tok-c")
	assert.False(t, ok)
}
