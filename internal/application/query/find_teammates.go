package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/halisaha/teammatch/internal/domain/matching"
	"github.com/halisaha/teammatch/internal/domain/player"
	"github.com/halisaha/teammatch/internal/domain/preferences"
	"github.com/halisaha/teammatch/internal/domain/shared"
	"github.com/halisaha/teammatch/pkg/logger"
	"github.com/halisaha/teammatch/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND TEAMMATES QUERY
// Подбор команды для инициатора: профиль → настройки → пул кандидатов →
// оценка и группировка. Любая ошибка по пути превращается в неуспешный
// результат с сообщением для пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// FindTeammatesQuery содержит параметры подбора.
type FindTeammatesQuery struct {
	// Credential - bearer-токен инициатора.
	Credential player.Credential
}

// ProfileSource resolves the requester profile. Implemented by *ProfileResolver.
type ProfileSource interface {
	Resolve(ctx context.Context, cred player.Credential) (*player.Player, error)
}

// SessionKeyer hashes credentials into stable keys.
type SessionKeyer interface {
	SessionKey(cred player.Credential) string
}

// RunRecorder receives run metrics. Implemented by *metrics.Metrics.
type RunRecorder interface {
	RunFinished(state, outcome string, d time.Duration)
	RunStale()
	PoolSize(n int)
}

type nopRunRecorder struct{}

func (nopRunRecorder) RunFinished(string, string, time.Duration) {}
func (nopRunRecorder) RunStale() {}
func (nopRunRecorder) PoolSize(int) {}

// Run outcomes as reported to metrics.
const (
	OutcomeSuccess           = "success"
	OutcomeProfileIncomplete = "profile_incomplete"
	OutcomePositionMissing   = "position_missing"
	OutcomeNoCandidates      = "no_candidates"
)

// FindTeammatesOption configures a FindTeammatesHandler.
type FindTeammatesOption func(*FindTeammatesHandler)

// WithTracer sets the tracer used for per-state spans.
func WithTracer(t trace.Tracer) FindTeammatesOption {
	return func(h *FindTeammatesHandler) {
		if t != nil {
			h.tracer = t
		}
	}
}

// WithRunRecorder sets the metrics sink.
func WithRunRecorder(r RunRecorder) FindTeammatesOption {
	return func(h *FindTeammatesHandler) {
		if r != nil {
			h.metrics = r
		}
	}
}

// WithRunClock overrides the clock used for run durations.
func WithRunClock(c timeutil.Clock) FindTeammatesOption {
	return func(h *FindTeammatesHandler) {
		if c != nil {
			h.now = c
		}
	}
}

// runSlot хранит счётчик поколений и последний опубликованный результат
// одного инициатора.
type runSlot struct {
	started   uint64
	published uint64
	latest    *matching.TeamMatchingResult
}

// FindTeammatesHandler - сборщик результата подбора (конечный автомат
// INIT → LOAD_PROFILE → LOAD_PREFERENCES → FETCH_CANDIDATES → SCORE_AND_GROUP → DONE).
type FindTeammatesHandler struct {
	profiles  ProfileSource
	prefs     preferences.Repository
	directory player.Directory
	keyer     SessionKeyer

	tracer  trace.Tracer
	metrics RunRecorder
	logger  *slog.Logger
	now     timeutil.Clock

	mu    sync.Mutex
	slots map[string]*runSlot
}

// NewFindTeammatesHandler создаёт обработчик подбора.
func NewFindTeammatesHandler(
	profiles ProfileSource,
	prefs preferences.Repository,
	directory player.Directory,
	keyer SessionKeyer,
	logger *slog.Logger,
	opts ...FindTeammatesOption,
) *FindTeammatesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &FindTeammatesHandler{
		profiles:  profiles,
		prefs:     prefs,
		directory: directory,
		keyer:     keyer,
		tracer:    noop.NewTracerProvider().Tracer("teammatch/query"),
		metrics:   nopRunRecorder{},
		logger:    logger.With("component", "find_teammates"),
		now:       timeutil.SystemClock,
		slots:     make(map[string]*runSlot),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle выполняет один прогон подбора и всегда возвращает результат.
//
// Если за время прогона успел завершиться более новый прогон того же
// инициатора, результат не публикуется и возвращается вместе с
// shared.ErrStaleRun.
func (h *FindTeammatesHandler) Handle(ctx context.Context, q FindTeammatesQuery) (*matching.TeamMatchingResult, error) {
	// Без сессии нет ни профиля, ни своего слота поколений.
	if q.Credential.IsEmpty() {
		result := matching.Failed(shared.ErrProfileIncomplete.Message)
		result.RunID = uuid.NewString()
		h.metrics.RunFinished(string(result.State), OutcomeProfileIncomplete, 0)
		h.logger.Info("matching run failed", logger.RunID(result.RunID), "reason", "no credential")
		return result, nil
	}

	key := h.keyer.SessionKey(q.Credential)
	gen := h.begin(key)
	runID := uuid.NewString()
	started := h.now()

	log := h.logger.With(logger.RunID(runID), "generation", gen)

	ctx, span := h.tracer.Start(ctx, "FindTeammates", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int64("generation", int64(gen)),
	))
	defer span.End()

	result, outcome := h.run(ctx, q.Credential, log)
	result.RunID = runID
	result.Generation = gen

	elapsed := h.now().Sub(started)
	h.metrics.RunFinished(string(result.State), outcome, elapsed)
	span.SetAttributes(attribute.String("outcome", outcome))

	if !h.publish(key, gen, result) {
		h.metrics.RunStale()
		span.SetAttributes(attribute.Bool("stale", true))
		log.Info("stale run discarded", "state", result.State, "outcome", outcome)
		return result, shared.ErrStaleRun
	}

	log.Info("matching run finished",
		"state", result.State,
		"outcome", outcome,
		"total_matches", result.TotalMatches,
		logger.Latency(elapsed),
	)
	return result, nil
}

// Latest возвращает последний опубликованный результат инициатора.
func (h *FindTeammatesHandler) Latest(cred player.Credential) (*matching.TeamMatchingResult, bool) {
	key := h.keyer.SessionKey(cred)

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.slots[key]
	if !ok || s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

func (h *FindTeammatesHandler) begin(key string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.slots[key]
	if !ok {
		s = &runSlot{}
		h.slots[key] = s
	}
	s.started++
	return s.started
}

// publish сохраняет результат, если ни один более новый прогон ещё не
// опубликован. Поколения строго возрастают.
func (h *FindTeammatesHandler) publish(key string, gen uint64, result *matching.TeamMatchingResult) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.slots[key]
	if gen <= s.published {
		return false
	}
	s.published = gen
	s.latest = result
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

func (h *FindTeammatesHandler) run(ctx context.Context, cred player.Credential, logger *slog.Logger) (*matching.TeamMatchingResult, string) {
	fail := func(state matching.RunState, err *shared.DomainError, outcome string) (*matching.TeamMatchingResult, string) {
		logger.Info("matching run failed", "state", state, "reason", err.Message)
		trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Message)
		return matching.Failed(err.Message), outcome
	}

	// LOAD_PROFILE
	sctx, span := h.enter(ctx, matching.StateLoadProfile, logger)
	profile, err := h.profiles.Resolve(sctx, cred)
	span.End()
	if err != nil || profile == nil {
		if err != nil && !errors.Is(err, shared.ErrProfileIncomplete) {
			logger.Warn("profile resolution failed", "error", err)
		}
		return fail(matching.StateLoadProfile, shared.ErrProfileIncomplete, OutcomeProfileIncomplete)
	}
	if !profile.HasPosition() {
		return fail(matching.StateLoadProfile, shared.ErrPositionMissing, OutcomePositionMissing)
	}

	// LOAD_PREFERENCES. Настройки пока не фильтруют пул.
	sctx, span = h.enter(ctx, matching.StateLoadPreferences, logger)
	prefs := h.prefs.Load(sctx, profile.ID)
	span.End()
	logger.Debug("preferences loaded",
		"max_distance", prefs.MaxDistance,
		"skill_range", prefs.SkillLevelRange,
		"age_range", prefs.AgeRange,
	)

	// FETCH_CANDIDATES
	sctx, span = h.enter(ctx, matching.StateFetchCandidates, logger)
	pool := excludePlayer(h.directory.ListPlayers(sctx, cred, profile.ID), profile.ID)
	span.SetAttributes(attribute.Int("pool_size", len(pool)))
	span.End()
	h.metrics.PoolSize(len(pool))
	if len(pool) == 0 {
		return fail(matching.StateFetchCandidates, shared.ErrNoCandidates, OutcomeNoCandidates)
	}

	// SCORE_AND_GROUP
	_, span = h.enter(ctx, matching.StateScoreAndGroup, logger)
	req := matching.TeamRequirement(profile.Position)
	g := matching.ScoreAndGroup(*profile, pool, req)
	span.End()

	return &matching.TeamMatchingResult{
		Success:              true,
		State:                matching.StateDone,
		TeamMembers:          g.TeamMembers,
		UserPosition:         profile.Position,
		RequiredPositions:    req,
		TotalMatches:         len(g.TeamMembers),
		PositionAlternatives: g.PositionAlternatives,
		Message:              matching.SuccessMessage,
	}, OutcomeSuccess
}

func (h *FindTeammatesHandler) enter(ctx context.Context, state matching.RunState, logger *slog.Logger) (context.Context, trace.Span) {
	logger.Debug("state entered", "state", state)
	return h.tracer.Start(ctx, string(state))
}

// excludePlayer убирает инициатора из пула, сохраняя порядок.
func excludePlayer(pool []player.Player, id string) []player.Player {
	out := pool[:0:0]
	for _, p := range pool {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
