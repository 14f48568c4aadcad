package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halisaha/teammatch/internal/infrastructure/persistence/kv"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FAKES
// ═══════════════════════════════════════════════════════════════════════════════

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

type fakeQuerier struct {
	ExecFn     func(sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFn func(sql string, args ...any) pgx.Row

	execArgs [][]any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execArgs = append(f.execArgs, args)
	if f.ExecFn != nil {
		return f.ExecFn(sql, args...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return f.QueryRowFn(sql, args...)
}

var fixedNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newStore(q Querier) *KVStore {
	s := NewKVStore(q)
	s.now = func() time.Time { return fixedNow }
	return s
}

// ═══════════════════════════════════════════════════════════════════════════════
// UNIT
// ═══════════════════════════════════════════════════════════════════════════════

func TestKVStore_Get(t *testing.T) {
	q := &fakeQuerier{QueryRowFn: func(_ string, args ...any) pgx.Row {
		assert.Equal(t, "player:1:favoritePlayers", args[0])
		assert.Equal(t, fixedNow, args[1])
		return rowFunc(func(dest ...any) error {
			*dest[0].(*[]byte) = []byte(`["p2"]`)
			return nil
		})
	}}

	got, err := newStore(q).Get(context.Background(), "player:1:favoritePlayers")

	require.NoError(t, err)
	assert.Equal(t, `["p2"]`, string(got))
}

func TestKVStore_GetMissing(t *testing.T) {
	q := &fakeQuerier{QueryRowFn: func(string, ...any) pgx.Row {
		return rowFunc(func(...any) error { return pgx.ErrNoRows })
	}}

	_, err := newStore(q).Get(context.Background(), "k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	_, err = newStore(q).Get(context.Background(), "")
	assert.ErrorIs(t, err, kv.ErrEmptyKey)
}

func TestKVStore_SetExpiry(t *testing.T) {
	q := &fakeQuerier{}
	s := newStore(q)

	require.NoError(t, s.Set(context.Background(), "k", []byte("{}"), time.Hour))
	require.NoError(t, s.Set(context.Background(), "k", []byte("{}"), 0))

	require.Len(t, q.execArgs, 2)
	exp := q.execArgs[0][2].(*time.Time)
	assert.Equal(t, fixedNow.Add(time.Hour), *exp)
	assert.Nil(t, q.execArgs[1][2].(*time.Time))
}

func TestKVStore_ExecErrors(t *testing.T) {
	q := &fakeQuerier{ExecFn: func(string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("connection reset")
	}}
	s := newStore(q)

	assert.ErrorContains(t, s.Set(context.Background(), "k", nil, 0), "connection reset")
	assert.ErrorContains(t, s.Delete(context.Background(), "k"), "connection reset")
}

func TestKVStore_PurgeExpired(t *testing.T) {
	q := &fakeQuerier{ExecFn: func(string, ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("DELETE 4"), nil
	}}

	n, err := newStore(q).PurgeExpired(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestMigrations_AreOrdered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestParsePoolConfig(t *testing.T) {
	cfg, err := parsePoolConfig("postgres://u:p@localhost:5432/teammatch")
	require.NoError(t, err)
	assert.EqualValues(t, defaultMaxConns, cfg.MaxConns)
	assert.Equal(t, defaultMaxConnIdleTime, cfg.MaxConnIdleTime)

	cfg, err = parsePoolConfig("postgres://u:p@localhost:5432/teammatch?pool_max_conns=3")
	require.NoError(t, err)
	assert.EqualValues(t, 3, cfg.MaxConns)

	cfg, err = parsePoolConfig("postgres://localhost/teammatch", WithMaxConns(7), WithMaxConnLifetime(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.MaxConns)
	assert.Equal(t, time.Minute, cfg.MaxConnLifetime)

	_, err = parsePoolConfig("")
	assert.Error(t, err)
}

// ═══════════════════════════════════════════════════════════════════════════════
// INTEGRATION
// ═══════════════════════════════════════════════════════════════════════════════

func TestKVStore_Integration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	conn, err := NewConnectionFromURL(ctx, url)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))

	s := NewKVStore(conn)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = s.Delete(ctx, key) })

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, key, []byte(`{"v":1}`), 0))
	require.NoError(t, s.Set(ctx, key, []byte(`{"v":2}`), 0))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	require.NoError(t, s.Set(ctx, key, []byte(`{}`), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
