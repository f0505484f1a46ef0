package persistence

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/config"
)

// exerciseStore checks the contract every backend must honor.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "user", []byte(`{"id":"u-1"}`)))
	got, err := s.Load(ctx, "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-1"}`, string(got))

	require.NoError(t, s.Save(ctx, "user", []byte(`{"id":"u-2"}`)))
	got, err = s.Load(ctx, "user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-2"}`, string(got))

	require.NoError(t, s.Remove(ctx, "user"))
	_, err = s.Load(ctx, "user")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Remove(ctx, "never-stored"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, SaveJSON(ctx, first, "token", "abc"))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	var token string
	require.NoError(t, LoadJSON(ctx, second, "token", &token))
	assert.Equal(t, "abc", token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreRejectsNonJSON(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	assert.Error(t, s.Save(context.Background(), "token", []byte("not json")))
}

func TestFileStoreCorruptFileFailsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o600))
	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "user")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, "occurrence:")
	exerciseStore(t, s)

	require.NoError(t, s.Save(context.Background(), "token", []byte(`"t"`)))
	assert.True(t, mr.Exists("occurrence:token"))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	logger := zap.NewNop()
	pg, err := NewPostgres(ctx, config.PostgresConfig{DSN: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, RunMigrations(ctx, pg.PoolHandle(), logger))

	exerciseStore(t, NewPostgresStore(pg.PoolHandle()))
}

func TestNamespaceIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	admin := Namespace(base, "admin")

	require.NoError(t, SaveJSON(ctx, base, "token", "citizen"))
	require.NoError(t, SaveJSON(ctx, admin, "token", "employee"))

	keys := base.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"admin:token", "token"}, keys)

	var token string
	require.NoError(t, LoadJSON(ctx, admin, "token", &token))
	assert.Equal(t, "employee", token)

	require.NoError(t, admin.Remove(ctx, "token"))
	require.NoError(t, LoadJSON(ctx, base, "token", &token))
	assert.Equal(t, "citizen", token)

	assert.Same(t, base, Namespace(base, ""))
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ts := NewTokenSource(s)

	token, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, SaveJSON(ctx, s, "token", "jwt-value"))
	token, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", token)

	require.NoError(t, s.Save(ctx, "token", []byte("{")))
	_, err = ts.Token(ctx)
	assert.Error(t, err)

	var nilSource *TokenSource
	token, err = nilSource.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestNewStoreSelectsDriver(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	s, closeFn, err := NewStore(ctx, config.StoreConfig{Driver: config.StoreDriverMemory}, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &MemoryStore{}, s)

	s, closeFn, err = NewStore(ctx, config.StoreConfig{Driver: config.StoreDriverFile, FilePath: filepath.Join(t.TempDir(), "s.json")}, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &FileStore{}, s)

	s, closeFn, err = NewStore(ctx, config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")}, logger)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &SQLiteStore{}, s)

	_, _, err = NewStore(ctx, config.StoreConfig{Driver: "tape"}, logger)
	assert.Error(t, err)
}
