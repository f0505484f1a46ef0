package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/config"
)

// ErrNotFound is returned by Load when the key holds no value.
var ErrNotFound = errors.New("persistence: key not found")

// Store is an asynchronous-safe persistent key-value store. Values are opaque
// bytes; session code stores JSON documents.
type Store interface {
	Save(ctx context.Context, key string, value []byte) error
	// Load returns ErrNotFound when key is absent.
	Load(ctx context.Context, key string) ([]byte, error)
	// Remove deletes key; removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}

// LoadJSON loads key and decodes it into v.
func LoadJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

type namespaced struct {
	inner  Store
	prefix string
}

// Namespace scopes every key of inner under prefix ("admin" -> "admin:user").
// An empty prefix returns inner unchanged.
func Namespace(inner Store, prefix string) Store {
	if prefix == "" {
		return inner
	}
	return &namespaced{inner: inner, prefix: prefix + ":"}
}

func (n *namespaced) Save(ctx context.Context, key string, value []byte) error {
	return n.inner.Save(ctx, n.prefix+key, value)
}

func (n *namespaced) Load(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Load(ctx, n.prefix+key)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.prefix+key)
}

// TokenSource reads the bearer token from a store on every call, so requests
// always carry whatever the owning session last persisted.
type TokenSource struct {
	Store Store
	Key   string
}

// NewTokenSource reads the "token" key of s.
func NewTokenSource(s Store) *TokenSource {
	return &TokenSource{Store: s, Key: "token"}
}

// Token returns the stored token, or "" when none is stored or loading fails.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t == nil || t.Store == nil {
		return "", nil
	}
	var token string
	if err := LoadJSON(ctx, t.Store, t.Key, &token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// NewStore opens the backend selected by cfg.Driver. The returned func
// releases its resources.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, func(), error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		return NewMemoryStore(), func() {}, nil
	case config.StoreDriverFile, "":
		store, err := NewFileStore(cfg.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case config.StoreDriverSQLite:
		store, err := OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StoreDriverRedis:
		redis := NewRedis(cfg.Redis, logger)
		return NewRedisStore(redis.Client, cfg.Redis.KeyPrefix), redis.Close, nil
	case config.StoreDriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return NewPostgresStore(pg.PoolHandle()), pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
