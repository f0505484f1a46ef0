package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	"github.com/spec-kit/occurrence-client/internal/persistence"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

const (
	keyUser    = "user"
	keyToken   = "token"
	keyIsAdmin = "isAdmin"
)

// Navigator moves the presentation layer to a route.
type Navigator interface {
	Navigate(route domain.Route)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route domain.Route)

func (f NavigatorFunc) Navigate(route domain.Route) { f(route) }

type noopNavigator struct{}

func (noopNavigator) Navigate(domain.Route) {}

// Deps bundles the collaborators of a session.
type Deps struct {
	Store     persistence.Store
	Navigator Navigator
	Events    events.Dispatcher
	Logger    *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = persistence.NewMemoryStore()
	}
	if d.Navigator == nil {
		d.Navigator = noopNavigator{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// manager owns one role's identity and token. T is a pointer identity type,
// so its zero value means "no identity".
type manager[T interface {
	comparable
	domain.Identity
}] struct {
	deps    Deps
	subject domain.SubjectType
	home    domain.Route
	gate    domain.Route
	admin   bool

	mu      sync.RWMutex
	user    T
	token   string
	isAdmin bool
	// generation is bumped by every explicit state change. Restore drops its
	// result when the generation moved while it was loading.
	generation uint64
}

func newManager[T interface {
	comparable
	domain.Identity
}](deps Deps, subject domain.SubjectType, home, gate domain.Route, admin bool) *manager[T] {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.With(zap.String("session", string(subject)))
	return &manager[T]{deps: deps, subject: subject, home: home, gate: gate, admin: admin}
}

// Login installs identity and token, persists them and navigates to the
// role's home. State is replaced even if persisting fails; the persistence
// error is still returned.
func (m *manager[T]) Login(ctx context.Context, identity T, token string) error {
	var zero T
	details := map[string]any{}
	if identity == zero || identity.SubjectID() == "" {
		details["user"] = "user is required"
	}
	if strings.TrimSpace(token) == "" {
		details["token"] = "token is required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid session credentials", details)
	}

	m.mu.Lock()
	m.user, m.token = identity, token
	m.isAdmin = m.admin
	m.generation++
	m.mu.Unlock()

	err := m.persist(ctx, identity, token)
	if err != nil {
		m.deps.Logger.Error("persist session", zap.Error(err))
	}

	m.publish(ctx, events.EventSessionStarted, identity.SubjectID(), m.home)
	m.deps.Navigator.Navigate(m.home)

	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (m *manager[T]) persist(ctx context.Context, identity T, token string) error {
	var errs []error
	if err := persistence.SaveJSON(ctx, m.deps.Store, keyUser, identity); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", keyUser, err))
	}
	if err := persistence.SaveJSON(ctx, m.deps.Store, keyToken, token); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", keyToken, err))
	}
	if m.admin {
		if err := persistence.SaveJSON(ctx, m.deps.Store, keyIsAdmin, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", keyIsAdmin, err))
		}
	}
	return errors.Join(errs...)
}

// Logout clears memory and storage. The backend is not contacted.
func (m *manager[T]) Logout(ctx context.Context) error {
	m.mu.Lock()
	var zero T
	previous := m.user
	m.user, m.token, m.isAdmin = zero, "", false
	m.generation++
	m.mu.Unlock()

	keys := []string{keyUser, keyToken}
	if m.admin {
		keys = append(keys, keyIsAdmin)
	}
	var errs []error
	for _, key := range keys {
		if err := m.deps.Store.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		m.deps.Logger.Warn("clear session storage", zap.Error(err))
	}

	if previous != zero {
		m.publish(ctx, events.EventSessionEnded, previous.SubjectID(), m.gate)
	}
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Restore reloads the session from storage. Anything short of a decodable
// identity plus a non-empty token leaves the session logged out. A Login,
// Logout or SetUser that completes while Restore is loading wins.
func (m *manager[T]) Restore(ctx context.Context) {
	var zero T
	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()

	identity, token, ok := m.load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		m.deps.Logger.Debug("session changed during restore, keeping current state")
		return
	}
	if !ok {
		m.user, m.token, m.isAdmin = zero, "", false
		return
	}
	m.user, m.token = identity, token
	m.isAdmin = m.admin
}

func (m *manager[T]) load(ctx context.Context) (T, string, bool) {
	var zero T

	var identity T
	if err := persistence.LoadJSON(ctx, m.deps.Store, keyUser, &identity); err != nil {
		m.logRestoreMiss(keyUser, err)
		return zero, "", false
	}
	var token string
	if err := persistence.LoadJSON(ctx, m.deps.Store, keyToken, &token); err != nil {
		m.logRestoreMiss(keyToken, err)
		return zero, "", false
	}
	if identity == zero || identity.SubjectID() == "" || strings.TrimSpace(token) == "" {
		m.deps.Logger.Warn("stored session incomplete, treating as logged out")
		return zero, "", false
	}
	return identity, token, true
}

func (m *manager[T]) logRestoreMiss(key string, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		m.deps.Logger.Debug("no stored session", zap.String("key", key))
		return
	}
	m.deps.Logger.Warn("restore session", zap.String("key", key), zap.Error(err))
}

// RestoreAsync runs Restore on its own goroutine. The channel closes when done.
func (m *manager[T]) RestoreAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Restore(ctx)
	}()
	return done
}

// SetUser replaces the identity of an authenticated session, keeping its token.
func (m *manager[T]) SetUser(ctx context.Context, identity T) error {
	var zero T
	if identity == zero || identity.SubjectID() == "" {
		return apperrors.NewValidationError("user is required", map[string]any{"user": "user is required"})
	}

	m.mu.Lock()
	if m.user == zero {
		m.mu.Unlock()
		return apperrors.NewUnauthorized("not logged in")
	}
	m.user = identity
	m.generation++
	m.mu.Unlock()

	if err := persistence.SaveJSON(ctx, m.deps.Store, keyUser, identity); err != nil {
		m.deps.Logger.Error("persist session user", zap.Error(err))
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// User returns the current identity, or the zero value when logged out.
func (m *manager[T]) User() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Token returns the current bearer token, "" when logged out.
func (m *manager[T]) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// IsAuthenticated reports whether both identity and token are present.
func (m *manager[T]) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var zero T
	return m.user != zero && m.token != ""
}

// Gate returns where an unauthenticated visitor of a protected screen is
// sent. ok is false when the session is authenticated. Advisory only.
func (m *manager[T]) Gate() (domain.Route, bool) {
	if m.IsAuthenticated() {
		return "", false
	}
	return m.gate, true
}

// Home is the route shown after login.
func (m *manager[T]) Home() domain.Route {
	return m.home
}

func (m *manager[T]) publish(ctx context.Context, eventType events.EventType, subjectID string, route domain.Route) {
	err := m.deps.Events.Publish(ctx, events.Event{
		Type:    eventType,
		Actor:   events.Actor{Type: m.subject, ID: subjectID},
		Payload: events.SessionPayload{Route: route},
	})
	if err != nil {
		m.deps.Logger.Warn("publish session event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
