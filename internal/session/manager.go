package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cinetaste/authkit/internal/config"
	"github.com/cinetaste/authkit/internal/gateway"
	"github.com/cinetaste/authkit/internal/model"
	"github.com/cinetaste/authkit/internal/signin"
	"github.com/cinetaste/authkit/internal/store"
)

// State is the lifecycle phase of the manager.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// SignInStatus is the resolution of BeginExternalSignIn.
type SignInStatus string

const (
	// SignInCompleted means the redirect was observed and a session is
	// established.
	SignInCompleted SignInStatus = "completed"

	// SignInNeedsManualEntry means the redirect could not be correlated
	// back to the app; the caller must collect the token via manual
	// capture and call CompleteManualSignIn.
	SignInNeedsManualEntry SignInStatus = "needs_manual_entry"
)

// Gateway exchanges a raw bearer token for a fresh session record.
type Gateway interface {
	Exchange(ctx context.Context, rawToken string) (*model.Session, error)
}

// Flow launches the external redirect-based sign-in handshake.
type Flow interface {
	Begin(ctx context.Context, provider string) (signin.Result, error)
}

// Manager owns the in-memory session and serializes every transition.
// No other component mutates session state directly.
type Manager struct {
	store store.Store
	gw    Gateway
	flow  Flow
	clock clockwork.Clock
	log   *zap.Logger
	cfg   config.Session

	// attempt serializes sign-in attempts; a second attempt while one is
	// resolving is rejected, never interleaved.
	attempt sync.Mutex

	// refreshes are coalesced: concurrent callers observe the same
	// in-flight exchange.
	refreshGroup singleflight.Group

	mu         sync.Mutex
	state      State
	session    *model.Session
	epoch      uint64 // bumped on every sign-out; stale refresh results are discarded
	cancelLoop context.CancelFunc
	subs       map[int]chan State
	nextSub    int
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  *config.Config
	Store   store.Store
	Gateway *gateway.Gateway
	Flow    *signin.Flow
}

func New(p Params) *Manager {
	return NewManager(p.Store, p.Gateway, p.Flow, clockwork.NewRealClock(), p.Log, p.Config.Session)
}

// NewManager wires a manager from explicit collaborators. Tests use this
// to substitute fakes and a fake clock.
func NewManager(st store.Store, gw Gateway, flow Flow, clock clockwork.Clock, log *zap.Logger, cfg config.Session) *Manager {
	return &Manager{
		store: st,
		gw:    gw,
		flow:  flow,
		clock: clock,
		log:   log,
		cfg:   cfg,
		state: StateUninitialized,
		subs:  make(map[int]chan State),
	}
}

// RegisterHooks should be invoked by fx.
func RegisterHooks(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStart: m.Initialize,
		OnStop:  m.Shutdown,
	})
}

// Initialize reads the durable store once at startup and resolves to
// authenticated or unauthenticated. Callable once per process lifetime.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.setStateLocked(StateLoading)
	m.mu.Unlock()

	stored, err := m.store.Session(ctx)
	switch {
	case err == nil:
		if stored.Valid(m.clock.Now()) {
			m.log.Info("restored session from storage",
				zap.String("user", stored.User.ID),
				zap.Time("expires", stored.ExpiresAt),
			)
			m.adopt(stored)
			return nil
		}
		m.log.Info("stored session expired")
		if err := m.store.DeleteSession(ctx); err != nil {
			m.log.Warn("failed evicting expired session", zap.Error(err))
		}
	case !errors.Is(err, store.ErrNotFound):
		// A broken store reads as no persisted session. Never crash here.
		m.log.Warn("failed reading stored session", zap.Error(err))
	}

	token, err := m.store.Token(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("failed reading stored token", zap.Error(err))
		}
		m.becomeUnauthenticated()
		return nil
	}

	m.log.Info("re-deriving session from stored token")
	fresh, err := m.gw.Exchange(ctx, token)
	if err != nil {
		m.log.Warn("token re-derivation failed", zap.Error(err))
		if !gateway.IsRetryable(err) {
			// The token is dead; keeping it would loop forever.
			m.clearStore()
		}
		m.becomeUnauthenticated()
		return nil
	}

	m.establish(ctx, fresh)
	return nil
}

// Shutdown stops the validity loop without touching stored credentials.
func (m *Manager) Shutdown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLoopLocked()
	return nil
}

// Current returns a copy of the session, or nil when unauthenticated.
func (m *Manager) Current() *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// IsAuthenticated reports whether a session is established.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel of state changes and a cancel func.
// Consumers observe transitions; they never mutate session state.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 4)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// BeginExternalSignIn starts the redirect-based flow for provider. An
// empty provider uses the configured default.
func (m *Manager) BeginExternalSignIn(ctx context.Context, provider string) (SignInStatus, error) {
	if !m.attempt.TryLock() {
		return "", ErrSignInInFlight
	}
	defer m.attempt.Unlock()

	result, err := m.flow.Begin(ctx, provider)
	if err != nil {
		return "", err
	}

	if result.NeedsManualEntry {
		return SignInNeedsManualEntry, nil
	}

	if err := m.exchangeAndEstablish(ctx, result.Token); err != nil {
		return "", err
	}
	return SignInCompleted, nil
}

// CompleteManualSignIn exchanges a token obtained through manual capture
// and establishes the session.
func (m *Manager) CompleteManualSignIn(ctx context.Context, rawToken string) error {
	if !m.attempt.TryLock() {
		return ErrSignInInFlight
	}
	defer m.attempt.Unlock()

	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrEmptyToken
	}

	return m.exchangeAndEstablish(ctx, rawToken)
}

// Refresh forces an out-of-cycle exchange of the stored token. No-op when
// unauthenticated. Concurrent calls share one in-flight exchange.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return nil
	}
	epoch := m.epoch
	m.mu.Unlock()

	_, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, m.doRefresh(ctx, epoch)
	})
	return err
}

// SignOut clears memory and storage, stops the timers and transitions to
// unauthenticated. Always succeeds locally; a storage failure is logged,
// never propagated.
func (m *Manager) SignOut(_ context.Context) error {
	m.mu.Lock()
	m.clearLocked()
	m.mu.Unlock()

	m.clearStore()
	m.log.Info("signed out")
	return nil
}

func (m *Manager) exchangeAndEstablish(ctx context.Context, rawToken string) error {
	s, err := m.gw.Exchange(ctx, rawToken)
	if err != nil {
		return err
	}
	m.establish(ctx, s)
	return nil
}

// establish persists the fresh session and transitions to authenticated.
// Memory stays authoritative when a write fails; the warning is the only
// consequence. A sign-out that settles while the writes are in flight
// wins: its cleared-storage guarantee must hold, so the result is
// discarded and the store re-cleared.
func (m *Manager) establish(ctx context.Context, s *model.Session) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	m.persist(ctx, s)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Info("discarding sign-in settled after sign-out")
		m.clearStore()
		return
	}
	m.session = s
	m.setStateLocked(StateAuthenticated)
	m.startLoopLocked()
	m.mu.Unlock()
}

// persist writes both credential entries through to storage. Failures
// are logged and swallowed; the in-memory session stays authoritative.
func (m *Manager) persist(ctx context.Context, s *model.Session) {
	if err := m.store.PutToken(ctx, s.Token); err != nil {
		m.log.Warn("failed persisting token", zap.Error(err))
	}
	if err := m.store.PutSession(ctx, s); err != nil {
		m.log.Warn("failed persisting session", zap.Error(err))
	}
}

// adopt installs a session restored from storage without re-persisting it.
func (m *Manager) adopt(s *model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.setStateLocked(StateAuthenticated)
	m.startLoopLocked()
}

func (m *Manager) becomeUnauthenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.setStateLocked(StateUnauthenticated)
}

func (m *Manager) doRefresh(ctx context.Context, epoch uint64) error {
	token, err := m.store.Token(ctx)
	if err != nil {
		// Memory is authoritative at runtime; fall back to the session's
		// own token when the store misbehaves.
		m.log.Warn("failed reading stored token for refresh", zap.Error(err))
		m.mu.Lock()
		if m.session != nil {
			token = m.session.Token
		}
		m.mu.Unlock()
	}
	if token == "" {
		m.log.Info("no token available for refresh, signing out")
		m.forceSignOut(epoch)
		return gateway.ErrInvalidToken
	}

	fresh, err := m.gw.Exchange(ctx, token)
	if err != nil {
		if gateway.IsRetryable(err) {
			// Transient. Keep the session; the next tick tries again.
			m.log.Warn("session refresh failed", zap.Error(err))
			return err
		}
		// An explicit rejection means the credential is revoked or
		// expired. Retrying would only mask that.
		m.log.Info("token rejected during refresh, signing out", zap.Error(err))
		m.forceSignOut(epoch)
		return err
	}

	m.applyRefreshed(ctx, epoch, fresh)
	return nil
}

// applyRefreshed replaces the session unless a sign-out settled while the
// exchange was in flight; a late refresh must never resurrect a session,
// neither in memory nor in storage.
func (m *Manager) applyRefreshed(ctx context.Context, epoch uint64, s *model.Session) {
	m.mu.Lock()
	if m.epoch != epoch || m.state != StateAuthenticated {
		m.mu.Unlock()
		m.log.Info("discarding refresh result settled after sign-out")
		return
	}
	m.session = s
	m.mu.Unlock()

	m.persist(ctx, s)

	m.mu.Lock()
	stale := m.epoch != epoch
	m.mu.Unlock()
	if stale {
		// The writes raced a sign-out; re-clear so its guarantee holds.
		m.clearStore()
		return
	}
	m.log.Info("session refreshed", zap.Time("expires", s.ExpiresAt))
}

func (m *Manager) forceSignOut(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.clearLocked()
	m.mu.Unlock()

	m.clearStore()
}

func (m *Manager) clearLocked() {
	m.epoch++
	m.stopLoopLocked()
	m.session = nil
	m.setStateLocked(StateUnauthenticated)
}

// clearStore uses its own deadline so a caller's cancelled context cannot
// block the local sign-out guarantee.
func (m *Manager) clearStore() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("failed clearing stored credentials", zap.Error(err))
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.log.Info("state changed", zap.String("state", string(s)))
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
