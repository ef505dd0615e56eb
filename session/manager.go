package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State is the session manager's current authentication state.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateVerifying       State = "verifying"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
)

// DefaultRefreshInterval is how often the auto-refresh loop proactively
// renews the token pair.
const DefaultRefreshInterval = 25 * time.Minute

// API is the slice of the auth service the manager drives.
type API interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error)
	RefreshToken(ctx context.Context) (*auth.TokenResponse, error)
	CurrentUser(ctx context.Context) (*users.User, error)
	Logout(ctx context.Context) error
}

var _ API = (*auth.Service)(nil)

// Snapshot is an immutable view of the session for authorization
// decisions. It must be re-read after any operation that can change
// state.
type Snapshot struct {
	State         State
	User          *users.User
	Authenticated bool
}

// Manager owns the authenticated-user state machine: login, logout,
// silent refresh, periodic renewal, and failure recovery. It is the only
// writer of the token store.
type Manager struct {
	tokens *store.TokenStore
	api    API
	log    zerolog.Logger

	refreshInterval time.Duration

	lock        sync.RWMutex
	state       State
	user        *users.User
	stopRefresh context.CancelFunc
}

// Option defines a function type to modify the Manager instance.
type Option func(*Manager)

func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

func WithRefreshInterval(interval time.Duration) Option {
	return func(m *Manager) {
		m.refreshInterval = interval
	}
}

// NewManager initializes a Manager with required dependencies.
func NewManager(tokens *store.TokenStore, api API, options ...Option) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("[NewManager] token store is required")
	}
	if api == nil {
		return nil, errors.New("[NewManager] auth API is required")
	}

	m := &Manager{
		tokens:          tokens,
		api:             api,
		log:             zerolog.Nop(),
		refreshInterval: DefaultRefreshInterval,
		state:           StateUnauthenticated,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.refreshInterval <= 0 {
		return nil, errors.New("[NewManager] refresh interval must be positive")
	}

	return m, nil
}

var _ client.SessionRefresher = (*Manager)(nil)

// Initialize restores the session on startup. With no stored token it
// settles in Unauthenticated without a network call; otherwise the cached
// profile is hydrated optimistically and verified in Verifying state. A
// verification failure runs failure recovery and is not surfaced: the
// caller simply finds the session unauthenticated.
func (m *Manager) Initialize(ctx context.Context) {
	if m.tokens.AccessToken() == "" {
		m.setState(StateUnauthenticated, nil)
		return
	}

	m.setState(StateVerifying, m.tokens.User())

	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("session verification failed")
		m.recoverFromFailure(ctx)
		return
	}

	m.tokens.SetUser(user)
	m.setState(StateAuthenticated, user)
}

// Login exchanges credentials for a token pair, stores it, and fetches
// the profile. On failure the typed error is propagated untouched and the
// session stays Unauthenticated.
func (m *Manager) Login(ctx context.Context, req auth.LoginRequest) (*users.User, error) {
	tokenResponse, err := m.api.Login(ctx, req)
	if err != nil {
		m.setState(StateUnauthenticated, nil)
		return nil, err
	}

	m.tokens.SetTokens(tokenResponse.AccessToken, tokenResponse.RefreshToken, expiresIn(tokenResponse))

	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		m.recoverFromFailure(ctx)
		return nil, errors.Wrap(err, "[Manager.Login] profile fetch")
	}

	m.tokens.SetUser(user)
	m.setState(StateAuthenticated, user)
	m.log.Info().Str("user", user.FullName).Msg("logged in")
	return user, nil
}

// Logout ends the session. The remote invalidation is best-effort; local
// state is always cleared and the session always ends Unauthenticated.
func (m *Manager) Logout(ctx context.Context) {
	m.cancelAutoRefresh()

	if err := m.api.Logout(ctx); err != nil {
		m.log.Warn().Err(err).Msg("remote logout failed, clearing local state only")
	}

	m.tokens.ClearTokens()
	m.tokens.ClearUser()
	m.setState(StateUnauthenticated, nil)
	m.log.Info().Msg("logged out")
}

// RefreshUser re-fetches the profile with the current token. A 401-class
// failure tears the session down and reports ErrSessionExpired.
func (m *Manager) RefreshUser(ctx context.Context) (*users.User, error) {
	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		if client.IsAuthentication(err) {
			m.recoverFromFailure(ctx)
			return nil, &client.AuthenticationError{
				Message: "session expired, please log in again",
				Err:     client.ErrSessionExpired,
			}
		}
		return nil, errors.Wrap(err, "[Manager.RefreshUser] profile fetch")
	}

	m.tokens.SetUser(user)
	m.setState(StateAuthenticated, user)
	return user, nil
}

// RefreshSession exchanges the refresh token for a new pair. The new pair
// supersedes the old one in a single store write; two racing refreshes
// both land in a consistent terminal state with last write winning. On
// any failure the session is fully torn down rather than left half-valid.
func (m *Manager) RefreshSession(ctx context.Context) error {
	m.enterRefreshing()

	tokenResponse, err := m.api.RefreshToken(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("token refresh failed")
		m.recoverFromFailure(ctx)
		return err
	}

	m.tokens.SetTokens(tokenResponse.AccessToken, tokenResponse.RefreshToken, expiresIn(tokenResponse))
	m.leaveRefreshing()
	return nil
}

// StartAutoRefresh runs the periodic renewal loop until the returned stop
// function is called, the context ends, or the session ends. Calling it
// while a loop is already running returns a stop for the existing loop.
func (m *Manager) StartAutoRefresh(ctx context.Context) (stop func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.stopRefresh != nil {
		return m.stopRefresh
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.stopRefresh = cancel

	go m.refreshLoop(loopCtx)
	return cancel
}

func (m *Manager) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.autoRefresh(ctx); err != nil {
				m.log.Warn().Err(err).Msg("auto-refresh failed, ending session")
				m.recoverFromFailure(ctx)
				return
			}
		}
	}
}

// autoRefresh proactively renews the token pair and revalidates the
// profile so the session never runs into hard expiry.
func (m *Manager) autoRefresh(ctx context.Context) error {
	if err := m.RefreshSession(ctx); err != nil {
		return err
	}
	if _, err := m.RefreshUser(ctx); err != nil {
		return err
	}
	m.log.Debug().Msg("session refreshed")
	return nil
}

// recoverFromFailureTimeout bounds the best-effort remote logout issued
// during failure recovery.
const recoverFromFailureTimeout = 5 * time.Second

// recoverFromFailure is the failure-recovery procedure: best-effort
// remote logout, then unconditional local teardown. Idempotent, so two
// near-simultaneous failed requests may both run it; the second pass
// finds everything already cleared. Recovery may be entered from inside
// the auto-refresh loop, whose context dies when the loop is cancelled,
// so the remote logout runs on a detached context.
func (m *Manager) recoverFromFailure(ctx context.Context) {
	m.cancelAutoRefresh()

	logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recoverFromFailureTimeout)
	defer cancel()

	if err := m.api.Logout(logoutCtx); err != nil {
		m.log.Warn().Err(err).Msg("remote logout during failure recovery failed")
	}

	m.tokens.ClearTokens()
	m.tokens.ClearUser()
	m.setState(StateUnauthenticated, nil)
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// CurrentUser returns the cached profile, or nil outside an authenticated
// session.
func (m *Manager) CurrentUser() *users.User {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.user
}

// IsAuthenticated reports true iff an access token exists and has not
// reached its expiry margin.
func (m *Manager) IsAuthenticated() bool {
	return m.tokens.AccessToken() != "" && !m.tokens.IsExpired()
}

// Snapshot captures the session view used for authorization decisions.
func (m *Manager) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return Snapshot{
		State:         m.state,
		User:          m.user,
		Authenticated: m.state == StateAuthenticated,
	}
}

func (m *Manager) setState(state State, user *users.User) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = state
	m.user = user
}

func (m *Manager) enterRefreshing() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == StateAuthenticated {
		m.state = StateRefreshing
	}
}

func (m *Manager) leaveRefreshing() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == StateRefreshing {
		m.state = StateAuthenticated
	}
}

func (m *Manager) cancelAutoRefresh() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.stopRefresh != nil {
		m.stopRefresh()
		m.stopRefresh = nil
	}
}

func expiresIn(tokenResponse *auth.TokenResponse) time.Duration {
	return time.Duration(tokenResponse.ExpiresIn) * time.Second
}
