package session_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a hand-rolled fake for the slice of the auth service the
// manager drives. Behavior is overridden per test via the function
// fields; counters track call volume.
type fakeAPI struct {
	loginFn       func(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error)
	refreshFn     func(ctx context.Context) (*auth.TokenResponse, error)
	currentUserFn func(ctx context.Context) (*users.User, error)
	logoutFn      func(ctx context.Context) error

	loginCalls       int32
	refreshCalls     int32
	currentUserCalls int32
	logoutCalls      int32
}

var _ session.API = (*fakeAPI)(nil)

func (f *fakeAPI) Login(ctx context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	atomic.AddInt32(&f.loginCalls, 1)
	if f.loginFn != nil {
		return f.loginFn(ctx, req)
	}
	return &auth.TokenResponse{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 3600}, nil
}

func (f *fakeAPI) RefreshToken(ctx context.Context) (*auth.TokenResponse, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshFn != nil {
		return f.refreshFn(ctx)
	}
	return &auth.TokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
}

func (f *fakeAPI) CurrentUser(ctx context.Context) (*users.User, error) {
	atomic.AddInt32(&f.currentUserCalls, 1)
	if f.currentUserFn != nil {
		return f.currentUserFn(ctx)
	}
	return testUser(), nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	atomic.AddInt32(&f.logoutCalls, 1)
	if f.logoutFn != nil {
		return f.logoutFn(ctx)
	}
	return nil
}

func testUser() *users.User {
	return &users.User{
		ID:       1,
		FullName: "Jane Doe",
		Email:    utils.Ptr("jane@example.com"),
		Role:     users.RoleStudent,
	}
}

type managerFixture struct {
	api     *fakeAPI
	tokens  *store.TokenStore
	manager *session.Manager
}

func newManagerFixture(t *testing.T, options ...session.Option) *managerFixture {
	t.Helper()

	f := &managerFixture{
		api:    &fakeAPI{},
		tokens: store.NewTokenStore(store.NewMemoryStorage()),
	}

	manager, err := session.NewManager(f.tokens, f.api, options...)
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *managerFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{
		Email:    utils.Ptr("jane@example.com"),
		Password: "password123",
	})
	require.NoError(t, err)
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := session.NewManager(nil, &fakeAPI{})
	require.Error(t, err)

	_, err = session.NewManager(store.NewTokenStore(store.NewMemoryStorage()), nil)
	require.Error(t, err)
}

func TestLogin_StoresTokensAndProfile(t *testing.T) {
	f := newManagerFixture(t)

	user, err := f.manager.Login(context.Background(), auth.LoginRequest{
		Email:    utils.Ptr("jane@example.com"),
		Password: "password123",
	})

	require.NoError(t, err)
	require.Equal(t, "Jane Doe", user.FullName)
	require.Equal(t, "access-1", f.tokens.AccessToken())
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.True(t, f.manager.IsAuthenticated())
	require.NotNil(t, f.tokens.User())
}

func TestLogin_FailurePropagatesTypedError(t *testing.T) {
	f := newManagerFixture(t)
	wantErr := &client.APIError{Status: 422, Message: "invalid credentials"}
	f.api.loginFn = func(context.Context, auth.LoginRequest) (*auth.TokenResponse, error) {
		return nil, wantErr
	}

	_, err := f.manager.Login(context.Background(), auth.LoginRequest{
		Email:    utils.Ptr("jane@example.com"),
		Password: "wrong",
	})

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Same(t, wantErr, apiErr, "login errors surface untouched")
	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Empty(t, f.tokens.AccessToken())
}

func TestLogout_ClearsStateDespiteRemoteFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	f.api.logoutFn = func(context.Context) error {
		return &client.APIError{Status: 500, Message: "server error"}
	}

	f.manager.Logout(context.Background())

	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Empty(t, f.tokens.AccessToken())
	require.Empty(t, f.tokens.RefreshToken())
	require.Nil(t, f.tokens.User())
	require.False(t, f.manager.IsAuthenticated())
}

func TestInitialize_NoToken_NoNetworkCall(t *testing.T) {
	f := newManagerFixture(t)

	f.manager.Initialize(context.Background())

	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Zero(t, atomic.LoadInt32(&f.api.currentUserCalls))
}

func TestInitialize_VerifiesStoredSession(t *testing.T) {
	f := newManagerFixture(t)
	f.tokens.SetTokens("stored-access", "stored-refresh", time.Hour)

	f.manager.Initialize(context.Background())

	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.Equal(t, int32(1), atomic.LoadInt32(&f.api.currentUserCalls))
	require.Equal(t, "Jane Doe", f.manager.CurrentUser().FullName)
}

func TestInitialize_VerificationFailureRecoversQuietly(t *testing.T) {
	f := newManagerFixture(t)
	f.tokens.SetTokens("stale-access", "stale-refresh", time.Hour)
	f.api.currentUserFn = func(context.Context) (*users.User, error) {
		return nil, &client.AuthenticationError{Err: client.ErrSessionExpired}
	}

	f.manager.Initialize(context.Background())

	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Empty(t, f.tokens.AccessToken())
	require.Nil(t, f.manager.CurrentUser())
}

func TestRefreshUser_AuthFailureEndsSession(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	f.api.currentUserFn = func(context.Context) (*users.User, error) {
		return nil, &client.AuthenticationError{Err: client.ErrSessionExpired}
	}

	_, err := f.manager.RefreshUser(context.Background())

	require.ErrorIs(t, err, client.ErrSessionExpired)
	require.True(t, client.IsAuthentication(err))
	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Empty(t, f.tokens.AccessToken())
}

func TestRefreshUser_NetworkFailureKeepsSession(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	f.api.currentUserFn = func(context.Context) (*users.User, error) {
		return nil, &client.NetworkError{Message: "timeout"}
	}

	_, err := f.manager.RefreshUser(context.Background())

	require.Error(t, err)
	require.False(t, client.IsAuthentication(err))
	require.Equal(t, "access-1", f.tokens.AccessToken(), "transient failures must not tear the session down")
}

func TestRefreshSession_RotatesPair(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	require.NoError(t, f.manager.RefreshSession(context.Background()))

	require.Equal(t, "access-2", f.tokens.AccessToken())
	require.Equal(t, "refresh-2", f.tokens.RefreshToken())
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.False(t, f.tokens.IsExpired())
}

func TestRefreshSession_FailureTearsDown(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	f.api.refreshFn = func(context.Context) (*auth.TokenResponse, error) {
		return nil, &client.AuthenticationError{Err: client.ErrNoRefreshToken}
	}

	err := f.manager.RefreshSession(context.Background())

	require.Error(t, err)
	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Empty(t, f.tokens.AccessToken())
	require.Empty(t, f.tokens.RefreshToken())
}

func TestRefreshSession_ConcurrentRefreshesLandConsistent(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	var refreshes int32
	f.api.refreshFn = func(context.Context) (*auth.TokenResponse, error) {
		n := atomic.AddInt32(&refreshes, 1)
		return &auth.TokenResponse{
			AccessToken:  fmt.Sprintf("access-r%d", n),
			RefreshToken: fmt.Sprintf("refresh-r%d", n),
			ExpiresIn:    3600,
		}, nil
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.manager.RefreshSession(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	access := f.tokens.AccessToken()
	refresh := f.tokens.RefreshToken()
	require.NotEmpty(t, access)
	require.Equal(t,
		strings.TrimPrefix(access, "access-"),
		strings.TrimPrefix(refresh, "refresh-"),
		"stored pair must come from a single refresh response")
	require.Equal(t, session.StateAuthenticated, f.manager.State())
	require.False(t, f.tokens.IsExpired())
}

func TestFailureRecovery_ConcurrentCallsStayConsistent(t *testing.T) {
	f := newManagerFixture(t)
	f.login(t)

	f.api.currentUserFn = func(context.Context) (*users.User, error) {
		return nil, &client.AuthenticationError{Err: client.ErrSessionExpired}
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.manager.RefreshUser(context.Background())
		}()
	}
	wg.Wait()

	require.Equal(t, session.StateUnauthenticated, f.manager.State())
	require.Empty(t, f.tokens.AccessToken())
	require.Empty(t, f.tokens.RefreshToken())
	require.Nil(t, f.tokens.User())
}

func TestStartAutoRefresh_FailureForcesLogout(t *testing.T) {
	f := newManagerFixture(t, session.WithRefreshInterval(10*time.Millisecond))
	f.login(t)

	f.api.refreshFn = func(context.Context) (*auth.TokenResponse, error) {
		return nil, errors.New("refresh endpoint down")
	}

	stop := f.manager.StartAutoRefresh(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		return f.manager.State() == session.StateUnauthenticated
	}, time.Second, 5*time.Millisecond, "auto-refresh failure must end the session")
	require.Empty(t, f.tokens.AccessToken())
}

func TestStartAutoRefresh_RecoveryLogoutUsesLiveContext(t *testing.T) {
	f := newManagerFixture(t, session.WithRefreshInterval(10*time.Millisecond))
	f.login(t)

	f.api.refreshFn = func(context.Context) (*auth.TokenResponse, error) {
		return nil, errors.New("refresh endpoint down")
	}

	logoutCtxErr := make(chan error, 1)
	f.api.logoutFn = func(ctx context.Context) error {
		select {
		case logoutCtxErr <- ctx.Err():
		default:
		}
		return nil
	}

	stop := f.manager.StartAutoRefresh(context.Background())
	defer stop()

	select {
	case err := <-logoutCtxErr:
		require.NoError(t, err, "recovery must issue the remote logout on a live context")
	case <-time.After(time.Second):
		t.Fatal("recovery never issued a remote logout")
	}

	require.Eventually(t, func() bool {
		return f.manager.State() == session.StateUnauthenticated
	}, time.Second, 5*time.Millisecond)
}

func TestStartAutoRefresh_KeepsSessionFresh(t *testing.T) {
	f := newManagerFixture(t, session.WithRefreshInterval(10*time.Millisecond))
	f.login(t)

	stop := f.manager.StartAutoRefresh(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		return f.tokens.AccessToken() == "access-2"
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, session.StateAuthenticated, f.manager.State())
}

func TestStartAutoRefresh_SecondCallReturnsExistingLoop(t *testing.T) {
	f := newManagerFixture(t, session.WithRefreshInterval(time.Hour))
	f.login(t)

	ctx := context.Background()
	stopFirst := f.manager.StartAutoRefresh(ctx)
	stopSecond := f.manager.StartAutoRefresh(ctx)
	stopFirst()
	stopSecond()
}
