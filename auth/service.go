package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Endpoint paths, resolved against the executor's base URL.
const (
	RouteRegister           = "/api/auth/register"
	RouteLogin              = "/api/auth/login"
	RouteRefreshToken       = "/api/auth/refresh-token"
	RouteCurrentUser        = "/api/auth/me"
	RouteLogout             = "/api/auth/logout"
	RouteForgotPassword     = "/api/auth/forgot-password"
	RouteResetPassword      = "/api/auth/reset-password"
	RouteVerifyEmail        = "/api/auth/verify-email"
	RouteResendVerification = "/api/auth/resend-verification"
	RouteCheckEmail         = "/api/auth/check-email"
	RouteHealth             = "/api/health"
)

const (
	signupTimeout  = 15 * time.Second
	refreshTimeout = 15 * time.Second
	logoutTimeout  = 5 * time.Second
	healthTimeout  = 5 * time.Second
)

// TokenSource exposes the stored credentials the service needs: the
// access token for the pre-flight check on /auth/me and the refresh token
// for the refresh grant.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
}

// Service provides typed bindings for the backend auth endpoints. It does
// not persist tokens; the session manager owns the store.
type Service struct {
	executor *client.Client
	tokens   TokenSource
	log      zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService initializes the auth API bindings.
func NewService(executor *client.Client, tokens TokenSource, options ...ServiceOption) (*Service, error) {
	if executor == nil {
		return nil, errors.New("[NewService] executor is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token source is required")
	}

	s := &Service{
		executor: executor,
		tokens:   tokens,
		log:      zerolog.Nop(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	if req.Provider == "" {
		req.Provider = ProviderEmail
	}
	if req.Role == "" {
		req.Role = users.RoleStudent
	}

	s.log.Debug().Str("email", req.Email).Msg("registering account")

	out := &SignupResponse{}
	if _, err := s.executor.Post(ctx, RouteRegister, req, out, singleShot(signupTimeout)); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges credentials for a token pair. Errors from the executor
// are propagated untouched so the caller can render them inline.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if req.Email == nil && req.PhoneNumber == nil {
		return nil, errors.New("[Service.Login] email or phone number is required")
	}

	out := &TokenResponse{}
	if _, err := s.executor.Post(ctx, RouteLogin, req, out, singleShot(0)); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &client.ParseError{Err: errors.New("login response missing access token")}
	}
	return out, nil
}

// RefreshToken exchanges the stored refresh token for a new pair. With no
// refresh token stored it fails immediately, without a network call.
func (s *Service) RefreshToken(ctx context.Context) (*TokenResponse, error) {
	refreshToken := s.tokens.RefreshToken()
	if refreshToken == "" {
		return nil, &client.AuthenticationError{Err: client.ErrNoRefreshToken}
	}

	out := &TokenResponse{}
	if _, err := s.executor.Post(ctx, RouteRefreshToken, refreshRequest{RefreshToken: refreshToken}, out, singleShot(refreshTimeout)); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &client.ParseError{Err: errors.New("refresh response missing access token")}
	}
	return out, nil
}

// CurrentUser fetches the authenticated profile. With no stored access
// token it fails immediately, without a network call.
func (s *Service) CurrentUser(ctx context.Context) (*users.User, error) {
	if strings.TrimSpace(s.tokens.AccessToken()) == "" {
		return nil, &client.AuthenticationError{Err: client.ErrNoAccessToken}
	}

	user := &users.User{}
	if _, err := s.executor.Get(ctx, RouteCurrentUser, user, nil); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout invalidates the session server-side. Callers treat failures as
// best-effort; local state is cleared regardless. The bearer token is
// attached directly so a 401 here never triggers another refresh cycle.
func (s *Service) Logout(ctx context.Context) error {
	token := strings.TrimSpace(s.tokens.AccessToken())
	if token == "" {
		return nil
	}

	opts := singleShot(logoutTimeout)
	opts.Header = http.Header{"Authorization": []string{"Bearer " + token}}
	_, err := s.executor.Post(ctx, RouteLogout, nil, nil, opts)
	return err
}

// ForgotPassword requests a password reset email.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	_, err := s.executor.Post(ctx, RouteForgotPassword, emailRequest{Email: email}, nil, singleShot(0))
	return err
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	_, err := s.executor.Post(ctx, RouteResetPassword, resetPasswordRequest{Token: token, NewPassword: newPassword}, nil, singleShot(0))
	return err
}

// VerifyEmail confirms an address using an emailed token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	_, err := s.executor.Post(ctx, RouteVerifyEmail, tokenRequest{Token: token}, nil, singleShot(0))
	return err
}

// ResendVerification re-sends the verification email.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	_, err := s.executor.Post(ctx, RouteResendVerification, emailRequest{Email: email}, nil, singleShot(0))
	return err
}

// CheckEmail reports whether an email address is free to register.
func (s *Service) CheckEmail(ctx context.Context, email string) (*AvailabilityResponse, error) {
	out := &AvailabilityResponse{}
	if _, err := s.executor.Post(ctx, RouteCheckEmail, emailRequest{Email: email}, out, &client.RequestOptions{
		RequireAuth: utils.Ptr(false),
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports whether the backend answers its health endpoint.
func (s *Service) Health(ctx context.Context) bool {
	opts := singleShot(healthTimeout)
	opts.Retries = nil // health probes may use the normal retry budget
	if _, err := s.executor.Get(ctx, RouteHealth, nil, opts); err != nil {
		s.log.Debug().Err(err).Msg("health check failed")
		return false
	}
	return true
}

// singleShot disables retries and authentication for the account
// endpoints: reissuing a register or login on a 5xx could apply it twice
// server-side.
func singleShot(timeout time.Duration) *client.RequestOptions {
	return &client.RequestOptions{
		Timeout:     timeout,
		Retries:     utils.Ptr(0),
		RequireAuth: utils.Ptr(false),
	}
}
