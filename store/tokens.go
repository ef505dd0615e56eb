package store

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog"
)

const (
	sessionKey = "auth_session"
	userKey    = "auth_user"

	// ExpiryMargin is subtracted from the stored expiry so a refresh is
	// forced before the token can expire mid-flight.
	ExpiryMargin = 5 * time.Minute
)

// TokenPair is the persisted session record. The whole pair and its
// expiry are serialized as one storage value, so a concurrent reader sees
// either the previous pair or the new one, never a mix.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds, 0 when unknown
}

// TokenStore persists the token pair, its expiry, and the cached user
// profile. None of its methods return errors: losing persistence must not
// crash the session, so storage failures are logged and swallowed.
type TokenStore struct {
	storage Storage
	log     zerolog.Logger
	nowTime func() time.Time
}

// TokenStoreOption defines a function type to modify the TokenStore.
type TokenStoreOption func(*TokenStore)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) TokenStoreOption {
	return func(ts *TokenStore) {
		ts.nowTime = nowFunc
	}
}

func WithLogger(log zerolog.Logger) TokenStoreOption {
	return func(ts *TokenStore) {
		ts.log = log
	}
}

// NewTokenStore wraps the given storage. A nil storage degrades to the
// unavailable backend so callers never have to nil-check.
func NewTokenStore(storage Storage, options ...TokenStoreOption) *TokenStore {
	if storage == nil {
		storage = Unavailable()
	}

	ts := &TokenStore{
		storage: storage,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(ts)
	}

	return ts
}

// SetTokens stores a new pair, superseding any previous one. When
// expiresIn is zero the expiry is derived from the access token's exp
// claim; when that also fails, no expiry is stored and IsExpired reports
// true, forcing an eager refresh.
func (ts *TokenStore) SetTokens(accessToken, refreshToken string, expiresIn time.Duration) {
	pair := TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}

	if expiresIn > 0 {
		pair.ExpiresAt = ts.nowTime().Add(expiresIn).Unix()
	} else if expiry, ok := accessTokenExpiry(accessToken); ok {
		pair.ExpiresAt = expiry.Unix()
	}

	raw, err := json.Marshal(pair)
	if err != nil {
		ts.log.Warn().Err(err).Msg("failed to serialize token pair")
		return
	}
	if err := ts.storage.Set(sessionKey, string(raw)); err != nil {
		ts.log.Warn().Err(err).Msg("failed to persist token pair")
	}
}

func (ts *TokenStore) AccessToken() string {
	return ts.pair().AccessToken
}

func (ts *TokenStore) RefreshToken() string {
	return ts.pair().RefreshToken
}

// IsExpired reports true when no expiry is stored or the current time has
// reached the stored expiry minus the safety margin.
func (ts *TokenStore) IsExpired() bool {
	pair := ts.pair()
	if pair.ExpiresAt == 0 {
		return true
	}
	deadline := time.Unix(pair.ExpiresAt, 0).Add(-ExpiryMargin)
	return !ts.nowTime().Before(deadline)
}

// ClearTokens removes the token pair and expiry. Idempotent.
func (ts *TokenStore) ClearTokens() {
	if err := ts.storage.Delete(sessionKey); err != nil {
		ts.log.Warn().Err(err).Msg("failed to clear token pair")
	}
}

func (ts *TokenStore) SetUser(user *users.User) {
	if user == nil {
		ts.ClearUser()
		return
	}

	raw, err := json.Marshal(user)
	if err != nil {
		ts.log.Warn().Err(err).Msg("failed to serialize user profile")
		return
	}
	if err := ts.storage.Set(userKey, string(raw)); err != nil {
		ts.log.Warn().Err(err).Msg("failed to persist user profile")
	}
}

// User returns the cached profile, or nil when nothing usable is stored.
func (ts *TokenStore) User() *users.User {
	raw, err := ts.storage.Get(userKey)
	if err != nil {
		return nil
	}

	user := &users.User{}
	if err := json.Unmarshal([]byte(raw), user); err != nil {
		ts.log.Warn().Err(err).Msg("failed to decode cached user profile")
		return nil
	}
	return user
}

func (ts *TokenStore) ClearUser() {
	if err := ts.storage.Delete(userKey); err != nil {
		ts.log.Warn().Err(err).Msg("failed to clear user profile")
	}
}

func (ts *TokenStore) pair() TokenPair {
	raw, err := ts.storage.Get(sessionKey)
	if err != nil {
		return TokenPair{}
	}

	pair := TokenPair{}
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		ts.log.Warn().Err(err).Msg("failed to decode stored token pair")
		return TokenPair{}
	}
	return pair
}

// accessTokenExpiry reads the exp claim without verifying the signature.
// The client has no key material; expiry here only schedules refreshes,
// authorization stays with the server.
func accessTokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
