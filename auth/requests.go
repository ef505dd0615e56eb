package auth

import "github.com/jrsteele09/go-auth-client/users"

// ProviderType identifies how an account was created.
type ProviderType string

const (
	ProviderEmail    ProviderType = "EMAIL"
	ProviderGoogle   ProviderType = "GOOGLE"
	ProviderGitHub   ProviderType = "GITHUB"
	ProviderLinkedIn ProviderType = "LINKEDIN"
	ProviderPhone    ProviderType = "PHONE"
)

// SignupRequest is the payload for POST /auth/register.
type SignupRequest struct {
	FullName            string         `json:"fullName"`
	Email               string         `json:"email"`
	Password            string         `json:"password"`
	Provider            ProviderType   `json:"provider"`
	AcceptedTerms       bool           `json:"acceptedTerms"`
	SubscribeNewsletter bool           `json:"subscribeNewsletter"`
	PhoneNumber         *string        `json:"phoneNumber,omitempty"`
	Role                users.RoleType `json:"role"`
}

// LoginRequest carries either an email or a phone number plus a password.
type LoginRequest struct {
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Password    string  `json:"password"`
}

// TokenResponse is the wire shape shared by the login and refresh
// endpoints. ExpiresIn is in seconds and may be absent.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// SignupResponse is returned by POST /auth/register.
type SignupResponse struct {
	Message          string `json:"message"`
	UserID           int64  `json:"user_id"`
	VerificationSent bool   `json:"verification_sent"`
}

// AvailabilityResponse is returned by POST /auth/check-email.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
