package model

import "time"

// AccountState is the lifecycle state of an account. It is stored as the
// email_verified column.
type AccountState int

const (
	StatePendingVerification AccountState = iota
	StateActive
)

func (s AccountState) String() string {
	switch s {
	case StatePendingVerification:
		return "pending_verification"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// AccountStateFromVerified maps the persisted flag to a lifecycle state.
func AccountStateFromVerified(verified bool) AccountState {
	if verified {
		return StateActive
	}
	return StatePendingVerification
}

type User struct {
	ID           string
	Email        string
	PasswordHash *string
	Name         *string
	State        AccountState
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can sign in with a password.
// Accounts created by a federated provider have none.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

type EmailVerification struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (v *EmailVerification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

type AuthClaims struct {
	UserID  string   `json:"sub"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
	Type    string   `json:"typ"`
	TokenID string   `json:"jti"`
}

type AuthUser struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         AuthUser `json:"user"`
}

type SignupResult struct {
	Message string `json:"message"`
}

type MeResponse struct {
	UserID string `json:"user_id"`
}
