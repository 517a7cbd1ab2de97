package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-auth-service/internal/model"
	"go-auth-service/internal/security"
)

const (
	SignupMessage          = "Check your mailbox to verify the account"
	DefaultVerificationTTL = 60 * time.Minute
)

type UserStore interface {
	// FindByEmail and FindByID return nil, nil when the user does not exist.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// CreateWithVerification must fail with model.ErrEmailTaken on a
	// duplicate email and persist nothing in that case.
	CreateWithVerification(ctx context.Context, u model.User, v model.EmailVerification) error
}

type VerificationStore interface {
	Redeem(ctx context.Context, userID string, tokenHash string) error
	CleanExpired(ctx context.Context) (int64, error)
}

type Mailer interface {
	SendVerification(ctx context.Context, to string, link string) error
}

type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, hash string) bool
}

type Issuer interface {
	IssueAccessToken(id security.Identity) (string, error)
	IssueRefreshToken(id security.Identity) (string, error)
	ValidateAccessToken(token string) (*model.AuthClaims, error)
	ValidateRefreshToken(token string) (*model.AuthClaims, error)
	AccessTTL() time.Duration
}

type AuthConfig struct {
	FrontendURL     string
	VerificationTTL time.Duration
	DefaultRole     string
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// AuthService composes hashing, verification tokens and session tokens.
// It keeps no state between calls.
type AuthService struct {
	users         UserStore
	verifications VerificationStore
	mailer        Mailer
	hasher        Hasher
	issuer        Issuer
	cfg           AuthConfig
	now           func() time.Time
}

func NewAuthService(users UserStore, verifications VerificationStore, mailer Mailer, hasher Hasher, issuer Issuer, cfg AuthConfig) *AuthService {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = DefaultVerificationTTL
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &AuthService{
		users:         users,
		verifications: verifications,
		mailer:        mailer,
		hasher:        hasher,
		issuer:        issuer,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.SignupResult, error) {
	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return model.SignupResult{}, err
	}
	if existing != nil {
		return model.SignupResult{}, model.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.SignupResult{}, err
	}

	raw, tokenHash, err := security.NewVerificationToken()
	if err != nil {
		return model.SignupResult{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: &hash,
		State:        model.StatePendingVerification,
		Roles:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = &name
	}
	if s.cfg.DefaultRole != "" {
		user.Roles = []string{s.cfg.DefaultRole}
	}

	verification := model.EmailVerification{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(s.cfg.VerificationTTL),
		CreatedAt: now,
	}

	if err := s.users.CreateWithVerification(ctx, user, verification); err != nil {
		return model.SignupResult{}, err
	}

	if err := s.mailer.SendVerification(ctx, user.Email, s.verificationLink(raw, user.ID)); err != nil {
		return model.SignupResult{}, fmt.Errorf("send verification mail: %w", err)
	}

	slog.Info("user signed up", "user_id", user.ID)
	return model.SignupResult{Message: SignupMessage}, nil
}

func (s *AuthService) verificationLink(rawToken string, userID string) string {
	q := url.Values{}
	q.Set("token", rawToken)
	q.Set("id", userID)
	return s.cfg.FrontendURL + "/verify-email?" + q.Encode()
}

// ValidateUser returns nil, nil for an unknown email, a password-less account
// or a wrong password. A pending account fails with model.ErrEmailNotVerified
// before the password is checked.
func (s *AuthService) ValidateUser(ctx context.Context, email string, plaintext string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		return nil, nil
	}

	switch user.State {
	case model.StatePendingVerification:
		return nil, model.ErrEmailNotVerified
	case model.StateActive:
	default:
		return nil, fmt.Errorf("user %s has unknown account state %d", user.ID, user.State)
	}

	if !s.hasher.Verify(plaintext, *user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, userID string) (model.TokenPair, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	if user == nil {
		return model.TokenPair{}, model.ErrUnauthorized
	}

	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	id := security.Identity{UserID: user.ID, Email: user.Email, Roles: roles}

	access, err := s.issuer.IssueAccessToken(id)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.issuer.IssueRefreshToken(id)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
		User:         model.AuthUser{ID: user.ID, Email: user.Email, Roles: roles},
	}, nil
}

// Authenticate is the password login: ValidateUser followed by Login.
func (s *AuthService) Authenticate(ctx context.Context, email string, password string) (model.TokenPair, error) {
	user, err := s.ValidateUser(ctx, email, password)
	if err != nil {
		return model.TokenPair{}, err
	}
	if user == nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	return s.Login(ctx, user.ID)
}

// Refresh mints a new pair from a valid refresh token. The presented token
// stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.issuer.ValidateRefreshToken(refreshToken)
	if err != nil {
		return model.TokenPair{}, model.ErrInvalidToken
	}
	return s.Login(ctx, claims.UserID)
}

func (s *AuthService) ValidateAccessToken(token string) (*model.AuthClaims, error) {
	return s.issuer.ValidateAccessToken(token)
}

// VerifyEmail redeems a raw verification token for userID and activates the
// account. The token cannot be redeemed twice.
func (s *AuthService) VerifyEmail(ctx context.Context, userID string, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return model.ErrInvalidVerification
	}
	if _, err := uuid.Parse(userID); err != nil {
		return model.ErrInvalidVerification
	}

	if err := s.verifications.Redeem(ctx, userID, security.HashToken(rawToken)); err != nil {
		return err
	}

	slog.Info("email verified", "user_id", userID)
	return nil
}

// StartCleanupTicker purges expired verification records until ctx ends.
func (s *AuthService) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanExpired(ctx)
		}
	}
}

func (s *AuthService) cleanExpired(ctx context.Context) {
	removed, err := s.verifications.CleanExpired(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("failed to clean expired verifications", "error", err)
		}
		return
	}
	if removed > 0 {
		slog.Info("expired verifications removed", "count", removed)
	}
}
