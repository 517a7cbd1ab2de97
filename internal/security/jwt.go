package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-auth-service/internal/model"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

type IssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now overrides the clock used for iat/exp and validation.
	Now func() time.Time
}

// Identity is the subject a token pair is minted for.
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

type sessionClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	Type  string   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs access and refresh tokens with separate HMAC secrets,
// so neither secret alone can forge the other kind of token.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewTokenIssuer(cfg IssuerConfig) (*TokenIssuer, error) {
	access, refresh := cfg.AccessSecret, cfg.RefreshSecret
	if strings.TrimSpace(access) == "" || strings.TrimSpace(refresh) == "" {
		return nil, errors.New("access and refresh signing secrets are required")
	}
	if access != strings.TrimSpace(access) || refresh != strings.TrimSpace(refresh) {
		return nil, errors.New("signing secrets must not have surrounding whitespace")
	}
	if access == refresh {
		return nil, errors.New("access and refresh signing secrets must differ")
	}

	issuer := &TokenIssuer{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           cfg.Now,
	}
	if issuer.accessTTL <= 0 {
		issuer.accessTTL = DefaultAccessTTL
	}
	if issuer.refreshTTL <= 0 {
		issuer.refreshTTL = DefaultRefreshTTL
	}
	if issuer.now == nil {
		issuer.now = time.Now
	}

	return issuer, nil
}

func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func (i *TokenIssuer) IssueAccessToken(id Identity) (string, error) {
	return i.sign(id, TokenTypeAccess, i.accessTTL, i.accessSecret)
}

func (i *TokenIssuer) IssueRefreshToken(id Identity) (string, error) {
	return i.sign(id, TokenTypeRefresh, i.refreshTTL, i.refreshSecret)
}

// ValidateAccessToken fails with model.ErrInvalidToken for anything but a
// live access token signed with the access secret.
func (i *TokenIssuer) ValidateAccessToken(token string) (*model.AuthClaims, error) {
	return i.validate(token, TokenTypeAccess, i.accessSecret)
}

// ValidateRefreshToken fails with model.ErrInvalidToken for anything but a
// live refresh token signed with the refresh secret. The error never says
// which check failed.
func (i *TokenIssuer) ValidateRefreshToken(token string) (*model.AuthClaims, error) {
	return i.validate(token, TokenTypeRefresh, i.refreshSecret)
}

func (i *TokenIssuer) sign(id Identity, typ string, ttl time.Duration, secret []byte) (string, error) {
	now := i.now().UTC()
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}

	claims := sessionClaims{
		Email: id.Email,
		Roles: roles,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (i *TokenIssuer) validate(token string, expectedType string, secret []byte) (*model.AuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidToken
	}

	if claims.Type != expectedType || claims.Subject == "" {
		return nil, model.ErrInvalidToken
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}

	return &model.AuthClaims{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Roles:   roles,
		Type:    claims.Type,
		TokenID: claims.ID,
	}, nil
}
