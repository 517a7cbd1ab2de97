package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/model"
	"go-auth-service/internal/security"
)

type memoryStore struct {
	mu            sync.Mutex
	users         map[string]model.User
	verifications []model.EmailVerification
	failFind      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[string]model.User{}}
}

func (m *memoryStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFind != nil {
		return nil, m.failFind
	}
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memoryStore) CreateWithVerification(_ context.Context, u model.User, v model.EmailVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return model.ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	m.verifications = append(m.verifications, v)
	return nil
}

func (m *memoryStore) Redeem(_ context.Context, userID string, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for i, v := range m.verifications {
		if v.UserID != userID || v.TokenHash != tokenHash || v.Expired(now) {
			continue
		}
		u := m.users[userID]
		if u.State == model.StateActive {
			return model.ErrInvalidVerification
		}
		u.State = model.StateActive
		m.users[userID] = u
		m.verifications = append(m.verifications[:i], m.verifications[i+1:]...)
		return nil
	}
	return model.ErrInvalidVerification
}

func (m *memoryStore) CleanExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	kept := m.verifications[:0]
	var removed int64
	for _, v := range m.verifications {
		if v.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	m.verifications = kept
	return removed, nil
}

func (m *memoryStore) setVerified(t *testing.T, email string) model.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, u := range m.users {
		if u.Email == email {
			u.State = model.StateActive
			m.users[id] = u
			return u
		}
	}
	t.Fatalf("no user %s", email)
	return model.User{}
}

type capturingMailer struct {
	mu    sync.Mutex
	to    []string
	links []string
	err   error
}

func (c *capturingMailer) SendVerification(_ context.Context, to string, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.to = append(c.to, to)
	c.links = append(c.links, link)
	return nil
}

type fixture struct {
	svc    *AuthService
	store  *memoryStore
	mailer *capturingMailer
	issuer *security.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	issuer, err := security.NewTokenIssuer(security.IssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	require.NoError(t, err)

	store := newMemoryStore()
	mailer := &capturingMailer{}
	svc := NewAuthService(store, store, mailer, security.NewPasswordHasher(bcrypt.MinCost), issuer, AuthConfig{
		FrontendURL: "https://app.local/",
		DefaultRole: "user",
	})

	return &fixture{svc: svc, store: store, mailer: mailer, issuer: issuer}
}

func linkParams(t *testing.T, link string) (token string, id string) {
	t.Helper()
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/verify-email", parsed.Path)
	return parsed.Query().Get("token"), parsed.Query().Get("id")
}

func TestSignupCreatesPendingUserAndVerification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	before := time.Now()
	res, err := f.svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Secret123", Name: " Ann "})
	require.NoError(t, err)
	require.Equal(t, SignupMessage, res.Message)

	user, err := f.store.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, model.StatePendingVerification, user.State)
	require.Equal(t, []string{"user"}, user.Roles)
	require.NotNil(t, user.Name)
	require.Equal(t, "Ann", *user.Name)
	require.NotEqual(t, "Secret123", *user.PasswordHash)

	require.Len(t, f.store.verifications, 1)
	v := f.store.verifications[0]
	require.Equal(t, user.ID, v.UserID)
	require.WithinDuration(t, before.Add(60*time.Minute), v.ExpiresAt, 5*time.Second)

	require.Equal(t, []string{"a@x.com"}, f.mailer.to)
	token, id := linkParams(t, f.mailer.links[0])
	require.Equal(t, user.ID, id)
	require.Len(t, token, 64)
	require.Equal(t, security.HashToken(token), v.TokenHash)
	require.NotEqual(t, token, v.TokenHash)
}

func TestSignupDuplicateEmailConflictsWithoutMutation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	_, err = f.svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Other1234"})
	require.ErrorIs(t, err, model.ErrEmailTaken)
	require.Len(t, f.store.users, 1)
	require.Len(t, f.store.verifications, 1)
	require.Len(t, f.mailer.to, 1)
}

func TestSignupEmailIsCaseSensitive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)
	_, err = f.svc.Signup(context.Background(), SignupInput{Email: "A@x.com", Password: "Secret123"})
	require.NoError(t, err)
	require.Len(t, f.store.users, 2)
}

func TestSignupSurfacesMailFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mailer.err = errors.New("relay rejected")

	_, err := f.svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "relay rejected")
}

func TestSignupSurfacesStoreFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.failFind = errors.New("connection refused")

	_, err := f.svc.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.Error(t, err)
	require.Empty(t, f.mailer.to)
}

func TestValidateUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	t.Run("pending account is refused even with the right password", func(t *testing.T) {
		user, err := f.svc.ValidateUser(ctx, "a@x.com", "Secret123")
		require.ErrorIs(t, err, model.ErrEmailNotVerified)
		require.Nil(t, user)
	})

	t.Run("unknown email yields nil", func(t *testing.T) {
		user, err := f.svc.ValidateUser(ctx, "nobody@x.com", "Secret123")
		require.NoError(t, err)
		require.Nil(t, user)
	})

	f.store.setVerified(t, "a@x.com")

	t.Run("wrong password yields nil", func(t *testing.T) {
		user, err := f.svc.ValidateUser(ctx, "a@x.com", "Wrong1234")
		require.NoError(t, err)
		require.Nil(t, user)
	})

	t.Run("active account with right password", func(t *testing.T) {
		user, err := f.svc.ValidateUser(ctx, "a@x.com", "Secret123")
		require.NoError(t, err)
		require.NotNil(t, user)
		require.Equal(t, "a@x.com", user.Email)
	})
}

func TestValidateUserFederatedAccountYieldsNil(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.store.users["fed-1"] = model.User{ID: "fed-1", Email: "fed@x.com", State: model.StateActive}

	user, err := f.svc.ValidateUser(context.Background(), "fed@x.com", "anything")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestAuthenticateAfterVerification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "a@x.com", "Secret123")
	require.ErrorIs(t, err, model.ErrEmailNotVerified)

	token, id := linkParams(t, f.mailer.links[0])
	require.NoError(t, f.svc.VerifyEmail(ctx, id, token))

	pair, err := f.svc.Authenticate(ctx, "a@x.com", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.EqualValues(t, 300, pair.ExpiresIn)
	require.Equal(t, id, pair.User.ID)
	require.Equal(t, []string{"user"}, pair.User.Roles)

	_, err = f.svc.Authenticate(ctx, "a@x.com", "Wrong1234")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginUnknownUserIsUnauthorized(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestLoginWithoutRolesReturnsEmptyArray(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.users["u-1"] = model.User{ID: "u-1", Email: "a@x.com", State: model.StateActive}

	pair, err := f.svc.Login(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, pair.User.Roles)
	require.Empty(t, pair.User.Roles)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.store.users["u-1"] = model.User{ID: "u-1", Email: "a@x.com", State: model.StateActive, Roles: []string{"user"}}

	pair, err := f.svc.Login(ctx, "u-1")
	require.NoError(t, err)

	t.Run("refresh token mints a new pair", func(t *testing.T) {
		next, err := f.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		require.NotEqual(t, pair.AccessToken, next.AccessToken)
		require.Equal(t, "u-1", next.User.ID)
	})

	t.Run("access token is refused", func(t *testing.T) {
		next, err := f.svc.Refresh(ctx, pair.AccessToken)
		require.ErrorIs(t, err, model.ErrInvalidToken)
		require.Empty(t, next.AccessToken)
		require.Empty(t, next.RefreshToken)
	})

	t.Run("tampered token is refused", func(t *testing.T) {
		next, err := f.svc.Refresh(ctx, pair.RefreshToken+"x")
		require.ErrorIs(t, err, model.ErrInvalidToken)
		require.Empty(t, next.RefreshToken)
	})
}

func TestRefreshExpiredToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.users["u-1"] = model.User{ID: "u-1", Email: "a@x.com", State: model.StateActive}

	past := time.Now().Add(-31 * 24 * time.Hour)
	stale, err := security.NewTokenIssuer(security.IssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Now:           func() time.Time { return past },
	})
	require.NoError(t, err)

	expired, err := stale.IssueRefreshToken(security.Identity{UserID: "u-1"})
	require.NoError(t, err)

	next, err := f.svc.Refresh(context.Background(), expired)
	require.ErrorIs(t, err, model.ErrInvalidToken)
	require.Empty(t, next.AccessToken)
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)
	token, id := linkParams(t, f.mailer.links[0])

	require.ErrorIs(t, f.svc.VerifyEmail(ctx, id, "deadbeef"), model.ErrInvalidVerification)
	require.ErrorIs(t, f.svc.VerifyEmail(ctx, "not-a-uuid", token), model.ErrInvalidVerification)
	require.ErrorIs(t, f.svc.VerifyEmail(ctx, id, security.HashToken(token)), model.ErrInvalidVerification)

	require.NoError(t, f.svc.VerifyEmail(ctx, id, token))
	user, err := f.store.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StateActive, user.State)

	require.ErrorIs(t, f.svc.VerifyEmail(ctx, id, token), model.ErrInvalidVerification)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)
	token, id := linkParams(t, f.mailer.links[0])

	require.ErrorIs(t, f.svc.VerifyEmail(ctx, id, token), model.ErrInvalidVerification)

	removed, err := f.store.CleanExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestStartCleanupTickerStopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.verifications = append(f.store.verifications, model.EmailVerification{
		ID: "v-1", UserID: "u-1", ExpiresAt: time.Now().Add(-time.Minute),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.StartCleanupTicker(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		return len(f.store.verifications) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup ticker did not stop")
	}
}
