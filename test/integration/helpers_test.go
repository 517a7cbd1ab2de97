//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/database"
	"go-auth-service/internal/model"
	"go-auth-service/internal/security"
)

// newTestDB connects to DATABASE_URL, applies migrations and empties the
// auth tables. Tests are skipped when no database is configured.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.PoolConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE email_verifications, user_roles, users, auth_audit`)
	require.NoError(t, err)

	return db
}

func pendingUser(email string) (model.User, model.EmailVerification, string) {
	now := time.Now().UTC()
	hash := "$2a$04$placeholderplaceholderplaceholderplaceholderplace"
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: &hash,
		State:        model.StatePendingVerification,
		Roles:        []string{"user"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	raw, tokenHash, err := security.NewVerificationToken()
	if err != nil {
		panic(err)
	}
	verification := model.EmailVerification{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	return user, verification, raw
}

func countRows(t *testing.T, db *database.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.Pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
