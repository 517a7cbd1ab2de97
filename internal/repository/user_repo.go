package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-service/internal/model"
)

const (
	uniqueViolation    = "23505"
	usersEmailKeyIndex = "users_email_key"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.name, u.email_verified, u.created_at, u.updated_at,
	       ARRAY(SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
	             WHERE ur.user_id = u.id ORDER BY r.name)
	FROM users u`

// FindByID returns nil, nil when no user has the id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByEmail matches the email exactly as stored. It returns nil, nil when
// no user has the email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// Create inserts the user and its role links. A duplicate email yields
// model.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user tx: %w", err)
	}
	return nil
}

// CreateWithVerification inserts the user, its role links and its first
// verification record in one transaction. A duplicate email yields
// model.ErrEmailTaken and leaves nothing behind.
func (r *UserRepository) CreateWithVerification(ctx context.Context, u model.User, v model.EmailVerification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin signup tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	if err := insertVerification(ctx, tx, v); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit signup tx: %w", err)
	}
	return nil
}

// insertUser must run inside a transaction so role links commit with the user.
func insertUser(ctx context.Context, q querier, u model.User) error {
	_, err := q.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, email_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.PasswordHash, u.Name, u.State == model.StateActive, u.CreatedAt, u.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == usersEmailKeyIndex {
		return model.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	for _, role := range u.Roles {
		if _, err := q.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id)
			 SELECT $1, id FROM roles WHERE name = $2
			 ON CONFLICT DO NOTHING`, u.ID, role); err != nil {
			return fmt.Errorf("assign role %q: %w", role, err)
		}
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u        model.User
		verified bool
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &verified, &u.CreatedAt, &u.UpdatedAt, &u.Roles)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.State = model.AccountStateFromVerified(verified)
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return &u, nil
}

// markUserVerified moves a pending account to active. It reports false when
// the account was already active.
func markUserVerified(ctx context.Context, q querier, userID string) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE users SET email_verified = true, updated_at = $2
		 WHERE id = $1 AND email_verified = false`,
		userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark email verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
