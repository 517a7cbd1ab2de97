package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-service/internal/model"
)

type VerificationRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationRepository(pool *pgxpool.Pool) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

func insertVerification(ctx context.Context, q querier, v model.EmailVerification) error {
	_, err := q.Exec(ctx,
		`INSERT INTO email_verifications (id, user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.UserID, v.TokenHash, v.ExpiresAt, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("store email verification: %w", err)
	}
	return nil
}

func (r *VerificationRepository) Create(ctx context.Context, v model.EmailVerification) error {
	return insertVerification(ctx, r.pool, v)
}

// Redeem consumes the unexpired record matching userID and tokenHash and
// activates the account, all in one transaction. Any mismatch yields
// model.ErrInvalidVerification. Remaining records of the user are dropped.
func (r *VerificationRepository) Redeem(ctx context.Context, userID string, tokenHash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx,
		`DELETE FROM email_verifications
		 WHERE user_id = $1 AND token_hash = $2 AND expires_at > now()
		 RETURNING id`, userID, tokenHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrInvalidVerification
	}
	if err != nil {
		return fmt.Errorf("consume email verification: %w", err)
	}

	activated, err := markUserVerified(ctx, tx, userID)
	if err != nil {
		return err
	}
	if !activated {
		return model.ErrInvalidVerification
	}

	if _, err := tx.Exec(ctx, `DELETE FROM email_verifications WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("drop remaining verifications: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit verification tx: %w", err)
	}
	return nil
}

func (r *VerificationRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_verifications WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired verifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
