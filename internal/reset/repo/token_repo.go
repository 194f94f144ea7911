package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/reset/entity"
)

const tokenColumns = `id, identifier, token_hash, expires_at, created_at`

// TokenRepo persists reset tokens in Postgres.
type TokenRepo struct {
	db *sqlx.DB
}

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) Insert(ctx context.Context, t *entity.ResetToken) error {
	const q = `INSERT INTO password_resets (id, identifier, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, q, t.ID, t.Identifier, t.TokenHash, t.ExpiresAt, t.CreatedAt); err != nil {
		return oops.Code("RESET_INSERT_FAILED").With("operation", "insert reset token").With("id", t.ID).Wrap(err)
	}
	return nil
}

// GetByHash returns the stored row regardless of expiry.
func (r *TokenRepo) GetByHash(ctx context.Context, hash string) (*entity.ResetToken, error) {
	q := `SELECT ` + tokenColumns + ` FROM password_resets WHERE token_hash = $1`
	var t entity.ResetToken
	if err := r.db.GetContext(ctx, &t, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("RESET_QUERY_FAILED").With("operation", "select reset token").Wrap(err)
	}
	return &t, nil
}

// DeleteByHash removes and returns the row in one statement, so concurrent
// callers cannot both observe it.
func (r *TokenRepo) DeleteByHash(ctx context.Context, hash string) (*entity.ResetToken, error) {
	q := `DELETE FROM password_resets WHERE token_hash = $1 RETURNING ` + tokenColumns
	var t entity.ResetToken
	if err := r.db.GetContext(ctx, &t, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("RESET_DELETE_FAILED").With("operation", "delete reset token").Wrap(err)
	}
	return &t, nil
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").With("operation", "purge reset tokens").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").With("operation", "purge reset tokens").Wrap(err)
	}
	return n, nil
}
