package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/oops"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/account/entity"
)

const accountColumns = `id, identifier, email, display_name, password_hash, password_algo,
		password_updated_at, last_login_at, created_at, updated_at`

// AccountRepo provides data access for the accounts table using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account. The unique index on identifier makes the
// check-and-insert atomic; a violation is reported as ErrAlreadyExists.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	const q = `INSERT INTO accounts (id, identifier, email, display_name, password_hash, password_algo,
		password_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Identifier, a.Email, a.DisplayName, a.PasswordHash, a.PasswordAlgo,
		a.PasswordUpdatedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_EXISTS").With("operation", "insert account").Wrap(ErrAlreadyExists)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").With("operation", "insert account").Wrap(err)
	}
	return nil
}

// FindByIdentifier returns the account or ErrNotFound.
func (r *AccountRepo) FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE identifier = $1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("operation", "select account").Wrap(err)
	}
	return &row, nil
}

// UpdatePasswordHash replaces the hash and algorithm for identifier.
func (r *AccountRepo) UpdatePasswordHash(ctx context.Context, identifier, hash, algo string, at time.Time) error {
	const q = `UPDATE accounts SET password_hash = $2, password_algo = $3, password_updated_at = $4, updated_at = $4
		WHERE identifier = $1`
	res, err := r.db.ExecContext(ctx, q, identifier, hash, algo, at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", "update password").Wrap(err)
	}
	return requireOneRow(res, "update password")
}

// UpgradePasswordHash swaps oldHash for newHash only while oldHash is still
// stored, so a password changed in the meantime is left alone. ErrNotFound
// means the account is gone or its hash no longer matches.
func (r *AccountRepo) UpgradePasswordHash(ctx context.Context, identifier, oldHash, newHash, algo string, at time.Time) error {
	const q = `UPDATE accounts SET password_hash = $3, password_algo = $4, password_updated_at = $5, updated_at = $5
		WHERE identifier = $1 AND password_hash = $2`
	res, err := r.db.ExecContext(ctx, q, identifier, oldHash, newHash, algo, at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", "upgrade password").Wrap(err)
	}
	return requireOneRow(res, "upgrade password")
}

// TouchLastLogin records a successful login.
func (r *AccountRepo) TouchLastLogin(ctx context.Context, identifier string, at time.Time) error {
	const q = `UPDATE accounts SET last_login_at = $2, updated_at = $2 WHERE identifier = $1`
	res, err := r.db.ExecContext(ctx, q, identifier, at)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", "touch last login").Wrap(err)
	}
	return requireOneRow(res, "touch last login")
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("operation", op).Wrap(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
