// Package users provides the PostgreSQL-backed repository for account rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Create inserts a new user. A duplicate username surfaces as
// common.ErrorConflict; the unique index is the authoritative check, so two
// concurrent registrations cannot both succeed.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), user.Username, user.PasswordHash).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, mfa_secret, mfa_enabled, created_at FROM users
		 WHERE username = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.MFASecret, &user.MFAEnabled, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// SetMFASecret stores the envelope-encrypted TOTP seed without touching the
// enabled flag (the PendingVerification write of the enrollment flow).
func (r *PostgresRepository) SetMFASecret(ctx context.Context, username string, ciphertext string) error {
	query :=
		`UPDATE users SET mfa_secret = $2
		 WHERE username = $1
		 `
	return r.exec(ctx, query, username, ciphertext)
}

func (r *PostgresRepository) SetMFAEnabled(ctx context.Context, username string, enabled bool) error {
	query :=
		`UPDATE users SET mfa_enabled = $2
		 WHERE username = $1
		 `
	return r.exec(ctx, query, username, enabled)
}

// ClearMFA erases the stored seed and drops the enabled flag in one
// statement, so a disable cannot leave a half-cleared row.
func (r *PostgresRepository) ClearMFA(ctx context.Context, username string) error {
	query :=
		`UPDATE users SET mfa_secret = '', mfa_enabled = false
		 WHERE username = $1
		 `
	return r.exec(ctx, query, username)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
