// Package credentials provides the PostgreSQL-backed repository for stored
// site credentials.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements credential storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
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

// Create inserts a credential row. A duplicate (owner, site, account) tuple
// surfaces as common.ErrorConflict via the unique index, which is the
// authoritative duplicate check under concurrency.
func (r *PostgresRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	query :=
		`INSERT INTO credentials (id, owner, site, account, secret)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), cred.Owner, cred.Site, cred.Account, cred.Secret).Scan(&cred.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

// ListByOwner returns every credential row for owner, secrets still
// encrypted.
func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]*models.Credential, error) {
	query :=
		`SELECT id, owner, site, account, secret FROM credentials
		 WHERE owner = $1
		 ORDER BY site, account
		 `

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Credential
	for rows.Next() {
		var item models.Credential
		if err := rows.Scan(&item.ID, &item.Owner, &item.Site, &item.Account, &item.Secret); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the unique matching row; common.ErrorNotFound when absent.
func (r *PostgresRepository) Delete(ctx context.Context, owner, site, account string) error {
	query :=
		`DELETE FROM credentials
		 WHERE owner = $1 AND site = $2 AND account = $3
		 `

	res, err := r.db.ExecContext(ctx, query, owner, site, account)
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

// DeleteAllByOwner removes every row for owner and returns the count.
// Zero is a valid, non-error result.
func (r *PostgresRepository) DeleteAllByOwner(ctx context.Context, owner string) (int64, error) {
	query :=
		`DELETE FROM credentials
		 WHERE owner = $1
		 `

	res, err := r.db.ExecContext(ctx, query, owner)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
