package accountrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/user-accounts/internal/domain/account"
)

const (
	accountColumns     = `id, name, email, password_hash, age, tokens, created_at, updated_at`
	uniqueViolationErr = "23505"
)

// PostgresRepository persists accounts in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new account row.
func (r *PostgresRepository) Create(ctx context.Context, acc account.NewAccount) (account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, email, password_hash, age)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		acc.Name, acc.Email, acc.PasswordHash, acc.Age)
	created, err := scanAccount(row)
	if err != nil {
		return account.Account{}, mapWriteErr(err)
	}
	return created, nil
}

// GetByID fetches by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (account.Account, bool, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 LIMIT 1`, id)
}

// GetByEmail fetches an account by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (account.Account, bool, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1 LIMIT 1`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (account.Account, bool, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return account.Account{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return account.Account{}, false, rows.Err()
	}
	acc, err := scanAccount(rows)
	if err != nil {
		return account.Account{}, false, err
	}
	return acc, true, rows.Err()
}

// List returns every account ordered by id.
func (r *PostgresRepository) List(ctx context.Context) ([]account.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// Update writes profile fields and the password hash as given.
func (r *PostgresRepository) Update(ctx context.Context, acc account.Account) (account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE accounts
		SET name = $2, email = $3, password_hash = $4, age = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		acc.ID, acc.Name, acc.Email, acc.PasswordHash, acc.Age)
	updated, err := scanAccount(row)
	if err != nil {
		return account.Account{}, mapWriteErr(err)
	}
	return updated, nil
}

// AppendToken adds a session token to the account.
func (r *PostgresRepository) AppendToken(ctx context.Context, id int64, token string) (account.Account, error) {
	return r.mutateTokens(ctx, id, func(l account.TokenList) account.TokenList { return l.Append(token) })
}

// RemoveToken drops a session token from the account.
func (r *PostgresRepository) RemoveToken(ctx context.Context, id int64, token string) (account.Account, error) {
	return r.mutateTokens(ctx, id, func(l account.TokenList) account.TokenList { return l.Remove(token) })
}

// ClearTokens drops every session token of the account.
func (r *PostgresRepository) ClearTokens(ctx context.Context, id int64) (account.Account, error) {
	return r.mutateTokens(ctx, id, func(account.TokenList) account.TokenList { return account.TokenList{} })
}

// mutateTokens locks the row so concurrent logins and logouts do not lose writes.
func (r *PostgresRepository) mutateTokens(ctx context.Context, id int64, fn func(account.TokenList) account.TokenList) (account.Account, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return account.Account{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw string
	if err := tx.QueryRow(ctx, `SELECT tokens FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}
	tokens, err := account.DecodeTokens(raw)
	if err != nil {
		return account.Account{}, err
	}
	encoded, err := account.EncodeTokens(fn(tokens))
	if err != nil {
		return account.Account{}, err
	}
	row := tx.QueryRow(ctx, `
		UPDATE accounts SET tokens = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, id, encoded)
	acc, err := scanAccount(row)
	if err != nil {
		return account.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return account.Account{}, fmt.Errorf("commit tokens: %w", err)
	}
	return acc, nil
}

// Delete removes the account row.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PutAvatar stores the avatar image in the account row.
func (r *PostgresRepository) PutAvatar(ctx context.Context, id int64, image []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET avatar = $2, updated_at = now() WHERE id = $1`, id, image)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

// GetAvatar returns the avatar image, if any.
func (r *PostgresRepository) GetAvatar(ctx context.Context, id int64) ([]byte, bool, error) {
	var image []byte
	err := r.pool.QueryRow(ctx, `SELECT avatar FROM accounts WHERE id = $1`, id).Scan(&image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return image, image != nil, nil
}

// DeleteAvatar clears the avatar column.
func (r *PostgresRepository) DeleteAvatar(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE accounts SET avatar = NULL WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (account.Account, error) {
	var (
		acc    account.Account
		tokens string
	)
	if err := row.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &acc.Age, &tokens, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return account.Account{}, err
	}
	decoded, err := account.DecodeTokens(tokens)
	if err != nil {
		return account.Account{}, err
	}
	acc.Tokens = decoded
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErr {
		return account.ErrEmailExists
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return account.ErrNotFound
	}
	return err
}

var _ account.Repository = (*PostgresRepository)(nil)
