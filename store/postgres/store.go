package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	goGuard "github.com/MrEthical07/goGuard"
)

// poolIface is satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type poolIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Any other unique violation on accounts (the primary key or
// accounts_username_key) is reported as a username conflict.
const constraintEmail = "accounts_email_lower_key"

const accountColumns = `
	a.id, a.username, a.email, a.first_name, a.middle_name, a.last_name,
	a.second_last_name, a.branch, a.city, a.job_title, a.mobile, a.phone,
	a.address, a.password_hash, a.failed_attempts, a.locked,
	a.password_expires_at, a.version, a.created_at, a.updated_at,
	ARRAY(SELECT r.role FROM account_roles r WHERE r.account_id = a.id ORDER BY r.position) AS roles,
	COALESCE((
		SELECT json_agg(json_build_object('id', h.id, 'hash', h.hash, 'created_at', h.created_at)
		                ORDER BY h.created_at, h.id)
		FROM password_history h WHERE h.account_id = a.id
	), '[]'::json) AS history`

// Store is a PostgreSQL-backed account store.
type Store struct {
	pool poolIface
}

// New wraps an existing pool.
func New(pool poolIface) *Store {
	return &Store{pool: pool}
}

// Open connects a pgx pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// GetAccount loads an account with its roles and password history.
func (s *Store) GetAccount(ctx context.Context, username string) (goGuard.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.username = $1`, username)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return goGuard.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(goGuard.ErrAccountNotFound)
	}
	if err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account").
			With("username", username).
			Wrap(err)
	}
	return a, nil
}

// ListAccounts returns every account ordered by username.
func (s *Store) ListAccounts(ctx context.Context) ([]goGuard.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts a ORDER BY a.username`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", "list accounts").Wrap(err)
	}
	defer rows.Close()

	accounts := make([]goGuard.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", "scan account row").Wrap(err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").With("operation", "iterate accounts").Wrap(err)
	}
	return accounts, nil
}

// CreateAccount inserts the account, its roles and any seeded history in one
// transaction. The stored Version is 1.
func (s *Store) CreateAccount(ctx context.Context, account goGuard.Account) (goGuard.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_CREATE_FAILED").With("username", account.Username).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	account.Version = 1
	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (
			id, username, email, first_name, middle_name, last_name, second_last_name,
			branch, city, job_title, mobile, phone, address,
			password_hash, failed_attempts, locked, password_expires_at,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		account.ID, account.Username, account.Email,
		account.FirstName, account.MiddleName, account.LastName, account.SecondLastName,
		account.Branch, account.City, account.JobTitle, account.Mobile, account.Phone, account.Address,
		account.PasswordHash, account.FailedAttempts, account.Locked, account.PasswordExpiresAt,
		account.Version, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return goGuard.Account{}, oops.Code("ACCOUNT_CONFLICT").
				With("username", account.Username).
				Wrap(conflict)
		}
		return goGuard.Account{}, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}

	if err := replaceRoles(ctx, tx, account.ID, account.Roles); err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_CREATE_FAILED").With("username", account.Username).Wrap(err)
	}
	if err := insertHistory(ctx, tx, account.ID, account.PasswordHistory); err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_CREATE_FAILED").With("username", account.Username).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "commit").
			With("username", account.Username).
			Wrap(err)
	}
	return account.Clone(), nil
}

// UpdateAccount locks the account row, applies mutate and writes the result
// back in the same transaction. Errors from mutate are returned unchanged and
// the transaction is rolled back.
func (s *Store) UpdateAccount(ctx context.Context, username string, mutate func(*goGuard.Account) error) (goGuard.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").With("username", username).Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.username = $1 FOR UPDATE OF a`, username)
	current, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return goGuard.Account{}, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(goGuard.ErrAccountNotFound)
	}
	if err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "lock account").
			With("username", username).
			Wrap(err)
	}

	working := current.Clone()
	if err := mutate(&working); err != nil {
		return goGuard.Account{}, err
	}
	working.ID = current.ID
	working.Username = current.Username
	working.Email = current.Email
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1

	_, err = tx.Exec(ctx, `
		UPDATE accounts SET
			branch = $2, city = $3, job_title = $4, mobile = $5, phone = $6, address = $7,
			password_hash = $8, failed_attempts = $9, locked = $10, password_expires_at = $11,
			updated_at = $12, version = version + 1
		WHERE id = $1
	`,
		working.ID,
		working.Branch, working.City, working.JobTitle, working.Mobile, working.Phone, working.Address,
		working.PasswordHash, working.FailedAttempts, working.Locked, working.PasswordExpiresAt,
		working.UpdatedAt,
	)
	if err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("username", username).
			Wrap(err)
	}

	if !slices.Equal(current.Roles, working.Roles) {
		if err := replaceRoles(ctx, tx, working.ID, working.Roles); err != nil {
			return goGuard.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").With("username", username).Wrap(err)
		}
	}
	if err := syncHistory(ctx, tx, working.ID, current.PasswordHistory, working.PasswordHistory); err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").With("username", username).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return goGuard.Account{}, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "commit").
			With("username", username).
			Wrap(err)
	}
	return working, nil
}

// replaceRoles rewrites the role set, keeping the caller's order in position.
func replaceRoles(ctx context.Context, tx pgx.Tx, accountID string, roles []goGuard.Role) error {
	if _, err := tx.Exec(ctx, `DELETE FROM account_roles WHERE account_id = $1`, accountID); err != nil {
		return oops.With("operation", "delete roles").Wrap(err)
	}
	if len(roles) == 0 {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO account_roles (account_id, role, position)
		SELECT $1, t.role, t.ord - 1 FROM unnest($2::text[]) WITH ORDINALITY AS t(role, ord)
	`, accountID, names)
	if err != nil {
		return oops.With("operation", "insert roles").Wrap(err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, accountID string, entries []goGuard.ArchivedPassword) error {
	for _, h := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO password_history (id, account_id, hash, created_at) VALUES ($1, $2, $3, $4)`,
			h.ID, accountID, h.Hash, h.CreatedAt)
		if err != nil {
			return oops.With("operation", "insert password history").With("history_id", h.ID).Wrap(err)
		}
	}
	return nil
}

// syncHistory inserts entries new in next and deletes entries trimmed from
// before. History rows are immutable, so identity by ID is enough.
func syncHistory(ctx context.Context, tx pgx.Tx, accountID string, before, next []goGuard.ArchivedPassword) error {
	known := make(map[string]struct{}, len(before))
	for _, h := range before {
		known[h.ID] = struct{}{}
	}
	kept := make(map[string]struct{}, len(next))
	var added []goGuard.ArchivedPassword
	for _, h := range next {
		kept[h.ID] = struct{}{}
		if _, ok := known[h.ID]; !ok {
			added = append(added, h)
		}
	}
	var removed []string
	for _, h := range before {
		if _, ok := kept[h.ID]; !ok {
			removed = append(removed, h.ID)
		}
	}

	if len(removed) > 0 {
		_, err := tx.Exec(ctx,
			`DELETE FROM password_history WHERE account_id = $1 AND id = ANY($2)`,
			accountID, removed)
		if err != nil {
			return oops.With("operation", "trim password history").Wrap(err)
		}
	}
	return insertHistory(ctx, tx, accountID, added)
}

// conflictError maps a unique violation to the matching goGuard sentinel.
// Other errors return nil.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	if pgErr.ConstraintName == constraintEmail {
		return goGuard.ErrEmailExists
	}
	return goGuard.ErrAccountExists
}

func scanAccount(row pgx.Row) (goGuard.Account, error) {
	var (
		a       goGuard.Account
		roles   []string
		history []byte
	)
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.FirstName, &a.MiddleName, &a.LastName,
		&a.SecondLastName, &a.Branch, &a.City, &a.JobTitle, &a.Mobile, &a.Phone,
		&a.Address, &a.PasswordHash, &a.FailedAttempts, &a.Locked,
		&a.PasswordExpiresAt, &a.Version, &a.CreatedAt, &a.UpdatedAt,
		&roles, &history,
	)
	if err != nil {
		return goGuard.Account{}, err
	}

	a.Roles = make([]goGuard.Role, len(roles))
	for i, r := range roles {
		a.Roles[i] = goGuard.Role(r)
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.PasswordHistory); err != nil {
			return goGuard.Account{}, oops.With("operation", "decode password history").Wrap(err)
		}
	}
	for i := range a.PasswordHistory {
		a.PasswordHistory[i].CreatedAt = a.PasswordHistory[i].CreatedAt.UTC()
	}
	if len(a.PasswordHistory) == 0 {
		a.PasswordHistory = nil
	}
	a.PasswordExpiresAt = a.PasswordExpiresAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

var (
	_ goGuard.AccountStore = (*Store)(nil)
	_ goGuard.Pinger       = (*Store)(nil)
)
