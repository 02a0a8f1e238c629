// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/bazaar/internal/platform/database/schema"
	"github.com/taibuivan/bazaar/internal/platform/dberr"
	"github.com/taibuivan/bazaar/internal/platform/sec"
	"github.com/taibuivan/bazaar/pkg/pagination"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] over the users.account table.
//
// Storage errors are mapped through [dberr.Wrap] so that pgx types never leak
// into the service layer.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
FindByID retrieves a user record by primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *User: Hydrated account entity
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	u := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, u.SelectList(), u.Table, u.ID)

	user, err := scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_id")
	}
	return user, nil
}

/*
FindByEmail retrieves a user record by its unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	u := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, u.SelectList(), u.Table, u.Email)

	user, err := scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_email")
	}
	return user, nil
}

/*
FindByResetTokenHash resolves a password reset link to its account.

Description: Digest equality and expiry are evaluated by the same statement, so a
stale or consumed reset never matches.

Parameters:
  - context: context.Context
  - digest: string
  - now: time.Time

Returns:
  - *User: Hydrated account entity
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByResetTokenHash(context context.Context, digest string, now time.Time) (*User, error) {
	user, err := scanUser(repository.pool.QueryRow(context, findByResetHashSQL(), digest, now))
	if err != nil {
		return nil, dberr.Wrap(err, "find_user_by_reset_hash")
	}
	return user, nil
}

/*
Create persists a new user record into the users.account table.

Description: Initializes timestamps when absent. A duplicate email surfaces as
[ErrUserExists].

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: ErrUserExists, or database errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	_, err := repository.pool.Exec(context, insertUserSQL(), userArgs(user)...)
	if err = dberr.Wrap(err, "create_user"); dberr.IsDuplicate(err) {
		return ErrUserExists
	}
	return err
}

/*
Save overwrites every mutable column of the account.

Description: Credentials, verification and reset pairs, moderation status and
profile fields are written together. updatedat is bumped by the statement.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: dberr.ErrNotFound if no row was updated, or database errors
*/
func (repository *PostgresUserRepository) Save(context context.Context, user *User) error {
	var updatedAt time.Time
	err := repository.pool.QueryRow(context, updateUserSQL(), userArgs(user)[:updatableArgs]...).Scan(&updatedAt)
	if err != nil {
		return dberr.Wrap(err, "save_user")
	}

	user.UpdatedAt = updatedAt
	return nil
}

/*
List retrieves a page of accounts, newest first.

Parameters:
  - context: context.Context
  - filter: UserFilter
  - page: pagination.Params

Returns:
  - []*User: Hydrated entities
  - int: Total number of matching rows
  - error: Database errors
*/
func (repository *PostgresUserRepository) List(context context.Context, filter UserFilter, page pagination.Params) ([]*User, int, error) {
	u := schema.UserAccount

	where := ""
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = fmt.Sprintf(" WHERE %s = $%d", u.Status, len(args))
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, u.Table, where)
	if err := repository.pool.QueryRow(context, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_users")
	}

	args = append(args, page.Limit, page.Offset())
	listQuery := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY %s DESC, %s DESC LIMIT $%d OFFSET $%d`,
		u.SelectList(), u.Table, where, u.CreatedAt, u.ID, len(args)-1, len(args))

	rows, err := repository.pool.Query(context, listQuery, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_users")
	}
	defer rows.Close()

	users := make([]*User, 0, page.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "iterate_users")
	}

	return users, total, nil
}

// # Statements

// updatableArgs is the length of the [userArgs] prefix bound by [updateUserSQL]:
// the id followed by every mutable column up to and including bio.
const updatableArgs = 14

// findByResetHashSQL matches the digest and the unexpired deadline in one predicate.
func findByResetHashSQL() string {
	u := schema.UserAccount
	return fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s > $2`,
		u.SelectList(), u.Table, u.ResetHash, u.ResetExpiresAt)
}

// insertUserSQL binds every column of schema.UserAccount.Columns() in order.
func insertUserSQL() string {
	u := schema.UserAccount
	columns := u.Columns()
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		u.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

// updateUserSQL keys on $1 and sets the mutable columns from $2 onward.
func updateUserSQL() string {
	u := schema.UserAccount
	columns := u.Columns()[1:updatableArgs]

	assignments := make([]string, 0, len(columns)+1)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+2))
	}
	assignments = append(assignments, u.UpdatedAt+" = NOW()")

	return fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $1 RETURNING %s`,
		u.Table, strings.Join(assignments, ", "), u.ID, u.UpdatedAt)
}

// userArgs returns the bind values of user in schema.UserAccount.Columns() order.
func userArgs(user *User) []any {
	verificationHash, verificationExpiresAt := pendingColumns(user.Verification)
	resetHash, resetExpiresAt := pendingColumns(user.Reset)

	return []any{
		user.ID,
		user.Username,
		user.Email,
		nullableString(user.PasswordHash),
		user.ExternalID,
		string(user.Role),
		string(user.Status),
		user.IsVerified,
		verificationHash,
		verificationExpiresAt,
		resetHash,
		resetExpiresAt,
		user.AvatarURL,
		user.Bio,
		user.CreatedAt,
		user.UpdatedAt,
	}
}

// # Row Mapping

// scanUser hydrates a [User] from a row selected with schema.UserAccount.SelectList().
func scanUser(row pgx.Row) (*User, error) {
	var (
		user                  User
		passwordHash          *string
		role                  string
		status                string
		verificationHash      *string
		verificationExpiresAt *time.Time
		resetHash             *string
		resetExpiresAt        *time.Time
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&passwordHash,
		&user.ExternalID,
		&role,
		&status,
		&user.IsVerified,
		&verificationHash,
		&verificationExpiresAt,
		&resetHash,
		&resetExpiresAt,
		&user.AvatarURL,
		&user.Bio,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	user.Role = sec.UserRole(role)
	user.Status = Status(status)
	user.Verification = pendingFromColumns(verificationHash, verificationExpiresAt)
	user.Reset = pendingFromColumns(resetHash, resetExpiresAt)

	return &user, nil
}

// pendingColumns splits a pending code into its nullable column pair.
func pendingColumns(code *PendingCode) (*string, *time.Time) {
	if code == nil {
		return nil, nil
	}
	hash, expiresAt := code.Hash, code.ExpiresAt
	return &hash, &expiresAt
}

// pendingFromColumns rebuilds a pending code. A half-set pair reads as NotPending.
func pendingFromColumns(hash *string, expiresAt *time.Time) *PendingCode {
	if hash == nil || expiresAt == nil {
		return nil
	}
	return &PendingCode{Hash: *hash, ExpiresAt: *expiresAt}
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
