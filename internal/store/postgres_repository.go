/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for accounts and their login lock state.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/approval-service/internal/domain"
)

const uniqueViolation = "23505"

const singleAdminIndex = "users_single_admin_idx"

const userColumns = `
	id, name, email, password_hash, role,
	failed_attempts, temp_lock_until, temp_lock_activated, permanently_locked,
	version, created_at, updated_at
`

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresRepository is the PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.FailedAttempts,
		&u.TempLockUntil,
		&u.TempLockActivated,
		&u.PermanentlyLocked,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByEmail loads an account with its lock state and version.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindUserByID loads an account by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account ordered by name.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CreateUser inserts an account and returns its id.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) (uuid.UUID, error) {
	var id uuid.UUID
	query := `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role).Scan(&id)
	if err != nil {
		return uuid.Nil, mapUserWriteError(err)
	}
	return id, nil
}

// UpdateUser edits profile fields. A nil passwordHash keeps the stored hash.
func (r *PostgresRepository) UpdateUser(ctx context.Context, user *domain.User, passwordHash *string) error {
	query := `
		UPDATE users
		SET name = $2,
			email = $3,
			role = $4,
			password_hash = COALESCE($5, password_hash),
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, user.ID, user.Name, user.Email, user.Role, passwordHash)
	if err != nil {
		return mapUserWriteError(err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes an account.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountAdmins counts admin accounts, optionally ignoring one id.
func (r *PostgresRepository) CountAdmins(ctx context.Context, excluding *uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE role = 'admin' AND ($1::uuid IS NULL OR id <> $1::uuid)`
	if err := r.db.QueryRow(ctx, query, excluding).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateLockState writes the lockout fields only if the row still carries expectedVersion.
// Every field is written in one statement so a branch never leaves a partial mutation.
func (r *PostgresRepository) UpdateLockState(ctx context.Context, id uuid.UUID, expectedVersion int64, state domain.LockState) error {
	query := `
		UPDATE users
		SET failed_attempts = $3,
			temp_lock_until = $4,
			temp_lock_activated = $5,
			permanently_locked = $6,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	result, err := r.db.Exec(ctx, query,
		id,
		expectedVersion,
		state.FailedAttempts,
		state.TempLockUntil,
		state.TempLockActivated,
		state.PermanentlyLocked,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

// ResetLockState clears every lockout field, including a permanent lock.
func (r *PostgresRepository) ResetLockState(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET failed_attempts = 0,
			temp_lock_until = NULL,
			temp_lock_activated = FALSE,
			permanently_locked = FALSE,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func mapUserWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == singleAdminIndex {
			return ErrAdminExists
		}
		return ErrEmailTaken
	}
	return fmt.Errorf("write user: %w", err)
}

// pgDate renders a calendar date as a literal so the session time zone never shifts it.
func pgDate(t time.Time) string {
	return t.Format(domain.DateLayout)
}
