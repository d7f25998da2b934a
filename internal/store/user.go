package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/taskhive/apiserver/types"
)

const uniqueViolation = "23505"

const userColumns = `id, fname, lname, email, role, state, department, password_hash, last_active, avatar_key, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Fname,
		&user.Lname,
		&user.Email,
		&user.Role,
		&user.State,
		&user.Department,
		&user.PasswordHash,
		&user.LastActive,
		&user.AvatarKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (fname, lname, email, role, state, department, password_hash, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Fname,
		user.Lname,
		user.Email,
		user.Role,
		user.State,
		user.Department,
		user.PasswordHash,
		user.AvatarKey,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapUniqueViolation(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET fname = $1,
			lname = $2,
			email = $3,
			role = $4,
			state = $5,
			department = $6,
			password_hash = $7,
			last_active = $8,
			avatar_key = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Fname,
		user.Lname,
		user.Email,
		user.Role,
		user.State,
		user.Department,
		user.PasswordHash,
		user.LastActive,
		user.AvatarKey,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapUniqueViolation(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// UpdateState flips the presence state and records last_active.
func (r *UserRepository) UpdateState(ctx context.Context, id int, state string, lastActive time.Time) error {
	const query = `
		UPDATE users
		SET state = $1, last_active = $2, updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, state, lastActive, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNonAdmin returns every user except admins, newest first.
func (r *UserRepository) ListNonAdmin(ctx context.Context) ([]types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE role <> 'admin'
		ORDER BY created_at DESC`
	return r.queryUsers(ctx, query)
}

// ListByDepartment returns non-admin users in the given department.
func (r *UserRepository) ListByDepartment(ctx context.Context, department string) ([]types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE department = $1 AND role <> 'admin'
		ORDER BY created_at DESC`
	return r.queryUsers(ctx, query, department)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]types.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
