package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/iliyamo/calculations-api/internal/database"
	"github.com/iliyamo/calculations-api/internal/model"
)

var userColumns = []string{
	"id", "username", "email", "password_hash", "first_name", "last_name",
	"is_active", "is_verified", "last_login", "created_at", "updated_at",
}

// UserRepo persists users in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u inside a transaction.  Username and email are checked
// for uniqueness first; the unique keys on the table catch the race where
// two registrations pass the check concurrently.  Either way the caller
// gets ErrDuplicateUser and nothing is committed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	cq, cargs, err := sq.Select("COUNT(*)").
		From("users").
		Where(sq.Or{sq.Eq{"username": u.Username}, sq.Eq{"email": u.Email}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build uniqueness check: %w", err)
	}
	iq, iargs, err := sq.Insert("users").
		Columns(userColumns...).
		Values(u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
			u.IsActive, u.IsVerified, u.LastLogin, u.CreatedAt, u.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	return database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, cq, cargs...).Scan(&n); err != nil {
			return fmt.Errorf("check user uniqueness: %w", err)
		}
		if n > 0 {
			return ErrDuplicateUser
		}
		if _, err := tx.ExecContext(ctx, iq, iargs...); err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateUser
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

// GetByLogin fetches a user whose username matches login or whose email
// matches login case-insensitively.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	login = strings.TrimSpace(login)
	return r.getOne(ctx, sq.Or{sq.Eq{"username": login}, sq.Eq{"email": strings.ToLower(login)}})
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// TouchLastLogin stamps the last successful login time.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	q, args, err := sq.Update("users").
		Set("last_login", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update last_login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where sq.Sqlizer) (model.User, error) {
	q, args, err := sq.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return model.User{}, fmt.Errorf("build select: %w", err)
	}
	return scanUser(r.DB.QueryRowContext(ctx, q, args...))
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &u.IsVerified, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}
