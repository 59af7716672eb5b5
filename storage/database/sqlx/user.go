package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/gladschool/portal/core/user"
)

const userColumns = `id, name, username, email, role, is_active, created_at, updated_at`

type userRepository struct {
	exec dbExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{exec: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedID int) error {
	var taken struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := repo.exec.Rebind(`SELECT username, email FROM users WHERE (username = ? OR (? <> '' AND email = ?)) AND id <> ? LIMIT 1`)
	err := repo.exec.GetContext(ctx, &taken, q, username, email, email, excludedID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case taken.Username == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := repo.exec.Rebind(`INSERT INTO users (name, username, email, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q,
		usr.Name, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var usr user.User
	var err error
	if filter.ID != 0 {
		err = repo.exec.GetContext(ctx, &usr, repo.exec.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), filter.ID)
	} else {
		err = repo.exec.GetContext(ctx, &usr,
			repo.exec.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ? OR (email <> '' AND email = ?) LIMIT 1`),
			filter.UsernameOrEmail, filter.UsernameOrEmail)
	}
	if err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return usr, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := repo.exec.Rebind(`UPDATE users SET name = ?, username = ?, email = ?, role = ?, is_active = ?, updated_at = ?
		WHERE id = ? RETURNING ` + userColumns)
	var updated user.User
	err := repo.exec.GetContext(ctx, &updated, q,
		usr.Name, usr.Username, usr.Email, usr.Role, usr.IsActive, usr.UpdatedAt, usr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return updated, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, role string) ([]user.User, error) {
	var w where
	if role != "" {
		w.add("role = ?", role)
	}
	users := make([]user.User, 0)
	if err := selectWhere(ctx, repo.exec, &users, `SELECT `+userColumns+` FROM users`, &w, ` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}
