package inmemdb

import (
	"context"

	"github.com/gladschool/portal/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func checkUniqueness(t *tables, username, email string, excludedID int) error {
	for _, usr := range t.users {
		if usr.ID == excludedID {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedID int) (err error) {
	repo.db.read(func(t *tables) {
		err = checkUniqueness(t, username, email, excludedID)
	})
	return err
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(func(t *tables) error {
		if err := checkUniqueness(t, usr.Username, usr.Email, 0); err != nil {
			return err
		}
		usr.ID = t.nextID()
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (usr user.User, err error) {
	err = user.ErrNotFound
	repo.db.read(func(t *tables) {
		if filter.ID != 0 {
			if u, ok := t.users[filter.ID]; ok {
				usr, err = u, nil
			}
			return
		}
		for _, u := range t.users {
			if u.Username == filter.UsernameOrEmail || (u.Email != "" && u.Email == filter.UsernameOrEmail) {
				usr, err = u, nil
				return
			}
		}
	})
	return usr, err
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(func(t *tables) error {
		orig, ok := t.users[usr.ID]
		if !ok {
			return user.ErrNotFound
		}
		if err := checkUniqueness(t, usr.Username, usr.Email, usr.ID); err != nil {
			return err
		}
		usr.CreatedAt = orig.CreatedAt
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, role string) (users []user.User, err error) {
	repo.db.read(func(t *tables) {
		users = rows(t.users, func(u user.User) bool { return role == "" || u.Role == role })
	})
	return users, nil
}
