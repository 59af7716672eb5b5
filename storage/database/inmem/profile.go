package inmemdb

import (
	"context"

	"github.com/gladschool/portal/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) GetStudent(_ context.Context, id int) (s profile.Student, err error) {
	err = profile.ErrStudentNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.students[id]; ok {
			s, err = found, nil
		}
	})
	return s, err
}

func (repo *profileRepository) GetStudentByAdmissionNumber(_ context.Context, admissionNumber string) (s profile.Student, err error) {
	err = profile.ErrStudentNotFound
	repo.db.read(func(t *tables) {
		for _, found := range t.students {
			if found.AdmissionNumber == admissionNumber {
				s, err = found, nil
				return
			}
		}
	})
	return s, err
}

func (repo *profileRepository) QueryStudents(_ context.Context, filter profile.StudentFilter) (students []profile.Student, err error) {
	repo.db.read(func(t *tables) {
		students = rows(t.students, func(s profile.Student) bool {
			if filter.ClassID != 0 && s.ClassID != filter.ClassID {
				return false
			}
			return filter.IsActive == nil || s.IsActive == *filter.IsActive
		})
	})
	return students, nil
}

func (repo *profileRepository) CreateStudent(_ context.Context, s profile.Student) (profile.Student, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.students {
			if other.AdmissionNumber == s.AdmissionNumber {
				return profile.ErrStudentExists
			}
		}
		s.ID = t.nextID()
		t.students[s.ID] = s
		return nil
	})
	if err != nil {
		return profile.Student{}, err
	}
	return s, nil
}

func (repo *profileRepository) GetStaff(_ context.Context, id int) (s profile.Staff, err error) {
	err = profile.ErrStaffNotFound
	repo.db.read(func(t *tables) {
		if found, ok := t.staff[id]; ok {
			s, err = found, nil
		}
	})
	return s, err
}

func (repo *profileRepository) CreateStaff(_ context.Context, s profile.Staff) (profile.Staff, error) {
	err := repo.db.write(func(t *tables) error {
		for _, other := range t.staff {
			if other.StaffNumber == s.StaffNumber {
				return profile.ErrStaffExists
			}
		}
		s.ID = t.nextID()
		t.staff[s.ID] = s
		return nil
	})
	if err != nil {
		return profile.Staff{}, err
	}
	return s, nil
}
