package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/gladschool/portal/core/profile"
)

const (
	studentColumns = `id, COALESCE(user_id, 0) AS user_id, admission_number, first_name, last_name, email,
		COALESCE(class_id, 0) AS class_id, is_active`
	staffColumns = `id, COALESCE(user_id, 0) AS user_id, staff_number, name, email, position, is_active`
)

type profileRepository struct {
	exec dbExecutor
}

var _ profile.Repository = (*profileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) profile.Repository {
	return &profileRepository{exec: db}
}

func (repo *profileRepository) GetStudent(ctx context.Context, id int) (profile.Student, error) {
	var s profile.Student
	err := repo.exec.GetContext(ctx, &s, repo.exec.Rebind(`SELECT `+studentColumns+` FROM students WHERE id = ?`), id)
	if err != nil {
		return profile.Student{}, notFound(err, profile.ErrStudentNotFound)
	}
	return s, nil
}

func (repo *profileRepository) GetStudentByAdmissionNumber(ctx context.Context, admissionNumber string) (profile.Student, error) {
	var s profile.Student
	err := repo.exec.GetContext(ctx, &s,
		repo.exec.Rebind(`SELECT `+studentColumns+` FROM students WHERE admission_number = ?`), admissionNumber)
	if err != nil {
		return profile.Student{}, notFound(err, profile.ErrStudentNotFound)
	}
	return s, nil
}

func (repo *profileRepository) QueryStudents(ctx context.Context, filter profile.StudentFilter) ([]profile.Student, error) {
	var w where
	if filter.ClassID != 0 {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	students := make([]profile.Student, 0)
	err := selectWhere(ctx, repo.exec, &students, `SELECT `+studentColumns+` FROM students`, &w, ` ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return students, nil
}

func (repo *profileRepository) CreateStudent(ctx context.Context, s profile.Student) (profile.Student, error) {
	q := repo.exec.Rebind(`INSERT INTO students (user_id, admission_number, first_name, last_name, email, class_id, is_active)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, NULLIF(?, 0), ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q,
		s.UserID, s.AdmissionNumber, s.FirstName, s.LastName, s.Email, s.ClassID, s.IsActive,
	).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return profile.Student{}, profile.ErrStudentExists
		}
		return profile.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo *profileRepository) GetStaff(ctx context.Context, id int) (profile.Staff, error) {
	var s profile.Staff
	err := repo.exec.GetContext(ctx, &s, repo.exec.Rebind(`SELECT `+staffColumns+` FROM staff WHERE id = ?`), id)
	if err != nil {
		return profile.Staff{}, notFound(err, profile.ErrStaffNotFound)
	}
	return s, nil
}

func (repo *profileRepository) CreateStaff(ctx context.Context, s profile.Staff) (profile.Staff, error) {
	q := repo.exec.Rebind(`INSERT INTO staff (user_id, staff_number, name, email, position, is_active)
		VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?) RETURNING id`)
	err := repo.exec.QueryRowxContext(ctx, q, s.UserID, s.StaffNumber, s.Name, s.Email, s.Position, s.IsActive).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return profile.Staff{}, profile.ErrStaffExists
		}
		return profile.Staff{}, errors.Wrap(err, "inserting staff")
	}
	return s, nil
}
