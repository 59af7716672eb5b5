package profile

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/gladschool/portal/core"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrStaffNotFound   = errors.New("staff not found")
	ErrStudentExists   = errors.New("a student with this admission number already exists")
	ErrStaffExists     = errors.New("a staff member with this staff number already exists")
)

// Student is owned by the admissions system; this module only reads it.
type Student struct {
	ID              int    `json:"id" db:"id"`
	UserID          int    `json:"user_id,omitempty" db:"user_id"`
	AdmissionNumber string `json:"admission_number" db:"admission_number"`
	FirstName       string `json:"first_name" db:"first_name"`
	LastName        string `json:"last_name" db:"last_name"`
	Email           string `json:"email" db:"email"`
	ClassID         int    `json:"class_id" db:"class_id"`
	IsActive        bool   `json:"is_active" db:"is_active"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

type Staff struct {
	ID          int    `json:"id" db:"id"`
	UserID      int    `json:"user_id,omitempty" db:"user_id"`
	StaffNumber string `json:"staff_number" db:"staff_number"`
	Name        string `json:"name" db:"name"`
	Email       string `json:"email" db:"email"`
	Position    string `json:"position" db:"position"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

type StudentFilter struct {
	ClassID  int
	IsActive *bool
}

// Repository reads profiles. The create methods exist for imports and test fixtures.
type Repository interface {
	GetStudent(ctx context.Context, id int) (Student, error)
	GetStudentByAdmissionNumber(ctx context.Context, admissionNumber string) (Student, error)
	QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
	CreateStudent(ctx context.Context, s Student) (Student, error)
	GetStaff(ctx context.Context, id int) (Staff, error)
	CreateStaff(ctx context.Context, s Staff) (Staff, error)
}

// NewStudent contains information needed to import a Student.
type NewStudent struct {
	AdmissionNumber string `json:"admission_number" validate:"required,max=50"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Email           string `json:"email" validate:"omitempty,email"`
	ClassID         int    `json:"class_id" validate:"omitempty,gt=0"`
}

type NewStaff struct {
	StaffNumber string `json:"staff_number" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=150"`
	Email       string `json:"email" validate:"omitempty,email"`
	Position    string `json:"position" validate:"max=100"`
}

// ImportStudent validates `ns` and stores it as an active Student.
func ImportStudent(ctx context.Context, repo Repository, ns NewStudent) (Student, error) {
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	if err := core.Validate.Struct(ns); err != nil {
		return Student{}, err
	}
	s, err := repo.CreateStudent(ctx, Student{
		AdmissionNumber: ns.AdmissionNumber,
		FirstName:       ns.FirstName,
		LastName:        ns.LastName,
		Email:           ns.Email,
		ClassID:         ns.ClassID,
		IsActive:        true,
	})
	if err == ErrStudentExists {
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "admission_number", Error: err.Error()})
	}
	return s, err
}

// ImportStaff validates `ns` and stores it as an active Staff.
func ImportStaff(ctx context.Context, repo Repository, ns NewStaff) (Staff, error) {
	ns.StaffNumber = core.CleanString(ns.StaffNumber)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Position = core.CleanString(ns.Position)
	if err := core.Validate.Struct(ns); err != nil {
		return Staff{}, err
	}
	s, err := repo.CreateStaff(ctx, Staff{
		StaffNumber: ns.StaffNumber,
		Name:        ns.Name,
		Email:       ns.Email,
		Position:    ns.Position,
		IsActive:    true,
	})
	if err == ErrStaffExists {
		return Staff{}, core.NewValidationError(err, core.FieldError{Field: "staff_number", Error: err.Error()})
	}
	return s, err
}
