package user

import (
	"time"

	"github.com/gladschool/portal/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleStaff      = "staff"
	RoleAccountant = "accountant"
	RoleAdmin      = "admin"
	RoleITSupport  = "it_support"
)

var (
	AllRoles = []string{RoleStudent, RoleStaff, RoleAccountant, RoleAdmin, RoleITSupport}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Staff", Value: RoleStaff},
		{Name: "Accountant", Value: RoleAccountant},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "IT Support", Value: RoleITSupport},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (u User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u User) IsStaff() bool      { return u.Role == RoleStaff }
func (u User) IsAccountant() bool { return u.Role == RoleAccountant }
func (u User) IsStudent() bool    { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,min=3,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
}

// GetFilter selects a single User, by ID or by username / email.
type GetFilter struct {
	ID              int
	UsernameOrEmail string
}
