package user

import "github.com/pkg/errors"

var ErrPermissionDenied = errors.New("permission denied")

// Capability names something a User may be allowed to do.
type Capability string

const (
	CanManageFees        Capability = "manage_fees"
	CanRecordPayments    Capability = "record_payments"
	CanManagePayroll     Capability = "manage_payroll"
	CanManageExpenses    Capability = "manage_expenses"
	CanViewFinance       Capability = "view_finance"
	CanEnterResults      Capability = "enter_results"
	CanCompileResults    Capability = "compile_results"
	CanPublishResults    Capability = "publish_results"
	CanManageAcademics   Capability = "manage_academics"
	CanManageAssessments Capability = "manage_assessments"
	CanViewResults       Capability = "view_results"
)

var capabilityRoles = map[Capability][]string{
	CanManageFees:        {RoleAccountant, RoleAdmin},
	CanRecordPayments:    {RoleAccountant, RoleAdmin},
	CanManagePayroll:     {RoleAccountant, RoleAdmin},
	CanManageExpenses:    {RoleAccountant, RoleAdmin},
	CanViewFinance:       {RoleAccountant, RoleAdmin},
	CanEnterResults:      {RoleStaff, RoleAdmin},
	CanCompileResults:    {RoleStaff, RoleAdmin},
	CanViewResults:       {RoleStaff, RoleAdmin},
	CanPublishResults:    {RoleAdmin},
	CanManageAcademics:   {RoleAdmin},
	CanManageAssessments: {RoleAdmin},
}

// Allowed reports whether `role` is one of `required`.
func Allowed(role string, required ...string) bool {
	for _, r := range required {
		if role == r {
			return true
		}
	}
	return false
}

// RolesFor returns the roles granted `cap`.
func RolesFor(cap Capability) []string {
	return capabilityRoles[cap]
}

// Can reports whether an active `usr` holds `cap`.
func Can(usr User, cap Capability) bool {
	return usr.IsActive && Allowed(usr.Role, capabilityRoles[cap]...)
}

// Authorize returns ErrPermissionDenied unless `usr` holds `cap`.
func Authorize(usr User, cap Capability) error {
	if !Can(usr, cap) {
		return ErrPermissionDenied
	}
	return nil
}
