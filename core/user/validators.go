package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/gladschool/portal/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"
)

func init() {
	_ = core.Validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, roleTag, roleText)
}

func roleValidation(fl validator.FieldLevel) bool {
	return Allowed(fl.Field().String(), AllRoles...)
}
