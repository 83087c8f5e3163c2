package validator

import (
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"bookshelf/pkg/validation"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// bcrypt hashes at most 72 bytes; the struct tag limit counts runes.
const maxPasswordBytes = 72

type UserValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewUserValidator(log *logger.Logger) *UserValidator {
	v := validation.New()

	if err := v.RegisterValidation("password_bytes", validatePasswordBytes); err != nil {
		log.Fatal("Failed to register 'password_bytes' validator",
			"error", err,
		)
	}

	return &UserValidator{
		validate: v,
		logger:   log,
	}
}

func validatePasswordBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= maxPasswordBytes
}

func (v *UserValidator) ValidateRegister(in *model.RegisterInput) error {
	if err := validation.Struct(v.validate, in); err != nil {
		return err
	}

	if err := v.validate.Var(in.Password, "password_bytes"); err != nil {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "password",
				Message: fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes),
			},
		}
	}

	return nil
}

func (v *UserValidator) ValidateLogin(in *model.LoginInput) error {
	return validation.Struct(v.validate, in)
}

func (v *UserValidator) ValidateRole(update *model.RoleUpdate) error {
	return validation.Struct(v.validate, update)
}

func (v *UserValidator) ValidateEmploymentStatus(update *model.EmploymentStatusUpdate) error {
	return validation.Struct(v.validate, update)
}
