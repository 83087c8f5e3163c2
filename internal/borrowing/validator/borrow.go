package validator

import (
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"bookshelf/pkg/validation"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type BorrowValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBorrowValidator(log *logger.Logger) *BorrowValidator {
	return &BorrowValidator{
		validate: validation.New(),
		logger:   log,
	}
}

// ValidateDuration checks an already defaulted loan length against the
// configured maximum.
func (v *BorrowValidator) ValidateDuration(days int, maxDays int) error {
	if err := v.validate.Var(days, fmt.Sprintf("min=1,max=%d", maxDays)); err != nil {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "duration_days",
				Message: fmt.Sprintf("duration_days must be between 1 and %d", maxDays),
			},
		}
	}
	return nil
}

func (v *BorrowValidator) ValidateReturn(req *model.ReturnRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *BorrowValidator) ValidateHistoryStatus(status model.BorrowStatus) error {
	if status != "" && !status.Valid() {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "status",
				Message: "status must be one of: pending approved active returned overdue",
			},
		}
	}
	return nil
}
