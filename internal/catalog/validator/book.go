package validator

import (
	"bookshelf/pkg/logger"
	"bookshelf/pkg/model"
	"bookshelf/pkg/validation"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ISBN-10 or ISBN-13 once separators are stripped; X is only valid as the
// ISBN-10 check digit.
var isbnRegex = regexp.MustCompile(`^(?:\d{9}[\dX]|\d{13})$`)

type BookValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookValidator(log *logger.Logger) *BookValidator {
	v := validation.New()

	if err := v.RegisterValidation("isbn_digits", validateISBN); err != nil {
		log.Fatal("Failed to register 'isbn_digits' validator",
			"error", err,
		)
	}

	return &BookValidator{
		validate: v,
		logger:   log,
	}
}

func validateISBN(fl validator.FieldLevel) bool {
	isbn := strings.ToUpper(fl.Field().String())
	isbn = strings.NewReplacer("-", "", " ", "").Replace(isbn)
	return isbnRegex.MatchString(isbn)
}

// Validate checks a sanitized create request.
func (v *BookValidator) Validate(input *model.BookInput) error {
	if err := validation.Struct(v.validate, input); err != nil {
		return err
	}

	if err := v.validate.Var(input.ISBN, "isbn_digits"); err != nil {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "isbn",
				Message: "isbn must be a valid ISBN-10 or ISBN-13",
			},
		}
	}

	return nil
}

func (v *BookValidator) ValidateStatus(status model.BookStatus) error {
	if !status.Valid() {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "status",
				Message: "status must be one of: available borrowed damaged importing lost",
			},
		}
	}
	return nil
}
