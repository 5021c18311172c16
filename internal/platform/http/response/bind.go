package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"mosaic_backend/internal/platform/apperr"
)

// FieldError describes one failed binding rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// BindError converts a gin binding error into a ValidationError. Rule
// failures are listed in Details; malformed JSON keeps the generic message.
func BindError(err error) *apperr.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(err, apperr.CodeInvalid, "Invalid request body")
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	msg := "Validation failed"
	if len(details) == 1 {
		msg = fmt.Sprintf("%s is invalid (%s)", details[0].Field, details[0].Rule)
		if details[0].Rule == "required" {
			msg = details[0].Field + " is required"
		}
	}
	return apperr.Wrap(err, apperr.CodeInvalid, msg).WithDetails(details)
}
