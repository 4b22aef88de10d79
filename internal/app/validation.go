package app

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrAdminOnly is returned by administrator views for regular merchants.
	ErrAdminOnly = errors.New("this page is only available to administrators")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNoSession is returned when a view needs an identity and nobody is logged in.
	ErrNoSession = errors.New("no active session")
)

// ValidationError carries the message shown next to the offending form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// formValidator wraps go-playground validator with the dashboard's rules.
type formValidator struct {
	validate *validator.Validate
	messages map[string]string
}

func newFormValidator() *formValidator {
	return &formValidator{validate: validator.New(), messages: fieldMessages}
}

// fieldMessages maps "Struct.Field.tag" to the message shown in the form.
var fieldMessages = map[string]string{
	"PasswordForm.NewPassword.min":             "New password must be at least 8 characters.",
	"PasswordForm.NewPassword.required":        "New password must be at least 8 characters.",
	"PasswordForm.ConfirmPassword.eqfield":     "New password and confirm do not match.",
	"WithdrawForm.DestinationAddress.required": "Destination address is required.",
	"MerchantForm.Email.required":              "Email is required.",
	"MerchantForm.Email.email":                 "A valid email is required.",
	"MerchantForm.Password.required":           "Password is required.",
	"TransactionQuery.Status.oneof":            "Unknown transaction status.",
	"TransactionQuery.FromDate.datetime":       "From date must be YYYY-MM-DD.",
	"TransactionQuery.ToDate.datetime":         "To date must be YYYY-MM-DD.",
	"AnalyticsQuery.FromDate.datetime":         "From date must be YYYY-MM-DD.",
	"AnalyticsQuery.ToDate.datetime":           "To date must be YYYY-MM-DD.",
	"AnalyticsQuery.GroupBy.oneof":             "Group by must be day, week or month.",
}

// Validate returns the first failed rule as a *ValidationError.
func (fv *formValidator) Validate(form interface{}) error {
	err := fv.validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := fieldErrs[0]
	key := first.StructNamespace() + "." + first.Tag()
	if msg, ok := fv.messages[key]; ok {
		return &ValidationError{Field: first.Field(), Message: msg}
	}
	return &ValidationError{
		Field:   first.Field(),
		Message: strings.TrimSpace(first.Field() + " is invalid."),
	}
}
