package blog

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or malformed input. The message is shown to the user verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthenticationError reports bad credentials.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// PermissionError reports a failed role or ownership check.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found.", e.Resource)
	}
	return fmt.Sprintf("%s %d not found.", e.Resource, e.ID)
}

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func permissionf(format string, args ...any) error {
	return &PermissionError{Message: fmt.Sprintf(format, args...)}
}

func notFound(resource string, id uint) error {
	return &NotFoundError{Resource: resource, ID: id}
}

var errInvalidCredentials = &AuthenticationError{Message: "Invalid username or password."}

// ErrRegistrationDisabled is returned by Register while sign-up is turned off.
var ErrRegistrationDisabled = &ValidationError{Message: "Registration is currently disabled."}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// UserMessage returns the message to show for a domain error.
// The second return value is false for unexpected errors, whose details must not reach the user.
func UserMessage(err error) (string, bool) {
	var (
		validation *ValidationError
		auth       *AuthenticationError
		permission *PermissionError
		missing    *NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Message, true
	case errors.As(err, &auth):
		return auth.Message, true
	case errors.As(err, &permission):
		return permission.Message, true
	case errors.As(err, &missing):
		return missing.Error(), true
	default:
		return "Something went wrong. Please try again.", false
	}
}
