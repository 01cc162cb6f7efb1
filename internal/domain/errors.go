package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrForbidden    = errors.New("domain: forbidden")
)

// Validation errors. These are raised before any network call is made.
var (
	ErrEmptyTitle      = errors.New("domain: title is required")
	ErrDuplicateTitle  = errors.New("domain: title already exists")
	ErrInvalidEmail    = errors.New("domain: malformed email")
	ErrInvalidPriority = errors.New("domain: unknown priority")
	ErrInvalidRole     = errors.New("domain: unknown role")
	ErrInvalidPosition = errors.New("domain: position out of range")
	ErrEmptyContent    = errors.New("domain: content is required")
)

// IsValidation reports whether err is one of the validation sentinels.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrEmptyTitle, ErrDuplicateTitle, ErrInvalidEmail, ErrInvalidPriority,
		ErrInvalidRole, ErrInvalidPosition, ErrEmptyContent,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
