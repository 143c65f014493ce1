package app

import (
	"fmt"
	"net/http"

	"buildea/api/internal/identity"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(field, message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{field: message})
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

// denied is 401 for anonymous callers and 403 for signed-in ones.
func denied(session identity.Session) *DomainError {
	if !session.Authenticated() {
		return unauthorized()
	}
	return forbidden()
}

func unauthorized() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
}

func tooManyRequests() *DomainError {
	return domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later", nil)
}
