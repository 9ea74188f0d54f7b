package app

import (
	"fmt"
	"net/http"
)

// DomainError is a failure the client can act on. writeMapped renders it
// as the JSON error envelope with its own HTTP status; everything else
// surfaces as a generic 500.
type DomainError struct {
	Status  int
	Code    string // stable machine identifier, e.g. VALIDATION_ERROR
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

// validationError is the 422 shorthand. Request validation is by far the
// most common client-addressable failure in this API.
func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}
