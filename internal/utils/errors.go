package utils

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks input rejected before any work is done.
	ErrValidation = errors.New("validation error")
	// ErrScanUnresolved marks a scanned code that does not lead to a ticket.
	ErrScanUnresolved = errors.New("scan could not be resolved to a ticket")
)

// ValidationError carries per-field problems. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, problem := range e.Fields {
		parts = append(parts, field+": "+problem)
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a single-field validation error.
func Invalid(field, problem string) error {
	return &ValidationError{
		Message: "invalid " + field,
		Fields:  map[string]string{field: problem},
	}
}
