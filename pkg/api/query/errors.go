package query

import "fmt"

// ValidationError reports malformed filter input. It is always scoped to
// the request that triggered it and never leaves persisted state behind.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
