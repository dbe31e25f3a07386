package pkg

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid input field.
// Handlers turn it into a 400 response naming the field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors collects per-field errors so a single response can
// report all invalid fields together.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

// FieldMap returns field name to message, the shape sent to clients.
func (e ValidationErrors) FieldMap() map[string]string {
	fields := make(map[string]string, len(e))
	for i := range e {
		fields[e[i].Field] = e[i].Message
	}
	return fields
}
