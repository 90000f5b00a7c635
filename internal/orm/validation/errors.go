// Package validation collects problems found in request bodies and query
// parameters so they can be reported together instead of one at a time.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidationFailed matches any *ValidationErrors through errors.Is
var ErrValidationFailed = errors.New("validation failed")

// Source locates the offending part of a request. At most one member is set.
type Source struct {
	// Pointer is a JSON pointer into the request body, e.g. /data/attributes/title
	Pointer string
	// Parameter is the query parameter name, e.g. page[limit]
	Parameter string
}

// FieldError is a single validation problem
type FieldError struct {
	Field   string
	Message string
	Source  Source
}

// ValidationErrors contains every problem found in one request
type ValidationErrors struct {
	Errors []FieldError
}

// NewValidationErrors creates an empty ValidationErrors
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// AddPointer records a body problem located by a JSON pointer
func (ve *ValidationErrors) AddPointer(field, pointer, message string) {
	ve.Errors = append(ve.Errors, FieldError{Field: field, Message: message, Source: Source{Pointer: pointer}})
}

// AddParameter records a query parameter problem
func (ve *ValidationErrors) AddParameter(parameter, message string) {
	ve.Errors = append(ve.Errors, FieldError{Field: parameter, Message: message, Source: Source{Parameter: parameter}})
}

// HasErrors returns true if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// Count returns the number of validation errors
func (ve *ValidationErrors) Count() int {
	return len(ve.Errors)
}

// OnlyParameters reports whether every problem comes from query parameters
func (ve *ValidationErrors) OnlyParameters() bool {
	for _, fe := range ve.Errors {
		if fe.Source.Parameter == "" {
			return false
		}
	}
	return ve.HasErrors()
}

// ErrorOrNil returns ve when it holds errors and nil otherwise
func (ve *ValidationErrors) ErrorOrNil() error {
	if !ve.HasErrors() {
		return nil
	}
	return ve
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", messages[0])
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Is makes errors.Is(err, ErrValidationFailed) match
func (ve *ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed
}

// EscapeJSONPointer escapes a reference token per RFC 6901
func EscapeJSONPointer(token string) string {
	// Order matters: escape ~ before /
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return token
}

// AttributePointer returns the JSON pointer of a resource attribute
func AttributePointer(name string) string {
	return "/data/attributes/" + EscapeJSONPointer(name)
}

// RelationshipPointer returns the JSON pointer of a resource relationship
func RelationshipPointer(name string) string {
	return "/data/relationships/" + EscapeJSONPointer(name)
}
