package errors

import (
	"fmt"
	"strings"

	"github.com/opensase/upo/pkg/intent/ast"
)

// ErrorType categorizes the type of error encountered while reading or
// checking an intent document.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // YAML syntax error
	ErrorTypeStructural ErrorType = "structural" // Schema violation (missing/invalid fields)
	ErrorTypeSemantic   ErrorType = "semantic"   // Undefined reference, ambiguous rule
	ErrorTypeIO         ErrorType = "io"         // File I/O error
)

// Error is a single intent error with the smallest failing unit attached:
// a document path plus, when available, the source location.
type Error struct {
	Type       ErrorType
	Message    string
	Location   ast.Location
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s", e.Type, e.Message))

	if e.Location.Path != "" {
		sb.WriteString(fmt.Sprintf("\n  at %s", e.Location.Path))
	}
	if e.Location.Line > 0 {
		sb.WriteString(fmt.Sprintf("\n  --> %s", e.Location.String()))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n  = suggestion: %s", e.Suggestion))
	}

	return sb.String()
}

// ErrorList accumulates intent errors so that all structural problems can be
// reported in one pass instead of failing on the first.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates a new empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*Error, 0)}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and adds a new error with the given parameters.
func (el *ErrorList) AddError(errType ErrorType, message string, location ast.Location) {
	el.Add(&Error{Type: errType, Message: message, Location: location})
}

// AddErrorWithSuggestion creates and adds a new error with a suggestion.
func (el *ErrorList) AddErrorWithSuggestion(errType ErrorType, message string, location ast.Location, suggestion string) {
	el.Add(&Error{Type: errType, Message: message, Location: location, Suggestion: suggestion})
}

// HasErrors returns true if the list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// HasErrorType returns true if at least one error of the given type is present.
func (el *ErrorList) HasErrorType(errType ErrorType) bool {
	for _, err := range el.Errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}

// ByType returns all errors of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d error(s) in intent document:\n\n", el.Count()))

	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("error %d:\n", i+1))
		sb.WriteString(err.Error())
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// ToError returns nil when the list is empty, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}
