package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrCaptureNotFound signals that a recorded or live capture does not exist.
var ErrCaptureNotFound = stdErrors.New("capture not found")

// ParseError represents a record or configuration parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues. Validation errors
// are fatal: a run never starts when one is returned.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CaptureError represents a failure to acquire a screen from a device or a
// recorded capture set.
type CaptureError struct {
	Source string
	Key    string
	Err    error
}

// NewCaptureError constructs a CaptureError.
func NewCaptureError(source, key string, err error) error {
	return &CaptureError{Source: source, Key: key, Err: err}
}

func (e *CaptureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Key != "" {
		return fmt.Sprintf("capture error [%s] %s: %v", e.Source, e.Key, e.Err)
	}
	return fmt.Sprintf("capture error [%s]: %v", e.Source, e.Err)
}

// Unwrap exposes the root error.
func (e *CaptureError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ScoringError indicates the external matcher or checker failed for a strategy.
type ScoringError struct {
	Strategy string
	Stage    string
	Err      error
}

// NewScoringError constructs a ScoringError for the given strategy and stage.
func NewScoringError(strategy, stage string, err error) error {
	return &ScoringError{Strategy: strategy, Stage: stage, Err: err}
}

func (e *ScoringError) Error() string {
	if e == nil {
		return ""
	}
	if e.Strategy != "" {
		return fmt.Sprintf("scoring error [%s/%s]: %v", e.Strategy, e.Stage, e.Err)
	}
	return fmt.Sprintf("scoring error [%s]: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ScoringError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ActionError represents a failure to build or execute an automation action.
type ActionError struct {
	Action string
	Err    error
}

// NewActionError constructs an ActionError.
func NewActionError(action string, err error) error {
	return &ActionError{Action: action, Err: err}
}

func (e *ActionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("action error [%s]: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("action error: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *ActionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
