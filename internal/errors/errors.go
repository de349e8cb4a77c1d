// Package errors defines the error taxonomy of the weft build pipeline.
//
// Errors fall into three classes with different blast radii: resolution
// errors are scoped to a single include tag and never abort sibling
// processing; structural errors abort the current document transform because
// they indicate an authoring mistake that would otherwise silently corrupt
// output; the recursion-limit error is a safety valve against runaway
// inclusion graphs.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of pipeline errors.
type ErrorType string

const (
	// ErrorTypeResolution covers unresolvable include paths and unrecognized
	// module shapes. Tag-scoped and non-fatal: the tag is dropped and logged.
	ErrorTypeResolution ErrorType = "resolution"
	// ErrorTypeStructural covers slot and front-matter authoring mistakes.
	// Fatal to the current document transform.
	ErrorTypeStructural ErrorType = "structural"
	// ErrorTypeRecursionLimit is raised when the transform pass counter
	// exceeds its ceiling.
	ErrorTypeRecursionLimit ErrorType = "recursion_limit"
)

// PipelineError is a structured error carrying the tag or document it is
// scoped to.
type PipelineError struct {
	Type    ErrorType
	Tag     string // element name the error is scoped to, if any
	Path    string // document or module path, if known
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := e.Message
	if e.Tag != "" {
		msg = fmt.Sprintf("<%s>: %s", e.Tag, msg)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches two pipeline errors by type, so callers can test against the
// sentinel constructors without comparing messages.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type
	}
	return false
}

// NewResolutionError creates a tag-scoped, recoverable resolution error.
func NewResolutionError(tag, path, message string, cause error) *PipelineError {
	return &PipelineError{Type: ErrorTypeResolution, Tag: tag, Path: path, Message: message, Cause: cause}
}

// NewStructuralError creates an error fatal to the current transform.
func NewStructuralError(tag, path, message string) *PipelineError {
	return &PipelineError{Type: ErrorTypeStructural, Tag: tag, Path: path, Message: message}
}

// NewRecursionLimitError reports that a document's inclusion graph kept
// introducing recognized tags past the pass ceiling.
func NewRecursionLimitError(path string, limit int) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeRecursionLimit,
		Path:    path,
		Message: fmt.Sprintf("exceeded %d transform passes, likely infinite inclusion loop", limit),
	}
}

// IsResolution reports whether err is a tag-scoped resolution error.
func IsResolution(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Type == ErrorTypeResolution
}

// IsStructural reports whether err is fatal to the current transform.
func IsStructural(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Type == ErrorTypeStructural
}

// IsRecursionLimit reports whether err is the transform safety valve.
func IsRecursionLimit(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Type == ErrorTypeRecursionLimit
}
