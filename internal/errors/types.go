package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSandbox    ErrorType = "sandbox"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypePipeline   ErrorType = "pipeline"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, e.Component+":")
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile adds file location information.
func (e *SiteError) WithFile(filePath string) *SiteError {
	e.FilePath = filePath

	return e
}

// WithComponent adds the name of the component that raised the error.
func (e *SiteError) WithComponent(component string) *SiteError {
	e.Component = component

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSandboxError creates an error for a write that would escape the website
// directory. It is never recoverable.
func NewSandboxError(path, root string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeSandbox,
		Code:        ErrCodeOutsideWebsite,
		Message:     fmt.Sprintf("destination is outside website directory %s", root),
		FilePath:    path,
		Recoverable: false,
	}
}

// NewPipelineError creates a per-file pipeline error.
func NewPipelineError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypePipeline,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// WrapPipeline wraps err as a pipeline error raised by component for file.
// A SiteError is annotated in place rather than wrapped twice.
func WrapPipeline(err error, code, component, file string) *SiteError {
	if err == nil {
		return nil
	}
	var se *SiteError
	if errors.As(err, &se) {
		if se.Component == "" {
			se.Component = component
		}
		if se.FilePath == "" {
			se.FilePath = file
		}
		return se
	}
	return NewPipelineError(code, "processing failed", err).
		WithComponent(component).
		WithFile(file)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsSandboxError checks if an error is a website sandbox violation.
func IsSandboxError(err error) bool {
	return isType(err, ErrorTypeSandbox)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return isType(err, ErrorTypeConfig)
}

// IsPipelineError checks if an error is a per-file pipeline error.
func IsPipelineError(err error) bool {
	return isType(err, ErrorTypePipeline)
}

func isType(err error, t ErrorType) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeOutsideWebsite   = "ERR_OUTSIDE_WEBSITE"
	ErrCodeCommandRejected  = "ERR_COMMAND_REJECTED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeEnumerate        = "ERR_ENUMERATE"
	ErrCodeLoad             = "ERR_LOAD"
	ErrCodeInject           = "ERR_INJECT"
	ErrCodeProcess          = "ERR_PROCESS"
	ErrCodeProcessorCycle   = "ERR_PROCESSOR_CYCLE"
	ErrCodeUnknownProcessor = "ERR_UNKNOWN_PROCESSOR"
	ErrCodePartialNotFound  = "ERR_PARTIAL_NOT_FOUND"
	ErrCodePartialAmbiguous = "ERR_PARTIAL_AMBIGUOUS"
	ErrCodeWrite            = "ERR_WRITE"
	ErrCodeRunProcess       = "ERR_RUN_PROCESS"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// FieldValidationError reports a single invalid settings field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	messages := make([]string, 0, len(vec.Errors))
	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
	}

	return fmt.Sprintf("validation failed with %d errors: %s", len(vec.Errors), strings.Join(messages, "; "))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Errors = append(vec.Errors, &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	})
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ErrOrNil returns the collection as an error, or nil when it is empty.
func (vec *ValidationErrorCollection) ErrOrNil() error {
	if !vec.HasErrors() {
		return nil
	}
	return vec
}
