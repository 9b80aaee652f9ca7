package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Task errors (TASK-001 to TASK-099)
	ErrCodeTaskNotFound        ErrorCode = "TASK-001"
	ErrCodeTaskInvalid         ErrorCode = "TASK-002"
	ErrCodeTaskTransition      ErrorCode = "TASK-003"
	ErrCodeTaskAlreadyClaimed  ErrorCode = "TASK-004"
	ErrCodeJobAlreadyCompleted ErrorCode = "TASK-005"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanValidation ErrorCode = "PLAN-001"
	ErrCodePlanGeneration ErrorCode = "PLAN-002"

	// Execution errors (EXEC-001 to EXEC-099)
	ErrCodeExecFailed         ErrorCode = "EXEC-001"
	ErrCodeExecUnknownJobType ErrorCode = "EXEC-002"
	ErrCodeExecSearch         ErrorCode = "EXEC-003"
	ErrCodeExecVCS            ErrorCode = "EXEC-004"
	ErrCodeExecPrompt         ErrorCode = "EXEC-005"

	// Store errors (STORE-001 to STORE-099)
	ErrCodeStoreIO     ErrorCode = "STORE-001"
	ErrCodeStoreConfig ErrorCode = "STORE-002"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderNotFound  ErrorCode = "PROVIDER-001"
	ErrCodeProviderConfig    ErrorCode = "PROVIDER-002"
	ErrCodeProviderAuth      ErrorCode = "PROVIDER-003"
	ErrCodeProviderAPI       ErrorCode = "PROVIDER-004"
	ErrCodeProviderRateLimit ErrorCode = "PROVIDER-005"
	ErrCodeProviderTimeout   ErrorCode = "PROVIDER-006"

	// Config errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
)

// Sentinels for errors.Is. Matching is by code, so any error carrying the same
// code satisfies errors.Is against these values.
var (
	ErrNotFound          = New(ErrCodeTaskNotFound, "task not found")
	ErrAlreadyClaimed    = New(ErrCodeTaskAlreadyClaimed, "task already claimed")
	ErrInvalidTransition = New(ErrCodeTaskTransition, "invalid task transition")
	ErrPlanValidation    = New(ErrCodePlanValidation, "plan validation failed")
	ErrUnknownJobType    = New(ErrCodeExecUnknownJobType, "unknown job type")
	ErrExecution         = New(ErrCodeExecFailed, "job execution failed")
)

// JacintaError is a coded error carrying remediation hints
type JacintaError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *JacintaError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", suggestion)
		}
	}

	if e.DocsURL != "" {
		fmt.Fprintf(&b, "\n\nDocumentation: %s", e.DocsURL)
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *JacintaError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a JacintaError with the same code
func (e *JacintaError) Is(target error) bool {
	t, ok := target.(*JacintaError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new JacintaError
func New(code ErrorCode, message string) *JacintaError {
	return &JacintaError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new JacintaError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *JacintaError {
	return &JacintaError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *JacintaError) WithSuggestion(suggestion string) *JacintaError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *JacintaError) WithSuggestions(suggestions ...string) *JacintaError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *JacintaError) WithDocs(url string) *JacintaError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the outermost JacintaError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var je *JacintaError
	if stderrors.As(err, &je) {
		return je.Code
	}
	return ""
}

// HasCode reports whether any JacintaError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &JacintaError{Code: code})
}

// NewTaskNotFoundError creates a task not found error
func NewTaskNotFoundError(id string) *JacintaError {
	return New(ErrCodeTaskNotFound, fmt.Sprintf("task not found: %s", id)).
		WithSuggestion("Run 'jacinta task list' to see known tasks")
}

// NewTaskInvalidError creates a task input validation error
func NewTaskInvalidError(details string) *JacintaError {
	return New(ErrCodeTaskInvalid, fmt.Sprintf("invalid task: %s", details))
}

// NewTransitionError creates an invalid lifecycle transition error
func NewTransitionError(id, from, to string) *JacintaError {
	return New(ErrCodeTaskTransition, fmt.Sprintf("task %s cannot move from %s to %s", id, from, to))
}

// NewPlanValidationError creates an error for a plan that contains an
// unsupported job type or no jobs at all.
func NewPlanValidationError(details string) *JacintaError {
	return New(ErrCodePlanValidation, fmt.Sprintf("invalid plan: %s", details)).
		WithSuggestion("Rephrase the task description and retry the task").
		WithSuggestion("Supported job types are research, code and ask_user")
}

// NewExecutorError wraps a failure of a job execution strategy
func NewExecutorError(jobType string, cause error) *JacintaError {
	return Wrap(ErrCodeExecFailed, fmt.Sprintf("%s job failed", jobType), cause)
}

// NewUnknownJobTypeError creates the non-fatal error for a job whose type
// has no execution strategy.
func NewUnknownJobTypeError(jobType string) *JacintaError {
	return New(ErrCodeExecUnknownJobType, fmt.Sprintf("unknown job type: %q", jobType))
}

// NewStoreError wraps a persistence failure
func NewStoreError(op string, cause error) *JacintaError {
	return Wrap(ErrCodeStoreIO, fmt.Sprintf("store %s failed", op), cause)
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider string) *JacintaError {
	return New(ErrCodeProviderAuth, fmt.Sprintf("authentication failed for provider: %s", provider)).
		WithSuggestion(fmt.Sprintf("Set the %s_API_KEY environment variable", strings.ToUpper(provider))).
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewProviderRateLimitError creates a rate limit error
func NewProviderRateLimitError(provider string, retryAfter string) *JacintaError {
	msg := fmt.Sprintf("rate limit exceeded for provider: %s", provider)
	if retryAfter != "" {
		msg += fmt.Sprintf(" (retry after: %s)", retryAfter)
	}

	return New(ErrCodeProviderRateLimit, msg).
		WithSuggestion("Wait before retrying the task")
}

// NewConfigError creates a configuration validation error
func NewConfigError(details string) *JacintaError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check .jacinta/config.yaml or the file passed with --config")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *JacintaError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format")
}
