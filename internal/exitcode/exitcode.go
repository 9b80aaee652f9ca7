package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2

	// PlanRejected indicates the planner produced an unusable plan
	PlanRejected = 3

	// NotFound indicates the referenced task does not exist
	NotFound = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the command was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to a process exit code. Coded errors are
// matched first; plain errors fall back to message inspection.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeTaskNotFound:
		return NotFound
	case errors.ErrCodeConfigInvalid, errors.ErrCodeTaskInvalid, errors.ErrCodeProviderConfig, errors.ErrCodeStoreConfig:
		return UsageError
	case errors.ErrCodePlanValidation:
		return PlanRejected
	case errors.ErrCodeProviderAuth:
		return AuthError
	case errors.ErrCodeProviderTimeout:
		return NetworkError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	return GeneralError
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case PlanRejected:
		return "Plan rejected"
	case NotFound:
		return "Task not found"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
