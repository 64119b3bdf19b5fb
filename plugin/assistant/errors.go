package assistant

import "fmt"

// Code classifies engine failures so the transport boundary can pick the
// right user-facing message without inspecting causes.
type Code string

const (
	// CodeValidation indicates the reasoning backend produced a request
	// missing or mistyping parameters.
	CodeValidation Code = "VALIDATION"

	// CodeAmbiguous indicates the event resolver could not pick a
	// single target.
	CodeAmbiguous Code = "AMBIGUOUS_TARGET"

	// CodeBackendUnavailable indicates a collaborator (reasoning,
	// calendar, geocoding) failed after retries.
	CodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"

	// CodePermissionDenied indicates the calendar rejected the
	// operation for the acting chat.
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeNotFound indicates an explicitly identified event does not
	// exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUnauthenticated indicates the chat has not linked a Google
	// account yet.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// EngineError is a classified engine failure.
type EngineError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

func newError(code Code, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Cause: cause}
}
