package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeInvalidRequest    ErrorType = "invalid_request"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeTooManyRequests   ErrorType = "too_many_requests"
	ErrorTypeTemplateNotFound  ErrorType = "template_not_found"
	ErrorTypeEnricherNotFound  ErrorType = "enricher_not_found"
	ErrorTypeUnsupportedEngine ErrorType = "unsupported_engine"
	ErrorTypeBackend           ErrorType = "backend_error"
	ErrorTypeCancelled         ErrorType = "operation_cancelled"
)

// Sentinels for errors.Is. Matching is by Type only, so any APIError of
// the same category satisfies errors.Is(err, ErrTemplateNotFound).
var (
	ErrTemplateNotFound  = &APIError{Type: ErrorTypeTemplateNotFound}
	ErrEnricherNotFound  = &APIError{Type: ErrorTypeEnricherNotFound}
	ErrUnsupportedEngine = &APIError{Type: ErrorTypeUnsupportedEngine}
	ErrBackend           = &APIError{Type: ErrorTypeBackend}
	ErrCancelled         = &APIError{Type: ErrorTypeCancelled}
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is reports whether target is an APIError of the same type.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error and returns e.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewTemplateNotFoundError reports a template name with no configuration.
func NewTemplateNotFoundError(name string) *APIError {
	return &APIError{
		Type:    ErrorTypeTemplateNotFound,
		Param:   "template",
		Message: fmt.Sprintf("template %q is not configured", name),
	}
}

// NewEnricherNotFoundError reports an enricher name referenced by a
// template that has no registration.
func NewEnricherNotFoundError(template, enricher string) *APIError {
	return &APIError{
		Type:    ErrorTypeEnricherNotFound,
		Param:   "template",
		Message: fmt.Sprintf("template %q references unregistered enricher %q", template, enricher),
	}
}

// NewUnsupportedEngineError reports an engine identifier the factory cannot resolve.
func NewUnsupportedEngineError(engine string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnsupportedEngine,
		Param:   "engine",
		Message: fmt.Sprintf("engine %q is not supported", engine),
	}
}

// NewBackendError creates an APIError for a failed call to a model backend.
func NewBackendError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeBackend,
		Message: message,
	}
}

// NewCancelledError creates an APIError for a run aborted by cancellation.
func NewCancelledError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeCancelled,
		Message: message,
	}
}
