package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"bedrock-gateway/internal/provider"
)

// Public error types.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypePermission     = "permission_error"
	ErrorTypeAPI            = "api_error"
	ErrorTypeStream         = "stream_error"

	codeModelNotFound = "model_not_found"
	codeInvalidValue  = "invalid_value"
	codeEmptyMessages = "empty_messages"

	backendMessagePrefix = "Backend error: "
)

var (
	// ErrInvalidRequest matches every validation failure of a public request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyMessages indicates a chat request without any usable message.
	ErrEmptyMessages = fmt.Errorf("%w: messages must contain at least one message", ErrInvalidRequest)
)

// APIError is the public error body plus the HTTP status it is served with.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorBody wraps an APIError the way the public contract serialises it.
type ErrorBody struct {
	Error *APIError `json:"error"`
}

// InvalidRequestError reports a public request that failed validation.
type InvalidRequestError struct {
	Param   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return e.Message
}

// Is reports whether target is ErrInvalidRequest.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func invalidRequest(param, format string, args ...any) error {
	return &InvalidRequestError{Param: param, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalidRequest("", "invalid request: %v", err)
	}

	fe := fieldErrs[0]
	param := fe.Namespace()
	if _, rest, ok := strings.Cut(param, "."); ok {
		param = rest
	}

	switch fe.Tag() {
	case "required":
		return invalidRequest(param, "%s is required", param)
	case "oneof":
		return invalidRequest(param, "%s must be one of [%s], got %v", param, fe.Param(), fe.Value())
	case "gte", "min":
		return invalidRequest(param, "%s must be greater than or equal to %s", param, fe.Param())
	case "lte", "max":
		return invalidRequest(param, "%s must be less than or equal to %s", param, fe.Param())
	default:
		return invalidRequest(param, "%s failed %q validation", param, fe.Tag())
	}
}

var (
	arnPattern       = regexp.MustCompile(`arn:aws[a-zA-Z-]*:[^\s"',]+`)
	requestIDPattern = regexp.MustCompile(`(?i)request ?id:? ?[0-9a-f-]{16,}`)
	accountIDPattern = regexp.MustCompile(`\b\d{12}\b`)
)

// scrubBackendMessage strips identifiers that leak AWS account internals.
func scrubBackendMessage(msg string) string {
	msg = arnPattern.ReplaceAllString(msg, "[arn]")
	msg = requestIDPattern.ReplaceAllString(msg, "request id [redacted]")
	msg = accountIDPattern.ReplaceAllString(msg, "[account]")
	return strings.TrimSpace(msg)
}

// TranslateError classifies any engine, validation or backend failure into
// the public error taxonomy.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var unknown *provider.UnknownModelError
	if errors.As(err, &unknown) {
		return &APIError{
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("The model `%s` does not exist. Available %s models: %s", unknown.ID, unknown.Kind, strings.Join(unknown.Valid, ", ")),
			Type:    ErrorTypeInvalidRequest,
			Code:    codeModelNotFound,
			Param:   "model",
		}
	}

	if errors.Is(err, ErrEmptyMessages) {
		return &APIError{
			Status:  http.StatusBadRequest,
			Message: "messages must contain at least one message",
			Type:    ErrorTypeInvalidRequest,
			Code:    codeEmptyMessages,
			Param:   "messages",
		}
	}

	var invalid *InvalidRequestError
	if errors.As(err, &invalid) {
		return &APIError{
			Status:  http.StatusBadRequest,
			Message: invalid.Message,
			Type:    ErrorTypeInvalidRequest,
			Code:    codeInvalidValue,
			Param:   invalid.Param,
		}
	}
	if errors.Is(err, ErrInvalidRequest) {
		return &APIError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    ErrorTypeInvalidRequest,
			Code:    codeInvalidValue,
		}
	}

	var backendErr *provider.BackendError
	if errors.As(err, &backendErr) {
		return translateBackendError(backendErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{
			Status:  http.StatusGatewayTimeout,
			Message: backendMessagePrefix + "request timed out",
			Type:    ErrorTypeAPI,
		}
	}

	return &APIError{
		Status:  http.StatusBadGateway,
		Message: backendMessagePrefix + scrubBackendMessage(err.Error()),
		Type:    ErrorTypeAPI,
	}
}

func translateBackendError(err *provider.BackendError) *APIError {
	message := backendMessagePrefix + scrubBackendMessage(err.Message)

	switch err.Kind {
	case provider.ErrorKindThrottled:
		return &APIError{
			Status:  http.StatusTooManyRequests,
			Message: message,
			Type:    ErrorTypeRateLimit,
			Code:    err.Code,
		}
	case provider.ErrorKindAccessDenied:
		return &APIError{
			Status:  http.StatusForbidden,
			Message: message,
			Type:    ErrorTypePermission,
			Code:    err.Code,
		}
	case provider.ErrorKindUnavailable:
		return &APIError{
			Status:  http.StatusServiceUnavailable,
			Message: message,
			Type:    ErrorTypeAPI,
			Code:    err.Code,
		}
	default:
		return &APIError{
			Status:  http.StatusBadGateway,
			Message: message,
			Type:    ErrorTypeAPI,
			Code:    err.Code,
		}
	}
}

// StreamError classifies a failure that happened after streaming began. The
// HTTP status can no longer change, so the error is re-typed as stream_error
// and the original classification is kept as its code.
func StreamError(err error) *APIError {
	translated := TranslateError(err)
	return &APIError{
		Status:  translated.Status,
		Message: translated.Message,
		Type:    ErrorTypeStream,
		Code:    translated.Type,
		Param:   translated.Param,
	}
}
