package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"bedrock-gateway/internal/provider"
)

var errorKinds = map[string]provider.ErrorKind{
	"ThrottlingException":           provider.ErrorKindThrottled,
	"ServiceQuotaExceededException": provider.ErrorKindThrottled,
	"TooManyRequestsException":      provider.ErrorKindThrottled,
	"AccessDeniedException":         provider.ErrorKindAccessDenied,
	"UnrecognizedClientException":   provider.ErrorKindAccessDenied,
	"ExpiredTokenException":         provider.ErrorKindAccessDenied,
	"InvalidSignatureException":     provider.ErrorKindAccessDenied,
	"ValidationException":           provider.ErrorKindInvalid,
	"ResourceNotFoundException":     provider.ErrorKindInvalid,
	"ServiceUnavailableException":   provider.ErrorKindUnavailable,
	"ModelNotReadyException":        provider.ErrorKindUnavailable,
	"ModelTimeoutException":         provider.ErrorKindUnavailable,
	"InternalServerException":       provider.ErrorKindUnavailable,
	"ModelStreamErrorException":     provider.ErrorKindUnavailable,
}

// classifyError maps SDK failures onto provider.BackendError. Context
// cancellation is returned unchanged so callers can tell it apart.
func classifyError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind, ok := errorKinds[apiErr.ErrorCode()]
		if !ok {
			kind = provider.ErrorKindInvalid
		}
		return &provider.BackendError{
			Kind:    kind,
			Op:      op,
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
	}

	return &provider.BackendError{
		Kind:    provider.ErrorKindTransport,
		Op:      op,
		Message: err.Error(),
		Err:     err,
	}
}
