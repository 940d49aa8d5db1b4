package provider

import (
	"context"
	"errors"
	"fmt"

	"bedrock-gateway/internal/models"
)

// Backend is the unified inference API the gateway translates into.
type Backend interface {
	Name() string
	Converse(ctx context.Context, payload models.ChatPayload) (*models.ConverseOutput, error)
	ConverseStream(ctx context.Context, payload models.ChatPayload) (EventStream, error)
	InvokeEmbedding(ctx context.Context, payload models.EmbeddingPayload) (*models.EmbeddingOutput, error)
}

// EventStream is a pull-based handle on a backend converse stream.
// Recv returns io.EOF once the backend has finished. Close releases the
// underlying connection and must be safe to call more than once.
type EventStream interface {
	Recv() (models.StreamEvent, error)
	Close() error
}

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	ErrorKindThrottled    ErrorKind = "throttled"
	ErrorKindAccessDenied ErrorKind = "access_denied"
	ErrorKindInvalid      ErrorKind = "invalid"
	ErrorKindUnavailable  ErrorKind = "unavailable"
	ErrorKindTransport    ErrorKind = "transport"
)

var (
	// ErrThrottled matches backend errors caused by rate or quota limits.
	ErrThrottled = errors.New("backend throttled")
	// ErrAccessDenied matches backend errors caused by missing permissions.
	ErrAccessDenied = errors.New("backend access denied")
)

// BackendError wraps a failure reported by the backend or its transport.
type BackendError struct {
	Kind    ErrorKind
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrThrottled:
		return e.Kind == ErrorKindThrottled
	case ErrAccessDenied:
		return e.Kind == ErrorKindAccessDenied
	}
	return false
}
