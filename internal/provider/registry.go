package provider

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnknownModel indicates the requested model is not registered.
var ErrUnknownModel = errors.New("unknown model")

// ErrDuplicateModel indicates a model id appears in both the chat and embedding tables.
var ErrDuplicateModel = errors.New("model already registered")

// Kind selects which mapping table a model id is resolved against.
type Kind string

const (
	KindChat      Kind = "chat"
	KindEmbedding Kind = "embedding"
)

// DefaultChatModels maps public chat model ids to Bedrock model ids.
var DefaultChatModels = map[string]string{
	"gpt-4o":                   "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"gpt-4o-mini":              "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"gpt-4":                    "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"gpt-4-32k":                "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"gpt-4-turbo":              "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"gpt-4-turbo-preview":      "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-3-5-sonnet-v2":     "us.anthropic.claude-3-5-sonnet-20241022-v2:0",
	"claude-3-5-haiku":         "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	"claude-3-7-sonnet":        "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-sonnet-4-20250514": "us.anthropic.claude-sonnet-4-20250514-v1:0",
	"claude-opus-4-20250514":   "us.anthropic.claude-opus-4-20250514-v1:0",
}

// DefaultEmbeddingModels maps public embedding model ids to Bedrock model ids.
var DefaultEmbeddingModels = map[string]string{
	"text-embedding-ada-002": "amazon.titan-embed-text-v1",
	"text-embedding-3-small": "amazon.titan-embed-text-v1",
	"text-embedding-3-large": "amazon.titan-embed-text-v2:0",
}

// backendNamespaces are the provider prefixes used by Bedrock model ids.
// Ids containing one of them are passed through unmapped.
var backendNamespaces = []string{
	"anthropic.",
	"amazon.",
	"meta.",
	"mistral.",
	"cohere.",
	"ai21.",
	"deepseek.",
	"writer.",
	"stability.",
}

// UnknownModelError reports a model id absent from the mapping table and
// outside the backend namespace.
type UnknownModelError struct {
	ID    string
	Kind  Kind
	Valid []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("%s: %s (valid %s models: %s)", ErrUnknownModel, e.ID, e.Kind, strings.Join(e.Valid, ", "))
}

// Is reports whether target is ErrUnknownModel.
func (e *UnknownModelError) Is(target error) bool {
	return target == ErrUnknownModel
}

// Registry holds the public to backend model id tables. It is immutable once
// constructed and safe for concurrent use without locking.
type Registry struct {
	chat       map[string]string
	embeddings map[string]string
}

// NewRegistry builds a registry from the default tables merged with the
// supplied overrides. Overrides win over defaults.
func NewRegistry(chatOverrides, embeddingOverrides map[string]string) (*Registry, error) {
	r := &Registry{
		chat:       maps.Clone(DefaultChatModels),
		embeddings: maps.Clone(DefaultEmbeddingModels),
	}

	for publicID, backendID := range chatOverrides {
		if err := validateEntry(publicID, backendID); err != nil {
			return nil, fmt.Errorf("chat model: %w", err)
		}
		r.chat[publicID] = backendID
	}
	for publicID, backendID := range embeddingOverrides {
		if err := validateEntry(publicID, backendID); err != nil {
			return nil, fmt.Errorf("embedding model: %w", err)
		}
		r.embeddings[publicID] = backendID
	}

	for publicID := range r.chat {
		if _, exists := r.embeddings[publicID]; exists {
			return nil, fmt.Errorf("%w: %s is mapped as both chat and embedding model", ErrDuplicateModel, publicID)
		}
	}

	return r, nil
}

func validateEntry(publicID, backendID string) error {
	if strings.TrimSpace(publicID) == "" {
		return errors.New("public model id must not be empty")
	}
	if strings.TrimSpace(backendID) == "" {
		return fmt.Errorf("backend model id for %q must not be empty", publicID)
	}
	return nil
}

// Resolve maps a public model id to its backend id.
func (r *Registry) Resolve(publicID string, kind Kind) (string, error) {
	table := r.table(kind)
	if backendID, ok := table[publicID]; ok {
		return backendID, nil
	}
	if InBackendNamespace(publicID) {
		return publicID, nil
	}
	return "", &UnknownModelError{
		ID:    publicID,
		Kind:  kind,
		Valid: r.IDs(kind),
	}
}

// Lookup finds a public id in either table.
func (r *Registry) Lookup(publicID string) (backendID string, kind Kind, ok bool) {
	if backendID, ok := r.chat[publicID]; ok {
		return backendID, KindChat, true
	}
	if backendID, ok := r.embeddings[publicID]; ok {
		return backendID, KindEmbedding, true
	}
	return "", "", false
}

// Metric labels for model ids outside the registered tables.
const (
	LabelPassthrough = "passthrough"
	LabelUnknown     = "unknown"
)

// Label returns a bounded metric label for a client supplied model id:
// the id itself when registered, LabelPassthrough for backend namespace ids
// and LabelUnknown for anything else.
func (r *Registry) Label(publicID string) string {
	if _, _, ok := r.Lookup(publicID); ok {
		return publicID
	}
	if InBackendNamespace(publicID) {
		return LabelPassthrough
	}
	return LabelUnknown
}

// IDs returns the sorted public ids registered for kind.
func (r *Registry) IDs(kind Kind) []string {
	return slices.Sorted(maps.Keys(r.table(kind)))
}

func (r *Registry) table(kind Kind) map[string]string {
	if kind == KindEmbedding {
		return r.embeddings
	}
	return r.chat
}

// InBackendNamespace reports whether id already looks like a Bedrock model id.
func InBackendNamespace(id string) bool {
	id = strings.ToLower(id)
	for _, prefix := range backendNamespaces {
		if strings.Contains(id, prefix) {
			return true
		}
	}
	return false
}
