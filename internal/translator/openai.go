package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Public roles accepted on chat messages. "function" is the legacy spelling of "tool".
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
)

const (
	objectChatCompletion      = "chat.completion"
	objectChatCompletionChunk = "chat.completion.chunk"
	objectList                = "list"
	objectEmbedding           = "embedding"
	objectModel               = "model"
	objectModelPermission     = "model_permission"

	responseFormatJSONObject = "json_object"

	// EncodingFloat and EncodingBase64 are the accepted embedding encodings.
	EncodingFloat  = "float"
	EncodingBase64 = "base64"
)

// ChatCompletionRequest models the OpenAI chat/completions request payload.
// Optional sampling fields stay nil when absent so defaults can be applied
// downstream.
type ChatCompletionRequest struct {
	Model            string             `json:"model" validate:"required"`
	Messages         []ChatMessage      `json:"messages" validate:"dive"`
	Temperature      *float64           `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP             *float64           `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens        *int               `json:"max_tokens,omitempty" validate:"omitempty,gte=1"`
	N                *int               `json:"n,omitempty" validate:"omitempty,gte=1"`
	Stream           bool               `json:"stream,omitempty"`
	StreamOptions    *StreamOptions     `json:"stream_options,omitempty"`
	Stop             StopSequences      `json:"stop,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	Seed             *int64             `json:"seed,omitempty"`
	Tools            []Tool             `json:"tools,omitempty"`
	ToolChoice       json.RawMessage    `json:"tool_choice,omitempty"`
	ResponseFormat   *ResponseFormat    `json:"response_format,omitempty"`
	Logprobs         json.RawMessage    `json:"logprobs,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
	User             string             `json:"user,omitempty"`
}

// StreamOptions carries the stream_options object.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ResponseFormat carries the response_format object.
type ResponseFormat struct {
	Type string `json:"type" validate:"omitempty,oneof=text json_object json_schema"`
}

// UnmarshalJSON decodes and validates the request.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias ChatCompletionRequest

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalidRequest("", "decode chat request: %v", err)
	}

	*r = ChatCompletionRequest(raw)
	r.Model = strings.TrimSpace(r.Model)

	return r.Validate()
}

// Validate checks the request against the public contract.
func (r *ChatCompletionRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if len(r.Messages) == 0 {
		return ErrEmptyMessages
	}
	for i, msg := range r.Messages {
		if err := msg.validate(); err != nil {
			return invalidRequest(fmt.Sprintf("messages[%d]", i), "messages[%d]: %v", i, err)
		}
	}
	return nil
}

// IncludeUsage reports whether stream_options.include_usage was requested.
func (r *ChatCompletionRequest) IncludeUsage() bool {
	return r.StreamOptions != nil && r.StreamOptions.IncludeUsage
}

// WantsJSONObject reports whether response_format requests a JSON object.
func (r *ChatCompletionRequest) WantsJSONObject() bool {
	return r.ResponseFormat != nil && r.ResponseFormat.Type == responseFormatJSONObject
}

// ChatMessage captures a single message within the chat request.
type ChatMessage struct {
	Role       string         `json:"role" validate:"required,oneof=system user assistant tool function"`
	Content    MessageContent `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

func (m ChatMessage) validate() error {
	if m.Content.Present() {
		return nil
	}
	if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
		return nil
	}
	return fmt.Errorf("content is required for role %q", m.Role)
}

// MessageContent is either a plain string or an ordered list of content parts.
type MessageContent struct {
	text    *string
	parts   []ContentPart
	isParts bool
}

// TextContent builds string content.
func TextContent(s string) MessageContent {
	return MessageContent{text: &s}
}

// PartsContent builds structured content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{parts: parts, isParts: true}
}

// Present reports whether the message carried content at all.
func (c MessageContent) Present() bool {
	return c.text != nil || c.isParts
}

// IsParts reports whether the content arrived as a list of parts.
func (c MessageContent) IsParts() bool {
	return c.isParts
}

// String returns the plain string content, or "" for part lists.
func (c MessageContent) String() string {
	if c.text == nil {
		return ""
	}
	return *c.text
}

// Parts returns the structured content parts.
func (c MessageContent) Parts() []ContentPart {
	return c.parts
}

// UnmarshalJSON accepts a string, an array of parts or null.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = MessageContent{}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = TextContent(text)
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content must be a string or an array of content parts")
	}
	*c = PartsContent(parts...)
	return nil
}

// MarshalJSON writes the content back in the shape it arrived in.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	switch {
	case c.isParts:
		return json.Marshal(c.parts)
	case c.text != nil:
		return json.Marshal(*c.text)
	default:
		return []byte("null"), nil
	}
}

// ContentPart is one element of multimodal message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image content part.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ToolCall is a tool invocation attached to an assistant message.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the function name and JSON-encoded arguments of a tool call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a tool declaration. Declarations are accepted but never forwarded.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a declared function tool.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// UnmarshalJSON normalises the three tool shapes clients send into one form:
//
//	{"type":"function","function":{"name":...}}   wrapped
//	{"type":"function","name":...}                flattened
//	{"name":...,"parameters":...}                 bare function spec
func (t *Tool) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string              `json:"type"`
		Function    *FunctionDefinition `json:"function"`
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Parameters  json.RawMessage     `json:"parameters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode tool: %w", err)
	}

	toolType := raw.Type
	if toolType == "" {
		toolType = "function"
	}

	if raw.Function != nil {
		*t = Tool{Type: toolType, Function: *raw.Function}
		return nil
	}

	*t = Tool{
		Type: toolType,
		Function: FunctionDefinition{
			Name:        raw.Name,
			Description: raw.Description,
			Parameters:  raw.Parameters,
		},
	}
	return nil
}

// StopSequences accepts a single string or an array of strings.
type StopSequences []string

// UnmarshalJSON flattens the stop field into a slice.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StopSequences{single}
		return nil
	}

	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings")
	}
	*s = StopSequences(multi)
	return nil
}

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"`
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	Choices           []ChatChoice `json:"choices"`
	Usage             Usage        `json:"usage"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
}

// ChatChoice represents a single choice in the response payload.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
	Logprobs     any             `json:"logprobs"`
}

// ResponseMessage is the assistant message of a completed choice.
type ResponseMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Usage mirrors the token usage block in OpenAI responses.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one incremental unit of a streamed response.
type ChatCompletionChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	SystemFingerprint string        `json:"system_fingerprint,omitempty"`
	Choices           []ChunkChoice `json:"choices"`
	Usage             *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is the per-choice part of a stream chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
	Logprobs     any        `json:"logprobs"`
}

// ChunkDelta carries the incremental message fields.
type ChunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// EmbeddingRequest models the OpenAI embeddings request payload.
type EmbeddingRequest struct {
	Model          string         `json:"model" validate:"required"`
	Input          EmbeddingInput `json:"input" validate:"min=1,dive,required"`
	Dimensions     *int           `json:"dimensions,omitempty" validate:"omitempty,gte=1"`
	EncodingFormat string         `json:"encoding_format,omitempty" validate:"omitempty,oneof=float base64"`
	User           string         `json:"user,omitempty"`
}

// UnmarshalJSON decodes and validates the request.
func (r *EmbeddingRequest) UnmarshalJSON(data []byte) error {
	type alias EmbeddingRequest

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalidRequest("", "decode embeddings request: %v", err)
	}

	*r = EmbeddingRequest(raw)
	r.Model = strings.TrimSpace(r.Model)

	return validateStruct(r)
}

// EmbeddingInput accepts a single string or an array of strings.
type EmbeddingInput []string

// UnmarshalJSON flattens the input field into a slice.
func (in *EmbeddingInput) UnmarshalJSON(data []byte) error {
	var stops StopSequences
	if err := stops.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("input must be a string or an array of strings")
	}
	*in = EmbeddingInput(stops)
	return nil
}

// EmbeddingResponse models the OpenAI embeddings response payload.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Model  string          `json:"model"`
	Data   []EmbeddingData `json:"data"`
	Usage  EmbeddingUsage  `json:"usage"`
}

// EmbeddingData holds one vector. Embedding is a []float32, or a base64
// string when encoding_format is base64.
type EmbeddingData struct {
	Object    string `json:"object"`
	Index     int    `json:"index"`
	Embedding any    `json:"embedding"`
}

// EmbeddingUsage is the usage block of an embeddings response.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Model is an entry of the model listing.
type Model struct {
	ID         string            `json:"id"`
	Object     string            `json:"object"`
	Created    int64             `json:"created"`
	OwnedBy    string            `json:"owned_by"`
	Root       string            `json:"root,omitempty"`
	Parent     *string           `json:"parent"`
	Permission []ModelPermission `json:"permission,omitempty"`
}

// ModelPermission mirrors the legacy permission object of the model listing.
type ModelPermission struct {
	ID                string  `json:"id"`
	Object            string  `json:"object"`
	Created           int64   `json:"created"`
	AllowCreateEngine bool    `json:"allow_create_engine"`
	AllowSampling     bool    `json:"allow_sampling"`
	AllowLogprobs     bool    `json:"allow_logprobs"`
	AllowFineTuning   bool    `json:"allow_fine_tuning"`
	Organization      string  `json:"organization"`
	Group             *string `json:"group"`
	IsBlocking        bool    `json:"is_blocking"`
}

// ModelList is the response of the model listing endpoint.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
