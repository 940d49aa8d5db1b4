package models

// Backend conversation roles. The backend has no system or tool roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is a single text part of a backend message.
type ContentBlock struct {
	Text string
}

// Message represents a single conversational turn in the backend schema.
type Message struct {
	Role    string
	Content []ContentBlock
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	switch len(m.Content) {
	case 0:
		return ""
	case 1:
		return m.Content[0].Text
	}
	out := m.Content[0].Text
	for _, block := range m.Content[1:] {
		out += block.Text
	}
	return out
}

// InferenceConfig carries the sampling parameters sent to the backend.
type InferenceConfig struct {
	Temperature   float64
	MaxTokens     int
	TopP          float64
	StopSequences []string
}

// ChatPayload is the canonical request handed to a backend converse call.
type ChatPayload struct {
	ModelID   string
	Messages  []Message
	Inference InferenceConfig
}

// ConverseOutput captures one complete backend response.
type ConverseOutput struct {
	Message    *Message
	StopReason string
	Usage      *Usage
}

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamEventType enumerates the backend stream events the gateway consumes.
type StreamEventType string

const (
	EventMessageStart StreamEventType = "message_start"
	EventContentDelta StreamEventType = "content_block_delta"
	EventMessageStop  StreamEventType = "message_stop"
	EventMetadata     StreamEventType = "metadata"
)

// StreamEvent is one item of a backend converse stream.
type StreamEvent struct {
	Type       StreamEventType
	Role       string
	Text       string
	StopReason string
	Usage      *Usage
}

// EmbeddingPayload is one backend embedding invocation.
type EmbeddingPayload struct {
	ModelID    string
	Input      string
	Dimensions int
}

// EmbeddingOutput is the backend answer to a single embedding invocation.
type EmbeddingOutput struct {
	Embedding   []float32
	InputTokens int
}
