package translator

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
)

// ErrStreamConsumed is yielded when a StreamMapper is iterated twice.
var ErrStreamConsumed = errors.New("stream mapper already consumed")

// StreamConfig parameterises one streamed response.
type StreamConfig struct {
	PublicModel  string
	BackendModel string
	IncludeUsage bool
	// PromptTokens is the prompt estimate used when the backend reports no usage.
	PromptTokens int
}

type streamState int

const (
	stateStart streamState = iota
	stateStreaming
	stateDone
)

// StreamMapper converts backend stream events into public chunks. A mapper
// serves exactly one response.
type StreamMapper struct {
	cfg     StreamConfig
	id      string
	created int64

	state            streamState
	consumed         bool
	completionTokens int
	usage            *models.Usage
}

// NewStreamMapper constructs a mapper with a fresh completion id.
func NewStreamMapper(cfg StreamConfig) *StreamMapper {
	return &StreamMapper{
		cfg:     cfg,
		id:      newCompletionID(),
		created: time.Now().Unix(),
	}
}

// Stream pulls events from src and yields public chunks. A backend failure is
// yielded once as a stream_error and ends the sequence. The source is closed
// on every exit path, including cancellation of ctx and early termination by
// the consumer.
func (m *StreamMapper) Stream(ctx context.Context, src provider.EventStream) iter.Seq2[*ChatCompletionChunk, error] {
	return func(yield func(*ChatCompletionChunk, error) bool) {
		defer src.Close()

		if m.consumed {
			yield(nil, ErrStreamConsumed)
			return
		}
		m.consumed = true

		for {
			if ctx.Err() != nil {
				return
			}

			event, err := src.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				yield(nil, StreamError(err))
				return
			}

			switch event.Type {
			case models.EventContentDelta:
				if m.state == stateDone {
					continue
				}
				if !yield(m.deltaChunk(event.Text), nil) {
					return
				}
			case models.EventMessageStop:
				if m.state == stateDone {
					continue
				}
				if !yield(m.finishChunk(MapFinishReason(event.StopReason)), nil) {
					return
				}
				if !m.cfg.IncludeUsage {
					return
				}
				if m.usage != nil {
					yield(m.usageChunk(), nil)
					return
				}
			case models.EventMetadata:
				if event.Usage != nil {
					m.usage = event.Usage
				}
				if m.state == stateDone && m.cfg.IncludeUsage {
					yield(m.usageChunk(), nil)
					return
				}
			}
		}

		if ctx.Err() != nil {
			return
		}
		if m.state != stateDone {
			if !yield(m.finishChunk(FinishStop), nil) {
				return
			}
		}
		if m.cfg.IncludeUsage {
			yield(m.usageChunk(), nil)
		}
	}
}

func (m *StreamMapper) deltaChunk(text string) *ChatCompletionChunk {
	m.completionTokens += EstimateTokens(text)

	delta := ChunkDelta{Content: &text}
	if m.state == stateStart {
		delta.Role = RoleAssistant
		m.state = stateStreaming
	}
	return m.chunk([]ChunkChoice{{Index: 0, Delta: delta}})
}

// finishChunk ends the choice. A stream without any delta still announces
// the assistant role here.
func (m *StreamMapper) finishChunk(reason string) *ChatCompletionChunk {
	var delta ChunkDelta
	if m.state == stateStart {
		delta.Role = RoleAssistant
	}
	m.state = stateDone
	return m.chunk([]ChunkChoice{{Index: 0, Delta: delta, FinishReason: &reason}})
}

func (m *StreamMapper) usageChunk() *ChatCompletionChunk {
	usage := mapUsage(m.usage, m.cfg.PromptTokens, m.completionTokens)
	chunk := m.chunk([]ChunkChoice{})
	chunk.Usage = &usage
	return chunk
}

func (m *StreamMapper) chunk(choices []ChunkChoice) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:                m.id,
		Object:            objectChatCompletionChunk,
		Created:           m.created,
		Model:             m.cfg.PublicModel,
		SystemFingerprint: m.cfg.BackendModel,
		Choices:           choices,
	}
}
