package translator

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
)

// fakeStream replays a fixed event list, then err (io.EOF when nil).
type fakeStream struct {
	events []models.StreamEvent
	err    error
	pos    int
	closed int
}

func (s *fakeStream) Recv() (models.StreamEvent, error) {
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.err != nil {
		return models.StreamEvent{}, s.err
	}
	return models.StreamEvent{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

func collect(t *testing.T, seq func(func(*ChatCompletionChunk, error) bool)) ([]*ChatCompletionChunk, []error) {
	t.Helper()
	var (
		chunks []*ChatCompletionChunk
		errs   []error
	)
	for chunk, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, errs
}

func helloEvents() []models.StreamEvent {
	return []models.StreamEvent{
		{Type: models.EventMessageStart, Role: "assistant"},
		{Type: models.EventContentDelta, Text: "Hello"},
		{Type: models.EventContentDelta, Text: " there world"},
		{Type: models.EventMessageStop, StopReason: "end_turn"},
		{Type: models.EventMetadata, Usage: &models.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}},
	}
}

func TestStreamMapperHappyPath(t *testing.T) {
	src := &fakeStream{events: helloEvents()}
	mapper := NewStreamMapper(StreamConfig{PublicModel: "gpt-4o", BackendModel: "backend"})

	chunks, errs := collect(t, mapper.Stream(context.Background(), src))
	require.Empty(t, errs)
	require.Len(t, chunks, 3)

	assert.Regexp(t, completionIDPattern, chunks[0].ID)
	for _, chunk := range chunks {
		assert.Equal(t, chunks[0].ID, chunk.ID)
		assert.Equal(t, "chat.completion.chunk", chunk.Object)
		assert.Equal(t, "gpt-4o", chunk.Model)
		assert.Nil(t, chunk.Usage)
	}

	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "Hello", *chunks[0].Choices[0].Delta.Content)
	assert.Nil(t, chunks[0].Choices[0].FinishReason)

	assert.Empty(t, chunks[1].Choices[0].Delta.Role)
	assert.Equal(t, " there world", *chunks[1].Choices[0].Delta.Content)

	assert.Equal(t, ChunkDelta{}, chunks[2].Choices[0].Delta)
	require.NotNil(t, chunks[2].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[2].Choices[0].FinishReason)

	assert.Equal(t, 1, src.closed)
}

func TestStreamMapperUsageChunk(t *testing.T) {
	mapper := NewStreamMapper(StreamConfig{PublicModel: "gpt-4o", IncludeUsage: true, PromptTokens: 9})
	chunks, errs := collect(t, mapper.Stream(context.Background(), &fakeStream{events: helloEvents()}))
	require.Empty(t, errs)
	require.Len(t, chunks, 4)

	last := chunks[3]
	assert.Empty(t, last.Choices)
	assert.NotNil(t, last.Choices)
	require.NotNil(t, last.Usage)
	assert.Equal(t, Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8}, *last.Usage)
}

func TestStreamMapperUsageFallsBackToEstimate(t *testing.T) {
	events := helloEvents()[:4]
	mapper := NewStreamMapper(StreamConfig{PublicModel: "gpt-4o", IncludeUsage: true, PromptTokens: 9})

	chunks, errs := collect(t, mapper.Stream(context.Background(), &fakeStream{events: events}))
	require.Empty(t, errs)
	require.Len(t, chunks, 4)
	assert.Equal(t, Usage{PromptTokens: 9, CompletionTokens: 3, TotalTokens: 12}, *chunks[3].Usage)
}

func TestStreamMapperSynthesizesFinish(t *testing.T) {
	events := helloEvents()[:3]
	chunks, errs := collect(t, NewStreamMapper(StreamConfig{}).Stream(context.Background(), &fakeStream{events: events}))
	require.Empty(t, errs)
	require.Len(t, chunks, 3)
	assert.Equal(t, "stop", *chunks[2].Choices[0].FinishReason)
}

func TestStreamMapperFinishOnlyCarriesRole(t *testing.T) {
	events := []models.StreamEvent{
		{Type: models.EventMessageStart, Role: "assistant"},
		{Type: models.EventMessageStop, StopReason: "content_filtered"},
	}

	chunks, errs := collect(t, NewStreamMapper(StreamConfig{}).Stream(context.Background(), &fakeStream{events: events}))
	require.Empty(t, errs)
	require.Len(t, chunks, 1)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Nil(t, chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "content_filter", *chunks[0].Choices[0].FinishReason)
}

func TestStreamMapperEmptyStreamCarriesRole(t *testing.T) {
	chunks, errs := collect(t, NewStreamMapper(StreamConfig{}).Stream(context.Background(), &fakeStream{}))
	require.Empty(t, errs)
	require.Len(t, chunks, 1)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "stop", *chunks[0].Choices[0].FinishReason)
}

func TestStreamMapperReplayIsIdempotent(t *testing.T) {
	run := func() []*ChatCompletionChunk {
		mapper := NewStreamMapper(StreamConfig{PublicModel: "gpt-4o", BackendModel: "backend", IncludeUsage: true})
		chunks, errs := collect(t, mapper.Stream(context.Background(), &fakeStream{events: helloEvents()}))
		require.Empty(t, errs)
		for _, chunk := range chunks {
			chunk.ID = ""
			chunk.Created = 0
		}
		return chunks
	}

	assert.Equal(t, run(), run())
}

func TestStreamMapperBackendError(t *testing.T) {
	src := &fakeStream{
		events: helloEvents()[:2],
		err:    &provider.BackendError{Kind: provider.ErrorKindThrottled, Op: "converse stream", Code: "ThrottlingException", Message: "Too many requests"},
	}

	chunks, errs := collect(t, NewStreamMapper(StreamConfig{}).Stream(context.Background(), src))
	require.Len(t, chunks, 1)
	require.Len(t, errs, 1)

	var apiErr *APIError
	require.True(t, errors.As(errs[0], &apiErr))
	assert.Equal(t, ErrorTypeStream, apiErr.Type)
	assert.Equal(t, ErrorTypeRateLimit, apiErr.Code)
	assert.Equal(t, 1, src.closed)
}

func TestStreamMapperCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeStream{events: []models.StreamEvent{
		{Type: models.EventContentDelta, Text: "a"},
		{Type: models.EventContentDelta, Text: "b"},
		{Type: models.EventContentDelta, Text: "c"},
		{Type: models.EventMessageStop, StopReason: "end_turn"},
	}}

	var got []string
	for chunk, err := range NewStreamMapper(StreamConfig{}).Stream(ctx, src) {
		require.NoError(t, err)
		got = append(got, *chunk.Choices[0].Delta.Content)
		if len(got) == 1 {
			cancel()
		}
	}

	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 1, src.pos, "no event is pulled after cancellation")
	assert.Equal(t, 1, src.closed)
}

func TestStreamMapperConsumerStops(t *testing.T) {
	src := &fakeStream{events: helloEvents()}
	for range NewStreamMapper(StreamConfig{}).Stream(context.Background(), src) {
		break
	}
	assert.Equal(t, 2, src.pos)
	assert.Equal(t, 1, src.closed)
}

func TestStreamMapperSingleUse(t *testing.T) {
	mapper := NewStreamMapper(StreamConfig{})
	_, errs := collect(t, mapper.Stream(context.Background(), &fakeStream{events: helloEvents()}))
	require.Empty(t, errs)

	second := &fakeStream{events: helloEvents()}
	chunks, errs := collect(t, mapper.Stream(context.Background(), second))
	assert.Empty(t, chunks)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrStreamConsumed)
	assert.Equal(t, 1, second.closed)
}
