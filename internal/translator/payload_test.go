package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
)

func newTestBuilder(t *testing.T) *PayloadBuilder {
	t.Helper()
	registry, err := provider.NewRegistry(nil, nil)
	require.NoError(t, err)
	return NewPayloadBuilder(registry, Defaults{
		Temperature:     1.0,
		TopP:            1.0,
		MaxTokens:       2048,
		MaxOutputTokens: 8192,
	})
}

func ptr[T any](v T) *T {
	return &v
}

func userRequest(text string) *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: RoleUser, Content: TextContent(text)}},
	}
}

func TestBuildResolvesModelAndDefaults(t *testing.T) {
	payload, err := newTestBuilder(t).Build(userRequest("hello"))
	require.NoError(t, err)

	assert.Equal(t, "us.anthropic.claude-3-7-sonnet-20250219-v1:0", payload.ModelID)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "hello"}}},
	}, payload.Messages)
	assert.Equal(t, models.InferenceConfig{
		Temperature: 1.0,
		MaxTokens:   2048,
		TopP:        0.999,
	}, payload.Inference)
}

func TestBuildClampsInference(t *testing.T) {
	tests := []struct {
		name string
		req  func(*ChatCompletionRequest)
		want models.InferenceConfig
	}{
		{
			name: "zero values nudged inside range",
			req: func(r *ChatCompletionRequest) {
				r.Temperature = ptr(0.0)
				r.TopP = ptr(0.0)
			},
			want: models.InferenceConfig{Temperature: 0.01, TopP: 0.01, MaxTokens: 2048},
		},
		{
			name: "temperature above backend range",
			req: func(r *ChatCompletionRequest) {
				r.Temperature = ptr(1.7)
				r.TopP = ptr(0.5)
			},
			want: models.InferenceConfig{Temperature: 1.0, TopP: 0.5, MaxTokens: 2048},
		},
		{
			name: "max tokens capped",
			req: func(r *ChatCompletionRequest) {
				r.Temperature = ptr(0.3)
				r.MaxTokens = ptr(100000)
			},
			want: models.InferenceConfig{Temperature: 0.3, TopP: 0.999, MaxTokens: 8192},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := userRequest("hi")
			tt.req(req)

			payload, err := newTestBuilder(t).Build(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.Inference)
		})
	}
}

func TestBuildTruncatesStopSequences(t *testing.T) {
	req := userRequest("hi")
	req.Stop = StopSequences{"a", "", "b", "c", "d", "e", "f"}

	payload, err := newTestBuilder(t).Build(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, payload.Inference.StopSequences)

	req.Stop = StopSequences{""}
	payload, err = newTestBuilder(t).Build(req)
	require.NoError(t, err)
	assert.Nil(t, payload.Inference.StopSequences)
}

func TestBuildSystemOnly(t *testing.T) {
	req := &ChatCompletionRequest{
		Model:    "claude-3-5-haiku",
		Messages: []ChatMessage{{Role: RoleSystem, Content: TextContent("X")}},
	}

	payload, err := newTestBuilder(t).Build(req)
	require.NoError(t, err)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, models.RoleUser, payload.Messages[0].Role)
	assert.Equal(t, "System: X", payload.Messages[0].Text())
}

func TestBuildJSONObjectInstruction(t *testing.T) {
	req := userRequest("give me data")
	req.Messages = append([]ChatMessage{{Role: RoleSystem, Content: TextContent("You are terse.")}}, req.Messages...)
	req.ResponseFormat = &ResponseFormat{Type: "json_object"}

	payload, err := newTestBuilder(t).Build(req)
	require.NoError(t, err)
	assert.Equal(t,
		"System: You are terse.\n\nRespond only with a single valid JSON object and no other text.\n\ngive me data",
		payload.Messages[0].Text(),
	)
}

func TestBuildEmptyLeadingTextUsesPlaceholder(t *testing.T) {
	req := &ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []ChatMessage{{Role: RoleAssistant, Content: TextContent("")}},
	}

	payload, err := newTestBuilder(t).Build(req)
	require.NoError(t, err)
	assert.Equal(t, "[non-text content omitted]", payload.Messages[0].Text())
}

func TestBuildNeverForwardsBlankText(t *testing.T) {
	req := &ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []ChatMessage{
			{Role: RoleUser, Content: TextContent("hi")},
			{Role: RoleAssistant, Content: TextContent("")},
			{Role: RoleUser, Content: TextContent("again")},
		},
	}

	payload, err := newTestBuilder(t).Build(req)
	require.NoError(t, err)
	require.Len(t, payload.Messages, 3)
	for i, msg := range payload.Messages {
		require.NotEmpty(t, msg.Content, "message %d", i)
		for j, block := range msg.Content {
			assert.NotEmpty(t, strings.TrimSpace(block.Text), "message %d block %d", i, j)
		}
	}
	assert.Equal(t, "[non-text content omitted]", payload.Messages[1].Text())
}

func TestBuildErrors(t *testing.T) {
	builder := newTestBuilder(t)

	_, err := builder.Build(&ChatCompletionRequest{Model: "gpt-4o"})
	assert.ErrorIs(t, err, ErrEmptyMessages)

	req := userRequest("hi")
	req.Model = "gpt-unknown"
	_, err = builder.Build(req)
	assert.ErrorIs(t, err, provider.ErrUnknownModel)
}

func TestBuildPassesThroughBackendIDs(t *testing.T) {
	req := userRequest("hi")
	req.Model = "us.amazon.nova-pro-v1:0"

	payload, err := newTestBuilder(t).Build(req)
	require.NoError(t, err)
	assert.Equal(t, "us.amazon.nova-pro-v1:0", payload.ModelID)
}
