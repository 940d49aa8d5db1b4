package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bedrock-gateway/internal/models"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name    string
		content MessageContent
		want    []models.ContentBlock
	}{
		{name: "plain string", content: TextContent("hello world"), want: []models.ContentBlock{{Text: "hello world"}}},
		{name: "empty string", content: TextContent(""), want: []models.ContentBlock{{Text: ""}}},
		{name: "whitespace is kept", content: TextContent("  a\n"), want: []models.ContentBlock{{Text: "  a\n"}}},
		{
			name: "text parts joined",
			content: PartsContent(
				ContentPart{Type: "text", Text: "first"},
				ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: "https://x/y.png"}},
				ContentPart{Type: "text", Text: "second"},
			),
			want: []models.ContentBlock{{Text: "first\n\nsecond"}},
		},
		{
			name:    "images only",
			content: PartsContent(ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: "https://x/y.png"}}),
			want:    []models.ContentBlock{{Text: "[non-text content omitted]"}},
		},
		{name: "empty part list", content: PartsContent(), want: []models.ContentBlock{{Text: "[non-text content omitted]"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeContent(tt.content))
		})
	}
}

func TestToBackendTurns(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		suffix   string
		want     []models.Message
	}{
		{
			name:     "system only becomes one user turn",
			messages: []ChatMessage{{Role: RoleSystem, Content: TextContent("X")}},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "System: X"}}},
			},
		},
		{
			name: "systems folded into first turn in order",
			messages: []ChatMessage{
				{Role: RoleSystem, Content: TextContent("A")},
				{Role: RoleUser, Content: TextContent("question")},
				{Role: RoleSystem, Content: TextContent("B")},
			},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "System: A\n\nB\n\nquestion"}}},
			},
		},
		{
			name: "suffix creates system text",
			messages: []ChatMessage{
				{Role: RoleUser, Content: TextContent("list")},
			},
			suffix: jsonObjectInstruction,
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "System: " + jsonObjectInstruction + "\n\nlist"}}},
			},
		},
		{
			name: "tool calls and results are rendered as text",
			messages: []ChatMessage{
				{Role: RoleUser, Content: TextContent("weather?")},
				{Role: RoleAssistant, Content: TextContent("checking"), ToolCalls: []ToolCall{
					{ID: "call_1", Function: FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
					{ID: "call_2", Function: FunctionCall{Name: "get_time", Arguments: `{}`}},
				}},
				{Role: RoleTool, ToolCallID: "call_1", Content: TextContent("sunny")},
				{Role: RoleUser, Content: TextContent("thanks")},
			},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "weather?"}}},
				{Role: models.RoleAssistant, Content: []models.ContentBlock{
					{Text: "checking\nget_weather({\"city\":\"Paris\"})\nget_time({})"},
					{Text: "Tool result (call_1): sunny"},
				}},
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "thanks"}}},
			},
		},
		{
			name: "legacy function role uses the name",
			messages: []ChatMessage{
				{Role: RoleUser, Content: TextContent("hi")},
				{Role: RoleAssistant, ToolCalls: []ToolCall{{Function: FunctionCall{Name: "f", Arguments: "{}"}}}},
				{Role: RoleFunction, Name: "f", Content: TextContent("done")},
			},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "hi"}}},
				{Role: models.RoleAssistant, Content: []models.ContentBlock{
					{Text: "f({})"},
					{Text: "Tool result (f): done"},
				}},
			},
		},
		{
			name: "consecutive user turns merge",
			messages: []ChatMessage{
				{Role: RoleUser, Content: TextContent("one")},
				{Role: RoleUser, Content: TextContent("two")},
			},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "one"}, {Text: "two"}}},
			},
		},
		{
			name: "blank turns carry the placeholder",
			messages: []ChatMessage{
				{Role: RoleUser, Content: TextContent("hi")},
				{Role: RoleAssistant, Content: TextContent("")},
				{Role: RoleUser, Content: TextContent("   ")},
			},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "hi"}}},
				{Role: models.RoleAssistant, Content: []models.ContentBlock{{Text: nonTextPlaceholder}}},
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: nonTextPlaceholder}}},
			},
		},
		{
			name: "blank block dropped from merged turn",
			messages: []ChatMessage{
				{Role: RoleUser, Content: TextContent("one")},
				{Role: RoleUser, Content: TextContent("")},
				{Role: RoleUser, Content: TextContent("two")},
			},
			want: []models.Message{
				{Role: models.RoleUser, Content: []models.ContentBlock{{Text: "one"}, {Text: "two"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toBackendTurns(tt.messages, tt.suffix))
		})
	}
}
