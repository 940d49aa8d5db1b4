package translator

import (
	"strings"

	"bedrock-gateway/internal/models"
)

const (
	nonTextPlaceholder = "[non-text content omitted]"
	systemPrefix       = "System: "
	partSeparator      = "\n\n"
)

// NormalizeContent turns public message content into backend text blocks.
// Plain strings map to exactly one block holding the string unchanged. Part
// lists keep their text parts joined by a blank line; a list without any text
// part collapses to a placeholder.
func NormalizeContent(content MessageContent) []models.ContentBlock {
	if !content.IsParts() {
		return []models.ContentBlock{{Text: content.String()}}
	}

	texts := make([]string, 0, len(content.Parts()))
	for _, part := range content.Parts() {
		if part.Type == "text" {
			texts = append(texts, part.Text)
		}
	}
	if len(texts) == 0 {
		return []models.ContentBlock{{Text: nonTextPlaceholder}}
	}
	return []models.ContentBlock{{Text: strings.Join(texts, partSeparator)}}
}

func contentText(content MessageContent) string {
	if !content.Present() {
		return ""
	}
	return models.Message{Content: NormalizeContent(content)}.Text()
}

// toBackendTurns converts the public conversation into backend turns. System
// messages are folded into the first turn, tool results become attributed
// assistant turns and assistant tool calls are rendered as text.
func toBackendTurns(messages []ChatMessage, systemSuffix string) []models.Message {
	var (
		system []string
		turns  = make([]models.Message, 0, len(messages))
	)

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, contentText(msg.Content))
		case RoleTool, RoleFunction:
			turns = append(turns, models.Message{
				Role:    models.RoleAssistant,
				Content: []models.ContentBlock{{Text: toolResultLabel(msg) + contentText(msg.Content)}},
			})
		case RoleAssistant:
			turns = append(turns, models.Message{
				Role:    models.RoleAssistant,
				Content: assistantBlocks(msg),
			})
		default:
			turns = append(turns, models.Message{
				Role:    models.RoleUser,
				Content: NormalizeContent(msg.Content),
			})
		}
	}

	if systemSuffix != "" {
		system = append(system, systemSuffix)
	}
	if len(system) > 0 {
		turns = foldSystem(turns, systemPrefix+strings.Join(system, partSeparator))
	}

	return fillBlankTurns(mergeTurns(turns))
}

func assistantBlocks(msg ChatMessage) []models.ContentBlock {
	var blocks []models.ContentBlock
	if msg.Content.Present() {
		blocks = NormalizeContent(msg.Content)
	}
	if len(msg.ToolCalls) == 0 {
		if len(blocks) == 0 {
			return []models.ContentBlock{{}}
		}
		return blocks
	}

	calls := renderToolCalls(msg.ToolCalls)
	if len(blocks) == 0 || blocks[len(blocks)-1].Text == "" {
		return []models.ContentBlock{{Text: calls}}
	}
	blocks[len(blocks)-1].Text += "\n" + calls
	return blocks
}

func toolResultLabel(msg ChatMessage) string {
	ref := msg.ToolCallID
	if ref == "" {
		ref = msg.Name
	}
	if ref == "" {
		return "Tool result: "
	}
	return "Tool result (" + ref + "): "
}

func renderToolCalls(calls []ToolCall) string {
	lines := make([]string, 0, len(calls))
	for _, call := range calls {
		lines = append(lines, call.Function.Name+"("+call.Function.Arguments+")")
	}
	return strings.Join(lines, "\n")
}

// foldSystem prepends the system text to the first turn, or creates a user
// turn holding it when the conversation has no other turn.
func foldSystem(turns []models.Message, system string) []models.Message {
	if len(turns) == 0 {
		return []models.Message{{
			Role:    models.RoleUser,
			Content: []models.ContentBlock{{Text: system}},
		}}
	}

	first := &turns[0]
	if len(first.Content) == 0 {
		first.Content = []models.ContentBlock{{Text: system}}
		return turns
	}
	if first.Content[0].Text == "" {
		first.Content[0].Text = system
		return turns
	}
	first.Content[0].Text = system + partSeparator + first.Content[0].Text
	return turns
}

// fillBlankTurns drops whitespace-only blocks, which the backend rejects. A
// turn left without any block carries the placeholder instead.
func fillBlankTurns(turns []models.Message) []models.Message {
	for i := range turns {
		blocks := turns[i].Content[:0]
		for _, block := range turns[i].Content {
			if strings.TrimSpace(block.Text) != "" {
				blocks = append(blocks, block)
			}
		}
		if len(blocks) == 0 {
			blocks = append(blocks, models.ContentBlock{Text: nonTextPlaceholder})
		}
		turns[i].Content = blocks
	}
	return turns
}

// mergeTurns joins consecutive turns of the same role so the conversation
// alternates between user and assistant.
func mergeTurns(turns []models.Message) []models.Message {
	merged := make([]models.Message, 0, len(turns))
	for _, turn := range turns {
		if n := len(merged); n > 0 && merged[n-1].Role == turn.Role {
			merged[n-1].Content = append(merged[n-1].Content, turn.Content...)
			continue
		}
		merged = append(merged, turn)
	}
	return merged
}
