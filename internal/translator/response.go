package translator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
)

// Public finish reasons.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishToolCalls     = "tool_calls"
	FinishContentFilter = "content_filter"

	modelOwner = "openai-mapped"
)

var finishReasons = map[string]string{
	"end_turn":         FinishStop,
	"max_tokens":       FinishLength,
	"stop_sequence":    FinishStop,
	"tool_use":         FinishToolCalls,
	"content_filter":   FinishContentFilter,
	"content_filtered": FinishContentFilter,
}

// MapFinishReason converts a backend stop reason into a public finish reason.
// Unknown reasons map to "stop".
func MapFinishReason(stopReason string) string {
	if reason, ok := finishReasons[stopReason]; ok {
		return reason
	}
	return FinishStop
}

// EstimateTokens approximates a token count as the number of
// whitespace-separated words.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// EstimatePromptTokens applies EstimateTokens to the text of every message.
func EstimatePromptTokens(messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(contentText(msg.Content))
	}
	return total
}

func newCompletionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "chatcmpl-" + strings.ReplaceAll(id.String(), "-", "")
}

// MapResponse converts a complete backend output into the public response.
// It never fails: missing content maps to "" and missing usage is estimated.
func MapResponse(out *models.ConverseOutput, publicModel, backendModel string) ChatCompletionResponse {
	var (
		content    string
		stopReason string
		usage      *models.Usage
	)
	if out != nil {
		if out.Message != nil && len(out.Message.Content) > 0 {
			content = out.Message.Content[0].Text
		}
		stopReason = out.StopReason
		usage = out.Usage
	}

	return ChatCompletionResponse{
		ID:      newCompletionID(),
		Object:  objectChatCompletion,
		Created: time.Now().Unix(),
		Model:   publicModel,
		Choices: []ChatChoice{{
			Index: 0,
			Message: ResponseMessage{
				Role:    RoleAssistant,
				Content: content,
			},
			FinishReason: MapFinishReason(stopReason),
		}},
		Usage:             mapUsage(usage, EstimateTokens(content), EstimateTokens(content)),
		SystemFingerprint: backendModel,
	}
}

// mapUsage prefers backend-reported counts and falls back to the estimates.
func mapUsage(usage *models.Usage, promptEstimate, completionEstimate int) Usage {
	if usage == nil {
		return Usage{
			PromptTokens:     promptEstimate,
			CompletionTokens: completionEstimate,
			TotalTokens:      promptEstimate + completionEstimate,
		}
	}

	total := usage.TotalTokens
	if total == 0 {
		total = usage.PromptTokens + usage.CompletionTokens
	}
	return Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      total,
	}
}

// ModelObject builds the public model object for id.
func ModelObject(id string, created int64) Model {
	return Model{
		ID:      id,
		Object:  objectModel,
		Created: created,
		OwnedBy: modelOwner,
		Root:    id,
		Permission: []ModelPermission{{
			ID:                "modelperm-" + id,
			Object:            objectModelPermission,
			Created:           created,
			AllowCreateEngine: false,
			AllowSampling:     true,
			AllowLogprobs:     false,
			Organization:      "*",
		}},
	}
}

// ListModels builds the public listing of every chat and embedding model.
func ListModels(registry *provider.Registry, created int64) ModelList {
	chat := registry.IDs(provider.KindChat)
	embeddings := registry.IDs(provider.KindEmbedding)

	data := make([]Model, 0, len(chat)+len(embeddings))
	for _, id := range chat {
		data = append(data, ModelObject(id, created))
	}
	for _, id := range embeddings {
		data = append(data, ModelObject(id, created))
	}
	return ModelList{Object: objectList, Data: data}
}

// EmbeddingResult is one backend embedding keyed by its input position.
type EmbeddingResult struct {
	Index     int
	Embedding []float32
	Tokens    int
}

// MapEmbeddings assembles the public embeddings response. results must be
// ordered by input index.
func MapEmbeddings(results []EmbeddingResult, publicModel, encoding string) EmbeddingResponse {
	data := make([]EmbeddingData, 0, len(results))
	tokens := 0
	for _, r := range results {
		var vector any = r.Embedding
		if encoding == EncodingBase64 {
			vector = encodeFloat32Base64(r.Embedding)
		}
		data = append(data, EmbeddingData{
			Object:    objectEmbedding,
			Index:     r.Index,
			Embedding: vector,
		})
		tokens += r.Tokens
	}

	return EmbeddingResponse{
		Object: objectList,
		Model:  publicModel,
		Data:   data,
		Usage: EmbeddingUsage{
			PromptTokens: tokens,
			TotalTokens:  tokens,
		},
	}
}
