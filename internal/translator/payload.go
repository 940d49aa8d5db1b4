package translator

import (
	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
)

// Backend inference parameter bounds.
const (
	minTemperature   = 0.01
	maxTemperature   = 1.0
	minTopP          = 0.01
	maxTopP          = 0.999
	maxStopSequences = 4

	jsonObjectInstruction = "Respond only with a single valid JSON object and no other text."
)

// Defaults are the inference parameters used when a request omits them.
type Defaults struct {
	Temperature     float64
	TopP            float64
	MaxTokens       int
	MaxOutputTokens int
}

// PayloadBuilder converts public chat requests into backend payloads.
type PayloadBuilder struct {
	registry *provider.Registry
	defaults Defaults
}

// NewPayloadBuilder constructs a builder resolving models against registry.
func NewPayloadBuilder(registry *provider.Registry, defaults Defaults) *PayloadBuilder {
	if defaults.MaxOutputTokens < 1 {
		defaults.MaxOutputTokens = defaults.MaxTokens
	}
	return &PayloadBuilder{
		registry: registry,
		defaults: defaults,
	}
}

// Build resolves the model, folds the conversation into alternating backend
// turns and clamps the inference parameters to the backend's ranges.
func (b *PayloadBuilder) Build(req *ChatCompletionRequest) (models.ChatPayload, error) {
	backendID, err := b.registry.Resolve(req.Model, provider.KindChat)
	if err != nil {
		return models.ChatPayload{}, err
	}
	if len(req.Messages) == 0 {
		return models.ChatPayload{}, ErrEmptyMessages
	}

	var suffix string
	if req.WantsJSONObject() {
		suffix = jsonObjectInstruction
	}

	turns := toBackendTurns(req.Messages, suffix)
	if len(turns) == 0 {
		return models.ChatPayload{}, ErrEmptyMessages
	}

	return models.ChatPayload{
		ModelID:   backendID,
		Messages:  turns,
		Inference: b.inference(req),
	}, nil
}

func (b *PayloadBuilder) inference(req *ChatCompletionRequest) models.InferenceConfig {
	temperature := b.defaults.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	topP := b.defaults.TopP
	if req.TopP != nil {
		topP = *req.TopP
	}
	maxTokens := b.defaults.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return models.InferenceConfig{
		Temperature:   clamp(temperature, minTemperature, maxTemperature),
		TopP:          clamp(topP, minTopP, maxTopP),
		MaxTokens:     clamp(maxTokens, 1, b.defaults.MaxOutputTokens),
		StopSequences: stopSequences(req.Stop),
	}
}

// stopSequences drops empty entries and keeps the first four in order.
func stopSequences(stop StopSequences) []string {
	if len(stop) == 0 {
		return nil
	}
	out := make([]string, 0, min(len(stop), maxStopSequences))
	for _, s := range stop {
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxStopSequences {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clamp[T int | float64](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
