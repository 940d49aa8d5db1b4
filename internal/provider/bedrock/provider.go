package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"bedrock-gateway/internal/config"
	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	providerName    = "bedrock"
)

// runtimeAPI is the subset of the Bedrock runtime client the provider uses.
type runtimeAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements provider.Backend on top of the Bedrock runtime API.
type Provider struct {
	client runtimeAPI
}

var _ provider.Backend = (*Provider)(nil)

// New constructs a Bedrock provider, resolving credentials through the
// default AWS chain.
func New(ctx context.Context, cfg config.BackendConfig, httpClient *http.Client) (*Provider, error) {
	if httpClient == nil {
		return nil, errors.New("http client must not be nil")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("region must not be empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewWithClient(client), nil
}

// NewWithClient wraps an already configured runtime client.
func NewWithClient(client runtimeAPI) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) Converse(ctx context.Context, payload models.ChatPayload) (*models.ConverseOutput, error) {
	out, err := p.client.Converse(ctx, toConverseInput(payload))
	if err != nil {
		return nil, classifyError("converse", err)
	}
	return fromConverseOutput(out), nil
}

func (p *Provider) ConverseStream(ctx context.Context, payload models.ChatPayload) (provider.EventStream, error) {
	in := toConverseInput(payload)
	out, err := p.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         in.ModelId,
		Messages:        in.Messages,
		InferenceConfig: in.InferenceConfig,
	})
	if err != nil {
		return nil, classifyError("converse stream", err)
	}

	stream := out.GetStream()
	if stream == nil {
		return nil, &provider.BackendError{
			Kind:    provider.ErrorKindTransport,
			Op:      "converse stream",
			Message: "backend returned no event stream",
		}
	}
	return newEventStream(ctx, stream), nil
}

func (p *Provider) InvokeEmbedding(ctx context.Context, payload models.EmbeddingPayload) (*models.EmbeddingOutput, error) {
	codec := embeddingCodecFor(payload.ModelID)

	body, err := codec.encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(payload.ModelID),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, classifyError("invoke model", err)
	}

	result, err := codec.decode(out.Body)
	if err != nil {
		return nil, &provider.BackendError{
			Kind:    provider.ErrorKindTransport,
			Op:      "invoke model",
			Message: fmt.Sprintf("decode embedding response: %v", err),
			Err:     err,
		}
	}
	return result, nil
}

func toConverseInput(payload models.ChatPayload) *bedrockruntime.ConverseInput {
	messages := make([]types.Message, 0, len(payload.Messages))
	for _, msg := range payload.Messages {
		content := make([]types.ContentBlock, 0, len(msg.Content))
		for _, block := range msg.Content {
			content = append(content, &types.ContentBlockMemberText{Value: block.Text})
		}

		role := types.ConversationRoleUser
		if msg.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{Role: role, Content: content})
	}

	inference := &types.InferenceConfiguration{
		MaxTokens:   aws.Int32(int32(payload.Inference.MaxTokens)),
		Temperature: aws.Float32(float32(payload.Inference.Temperature)),
		TopP:        aws.Float32(float32(payload.Inference.TopP)),
	}
	if len(payload.Inference.StopSequences) > 0 {
		inference.StopSequences = append([]string(nil), payload.Inference.StopSequences...)
	}

	return &bedrockruntime.ConverseInput{
		ModelId:         aws.String(payload.ModelID),
		Messages:        messages,
		InferenceConfig: inference,
	}
}

func fromConverseOutput(out *bedrockruntime.ConverseOutput) *models.ConverseOutput {
	result := &models.ConverseOutput{
		StopReason: string(out.StopReason),
		Usage:      fromTokenUsage(out.Usage),
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return result
	}

	converted := &models.Message{Role: models.RoleAssistant}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			converted.Content = append(converted.Content, models.ContentBlock{Text: text.Value})
		}
	}
	result.Message = converted
	return result
}

func fromTokenUsage(usage *types.TokenUsage) *models.Usage {
	if usage == nil {
		return nil
	}
	return &models.Usage{
		PromptTokens:     int(aws.ToInt32(usage.InputTokens)),
		CompletionTokens: int(aws.ToInt32(usage.OutputTokens)),
		TotalTokens:      int(aws.ToInt32(usage.TotalTokens)),
	}
}

// embeddingCodec encodes and decodes the model-family specific InvokeModel
// bodies of embedding models.
type embeddingCodec struct {
	encode func(models.EmbeddingPayload) ([]byte, error)
	decode func([]byte) (*models.EmbeddingOutput, error)
}

func embeddingCodecFor(modelID string) embeddingCodec {
	if strings.Contains(modelID, "cohere.embed") {
		return embeddingCodec{encode: encodeCohere, decode: decodeCohere}
	}
	return embeddingCodec{encode: encodeTitan, decode: decodeTitan}
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func encodeTitan(payload models.EmbeddingPayload) ([]byte, error) {
	req := titanRequest{InputText: payload.Input}
	// Only the v2 Titan models accept an output size.
	if strings.Contains(payload.ModelID, "titan-embed-text-v2") {
		req.Dimensions = payload.Dimensions
	}
	return json.Marshal(req)
}

func decodeTitan(body []byte) (*models.EmbeddingOutput, error) {
	var resp titanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("response carries no embedding")
	}
	return &models.EmbeddingOutput{
		Embedding:   resp.Embedding,
		InputTokens: resp.InputTextTokenCount,
	}, nil
}

type cohereRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func encodeCohere(payload models.EmbeddingPayload) ([]byte, error) {
	return json.Marshal(cohereRequest{
		Texts:     []string{payload.Input},
		InputType: "search_document",
	})
}

func decodeCohere(body []byte) (*models.EmbeddingOutput, error) {
	var resp cohereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, errors.New("response carries no embedding")
	}
	return &models.EmbeddingOutput{Embedding: resp.Embeddings[0]}, nil
}
