package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"bedrock-gateway/internal/metrics"
	"bedrock-gateway/internal/models"
	"bedrock-gateway/internal/provider"
	"bedrock-gateway/internal/translator"
)

const (
	opConverse       = "converse"
	opConverseStream = "converse_stream"
	opEmbedding      = "invoke_embedding"

	defaultEmbeddingConcurrency = 8
)

// Options tunes the router.
type Options struct {
	Defaults             translator.Defaults
	EmbeddingConcurrency int
	Logger               *slog.Logger
}

// Router translates public requests into backend calls and back.
type Router struct {
	backend          provider.Backend
	registry         *provider.Registry
	builder          *translator.PayloadBuilder
	embedConcurrency int
	created          int64
	logger           *slog.Logger
}

// New constructs a router calling backend for models resolved by registry.
func New(backend provider.Backend, registry *provider.Registry, opts Options) (*Router, error) {
	if backend == nil {
		return nil, errors.New("backend must not be nil")
	}
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}

	concurrency := opts.EmbeddingConcurrency
	if concurrency < 1 {
		concurrency = defaultEmbeddingConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		backend:          backend,
		registry:         registry,
		builder:          translator.NewPayloadBuilder(registry, opts.Defaults),
		embedConcurrency: concurrency,
		created:          time.Now().Unix(),
		logger:           logger.With("component", "router"),
	}, nil
}

// Chat performs one synchronous chat completion.
func (r *Router) Chat(ctx context.Context, req *translator.ChatCompletionRequest) (*translator.ChatCompletionResponse, error) {
	payload, err := r.builder.Build(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.backend.Converse(ctx, payload)
	r.observe(opConverse, req.Model, payload.ModelID, start, err)
	if err != nil {
		return nil, fmt.Errorf("provider %s converse: %w", r.backend.Name(), err)
	}

	resp := translator.MapResponse(out, req.Model, payload.ModelID)
	r.recordTokens(req.Model, resp.Usage)
	return &resp, nil
}

// ChatStream starts a streamed chat completion. Failures that happen before
// the first backend event are returned directly so the caller can still
// answer with an error status.
func (r *Router) ChatStream(ctx context.Context, req *translator.ChatCompletionRequest) (iter.Seq2[*translator.ChatCompletionChunk, error], error) {
	payload, err := r.builder.Build(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	src, err := r.backend.ConverseStream(ctx, payload)
	if err == nil {
		src, err = peek(src)
	}
	if err != nil {
		r.observe(opConverseStream, req.Model, payload.ModelID, start, err)
		return nil, fmt.Errorf("provider %s converse stream: %w", r.backend.Name(), err)
	}

	mapper := translator.NewStreamMapper(translator.StreamConfig{
		PublicModel:  req.Model,
		BackendModel: payload.ModelID,
		IncludeUsage: req.IncludeUsage(),
		PromptTokens: translator.EstimatePromptTokens(req.Messages),
	})
	chunks := mapper.Stream(ctx, src)

	return func(yield func(*translator.ChatCompletionChunk, error) bool) {
		var streamErr error
		defer func() {
			r.observe(opConverseStream, req.Model, payload.ModelID, start, streamErr)
		}()

		for chunk, err := range chunks {
			if err != nil {
				streamErr = err
			} else if chunk.Usage != nil {
				r.recordTokens(req.Model, *chunk.Usage)
			}
			if !yield(chunk, err) {
				return
			}
		}
	}, nil
}

// Embeddings computes one vector per input, calling the backend concurrently
// and returning the vectors in input order.
func (r *Router) Embeddings(ctx context.Context, req *translator.EmbeddingRequest) (*translator.EmbeddingResponse, error) {
	backendID, err := r.registry.Resolve(req.Model, provider.KindEmbedding)
	if err != nil {
		return nil, err
	}

	dimensions := 0
	if req.Dimensions != nil {
		dimensions = *req.Dimensions
	}

	results := make([]translator.EmbeddingResult, len(req.Input))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.embedConcurrency)
	for i, input := range req.Input {
		g.Go(func() error {
			start := time.Now()
			out, err := r.backend.InvokeEmbedding(gctx, models.EmbeddingPayload{
				ModelID:    backendID,
				Input:      input,
				Dimensions: dimensions,
			})
			r.observe(opEmbedding, req.Model, backendID, start, err)
			if err != nil {
				return fmt.Errorf("provider %s embedding input %d: %w", r.backend.Name(), i, err)
			}

			tokens := out.InputTokens
			if tokens == 0 {
				tokens = translator.EstimateTokens(input)
			}
			results[i] = translator.EmbeddingResult{
				Index:     i,
				Embedding: out.Embedding,
				Tokens:    tokens,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	encoding := req.EncodingFormat
	if encoding == "" {
		encoding = translator.EncodingFloat
	}
	resp := translator.MapEmbeddings(results, req.Model, encoding)
	r.recordTokens(req.Model, translator.Usage{PromptTokens: resp.Usage.PromptTokens})
	return &resp, nil
}

// ListModels returns every public chat and embedding model.
func (r *Router) ListModels() translator.ModelList {
	return translator.ListModels(r.registry, r.created)
}

// GetModel returns the public model object for id.
func (r *Router) GetModel(id string) (translator.Model, error) {
	if _, _, ok := r.registry.Lookup(id); !ok {
		return translator.Model{}, &provider.UnknownModelError{
			ID:    id,
			Kind:  provider.KindChat,
			Valid: slices.Concat(r.registry.IDs(provider.KindChat), r.registry.IDs(provider.KindEmbedding)),
		}
	}
	return translator.ModelObject(id, r.created), nil
}

// ModelLabel returns the bounded metric label for a client supplied model id.
func (r *Router) ModelLabel(publicID string) string {
	return r.registry.Label(publicID)
}

// backendLabel keeps passthrough backend ids out of metric labels.
func (r *Router) backendLabel(publicID, backendID string) string {
	if r.registry.Label(publicID) == provider.LabelPassthrough {
		return provider.LabelPassthrough
	}
	return backendID
}

func (r *Router) observe(op, publicID, backendID string, start time.Time, err error) {
	elapsed := time.Since(start)
	label := r.backendLabel(publicID, backendID)
	metrics.BackendRequestsTotal.WithLabelValues(op, label, metrics.Status(err)).Inc()
	metrics.BackendLatency.WithLabelValues(op, label).Observe(elapsed.Seconds())

	if err != nil {
		r.logger.Warn("backend call failed", "op", op, "model", backendID, "latency_ms", elapsed.Milliseconds(), "err", err)
		return
	}
	r.logger.Debug("backend call", "op", op, "model", backendID, "latency_ms", elapsed.Milliseconds())
}

func (r *Router) recordTokens(publicID string, usage translator.Usage) {
	model := r.registry.Label(publicID)
	if usage.PromptTokens > 0 {
		metrics.TokensTotal.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		metrics.TokensTotal.WithLabelValues(model, "completion").Add(float64(usage.CompletionTokens))
	}
}

// peek pulls the first event so that errors raised before any output are
// reported synchronously. The returned stream replays that event first.
func peek(src provider.EventStream) (provider.EventStream, error) {
	event, err := src.Recv()
	if err != nil && !errors.Is(err, io.EOF) {
		_ = src.Close()
		return nil, err
	}
	return &peekedStream{EventStream: src, first: event, firstErr: err}, nil
}

type peekedStream struct {
	provider.EventStream
	first    models.StreamEvent
	firstErr error
	replayed bool
}

func (s *peekedStream) Recv() (models.StreamEvent, error) {
	if !s.replayed {
		s.replayed = true
		return s.first, s.firstErr
	}
	return s.EventStream.Recv()
}
