package bedrock

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"bedrock-gateway/internal/models"
)

// streamReader is satisfied by *bedrockruntime.ConverseStreamEventStream.
type streamReader interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

// eventStream adapts the SDK event channel to provider.EventStream.
type eventStream struct {
	ctx       context.Context
	reader    streamReader
	closeOnce sync.Once
	closeErr  error
}

func newEventStream(ctx context.Context, reader streamReader) *eventStream {
	return &eventStream{ctx: ctx, reader: reader}
}

// Recv returns the next consumable event. Events the gateway does not use
// are skipped.
func (s *eventStream) Recv() (models.StreamEvent, error) {
	for {
		select {
		case <-s.ctx.Done():
			return models.StreamEvent{}, s.ctx.Err()
		case raw, ok := <-s.reader.Events():
			if !ok {
				if err := s.reader.Err(); err != nil {
					return models.StreamEvent{}, classifyError("converse stream", err)
				}
				return models.StreamEvent{}, io.EOF
			}
			if event, ok := convertStreamEvent(raw); ok {
				return event, nil
			}
		}
	}
}

func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.reader.Close()
	})
	return s.closeErr
}

func convertStreamEvent(raw types.ConverseStreamOutput) (models.StreamEvent, bool) {
	switch ev := raw.(type) {
	case *types.ConverseStreamOutputMemberMessageStart:
		return models.StreamEvent{
			Type: models.EventMessageStart,
			Role: string(ev.Value.Role),
		}, true
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		text, ok := ev.Value.Delta.(*types.ContentBlockDeltaMemberText)
		if !ok {
			return models.StreamEvent{}, false
		}
		return models.StreamEvent{
			Type: models.EventContentDelta,
			Text: text.Value,
		}, true
	case *types.ConverseStreamOutputMemberMessageStop:
		return models.StreamEvent{
			Type:       models.EventMessageStop,
			StopReason: string(ev.Value.StopReason),
		}, true
	case *types.ConverseStreamOutputMemberMetadata:
		return models.StreamEvent{
			Type:  models.EventMetadata,
			Usage: fromTokenUsage(ev.Value.Usage),
		}, true
	default:
		return models.StreamEvent{}, false
	}
}
