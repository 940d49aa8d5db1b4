package server

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bedrock-gateway/internal/metrics"
	"bedrock-gateway/internal/translator"
)

const sseDone = "[DONE]"

// writeChatStream frames chunks as server-sent events. A stream error is
// delivered in-band as an error frame and every stream ends with [DONE].
func writeChatStream(c echo.Context, chunks iter.Seq2[*translator.ChatCompletionChunk, error]) error {
	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	writer := c.Response().Writer
	rc := http.NewResponseController(writer)
	// The server-wide write deadline does not apply to streams.
	_ = rc.SetWriteDeadline(time.Time{})

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	c.Response().WriteHeader(http.StatusOK)

	for chunk, err := range chunks {
		payload := any(chunk)
		if err != nil {
			payload = translator.ErrorBody{Error: translator.TranslateError(err)}
		}

		if writeErr := writeSSEData(writer, payload); writeErr != nil {
			slog.Debug("client went away during stream", "err", writeErr)
			return nil
		}
		if flushErr := rc.Flush(); flushErr != nil {
			slog.Debug("flush stream", "err", flushErr)
			return nil
		}
	}

	if _, err := fmt.Fprintf(writer, "data: %s\n\n", sseDone); err != nil {
		slog.Debug("write stream terminator", "err", err)
		return nil
	}
	_ = rc.Flush()
	return nil
}

func writeSSEData(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}
