package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"bedrock-gateway/internal/metrics"
	"bedrock-gateway/internal/translator"
)

const modelContextKey = "model"

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req translator.ChatCompletionRequest
	if err := decodeRequestBody(c, s.cfg.Server.MaxBodyBytes, &req); err != nil {
		return err
	}
	c.Set(modelContextKey, s.router.ModelLabel(req.Model))

	ctx := c.Request().Context()

	if req.Stream {
		chunks, err := s.router.ChatStream(ctx, &req)
		if err != nil {
			return toHTTPError(err)
		}
		return writeChatStream(c, chunks)
	}

	resp, err := s.router.Chat(ctx, &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEmbeddings(c echo.Context) error {
	var req translator.EmbeddingRequest
	if err := decodeRequestBody(c, s.cfg.Server.MaxBodyBytes, &req); err != nil {
		return err
	}
	c.Set(modelContextKey, s.router.ModelLabel(req.Model))

	resp, err := s.router.Embeddings(c.Request().Context(), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.router.ListModels())
}

func (s *Server) handleGetModel(c echo.Context) error {
	id := c.Param("id")
	c.Set(modelContextKey, s.router.ModelLabel(id))

	model, err := s.router.GetModel(id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, model)
}

func decodeRequestBody[T any](c echo.Context, limit int64, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return invalidRequestError("request body is required")
		case errors.As(err, &maxBytesErr):
			return &translator.APIError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit),
				Type:    translator.ErrorTypeInvalidRequest,
			}
		case errors.Is(err, translator.ErrInvalidRequest):
			return translator.TranslateError(err)
		default:
			return invalidRequestError(fmt.Sprintf("invalid JSON payload: %v", err))
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return invalidRequestError("request body must contain a single JSON object")
	}
	return nil
}

func invalidRequestError(message string) *translator.APIError {
	return &translator.APIError{
		Status:  http.StatusBadRequest,
		Message: message,
		Type:    translator.ErrorTypeInvalidRequest,
	}
}

func toHTTPError(err error) error {
	return translator.TranslateError(err)
}

func writeError(c echo.Context, apiErr *translator.APIError) error {
	return c.JSON(apiErr.Status, translator.ErrorBody{Error: apiErr})
}

func openAIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *translator.APIError
	if errors.As(err, &apiErr) {
		_ = writeError(c, apiErr)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, &translator.APIError{
			Status:  he.Code,
			Message: fmt.Sprint(he.Message),
			Type:    translator.ErrorTypeInvalidRequest,
		})
		return
	}

	slog.Error("unhandled request error", "err", err)
	_ = writeError(c, &translator.APIError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	})
}

// countRequests records every public request once its outcome is known.
func countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)

		status := c.Response().Status
		if err != nil {
			status = errorStatus(err)
		}
		model, _ := c.Get(modelContextKey).(string)
		metrics.RequestsTotal.WithLabelValues(c.Path(), model, fmt.Sprintf("%dxx", status/100)).Inc()
		return err
	}
}

func errorStatus(err error) int {
	var apiErr *translator.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
