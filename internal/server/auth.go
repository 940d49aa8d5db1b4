package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bedrock-gateway/internal/translator"
)

// apiKeyAuth requires "Authorization: Bearer <key>" on every request.
func apiKeyAuth(apiKey string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return &translator.APIError{
				Status:  http.StatusUnauthorized,
				Message: "Incorrect API key provided.",
				Type:    translator.ErrorTypeInvalidRequest,
				Code:    "invalid_api_key",
			}
		},
	})
}
