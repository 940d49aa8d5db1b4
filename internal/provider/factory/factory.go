package factory

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"bedrock-gateway/internal/config"
	"bedrock-gateway/internal/provider"
	"bedrock-gateway/internal/provider/bedrock"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// NewRegistry builds the model registry from the configured mappings.
func NewRegistry(cfg config.Config) (*provider.Registry, error) {
	registry, err := provider.NewRegistry(cfg.Models.Chat, cfg.Models.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("build model registry: %w", err)
	}
	return registry, nil
}

// NewBackend constructs the configured inference backend.
func NewBackend(ctx context.Context, cfg config.Config) (provider.Backend, error) {
	backend, err := bedrock.New(ctx, cfg.Backend, newHTTPClient(cfg.Backend.Timeout))
	if err != nil {
		return nil, fmt.Errorf("initialise bedrock provider: %w", err)
	}
	return backend, nil
}

// newHTTPClient bounds connection setup and the wait for response headers.
// There is no overall client timeout because streamed responses outlive it.
func newHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
	}

	return &http.Client{
		Transport: transport,
	}
}
