// Package forward relays accepted webhook payloads to a downstream consumer.
package forward

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultForwardTimeout = 5 * time.Second

// Forwarder posts the original webhook body to a configured downstream URL.
// A zero-value downstream URL disables forwarding.
type Forwarder struct {
	client    *resty.Client
	endpoint  string
	healthURL string
	logger    *zap.Logger
}

func New(endpoint string, timeout time.Duration, logger *zap.Logger) (*Forwarder, error) {
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return NewWithClient(endpoint, client, logger)
}

func NewWithClient(endpoint string, client *resty.Client, logger *zap.Logger) (*Forwarder, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	trimmed := strings.TrimSpace(endpoint)
	healthURL := ""
	if trimmed != "" {
		parsed, err := url.ParseRequestURI(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid downstream url: %w", err)
		}
		parsed.Path = "/health"
		parsed.RawQuery = ""
		healthURL = parsed.String()
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultForwardTimeout)
	}
	client.SetRetryCount(0)

	return &Forwarder{
		client:    client,
		endpoint:  trimmed,
		healthURL: healthURL,
		logger:    logger,
	}, nil
}

func (f *Forwarder) Enabled() bool {
	return f != nil && f.endpoint != ""
}

// Forward delivers the raw webhook body downstream. Only a 200 counts as
// delivered; every other status is an error.
func (f *Forwarder) Forward(ctx context.Context, body []byte) error {
	if !f.Enabled() {
		return fmt.Errorf("forwarder is not configured")
	}

	response, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(f.endpoint)
	if err != nil {
		return fmt.Errorf("downstream request failed: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("downstream returned status %d", response.StatusCode())
	}
	return nil
}

// CheckHealth probes the downstream /health endpoint.
func (f *Forwarder) CheckHealth(ctx context.Context) bool {
	if !f.Enabled() {
		return false
	}

	response, err := f.client.R().
		SetContext(ctx).
		Get(f.healthURL)
	if err != nil {
		f.logger.Warn("downstream health probe failed", zap.Error(err))
		return false
	}

	return response.StatusCode() == http.StatusOK
}
