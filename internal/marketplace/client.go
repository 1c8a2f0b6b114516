// Package marketplace is the REST client for the remote marketplace API.
// It implements every adapter service: cart, product, order, and payment.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"storefront-checkout/internal/adapter"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/transport"
)

const userAgent = "Storefront-Checkout/1.0"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// service groups endpoints that share a circuit breaker.
type service string

const (
	serviceCart    service = "cart service"
	serviceProduct service = "product service"
	serviceOrder   service = "order service"
	servicePayment service = "payment service"
)

// BreakerConfig tunes the per-service circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive transient failures
	// that opens a breaker. Zero uses 5.
	FailureThreshold uint32
	// OpenTimeout is how long an open breaker rejects calls before
	// letting a probe through. Zero uses 30s.
	OpenTimeout time.Duration
}

// Config holds marketplace client configuration.
type Config struct {
	BaseURL string
	// Token is used when the request context carries no shopper token.
	Token   string
	Timeout time.Duration
	// Fingerprint enables the Chrome TLS fingerprint transport.
	Fingerprint bool
	Breaker     BreakerConfig
	// HTTPClient overrides the constructed client, for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements adapter.Marketplace over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breakers   map[service]*gobreaker.CircuitBreaker[struct{}]
	logger     *slog.Logger
}

// New creates a marketplace client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("marketplace base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: transport.New(transport.Options{
				Timeout:     cfg.Timeout,
				Fingerprint: cfg.Fingerprint,
				Service:     "marketplace",
			}),
		}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		breakers:   make(map[service]*gobreaker.CircuitBreaker[struct{}]),
		logger:     logger,
	}
	for _, s := range []service{serviceCart, serviceProduct, serviceOrder, servicePayment} {
		c.breakers[s] = newBreaker(s, cfg.Breaker, logger)
	}
	return c, nil
}

func newBreaker(s service, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        string(s),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Server rejections prove the service is up; only transient
		// failures count against it.
		IsSuccessful: func(err error) bool {
			return err == nil || !model.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("service", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// do sends one JSON request through the service's breaker and decodes a
// 2xx body into out. Transport failures, 5xx, and an open breaker come back
// as upstream errors.
func (c *Client) do(ctx context.Context, s service, method, path string, body, out any) error {
	_, err := c.breakers[s].Execute(func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, s, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return model.NewUpstreamError(string(s), err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, s service, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", s, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", s, err)
	}
	c.setHeaders(ctx, req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError(string(s), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.NewUpstreamError(string(s), fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(s, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return model.NewUpstreamError(string(s), fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	token := adapter.Token(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key := adapter.IdempotencyKey(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
}

// parseErrorResponse converts a non-2xx marketplace response to APIError.
func parseErrorResponse(s service, statusCode int, body []byte) error {
	var errResp errorResponse
	json.Unmarshal(body, &errResp) // Best effort parse

	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}

	switch {
	case statusCode == http.StatusNotFound:
		return model.NewNotFoundError(strings.TrimSuffix(string(s), " service"))
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return model.NewUnauthorizedError(fmt.Sprintf("%s authentication failed", s))
	case statusCode == http.StatusTooManyRequests:
		return model.NewRateLimitError(string(s))
	case statusCode >= 500:
		return model.NewUpstreamError(string(s), fmt.Errorf("status %d: %s", statusCode, msg))
	default:
		return model.NewRejectedError(string(s), msg)
	}
}

// checkEnvelope turns a 2xx success=false answer into a rejection.
func checkEnvelope(s service, env envelope) error {
	if env.Success {
		return nil
	}
	return model.NewRejectedError(string(s), env.Message)
}

var _ adapter.Marketplace = (*Client)(nil)
