package transport

// Base HTTP transport shared by the Solana RPC and price API clients
// Every request goes through rate limiter -> circuit breaker -> retry
// Knows nothing about payloads: sends bytes, returns bytes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-wallet/internal/infra/log"
	"solana-wallet/internal/infra/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxResponseSize = 10 * 1024 * 1024
	DefaultRateLimit       = 5.0
	DefaultBurst           = 10
)

// ErrResponseTooLarge is returned when a body exceeds Options.MaxResponseSize.
var ErrResponseTooLarge = errors.New("response exceeds size limit")

var DefaultRetry = retry.Options{
	MaxRetries: 3,
	BaseDelay:  300 * time.Millisecond,
	MaxDelay:   5 * time.Second,
	Backoff:    2.0,
}

type Options struct {
	Name            string
	Timeout         time.Duration
	RateLimit       float64 // requests per second, 0 = default, <0 = unlimited
	Burst           int
	MaxResponseSize int64
	Retry           *retry.Options
	Headers         map[string]string
	HTTPClient      *http.Client
}

// Client sends requests for a single upstream API.
type Client struct {
	name            string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	maxResponseSize int64
	retry           retry.Options
	headers         map[string]string
}

func New(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "upstream"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = DefaultMaxResponseSize
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultBurst
	}

	var limiter *rate.Limiter
	switch {
	case opts.RateLimit == 0:
		limiter = rate.NewLimiter(rate.Limit(DefaultRateLimit), opts.Burst)
	case opts.RateLimit > 0:
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}

	retryOpts := DefaultRetry
	if opts.Retry != nil {
		retryOpts = *opts.Retry
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: false,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
			},
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.LogWarn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		name:            opts.Name,
		httpClient:      httpClient,
		rateLimiter:     limiter,
		circuitBreaker:  breaker,
		maxResponseSize: opts.MaxResponseSize,
		retry:           retryOpts,
		headers:         opts.Headers,
	}
}

// Do sends method to url with body JSON-encoded (nil = no body) and returns the 2xx body.
// Non-2xx responses come back as *retry.HTTPError.
func (c *Client) Do(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	requestID := log.GenerateRequestID()

	var respBody []byte
	err := retry.Do(ctx, c.retry, func() error {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.send(ctx, requestID, method, url, payload)
		})
		if err != nil {
			return err
		}
		respBody = result.([]byte)
		return nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.RequestLogger(requestID, c.name).Warn("Circuit breaker rejected request")
		}
		return nil, fmt.Errorf("%s %s failed: %w", c.name, method, err)
	}
	return respBody, nil
}

func (c *Client) send(ctx context.Context, requestID, method, url string, payload []byte) ([]byte, error) {
	startTime := time.Now()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	logger := log.RequestLogger(requestID, c.name)
	logger.Info("HTTP request", zap.String("method", method), zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogResponse(logger, c.name, 0, time.Since(startTime).Milliseconds(), zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(fmt.Errorf("failed to perform request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		log.LogResponse(logger, c.name, resp.StatusCode, duration, zap.Error(err))
		return nil, retry.Transient(fmt.Errorf("failed to read response: %w", err))
	}
	if int64(len(respBody)) > c.maxResponseSize {
		log.LogResponse(logger, c.name, resp.StatusCode, duration, zap.String("error", "response too large"))
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, c.maxResponseSize)
	}

	log.LogResponse(logger, c.name, resp.StatusCode, duration)
	log.LogJSON(logger, "HTTP response body", respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return respBody, nil
}
