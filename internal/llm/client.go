// Package llm generates case content through an OpenAI-compatible chat completions API
// using JSON schema structured outputs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/medcase-generator/internal/domain"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-2024-08-06"
	DefaultTemperature = 0.7

	defaultTimeout    = 120 * time.Second
	defaultRateLimit  = 2.0
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	maxErrorBody      = 4096
)

// StatusError is a non-2xx answer from the completions endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completions endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to the completions endpoint with rate limiting, retries and a circuit breaker.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *logrus.Logger
}

// NewClient creates a completions client, filling unset configuration with defaults.
func NewClient(cfg domain.LLMConfig, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "LLM",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// non-retryable 4xx responses do not count against the endpoint
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Retryable()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  defaultRetryDelay,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		breaker:     breaker,
		logger:      logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// complete sends one structured completion and decodes the message content into out.
func (c *Client) complete(ctx context.Context, p prompt, out interface{}) error {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.system},
			{Role: "user", Content: p.user},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaFormat{Name: p.schemaName, Strict: true, Schema: p.schema},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to encode completion request: %w", err)
	}

	startTime := time.Now()
	content, err := c.sendWithRetry(ctx, payload)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"schema":      p.schemaName,
			"duration_ms": time.Since(startTime).Milliseconds(),
		}).WithError(err).Error("Completion request failed")
		return fmt.Errorf("%w: %s: %v", domain.ErrGenerationFailed, p.schemaName, err)
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %s: malformed structured output: %v", domain.ErrGenerationFailed, p.schemaName, err)
	}

	c.logger.WithFields(logrus.Fields{
		"schema":      p.schemaName,
		"model":       c.model,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Completion request succeeded")
	return nil
}

func (c *Client) sendWithRetry(ctx context.Context, payload []byte) (string, error) {
	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).WithError(lastErr).Warn("Retrying completion request")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait failed: %w", err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.send(ctx, payload)
		})
		if err == nil {
			return result.(string), nil
		}
		lastErr = err

		var statusErr *StatusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return "", fmt.Errorf("completions endpoint unavailable (circuit breaker open): %w", err)
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.As(err, &statusErr) && !statusErr.Retryable():
			return "", err
		}
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) send(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("response contained no choices")
	}

	choice := decoded.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return "", errors.New("structured output truncated at the token limit")
	}
	return choice.Message.Content, nil
}
