// Package generation talks to an OpenAI-compatible chat completions API in
// blocking and streaming modes, with bounded retries on rate limiting.
package generation

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

	"github.com/hyperjump/bayan/internal/retry"
	"github.com/hyperjump/bayan/internal/textnorm"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds a blocking call; StreamTimeout bounds a whole stream.
	Timeout       time.Duration
	StreamTimeout time.Duration
	Retry         retry.Policy
	// RequestsPerSecond limits outgoing requests; 0 disables the limiter.
	RequestsPerSecond float64
	Referer           string
	Title             string
}

// Client is a generation API client. Safe for concurrent use.
type Client struct {
	cfg     Config
	sync    *http.Client
	stream  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a logger for retries and fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// NewClient creates a client. BaseURL, APIKey and Model are required.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("generation base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("generation API key is not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("generation model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 120 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		sync:   &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{Timeout: cfg.StreamTimeout},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.LoggerOrNop(c.logger)
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends prompt and returns the normalized completion. Rate limiting
// and timeouts are retried under the client's policy; other failures return
// at once.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := c.requestBody(prompt, false)
	if err != nil {
		return "", err
	}
	var text string
	err = c.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		out, err := c.generateOnce(ctx, body)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, c.notify("generate"))
	if err != nil {
		return "", err
	}
	return textnorm.Normalize(text), nil
}

func (c *Client) generateOnce(ctx context.Context, body []byte) (string, error) {
	resp, err := c.do(ctx, c.sync, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", classify(fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return "", retry.Permanent(fmt.Errorf("generation API error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", retry.Permanent(errors.New("generation API returned no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// do waits for the limiter, posts body and returns a 200 response. Failures
// are classified for the retry policy.
func (c *Client) do(ctx context.Context, hc *http.Client, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, classify(fmt.Errorf("send request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, classify(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))})
	}
	return resp, nil
}

func (c *Client) requestBody(prompt string, stream bool) ([]byte, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

func (c *Client) notify(op string) retry.Notify {
	return func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("generation request failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Bool("rate_limited", IsRateLimited(err)),
			zap.Error(err))
	}
}

// AnswerQuestion fills template with the retrieved context and question and
// generates an answer.
func (c *Client) AnswerQuestion(ctx context.Context, question, retrieved, template string) (string, error) {
	return c.Generate(ctx, FillTemplate(template, retrieved, question))
}
